package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"kitdash/pkg/rbac"
)

// ClientIdentity 在边界处解析出的调用方身份，核心逻辑只接收该值
type ClientIdentity struct {
	UserID string
	Email  string
	Role   string
}

func (i ClientIdentity) IsAdmin() bool {
	return i.Role == rbac.RoleAdmin
}

// NormalizeEmail 小写并去掉首尾空白
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserIDFromEmail 由邮箱派生稳定的 user id：sha256(normalized email) 的前 32 个十六进制字符
func UserIDFromEmail(email string) string {
	sum := sha256.Sum256([]byte(NormalizeEmail(email)))
	return hex.EncodeToString(sum[:])[:32]
}

// ForEmail 为邮箱构造客户身份
func ForEmail(email string) ClientIdentity {
	normalized := NormalizeEmail(email)
	return ClientIdentity{
		UserID: UserIDFromEmail(normalized),
		Email:  normalized,
		Role:   rbac.RoleClient,
	}
}

type ctxKey struct{}

func WithContext(ctx context.Context, id ClientIdentity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (ClientIdentity, bool) {
	id, ok := ctx.Value(ctxKey{}).(ClientIdentity)
	return id, ok
}
