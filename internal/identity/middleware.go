package identity

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kitdash/pkg/rbac"
	"kitdash/pkg/util"
)

// ContextKey gin.Context 中保存身份的键
const ContextKey = "identity"

// Resolver 从请求解析身份：优先 Bearer JWT，其次（允许时）?email= 查询参数
type Resolver struct {
	jwtSecret          string
	allowEmailFallback bool
	logger             *zap.Logger
}

func NewResolver(jwtSecret string, allowEmailFallback bool, logger *zap.Logger) *Resolver {
	return &Resolver{
		jwtSecret:          jwtSecret,
		allowEmailFallback: allowEmailFallback,
		logger:             logger,
	}
}

// Resolve 返回 false 表示请求没有可用身份
func (r *Resolver) Resolve(req *http.Request) (ClientIdentity, bool) {
	if token := util.ExtractToken(req); token != "" {
		claims, err := util.ParseJWT(token, r.jwtSecret)
		if err != nil {
			r.logger.Debug("Rejected bearer token", zap.Error(err))
			return ClientIdentity{}, false
		}
		role := claims.Role
		if !rbac.IsKnownRole(role) {
			role = rbac.RoleClient
		}
		return ClientIdentity{
			UserID: claims.UserID,
			Email:  NormalizeEmail(claims.Email),
			Role:   role,
		}, true
	}

	if r.allowEmailFallback {
		if email := NormalizeEmail(req.URL.Query().Get("email")); email != "" {
			return ForEmail(email), true
		}
	}
	return ClientIdentity{}, false
}

// Middleware 解析身份并写入 gin.Context 与 request context；无身份返回 401
func (r *Resolver) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := r.Resolve(c.Request)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized - email required"})
			return
		}
		c.Set(ContextKey, id)
		c.Request = c.Request.WithContext(WithContext(c.Request.Context(), id))
		c.Next()
	}
}

// FromGin 读取 Middleware 写入的身份
func FromGin(c *gin.Context) (ClientIdentity, bool) {
	v, ok := c.Get(ContextKey)
	if !ok {
		return ClientIdentity{}, false
	}
	id, ok := v.(ClientIdentity)
	return id, ok
}
