package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kitdash/internal/identity"
	"kitdash/internal/model"
	"kitdash/internal/phase"
	"kitdash/internal/repository"
	"kitdash/pkg/rbac"
	"kitdash/pkg/util"
)

var (
	ErrEmailRequired      = errors.New("email is required")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// NotRegisteredMessage Lookup 找不到问卷时返回给前端的提示
const NotRegisteredMessage = "This email is not registered. Please complete the quiz to get access."

type QuizStore interface {
	ListByEmail(ctx context.Context, email string) ([]*model.QuizSubmission, error)
}

type ClientStore interface {
	FindByIdentity(ctx context.Context, userID, email string) (*model.Client, error)
	Plans(ctx context.Context, userID, email string) ([]string, error)
}

type AdminStore interface {
	Create(ctx context.Context, u *model.AdminUser) error
	FindByEmail(ctx context.Context, email string) (*model.AdminUser, error)
}

type Service struct {
	quizzes   QuizStore
	clients   ClientStore
	admins    AdminStore
	jwtSecret string
	tokenTTL  time.Duration
	logger    *zap.Logger
}

func NewService(quizzes QuizStore, clients ClientStore, admins AdminStore, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		quizzes:   quizzes,
		clients:   clients,
		admins:    admins,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

// LookupResult 客户登录查询的结果
type LookupResult struct {
	Exists             bool                  `json:"exists"`
	Error              string                `json:"error,omitempty"`
	Name               string                `json:"name,omitempty"`
	KitType            phase.Tier            `json:"kit_type,omitempty"`
	AvailableKitTypes  []phase.Tier          `json:"available_kit_types,omitempty"`
	OnboardingFinished bool                  `json:"onboarding_finished"`
	QuizSubmission     *model.QuizSubmission `json:"quiz_submission,omitempty"`
	Token              string                `json:"token,omitempty"`
}

// Lookup 客户凭邮箱登录：邮箱必须出现在问卷提交里。
// 可用套餐是问卷 preferred_kit 与已有项目套餐的并集。
func (s *Service) Lookup(ctx context.Context, email string) (*LookupResult, error) {
	email = identity.NormalizeEmail(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	id := identity.ForEmail(email)

	subs, err := s.quizzes.ListByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load quiz submissions: %w", err)
	}
	if len(subs) == 0 {
		return &LookupResult{Exists: false, Error: NotRegisteredMessage}, nil
	}
	latest := subs[0]

	var tiers []phase.Tier
	seen := map[phase.Tier]bool{}
	add := func(t phase.Tier) {
		if t.Valid() && !seen[t] {
			seen[t] = true
			tiers = append(tiers, t)
		}
	}
	for _, sub := range subs {
		if sub.PreferredKit != nil {
			add(*sub.PreferredKit)
		}
	}
	plans, err := s.clients.Plans(ctx, id.UserID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load plans: %w", err)
	}
	for _, p := range plans {
		add(phase.Tier(p))
	}

	finished := false
	client, err := s.clients.FindByIdentity(ctx, id.UserID, email)
	switch {
	case err == nil:
		finished = client.OnboardingFinished()
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to load client: %w", err)
	}

	kit := phase.TierLaunch
	switch {
	case latest.PreferredKit != nil && latest.PreferredKit.Valid():
		kit = *latest.PreferredKit
	case len(tiers) > 0:
		kit = tiers[0]
	}
	if len(tiers) == 0 {
		tiers = []phase.Tier{kit}
	}

	token, err := s.IssueClientToken(email)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Client lookup",
		zap.String("user_id", id.UserID),
		zap.Bool("onboarding_finished", finished),
	)

	return &LookupResult{
		Exists:             true,
		Name:               latest.FullName,
		KitType:            kit,
		AvailableKitTypes:  tiers,
		OnboardingFinished: finished,
		QuizSubmission:     latest,
		Token:              token,
	}, nil
}

// IssueClientToken 为邮箱签发客户 token
func (s *Service) IssueClientToken(email string) (string, error) {
	id := identity.ForEmail(email)
	if id.Email == "" {
		return "", ErrEmailRequired
	}
	return util.GenerateJWT(id.UserID, id.Email, rbac.RoleClient, s.jwtSecret, s.tokenTTL)
}

// AdminLogin checks admin credentials and returns JWT.
func (s *Service) AdminLogin(ctx context.Context, email, password string) (string, error) {
	u, err := s.admins.FindByEmail(ctx, identity.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("Failed to load admin user", zap.Error(err))
		}
		return "", ErrInvalidCredentials
	}

	if !util.CheckPassword(password, u.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	return util.GenerateJWT(AdminUserID(u.ID), u.Email, rbac.RoleAdmin, s.jwtSecret, s.tokenTTL)
}

// CreateAdmin creates an admin account.
func (s *Service) CreateAdmin(ctx context.Context, email, password string) (*model.AdminUser, error) {
	email = identity.NormalizeEmail(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &model.AdminUser{Email: email, PasswordHash: hash}
	if err := s.admins.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// AdminUserID 管理员 token 中的 user_id
func AdminUserID(id int64) string {
	return fmt.Sprintf("admin-%d", id)
}
