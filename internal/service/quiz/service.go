package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"kitdash/internal/identity"
	"kitdash/internal/model"
	"kitdash/internal/phase"
	"kitdash/internal/repository"
)

var (
	ErrMissingFields      = errors.New("missing required fields: email, full_name, brand_name, logo_status, online_presence, brand_style, timeline are required")
	ErrSubmissionNotFound = errors.New("quiz submission not found")
)

type Store interface {
	Create(ctx context.Context, q *model.QuizSubmission) error
	GetByID(ctx context.Context, id string) (*model.QuizSubmission, error)
	ListByEmail(ctx context.Context, email string) ([]*model.QuizSubmission, error)
	List(ctx context.Context, kit *phase.Tier, limit, offset int) ([]*model.QuizSubmission, int, error)
	ListLatestPerEmail(ctx context.Context, limit, offset int) ([]*model.QuizSubmission, map[string]int, int, error)
}

type ClientStore interface {
	ListByEmails(ctx context.Context, emails []string) (map[string]*model.Client, error)
}

type Service struct {
	store   Store
	clients ClientStore
	logger  *zap.Logger
}

func NewService(store Store, clients ClientStore, logger *zap.Logger) *Service {
	return &Service{store: store, clients: clients, logger: logger}
}

// Input 公开的问卷提交请求
type Input struct {
	FullName       string   `json:"full_name"`
	Email          string   `json:"email"`
	PhoneNumber    *string  `json:"phone_number"`
	BrandName      string   `json:"brand_name"`
	LogoStatus     string   `json:"logo_status"`
	BrandGoals     []string `json:"brand_goals"`
	OnlinePresence string   `json:"online_presence"`
	Audience       []string `json:"audience"`
	BrandStyle     string   `json:"brand_style"`
	Timeline       string   `json:"timeline"`
	PreferredKit   *string  `json:"preferred_kit"`
}

// NormalizeKit 未知的套餐值记为 nil
func NormalizeKit(s *string) *phase.Tier {
	if s == nil {
		return nil
	}
	t, err := phase.ParseTier(*s)
	if err != nil {
		return nil
	}
	return &t
}

// Submit 校验必填项后保存
func (s *Service) Submit(ctx context.Context, in Input) (*model.QuizSubmission, error) {
	email := identity.NormalizeEmail(in.Email)
	required := []string{email, in.FullName, in.BrandName, in.LogoStatus, in.OnlinePresence, in.BrandStyle, in.Timeline}
	for _, v := range required {
		if strings.TrimSpace(v) == "" {
			return nil, ErrMissingFields
		}
	}

	q := &model.QuizSubmission{
		FullName:       strings.TrimSpace(in.FullName),
		Email:          email,
		PhoneNumber:    in.PhoneNumber,
		BrandName:      in.BrandName,
		LogoStatus:     in.LogoStatus,
		BrandGoals:     in.BrandGoals,
		OnlinePresence: in.OnlinePresence,
		Audience:       in.Audience,
		BrandStyle:     in.BrandStyle,
		Timeline:       in.Timeline,
		PreferredKit:   NormalizeKit(in.PreferredKit),
	}
	if err := s.store.Create(ctx, q); err != nil {
		s.logger.Error("Failed to save quiz submission", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	s.logger.Info("Quiz submitted", zap.String("submission_id", q.ID))
	return q, nil
}

type SubmissionList struct {
	Submissions []*model.QuizSubmission `json:"submissions"`
	Total       int                     `json:"total"`
	Limit       int                     `json:"limit"`
	Offset      int                     `json:"offset"`
}

func (s *Service) List(ctx context.Context, kit *phase.Tier, limit, offset int) (*SubmissionList, error) {
	subs, total, err := s.store.List(ctx, kit, limit, offset)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []*model.QuizSubmission{}
	}
	return &SubmissionList{Submissions: subs, Total: total, Limit: limit, Offset: offset}, nil
}

type UserList struct {
	Users   []model.QuizUser `json:"users"`
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
	HasMore bool             `json:"has_more"`
}

// Users 按邮箱去重的提交者列表，附带项目摘要
func (s *Service) Users(ctx context.Context, limit, offset int) (*UserList, error) {
	subs, counts, total, err := s.store.ListLatestPerEmail(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	emails := make([]string, len(subs))
	for i, sub := range subs {
		emails[i] = sub.Email
	}
	clients, err := s.clients.ListByEmails(ctx, emails)
	if err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}

	out := &UserList{
		Users:   make([]model.QuizUser, 0, len(subs)),
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
	for _, sub := range subs {
		out.Users = append(out.Users, model.QuizUser{
			Email:            sub.Email,
			SubmissionCount:  counts[sub.Email],
			LatestSubmission: sub,
			Project:          model.SummaryOf(clients[sub.Email]),
		})
	}
	return out, nil
}

// Detail 单次提交及同邮箱的历史和项目
type Detail struct {
	Submission *model.QuizSubmission   `json:"submission"`
	History    []*model.QuizSubmission `json:"history"`
	Project    *model.ProjectSummary   `json:"project"`
}

func (s *Service) Detail(ctx context.Context, id string) (*Detail, error) {
	sub, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, err
	}

	history, err := s.store.ListByEmail(ctx, sub.Email)
	if err != nil {
		return nil, err
	}
	clients, err := s.clients.ListByEmails(ctx, []string{sub.Email})
	if err != nil {
		return nil, err
	}
	return &Detail{
		Submission: sub,
		History:    history,
		Project:    model.SummaryOf(clients[sub.Email]),
	}, nil
}
