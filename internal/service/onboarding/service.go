package onboarding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"kitdash/internal/identity"
	"kitdash/internal/model"
	"kitdash/internal/phase"
	"kitdash/internal/repository"
	"kitdash/pkg/logger"
	"kitdash/pkg/metrics"
	"kitdash/pkg/otel"
)

var (
	ErrInvalidStep    = errors.New("invalid onboarding step")
	ErrStepIncomplete = errors.New("onboarding step incomplete")
	ErrMissingSteps   = errors.New("exactly 3 onboarding steps are required")
)

// 步骤状态
const (
	StepNotStarted = "NOT_STARTED"
	StepInProgress = "IN_PROGRESS"
	StepDone       = "DONE"
)

type Repository interface {
	Commit(ctx context.Context, cmd repository.CommitCommand) (*model.Client, error)
	ListSteps(ctx context.Context, clientID string) ([]model.OnboardingStep, error)
}

type ClientFinder interface {
	FindByIdentity(ctx context.Context, userID, email string) (*model.Client, error)
}

type QuizStore interface {
	ListByEmail(ctx context.Context, email string) ([]*model.QuizSubmission, error)
}

type Drafts interface {
	Save(ctx context.Context, userID string, tier phase.Tier, step model.OnboardingStep) error
	Load(ctx context.Context, userID string, tier phase.Tier) ([]model.OnboardingStep, error)
	Delete(ctx context.Context, userID string, tier phase.Tier) error
}

type Service struct {
	repo    Repository
	clients ClientFinder
	quizzes QuizStore
	drafts  Drafts
	rules   RuleSet
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(repo Repository, clients ClientFinder, quizzes QuizStore, drafts Drafts, rules RuleSet, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		clients: clients,
		quizzes: quizzes,
		drafts:  drafts,
		rules:   rules,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock 替换时钟（测试用）
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Draft 某套餐下的草稿及对应的步骤规则
type Draft struct {
	KitType phase.Tier             `json:"kit_type"`
	Steps   []model.OnboardingStep `json:"steps"`
	Rules   []StepRule             `json:"rules"`
	Percent int                    `json:"onboarding_percent"`
}

// Status 入驻状态视图
type Status struct {
	Email                 string                 `json:"email"`
	OnboardingFinished    bool                   `json:"onboarding_finished"`
	KitType               *phase.Tier            `json:"kit_type"`
	OnboardingPercent     int                    `json:"onboarding_percent"`
	OnboardingCompletedAt *time.Time             `json:"onboarding_completed_at"`
	Steps                 []model.OnboardingStep `json:"steps"`
}

// SaveDraftStep 保存单个步骤的草稿，返回保存后的完整草稿。
// 标题、预计用时和必填总数以规则为准，状态由完成数推导。
func (s *Service) SaveDraftStep(ctx context.Context, id identity.ClientIdentity, tier phase.Tier, step model.OnboardingStep) (*Draft, error) {
	rule, err := s.rules.Step(tier, step.StepNumber)
	if err != nil {
		return nil, err
	}
	if step.RequiredFieldsCompleted < 0 || step.RequiredFieldsCompleted > rule.RequiredTotal {
		return nil, fmt.Errorf("%w: step %d has %d of %d required fields",
			ErrInvalidStep, step.StepNumber, step.RequiredFieldsCompleted, rule.RequiredTotal)
	}

	now := s.now()
	normalized := normalizeStep(step, rule, now)
	if err := s.drafts.Save(ctx, id.UserID, tier, normalized); err != nil {
		return nil, err
	}
	return s.GetDraft(ctx, id, tier)
}

// GetDraft 读取草稿；没有草稿时返回空步骤列表
func (s *Service) GetDraft(ctx context.Context, id identity.ClientIdentity, tier phase.Tier) (*Draft, error) {
	rules, err := s.rules.For(tier)
	if err != nil {
		return nil, err
	}
	steps, err := s.drafts.Load(ctx, id.UserID, tier)
	if err != nil {
		return nil, err
	}
	return &Draft{KitType: tier, Steps: steps, Rules: rules, Percent: Percent(steps)}, nil
}

// Commit 提交入驻问卷。steps 为空时使用 redis 草稿。
// 三个步骤都要达到各自的最少完成数，成功后删除草稿。
func (s *Service) Commit(ctx context.Context, id identity.ClientIdentity, tier phase.Tier, steps []model.OnboardingStep) (*model.Client, error) {
	ctx, span := otel.StartSpan(ctx, "onboarding.commit")
	defer span.End()
	span.SetAttributes(attribute.String("tier", string(tier)))
	log := logger.WithTrace(ctx, s.logger).With(zap.String("user_id", id.UserID), zap.String("tier", string(tier)))

	rules, err := s.rules.For(tier)
	if err != nil {
		return nil, err
	}

	if len(steps) == 0 {
		steps, err = s.drafts.Load(ctx, id.UserID, tier)
		if err != nil {
			return nil, err
		}
	}

	now := s.now()
	normalized, err := checkSteps(steps, rules, now)
	if err != nil {
		metrics.IncrementOnboardingCommit(string(tier), "rejected")
		return nil, err
	}

	var name *string
	if subs, err := s.quizzes.ListByEmail(ctx, id.Email); err != nil {
		log.Warn("Failed to load quiz name", zap.Error(err))
	} else if len(subs) > 0 && subs[0].FullName != "" {
		name = &subs[0].FullName
	}

	client, err := s.repo.Commit(ctx, repository.CommitCommand{
		UserID:            id.UserID,
		Email:             id.Email,
		Name:              name,
		Plan:              tier,
		OnboardingPercent: Percent(normalized),
		Steps:             normalized,
		Now:               now,
	})
	if err != nil {
		metrics.IncrementOnboardingCommit(string(tier), "failed")
		log.Error("Failed to commit onboarding", zap.Error(err))
		return nil, err
	}
	metrics.IncrementOnboardingCommit(string(tier), "success")

	if err := s.drafts.Delete(ctx, id.UserID, tier); err != nil {
		log.Warn("Failed to delete onboarding draft", zap.Error(err))
	}

	log.Info("Onboarding committed",
		zap.String("client_id", client.ID),
		zap.Int("onboarding_percent", client.OnboardingPercent),
	)
	return client, nil
}

// Status 返回入驻状态；没有项目时 onboarding_finished=false
func (s *Service) Status(ctx context.Context, id identity.ClientIdentity) (*Status, error) {
	out := &Status{Email: id.Email, Steps: []model.OnboardingStep{}}

	client, err := s.clients.FindByIdentity(ctx, id.UserID, id.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	steps, err := s.repo.ListSteps(ctx, client.ID)
	if err != nil {
		return nil, err
	}
	kit := client.Plan
	out.OnboardingFinished = client.OnboardingFinished()
	out.KitType = &kit
	out.OnboardingPercent = client.OnboardingPercent
	out.OnboardingCompletedAt = client.OnboardingCompletedAt
	out.Steps = steps
	return out, nil
}

// Percent round(已完成必填项 / 全部必填项 * 100)
func Percent(steps []model.OnboardingStep) int {
	total, done := 0, 0
	for _, st := range steps {
		total += st.RequiredFieldsTotal
		done += min(st.RequiredFieldsCompleted, st.RequiredFieldsTotal)
	}
	if total == 0 {
		return 0
	}
	return int(math.Floor(float64(done)/float64(total)*100 + 0.5))
}

func checkSteps(steps []model.OnboardingStep, rules []StepRule, now time.Time) ([]model.OnboardingStep, error) {
	if len(steps) != StepCount {
		return nil, fmt.Errorf("%w: got %d", ErrMissingSteps, len(steps))
	}
	seen := make(map[int]bool, StepCount)
	out := make([]model.OnboardingStep, StepCount)
	for _, st := range steps {
		if st.StepNumber < 1 || st.StepNumber > StepCount || seen[st.StepNumber] {
			return nil, fmt.Errorf("%w: step number %d", ErrInvalidStep, st.StepNumber)
		}
		seen[st.StepNumber] = true

		rule := rules[st.StepNumber-1]
		if st.RequiredFieldsCompleted < rule.MinToContinue {
			return nil, fmt.Errorf("%w: step %d has %d of %d required fields",
				ErrStepIncomplete, st.StepNumber, st.RequiredFieldsCompleted, rule.MinToContinue)
		}
		out[st.StepNumber-1] = normalizeStep(st, rule, now)
	}
	return out, nil
}

func normalizeStep(st model.OnboardingStep, rule StepRule, now time.Time) model.OnboardingStep {
	st.Title = rule.Title
	st.TimeEstimate = rule.TimeEstimate
	st.RequiredFieldsTotal = rule.RequiredTotal
	st.RequiredFieldsCompleted = min(st.RequiredFieldsCompleted, rule.RequiredTotal)
	if st.Fields == nil {
		st.Fields = map[string]any{}
	}

	switch {
	case st.RequiredFieldsCompleted >= rule.MinToContinue:
		st.Status = StepDone
	case st.RequiredFieldsCompleted > 0:
		st.Status = StepInProgress
	default:
		st.Status = StepNotStarted
	}

	if st.Status != StepNotStarted && st.StartedAt == nil {
		st.StartedAt = &now
	}
	if st.Status == StepDone {
		if st.CompletedAt == nil {
			st.CompletedAt = &now
		}
	} else {
		st.CompletedAt = nil
	}
	return st
}
