package dashboard

import (
	"context"
	"errors"
	"fmt"
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
	ErrClientNotFound = errors.New("project not found")
	ErrInvalidDay     = errors.New("current_day_of_14 must be between 1 and 14")
)

type ClientStore interface {
	FindByIdentity(ctx context.Context, userID, email string) (*model.Client, error)
	GetByID(ctx context.Context, id string) (*model.Client, error)
	List(ctx context.Context, f model.ClientFilter) ([]*model.Client, int, error)
	Update(ctx context.Context, id string, p model.ClientPatch) (*model.Client, error)
}

type PhaseStateStore interface {
	ListByClient(ctx context.Context, clientID string) (map[string]phase.State, error)
	ToggleChecklistItem(ctx context.Context, cmd repository.ToggleCommand) (phase.State, error)
	UpdateStatus(ctx context.Context, clientID, phaseID string, u phase.StatusUpdate, now time.Time) (phase.Status, phase.State, error)
}

type QuizStore interface {
	ListByEmail(ctx context.Context, email string) ([]*model.QuizSubmission, error)
	LatestNames(ctx context.Context, emails []string) (map[string]string, error)
}

// Cache 看板读缓存。Generation 在查库前读取，Set 只在代数未变时写入，
// 读取期间的提交（Invalidate）会让这次 Set 失效。
type Cache interface {
	Get(ctx context.Context, clientID string, dst any) bool
	Generation(ctx context.Context, clientID string) int64
	Set(ctx context.Context, clientID string, gen int64, v any)
	Invalidate(ctx context.Context, clientID string)
}

type Service struct {
	clients ClientStore
	states  PhaseStateStore
	quizzes QuizStore
	cache   Cache
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(clients ClientStore, states PhaseStateStore, quizzes QuizStore, cache Cache, logger *zap.Logger) *Service {
	return &Service{
		clients: clients,
		states:  states,
		quizzes: quizzes,
		cache:   cache,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock 替换时钟（测试用）
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Project 项目与合并后的阶段列表
type Project struct {
	ID                 *string        `json:"id"`
	UserID             string         `json:"user_id"`
	Email              string         `json:"email"`
	Name               *string        `json:"name"`
	KitType            phase.Tier     `json:"kit_type"`
	CurrentDayOf14     *int           `json:"current_day_of_14"`
	NextFromUs         *string        `json:"next_from_us"`
	NextFromYou        *string        `json:"next_from_you"`
	OnboardingFinished bool           `json:"onboarding_finished"`
	OnboardingPercent  int            `json:"onboarding_percent"`
	CreatedAt          *time.Time     `json:"created_at"`
	UpdatedAt          *time.Time     `json:"updated_at"`
	Phases             []phase.Merged `json:"phases"`
}

// Dashboard 看板读结果
type Dashboard struct {
	Project  Project        `json:"project"`
	Progress phase.Progress `json:"progress"`
}

// ToggleResult 勾选确认，不包含重新计算的进度
type ToggleResult struct {
	PhaseID        string       `json:"phase_id"`
	ChecklistLabel string       `json:"checklist_label"`
	IsDone         bool         `json:"is_done"`
	PhaseStatus    phase.Status `json:"phase_status"`
}

// PhaseStatusResult 状态覆盖后的阶段
type PhaseStatusResult struct {
	PhaseID     string       `json:"phase_id"`
	Status      phase.Status `json:"status"`
	StartedAt   *time.Time   `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at"`
}

func (s *Service) findClient(ctx context.Context, id identity.ClientIdentity) (*model.Client, error) {
	c, err := s.clients.FindByIdentity(ctx, id.UserID, id.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrClientNotFound
	}
	return c, err
}

func (s *Service) clientByID(ctx context.Context, clientID string) (*model.Client, error) {
	c, err := s.clients.GetByID(ctx, clientID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrClientNotFound
	}
	return c, err
}

// ReadDashboard 读取调用方的项目看板。
// 尚未完成入驻但提交过问卷的用户得到一个按问卷套餐生成的预览（id 为 null）。
func (s *Service) ReadDashboard(ctx context.Context, id identity.ClientIdentity) (*Dashboard, error) {
	ctx, span := otel.StartSpan(ctx, "dashboard.read")
	defer span.End()

	client, err := s.findClient(ctx, id)
	if errors.Is(err, ErrClientNotFound) {
		return s.preview(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return s.dashboardFor(ctx, client)
}

// ReadProgress 只返回进度指标；没有项目时返回 ErrClientNotFound
func (s *Service) ReadProgress(ctx context.Context, id identity.ClientIdentity) (*phase.Progress, error) {
	client, err := s.findClient(ctx, id)
	if err != nil {
		return nil, err
	}
	d, err := s.dashboardFor(ctx, client)
	if err != nil {
		return nil, err
	}
	return &d.Progress, nil
}

// ProjectByID 管理端按项目 ID 读取看板
func (s *Service) ProjectByID(ctx context.Context, clientID string) (*Dashboard, error) {
	client, err := s.clientByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return s.dashboardFor(ctx, client)
}

func (s *Service) dashboardFor(ctx context.Context, client *model.Client) (*Dashboard, error) {
	var (
		cached Dashboard
		gen    int64
	)
	if s.cache != nil {
		if s.cache.Get(ctx, client.ID, &cached) {
			return &cached, nil
		}
		gen = s.cache.Generation(ctx, client.ID)
	}

	catalog, err := phase.GetPhaseStructure(client.Plan)
	if err != nil {
		return nil, fmt.Errorf("client %s: %w", client.ID, err)
	}
	states, err := s.states.ListByClient(ctx, client.ID)
	if err != nil {
		return nil, err
	}

	merged := phase.Merge(catalog, states)
	d := &Dashboard{
		Project:  projectOf(client, merged),
		Progress: phase.Aggregate(merged, client.ProgressInput()),
	}
	if s.cache != nil {
		s.cache.Set(ctx, client.ID, gen, d)
	}
	return d, nil
}

func (s *Service) preview(ctx context.Context, id identity.ClientIdentity) (*Dashboard, error) {
	subs, err := s.quizzes.ListByEmail(ctx, id.Email)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, ErrClientNotFound
	}

	tier := phase.TierLaunch
	if subs[0].PreferredKit != nil {
		tier = *subs[0].PreferredKit
	}
	catalog, err := phase.GetPhaseStructure(tier)
	if err != nil {
		return nil, err
	}
	merged := phase.Merge(catalog, nil)
	name := subs[0].FullName
	return &Dashboard{
		Project: Project{
			UserID:  id.UserID,
			Email:   id.Email,
			Name:    &name,
			KitType: tier,
			Phases:  merged,
		},
		Progress: phase.Aggregate(merged, phase.ClientProgressInput{}),
	}, nil
}

func projectOf(c *model.Client, merged []phase.Merged) Project {
	id := c.ID
	created, updated := c.CreatedAt, c.UpdatedAt
	return Project{
		ID:                 &id,
		UserID:             c.UserID,
		Email:              c.Email,
		Name:               c.Name,
		KitType:            c.Plan,
		CurrentDayOf14:     c.CurrentDayOf14,
		NextFromUs:         c.NextFromUs,
		NextFromYou:        c.NextFromYou,
		OnboardingFinished: c.OnboardingFinished(),
		OnboardingPercent:  c.OnboardingPercent,
		CreatedAt:          &created,
		UpdatedAt:          &updated,
		Phases:             merged,
	}
}

// ToggleChecklistItem 调用方勾选自己项目的清单项
func (s *Service) ToggleChecklistItem(ctx context.Context, id identity.ClientIdentity, phaseID, label string, isDone bool) (*ToggleResult, error) {
	client, err := s.findClient(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toggle(ctx, client, phaseID, label, isDone, id.Role)
}

// AdminToggleChecklistItem 管理端按项目 ID 勾选，与客户端走同一校验
func (s *Service) AdminToggleChecklistItem(ctx context.Context, clientID, phaseID, label string, isDone bool, actorRole string) (*ToggleResult, error) {
	client, err := s.clientByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return s.toggle(ctx, client, phaseID, label, isDone, actorRole)
}

func (s *Service) toggle(ctx context.Context, client *model.Client, phaseID, label string, isDone bool, actorRole string) (*ToggleResult, error) {
	ctx, span := otel.StartSpan(ctx, "dashboard.toggle_checklist_item")
	defer span.End()
	span.SetAttributes(
		attribute.String("client_id", client.ID),
		attribute.String("phase_id", phaseID),
	)
	log := logger.WithTrace(ctx, s.logger)

	if err := phase.ValidateChecklistItem(client.Plan, phaseID, label); err != nil {
		metrics.IncrementChecklistToggle(string(client.Plan), "rejected")
		return nil, err
	}

	next, err := s.states.ToggleChecklistItem(ctx, repository.ToggleCommand{
		ClientID:  client.ID,
		PhaseID:   phaseID,
		Label:     label,
		IsDone:    isDone,
		ActorRole: actorRole,
		Now:       s.now(),
	})
	if err != nil {
		metrics.IncrementChecklistToggle(string(client.Plan), "error")
		log.Error("Failed to toggle checklist item",
			zap.String("client_id", client.ID),
			zap.String("phase_id", phaseID),
			zap.Error(err),
		)
		return nil, err
	}
	metrics.IncrementChecklistToggle(string(client.Plan), "ok")
	s.invalidate(ctx, client.ID)

	log.Info("Checklist item updated",
		zap.String("client_id", client.ID),
		zap.String("phase_id", phaseID),
		zap.Bool("is_done", isDone),
		zap.String("phase_status", string(next.Status)),
	)

	return &ToggleResult{
		PhaseID:        phaseID,
		ChecklistLabel: label,
		IsDone:         isDone,
		PhaseStatus:    next.Status,
	}, nil
}

// UpdatePhaseStatus 管理端直接覆盖阶段状态与时间戳
func (s *Service) UpdatePhaseStatus(ctx context.Context, clientID, phaseID string, u phase.StatusUpdate) (*PhaseStatusResult, error) {
	ctx, span := otel.StartSpan(ctx, "dashboard.update_phase_status")
	defer span.End()

	if u.Empty() {
		return nil, phase.ErrNothingToUpdate
	}
	if u.Status != nil {
		if _, err := phase.ParseStatus(string(*u.Status)); err != nil {
			return nil, err
		}
	}

	client, err := s.clientByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if _, err := phase.FindPhase(client.Plan, phaseID); err != nil {
		return nil, err
	}

	from, next, err := s.states.UpdateStatus(ctx, client.ID, phaseID, u, s.now())
	if err != nil {
		return nil, err
	}
	metrics.IncrementPhaseTransition(string(from), string(next.Status))
	s.invalidate(ctx, client.ID)

	logger.WithTrace(ctx, s.logger).Info("Phase status updated",
		zap.String("client_id", client.ID),
		zap.String("phase_id", phaseID),
		zap.String("from", string(from)),
		zap.String("to", string(next.Status)),
	)

	return &PhaseStatusResult{
		PhaseID:     phaseID,
		Status:      next.Status,
		StartedAt:   next.StartedAt,
		CompletedAt: next.CompletedAt,
	}, nil
}

// UpdateClient 管理端修改交付进度字段
func (s *Service) UpdateClient(ctx context.Context, clientID string, p model.ClientPatch) (*model.Client, error) {
	if p.CurrentDayOf14 != nil && (*p.CurrentDayOf14 < 1 || *p.CurrentDayOf14 > phase.TotalDays) {
		return nil, ErrInvalidDay
	}
	if len(p.Fields()) == 0 {
		return nil, phase.ErrNothingToUpdate
	}

	c, err := s.clients.Update(ctx, clientID, p)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, c.ID)
	return c, nil
}

func (s *Service) invalidate(ctx context.Context, clientID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, clientID)
	}
}
