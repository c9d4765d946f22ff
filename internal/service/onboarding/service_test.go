package onboarding

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kitdash/internal/identity"
	"kitdash/internal/model"
	"kitdash/internal/phase"
	"kitdash/internal/repository"
	"kitdash/pkg/config"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeRepo struct {
	commits []repository.CommitCommand
	clients map[string]*model.Client
	steps   map[string][]model.OnboardingStep
	err     error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{clients: map[string]*model.Client{}, steps: map[string][]model.OnboardingStep{}}
}

func (f *fakeRepo) Commit(_ context.Context, cmd repository.CommitCommand) (*model.Client, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.commits = append(f.commits, cmd)
	if c, ok := f.clients[cmd.UserID]; ok && c.Plan != cmd.Plan {
		return nil, repository.ErrPlanMismatch
	}
	now := cmd.Now
	c := &model.Client{
		ID:                    "client-" + cmd.UserID[:6],
		UserID:                cmd.UserID,
		Email:                 cmd.Email,
		Name:                  cmd.Name,
		Plan:                  cmd.Plan,
		OnboardingPercent:     cmd.OnboardingPercent,
		OnboardingCompletedAt: &now,
	}
	f.clients[cmd.UserID] = c
	f.steps[c.ID] = cmd.Steps
	return c, nil
}

func (f *fakeRepo) ListSteps(_ context.Context, clientID string) ([]model.OnboardingStep, error) {
	return f.steps[clientID], nil
}

func (f *fakeRepo) FindByIdentity(_ context.Context, userID, _ string) (*model.Client, error) {
	if c, ok := f.clients[userID]; ok {
		return c, nil
	}
	return nil, repository.ErrNotFound
}

type fakeQuizzes map[string][]*model.QuizSubmission

func (f fakeQuizzes) ListByEmail(_ context.Context, email string) ([]*model.QuizSubmission, error) {
	return f[email], nil
}

type fixture struct {
	svc    *Service
	repo   *fakeRepo
	drafts *DraftStore
	mr     *miniredis.Miniredis
	who    identity.ClientIdentity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	who := identity.ForEmail("ana@example.com")
	repo := newFakeRepo()
	quizzes := fakeQuizzes{who.Email: {{FullName: "Ana Reyes", Email: who.Email}}}
	drafts := NewDraftStore(rdb, 30*24*time.Hour)
	svc := NewService(repo, repo, quizzes, drafts, DefaultRules(), zap.NewNop()).
		WithClock(func() time.Time { return fixedNow })
	return &fixture{svc: svc, repo: repo, drafts: drafts, mr: mr, who: who}
}

func launchSteps(done1, done2, done3 int) []model.OnboardingStep {
	return []model.OnboardingStep{
		{StepNumber: 1, RequiredFieldsCompleted: done1},
		{StepNumber: 2, RequiredFieldsCompleted: done2},
		{StepNumber: 3, RequiredFieldsCompleted: done3},
	}
}

func TestPercent(t *testing.T) {
	steps := []model.OnboardingStep{
		{RequiredFieldsTotal: 7, RequiredFieldsCompleted: 6},
		{RequiredFieldsTotal: 7, RequiredFieldsCompleted: 7},
		{RequiredFieldsTotal: 3, RequiredFieldsCompleted: 2},
	}
	// 15 / 17 = 88.2
	assert.Equal(t, 88, Percent(steps))
	assert.Equal(t, 0, Percent(nil))
	assert.Equal(t, 100, Percent([]model.OnboardingStep{{RequiredFieldsTotal: 2, RequiredFieldsCompleted: 5}}))
}

func TestNewRuleSetOverrides(t *testing.T) {
	rules, err := NewRuleSet(config.OnboardingConfig{Steps: map[string][]config.StepRuleConfig{
		"growth": {{Step: 3, RequiredTotal: 14, MinToContinue: 11}},
	}})
	require.NoError(t, err)
	step3, err := rules.Step(phase.TierGrowth, 3)
	require.NoError(t, err)
	assert.Equal(t, 14, step3.RequiredTotal)
	assert.Equal(t, 11, step3.MinToContinue)
	assert.Equal(t, "Systems and launch", step3.Title)

	launch, err := rules.For(phase.TierLaunch)
	require.NoError(t, err)
	assert.Equal(t, DefaultRules()[phase.TierLaunch], launch)

	_, err = NewRuleSet(config.OnboardingConfig{Steps: map[string][]config.StepRuleConfig{
		"LAUNCH": {{Step: 1, MinToContinue: 9}},
	}})
	assert.Error(t, err)

	_, err = NewRuleSet(config.OnboardingConfig{Steps: map[string][]config.StepRuleConfig{
		"PLATINUM": {{Step: 1}},
	}})
	assert.ErrorIs(t, err, phase.ErrInvalidTier)
}

func TestSaveDraftStep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.SaveDraftStep(ctx, f.who, phase.TierLaunch, model.OnboardingStep{
		StepNumber:              2,
		RequiredFieldsCompleted: 3,
		Fields:                  map[string]any{"brand_colors": "teal"},
	})
	require.NoError(t, err)
	require.Len(t, d.Steps, 1)
	st := d.Steps[0]
	assert.Equal(t, "Show us your brand", st.Title)
	assert.Equal(t, 7, st.RequiredFieldsTotal)
	assert.Equal(t, StepInProgress, st.Status)
	require.NotNil(t, st.StartedAt)
	assert.Nil(t, st.CompletedAt)
	assert.Equal(t, "teal", st.Fields["brand_colors"])

	d, err = f.svc.SaveDraftStep(ctx, f.who, phase.TierLaunch, model.OnboardingStep{StepNumber: 1, RequiredFieldsCompleted: 6})
	require.NoError(t, err)
	require.Len(t, d.Steps, 2)
	assert.Equal(t, 1, d.Steps[0].StepNumber)
	assert.Equal(t, StepDone, d.Steps[0].Status)

	ttl := f.mr.TTL(DraftKey(f.who.UserID, phase.TierLaunch))
	assert.Equal(t, 30*24*time.Hour, ttl)

	_, err = f.svc.SaveDraftStep(ctx, f.who, phase.TierLaunch, model.OnboardingStep{StepNumber: 4})
	assert.ErrorIs(t, err, ErrInvalidStep)
	_, err = f.svc.SaveDraftStep(ctx, f.who, phase.TierLaunch, model.OnboardingStep{StepNumber: 3, RequiredFieldsCompleted: 4})
	assert.ErrorIs(t, err, ErrInvalidStep)
	_, err = f.svc.SaveDraftStep(ctx, f.who, phase.Tier("PRO"), model.OnboardingStep{StepNumber: 1})
	assert.ErrorIs(t, err, phase.ErrInvalidTier)
}

func TestCommitFromRequestBody(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	client, err := f.svc.Commit(ctx, f.who, phase.TierLaunch, launchSteps(6, 7, 2))
	require.NoError(t, err)
	assert.Equal(t, 88, client.OnboardingPercent)
	assert.True(t, client.OnboardingFinished())

	require.Len(t, f.repo.commits, 1)
	cmd := f.repo.commits[0]
	assert.Equal(t, f.who.UserID, cmd.UserID)
	assert.Equal(t, phase.TierLaunch, cmd.Plan)
	require.NotNil(t, cmd.Name)
	assert.Equal(t, "Ana Reyes", *cmd.Name)
	for _, st := range cmd.Steps {
		assert.Equal(t, StepDone, st.Status)
		require.NotNil(t, st.CompletedAt)
	}
}

func TestCommitUsesDraftAndClearsIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, st := range launchSteps(7, 7, 3) {
		_, err := f.svc.SaveDraftStep(ctx, f.who, phase.TierLaunch, st)
		require.NoError(t, err)
	}

	client, err := f.svc.Commit(ctx, f.who, phase.TierLaunch, nil)
	require.NoError(t, err)
	assert.Equal(t, 100, client.OnboardingPercent)
	assert.False(t, f.mr.Exists(DraftKey(f.who.UserID, phase.TierLaunch)))
}

func TestCommitRejectsIncompleteSteps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Commit(ctx, f.who, phase.TierLaunch, launchSteps(6, 5, 3))
	assert.ErrorIs(t, err, ErrStepIncomplete)

	_, err = f.svc.Commit(ctx, f.who, phase.TierLaunch, launchSteps(7, 7, 3)[:2])
	assert.ErrorIs(t, err, ErrMissingSteps)

	dup := launchSteps(7, 7, 3)
	dup[2].StepNumber = 1
	_, err = f.svc.Commit(ctx, f.who, phase.TierLaunch, dup)
	assert.ErrorIs(t, err, ErrInvalidStep)

	// LAUNCH minimums do not satisfy GROWTH
	_, err = f.svc.Commit(ctx, f.who, phase.TierGrowth, launchSteps(7, 7, 3))
	assert.ErrorIs(t, err, ErrStepIncomplete)

	// no draft saved
	_, err = f.svc.Commit(ctx, f.who, phase.TierLaunch, nil)
	assert.ErrorIs(t, err, ErrMissingSteps)

	assert.Empty(t, f.repo.commits)
}

func TestCommitPlanMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Commit(ctx, f.who, phase.TierLaunch, launchSteps(7, 7, 3))
	require.NoError(t, err)

	_, err = f.svc.Commit(ctx, f.who, phase.TierGrowth, []model.OnboardingStep{
		{StepNumber: 1, RequiredFieldsCompleted: 12},
		{StepNumber: 2, RequiredFieldsCompleted: 9},
		{StepNumber: 3, RequiredFieldsCompleted: 13},
	})
	assert.ErrorIs(t, err, repository.ErrPlanMismatch)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.svc.Status(ctx, f.who)
	require.NoError(t, err)
	assert.False(t, st.OnboardingFinished)
	assert.Nil(t, st.KitType)
	assert.Nil(t, st.OnboardingCompletedAt)

	_, err = f.svc.Commit(ctx, f.who, phase.TierLaunch, launchSteps(7, 7, 3))
	require.NoError(t, err)

	st, err = f.svc.Status(ctx, f.who)
	require.NoError(t, err)
	assert.True(t, st.OnboardingFinished)
	require.NotNil(t, st.KitType)
	assert.Equal(t, phase.TierLaunch, *st.KitType)
	require.NotNil(t, st.OnboardingCompletedAt)
	assert.Equal(t, fixedNow, *st.OnboardingCompletedAt)
	assert.Len(t, st.Steps, 3)
}
