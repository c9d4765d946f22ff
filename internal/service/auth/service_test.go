package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kitdash/internal/identity"
	"kitdash/internal/model"
	"kitdash/internal/phase"
	"kitdash/internal/repository"
	"kitdash/pkg/rbac"
	"kitdash/pkg/util"
)

const secret = "test-secret"

type fakeQuizzes map[string][]*model.QuizSubmission

func (f fakeQuizzes) ListByEmail(_ context.Context, email string) ([]*model.QuizSubmission, error) {
	return f[email], nil
}

type fakeClients struct {
	client *model.Client
	plans  []string
}

func (f *fakeClients) FindByIdentity(context.Context, string, string) (*model.Client, error) {
	if f.client == nil {
		return nil, repository.ErrNotFound
	}
	return f.client, nil
}

func (f *fakeClients) Plans(context.Context, string, string) ([]string, error) {
	return f.plans, nil
}

type fakeAdmins struct {
	byEmail map[string]*model.AdminUser
	nextID  int64
}

func (f *fakeAdmins) Create(_ context.Context, u *model.AdminUser) error {
	if _, ok := f.byEmail[u.Email]; ok {
		return repository.ErrDuplicate
	}
	f.nextID++
	u.ID = f.nextID
	f.byEmail[u.Email] = u
	return nil
}

func (f *fakeAdmins) FindByEmail(_ context.Context, email string) (*model.AdminUser, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func tierPtr(t phase.Tier) *phase.Tier { return &t }

func newService(quizzes fakeQuizzes, clients *fakeClients) (*Service, *fakeAdmins) {
	admins := &fakeAdmins{byEmail: map[string]*model.AdminUser{}}
	return NewService(quizzes, clients, admins, secret, time.Hour, zap.NewNop()), admins
}

func TestLookupUnknownEmail(t *testing.T) {
	svc, _ := newService(fakeQuizzes{}, &fakeClients{})

	res, err := svc.Lookup(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, res.Exists)
	assert.Equal(t, NotRegisteredMessage, res.Error)
	assert.Empty(t, res.Token)

	_, err = svc.Lookup(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmailRequired)
}

func TestLookupMergesTiers(t *testing.T) {
	quizzes := fakeQuizzes{"sam@example.com": {
		{FullName: "Sam Latest", Email: "sam@example.com", PreferredKit: tierPtr(phase.TierGrowth)},
		{FullName: "Sam Older", Email: "sam@example.com", PreferredKit: nil},
	}}
	completed := time.Now()
	clients := &fakeClients{
		client: &model.Client{Plan: phase.TierLaunch, OnboardingCompletedAt: &completed},
		plans:  []string{"LAUNCH"},
	}
	svc, _ := newService(quizzes, clients)

	res, err := svc.Lookup(context.Background(), " Sam@Example.com ")
	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.Equal(t, "Sam Latest", res.Name)
	assert.Equal(t, phase.TierGrowth, res.KitType)
	assert.Equal(t, []phase.Tier{phase.TierGrowth, phase.TierLaunch}, res.AvailableKitTypes)
	assert.True(t, res.OnboardingFinished)

	claims, err := util.ParseJWT(res.Token, secret)
	require.NoError(t, err)
	assert.Equal(t, identity.UserIDFromEmail("sam@example.com"), claims.UserID)
	assert.Equal(t, "sam@example.com", claims.Email)
	assert.Equal(t, rbac.RoleClient, claims.Role)
}

func TestLookupDefaultsToLaunch(t *testing.T) {
	quizzes := fakeQuizzes{"lee@example.com": {{FullName: "Lee", Email: "lee@example.com"}}}
	svc, _ := newService(quizzes, &fakeClients{})

	res, err := svc.Lookup(context.Background(), "lee@example.com")
	require.NoError(t, err)
	assert.Equal(t, phase.TierLaunch, res.KitType)
	assert.Equal(t, []phase.Tier{phase.TierLaunch}, res.AvailableKitTypes)
	assert.False(t, res.OnboardingFinished)
}

func TestAdminLogin(t *testing.T) {
	svc, _ := newService(fakeQuizzes{}, &fakeClients{})
	ctx := context.Background()

	u, err := svc.CreateAdmin(ctx, "Ops@Example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", u.Email)

	_, err = svc.CreateAdmin(ctx, "ops@example.com", "another password")
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	token, err := svc.AdminLogin(ctx, "ops@example.com", "correct horse")
	require.NoError(t, err)
	claims, err := util.ParseJWT(token, secret)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdmin, claims.Role)
	assert.Equal(t, AdminUserID(u.ID), claims.UserID)

	_, err = svc.AdminLogin(ctx, "ops@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.AdminLogin(ctx, "missing@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.CreateAdmin(ctx, "short@example.com", "abc")
	assert.Error(t, err)
}
