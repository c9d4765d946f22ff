package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kitdash/internal/api"
	"kitdash/internal/identity"
	"kitdash/pkg/rbac"
	"kitdash/pkg/trace"
	"kitdash/pkg/util"
)

const secret = "router-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(ready map[string]Pinger) *Router {
	log := zap.NewNop()
	h := Handlers{
		Project:    api.NewProjectHandler(nil, log),
		Auth:       api.NewAuthHandler(nil, log),
		Quiz:       api.NewQuizHandler(nil, log),
		Onboarding: api.NewOnboardingHandler(nil, log),
		Admin:      api.NewAdminHandler(nil, nil, nil, log),
	}
	return NewRouter(h, identity.NewResolver(secret, true, log), ready, log)
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := util.GenerateJWT("u-1", "someone@example.com", role, secret, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestHealthAndReadiness(t *testing.T) {
	r := newTestRouter(map[string]Pinger{
		"db": func(context.Context) error { return nil },
	})
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(trace.HeaderName))

	w = httptest.NewRecorder()
	r.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	r = newTestRouter(map[string]Pinger{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	w = httptest.NewRecorder()
	r.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "redis_not_ready")
}

func TestTraceIDIsPropagated(t *testing.T) {
	r := newTestRouter(nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(trace.HeaderName, "abc123")
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)
	assert.Equal(t, "abc123", w.Header().Get(trace.HeaderName))
}

func TestClientRoutesRequireIdentity(t *testing.T) {
	r := newTestRouter(nil)
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/my-project", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/my-project", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	r := newTestRouter(nil)

	for _, path := range []string{"/admin/clients", "/admin/projects/phases", "/admin/quiz-submissions"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token(t, rbac.RoleClient))
		w := httptest.NewRecorder()
		r.Engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}

	// ?email= 兜底身份永远是 client
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/clients?email=boss@example.com", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequirePermission(t *testing.T) {
	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		if role := c.GetHeader("X-Role"); role != "" {
			c.Set(identity.ContextKey, identity.ClientIdentity{UserID: "u", Email: "e@example.com", Role: role})
		}
		c.Next()
	})
	engine.GET("/replay", RequirePermission(rbac.PermissionReplayOutbox), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	cases := map[string]int{
		"":              http.StatusUnauthorized,
		rbac.RoleClient: http.StatusForbidden,
		rbac.RoleAdmin:  http.StatusNoContent,
	}
	for role, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/replay", nil)
		if role != "" {
			req.Header.Set("X-Role", role)
		}
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, role)
	}
}
