package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kitdash/pkg/rbac"
	"kitdash/pkg/util"
)

const secret = "test-secret"

func TestUserIDFromEmail(t *testing.T) {
	id := UserIDFromEmail("  Jane@Example.COM ")
	assert.Len(t, id, 32)
	assert.Equal(t, id, UserIDFromEmail("jane@example.com"))
	assert.NotEqual(t, id, UserIDFromEmail("john@example.com"))
	assert.Regexp(t, "^[0-9a-f]{32}$", id)
}

func TestResolveBearer(t *testing.T) {
	r := NewResolver(secret, false, zap.NewNop())
	token, err := util.GenerateJWT("uid-1", "Jane@Example.com", rbac.RoleAdmin, secret, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/my-project", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	id, ok := r.Resolve(req)
	require.True(t, ok)
	assert.Equal(t, ClientIdentity{UserID: "uid-1", Email: "jane@example.com", Role: rbac.RoleAdmin}, id)
	assert.True(t, id.IsAdmin())
}

func TestResolveRejectsBadToken(t *testing.T) {
	r := NewResolver(secret, true, zap.NewNop())
	token, err := util.GenerateJWT("uid-1", "jane@example.com", rbac.RoleClient, "other-secret", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/my-project?email=jane@example.com", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	_, ok := r.Resolve(req)
	assert.False(t, ok)
}

func TestResolveEmailFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/my-project?email=%20Jane@Example.com", nil)

	_, ok := NewResolver(secret, false, zap.NewNop()).Resolve(req)
	assert.False(t, ok)

	id, ok := NewResolver(secret, true, zap.NewNop()).Resolve(req)
	require.True(t, ok)
	assert.Equal(t, "jane@example.com", id.Email)
	assert.Equal(t, UserIDFromEmail("jane@example.com"), id.UserID)
	assert.Equal(t, rbac.RoleClient, id.Role)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewResolver(secret, true, zap.NewNop()).Middleware())
	r.GET("/me", func(c *gin.Context) {
		id, ok := FromGin(c)
		require.True(t, ok)
		fromCtx, ok := FromContext(c.Request.Context())
		require.True(t, ok)
		assert.Equal(t, id, fromCtx)
		c.JSON(http.StatusOK, gin.H{"email": id.Email})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?email=a@b.co", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"email":"a@b.co"}`, w.Body.String())
}
