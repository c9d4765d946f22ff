package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"kitdash/internal/api"
	"kitdash/internal/identity"
	"kitdash/pkg/otel"
	"kitdash/pkg/rbac"
)

// Pinger readiness 检查的依赖（pgxpool、redis）
type Pinger func(ctx context.Context) error

type Handlers struct {
	Project    *api.ProjectHandler
	Auth       *api.AuthHandler
	Quiz       *api.QuizHandler
	Onboarding *api.OnboardingHandler
	Admin      *api.AdminHandler
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(h Handlers, resolver *identity.Resolver, readiness map[string]Pinger, logger *zap.Logger) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), otel.GinMiddleware(), RequestLogMiddleware(logger))

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		for name, ping := range readiness {
			if err := ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": name + "_not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.POST("/quiz-submissions", h.Quiz.Submit)
	r.POST("/users/lookup", h.Auth.Lookup)
	r.POST("/admin/login", h.Auth.AdminLogin)

	// Client
	client := r.Group("/")
	client.Use(resolver.Middleware())
	{
		client.GET("/my-project", RequirePermission(rbac.PermissionReadOwnProject), h.Project.GetMyProject)
		client.GET("/my-project/progress", RequirePermission(rbac.PermissionReadOwnProject), h.Project.GetMyProgress)
		client.PATCH("/my-project/checklist", RequirePermission(rbac.PermissionToggleChecklist), h.Project.ToggleChecklist)

		client.GET("/users/onboarding", h.Onboarding.Status)
		client.GET("/onboarding/draft", RequirePermission(rbac.PermissionSubmitOnboarding), h.Onboarding.GetDraft)
		client.PUT("/onboarding/draft", RequirePermission(rbac.PermissionSubmitOnboarding), h.Onboarding.SaveDraft)
		client.POST("/onboarding/complete", RequirePermission(rbac.PermissionSubmitOnboarding), h.Onboarding.Complete)
	}

	// Admin
	admin := r.Group("/admin")
	admin.Use(resolver.Middleware())
	{
		admin.GET("/clients", RequirePermission(rbac.PermissionReadAllProjects), h.Admin.ListClients)
		admin.GET("/projects/phases", RequirePermission(rbac.PermissionReadAllProjects), h.Admin.ListProjectPhases)
		admin.GET("/projects/:id/phases", RequirePermission(rbac.PermissionReadAllProjects), h.Admin.GetProjectPhases)
		admin.GET("/projects/:id/progress", RequirePermission(rbac.PermissionReadAllProjects), h.Admin.GetProjectProgress)
		admin.GET("/projects/:id/activity", RequirePermission(rbac.PermissionReadAllProjects), h.Admin.ListActivity)
		admin.PATCH("/projects/:id", RequirePermission(rbac.PermissionUpdateProject), h.Admin.UpdateProject)
		admin.PATCH("/projects/:id/phases/:phase_id", RequirePermission(rbac.PermissionUpdatePhase), h.Admin.UpdatePhase)
		admin.PATCH("/projects/:id/phases/:phase_id/checklist", RequirePermission(rbac.PermissionUpdatePhase), h.Admin.ToggleChecklist)

		admin.GET("/quiz-submissions", RequirePermission(rbac.PermissionReadSubmissions), h.Quiz.List)
		admin.GET("/quiz-submissions/users", RequirePermission(rbac.PermissionReadSubmissions), h.Quiz.Users)
		admin.GET("/quiz-submissions/:id", RequirePermission(rbac.PermissionReadSubmissions), h.Quiz.Detail)

		admin.POST("/outbox/replay", RequirePermission(rbac.PermissionReplayOutbox), h.Admin.ReplayOutboxEvent)
		admin.POST("/outbox/replay-failed", RequirePermission(rbac.PermissionReplayOutbox), h.Admin.ReplayFailedEvents)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
