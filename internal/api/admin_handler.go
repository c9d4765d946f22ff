package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kitdash/internal/identity"
	"kitdash/internal/model"
	"kitdash/internal/phase"
	"kitdash/internal/service/dashboard"
)

type AdminDashboard interface {
	ListClients(ctx context.Context, f model.ClientFilter) (*dashboard.ClientList, error)
	ListProjectPhases(ctx context.Context, f dashboard.ProjectPhasesFilter) (*dashboard.ProjectPhasesList, error)
	ProjectByID(ctx context.Context, clientID string) (*dashboard.Dashboard, error)
	UpdateClient(ctx context.Context, clientID string, p model.ClientPatch) (*model.Client, error)
	UpdatePhaseStatus(ctx context.Context, clientID, phaseID string, u phase.StatusUpdate) (*dashboard.PhaseStatusResult, error)
	AdminToggleChecklistItem(ctx context.Context, clientID, phaseID, label string, isDone bool, actorRole string) (*dashboard.ToggleResult, error)
}

type OutboxReplayer interface {
	ReplayEvent(ctx context.Context, eventID int64) error
	ReplayFailedEvents(ctx context.Context, limit int) (int, error)
}

type ActivityLister interface {
	ListByClient(ctx context.Context, clientID string, limit int) ([]model.Activity, error)
}

type AdminHandler struct {
	svc      AdminDashboard
	replay   OutboxReplayer
	activity ActivityLister
	logger   *zap.Logger
}

func NewAdminHandler(svc AdminDashboard, replay OutboxReplayer, activity ActivityLister, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		svc:      svc,
		replay:   replay,
		activity: activity,
		logger:   logger,
	}
}

// ListClients handles GET /admin/clients?kit_type=&onboarding_finished=&limit=&offset=
func (h *AdminHandler) ListClients(c *gin.Context) {
	kit, err := tierQuery(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	limit, offset := pagination(c)
	f := model.ClientFilter{Plan: kit, Limit: limit, Offset: offset}
	if raw := c.Query("onboarding_finished"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "onboarding_finished must be true or false"})
			return
		}
		f.OnboardingFinished = &v
	}

	res, err := h.svc.ListClients(c.Request.Context(), f)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListProjectPhases handles GET /admin/projects/phases?kit_type=&status=
func (h *AdminHandler) ListProjectPhases(c *gin.Context) {
	kit, err := tierQuery(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	limit, offset := pagination(c)
	f := dashboard.ProjectPhasesFilter{Plan: kit, Limit: limit, Offset: offset}
	if raw := c.Query("status"); raw != "" {
		st, err := phase.ParseStatus(raw)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		f.Status = &st
	}

	res, err := h.svc.ListProjectPhases(c.Request.Context(), f)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetProjectPhases handles GET /admin/projects/:id/phases
func (h *AdminHandler) GetProjectPhases(c *gin.Context) {
	id, ok := pathID(c, h.logger, dashboard.ErrClientNotFound)
	if !ok {
		return
	}
	d, err := h.svc.ProjectByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// GetProjectProgress handles GET /admin/projects/:id/progress
func (h *AdminHandler) GetProjectProgress(c *gin.Context) {
	id, ok := pathID(c, h.logger, dashboard.ErrClientNotFound)
	if !ok {
		return
	}
	d, err := h.svc.ProjectByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": d.Progress})
}

// UpdateProject handles PATCH /admin/projects/:id
func (h *AdminHandler) UpdateProject(c *gin.Context) {
	id, ok := pathID(c, h.logger, dashboard.ErrClientNotFound)
	if !ok {
		return
	}
	var req struct {
		CurrentDayOf14 *int    `json:"current_day_of_14"`
		NextFromUs     *string `json:"next_from_us"`
		NextFromYou    *string `json:"next_from_you"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	client, err := h.svc.UpdateClient(c.Request.Context(), id, model.ClientPatch{
		CurrentDayOf14: req.CurrentDayOf14,
		NextFromUs:     req.NextFromUs,
		NextFromYou:    req.NextFromYou,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "project": client})
}

// UpdatePhase handles PATCH /admin/projects/:id/phases/:phase_id
func (h *AdminHandler) UpdatePhase(c *gin.Context) {
	id, ok := pathID(c, h.logger, dashboard.ErrClientNotFound)
	if !ok {
		return
	}
	var u phase.StatusUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	res, err := h.svc.UpdatePhaseStatus(c.Request.Context(), id, c.Param("phase_id"), u)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "phase": res})
}

// ToggleChecklist handles PATCH /admin/projects/:id/phases/:phase_id/checklist
func (h *AdminHandler) ToggleChecklist(c *gin.Context) {
	id, ok := pathID(c, h.logger, dashboard.ErrClientNotFound)
	if !ok {
		return
	}
	var req struct {
		ChecklistLabel string `json:"checklist_label" binding:"required"`
		IsDone         *bool  `json:"is_done" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "checklist_label and is_done are required"})
		return
	}
	actor := ""
	if who, ok := identity.FromGin(c); ok {
		actor = who.Role
	}

	res, err := h.svc.AdminToggleChecklistItem(c.Request.Context(), id, c.Param("phase_id"), req.ChecklistLabel, *req.IsDone, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
}

// ListActivity handles GET /admin/projects/:id/activity?limit=
func (h *AdminHandler) ListActivity(c *gin.Context) {
	id, ok := pathID(c, h.logger, dashboard.ErrClientNotFound)
	if !ok {
		return
	}
	limit, _ := pagination(c)
	items, err := h.activity.ListByClient(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": items})
}

// ReplayOutboxEvent 重放指定的 Outbox 事件
// POST /admin/outbox/replay?id=xxx
func (h *AdminHandler) ReplayOutboxEvent(c *gin.Context) {
	idStr := c.Query("id")
	if idStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing id parameter"})
		return
	}

	eventID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id parameter"})
		return
	}

	if err := h.replay.ReplayEvent(c.Request.Context(), eventID); err != nil {
		respondError(c, h.logger.With(zap.Int64("event_id", eventID)), err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "replayed",
		"event_id": eventID,
	})
}

// ReplayFailedEvents 重放所有失败的事件
// POST /admin/outbox/replay-failed?limit=100
func (h *AdminHandler) ReplayFailedEvents(c *gin.Context) {
	limit, _ := pagination(c)

	successCount, err := h.replay.ReplayFailedEvents(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "completed",
		"success_count": successCount,
		"limit":         limit,
	})
}
