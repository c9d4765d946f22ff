package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kitdash/internal/identity"
	"kitdash/internal/phase"
	"kitdash/internal/service/dashboard"
)

type ClientDashboard interface {
	ReadDashboard(ctx context.Context, id identity.ClientIdentity) (*dashboard.Dashboard, error)
	ReadProgress(ctx context.Context, id identity.ClientIdentity) (*phase.Progress, error)
	ToggleChecklistItem(ctx context.Context, id identity.ClientIdentity, phaseID, label string, isDone bool) (*dashboard.ToggleResult, error)
}

// ProjectHandler 客户自己的项目看板
type ProjectHandler struct {
	svc    ClientDashboard
	logger *zap.Logger
}

func NewProjectHandler(svc ClientDashboard, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{svc: svc, logger: logger}
}

func mustIdentity(c *gin.Context) (identity.ClientIdentity, bool) {
	id, ok := identity.FromGin(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized - email required"})
	}
	return id, ok
}

// GetMyProject handles GET /my-project
func (h *ProjectHandler) GetMyProject(c *gin.Context) {
	id, ok := mustIdentity(c)
	if !ok {
		return
	}
	d, err := h.svc.ReadDashboard(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// GetMyProgress handles GET /my-project/progress
func (h *ProjectHandler) GetMyProgress(c *gin.Context) {
	id, ok := mustIdentity(c)
	if !ok {
		return
	}
	p, err := h.svc.ReadProgress(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": p})
}

type toggleRequest struct {
	PhaseID        string `json:"phase_id" binding:"required"`
	ChecklistLabel string `json:"checklist_label" binding:"required"`
	IsDone         *bool  `json:"is_done" binding:"required"`
}

// ToggleChecklist handles PATCH /my-project/checklist
func (h *ProjectHandler) ToggleChecklist(c *gin.Context) {
	id, ok := mustIdentity(c)
	if !ok {
		return
	}
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phase_id, checklist_label and is_done are required"})
		return
	}

	res, err := h.svc.ToggleChecklistItem(c.Request.Context(), id, req.PhaseID, req.ChecklistLabel, *req.IsDone)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
}
