package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kitdash/internal/identity"
	"kitdash/internal/model"
	"kitdash/internal/phase"
	"kitdash/internal/service/onboarding"
)

type OnboardingService interface {
	SaveDraftStep(ctx context.Context, id identity.ClientIdentity, tier phase.Tier, step model.OnboardingStep) (*onboarding.Draft, error)
	GetDraft(ctx context.Context, id identity.ClientIdentity, tier phase.Tier) (*onboarding.Draft, error)
	Commit(ctx context.Context, id identity.ClientIdentity, tier phase.Tier, steps []model.OnboardingStep) (*model.Client, error)
	Status(ctx context.Context, id identity.ClientIdentity) (*onboarding.Status, error)
}

type OnboardingHandler struct {
	svc    OnboardingService
	logger *zap.Logger
}

func NewOnboardingHandler(svc OnboardingService, logger *zap.Logger) *OnboardingHandler {
	return &OnboardingHandler{svc: svc, logger: logger}
}

// SaveDraft handles PUT /onboarding/draft
func (h *OnboardingHandler) SaveDraft(c *gin.Context) {
	id, ok := mustIdentity(c)
	if !ok {
		return
	}
	var req struct {
		KitType string               `json:"kit_type" binding:"required"`
		Step    model.OnboardingStep `json:"step"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kit_type and step are required"})
		return
	}
	tier, err := phase.ParseTier(req.KitType)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	d, err := h.svc.SaveDraftStep(c.Request.Context(), id, tier, req.Step)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// GetDraft handles GET /onboarding/draft?kit_type=
func (h *OnboardingHandler) GetDraft(c *gin.Context) {
	id, ok := mustIdentity(c)
	if !ok {
		return
	}
	tier, err := phase.ParseTier(c.Query("kit_type"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	d, err := h.svc.GetDraft(c.Request.Context(), id, tier)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Complete handles POST /onboarding/complete；steps 为空时提交草稿
func (h *OnboardingHandler) Complete(c *gin.Context) {
	id, ok := mustIdentity(c)
	if !ok {
		return
	}
	var req struct {
		KitType string                 `json:"kit_type" binding:"required"`
		Steps   []model.OnboardingStep `json:"steps"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kit_type is required"})
		return
	}
	tier, err := phase.ParseTier(req.KitType)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	client, err := h.svc.Commit(c.Request.Context(), id, tier, req.Steps)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"project": gin.H{
			"id":                  client.ID,
			"email":               client.Email,
			"kit_type":            client.Plan,
			"onboarding_percent":  client.OnboardingPercent,
			"onboarding_finished": client.OnboardingFinished(),
		},
	})
}

// Status handles GET /users/onboarding
func (h *OnboardingHandler) Status(c *gin.Context) {
	id, ok := mustIdentity(c)
	if !ok {
		return
	}
	st, err := h.svc.Status(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
