package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kitdash/internal/model"
	"kitdash/internal/phase"
	"kitdash/internal/service/quiz"
)

type QuizService interface {
	Submit(ctx context.Context, in quiz.Input) (*model.QuizSubmission, error)
	List(ctx context.Context, kit *phase.Tier, limit, offset int) (*quiz.SubmissionList, error)
	Users(ctx context.Context, limit, offset int) (*quiz.UserList, error)
	Detail(ctx context.Context, id string) (*quiz.Detail, error)
}

type QuizHandler struct {
	svc    QuizService
	logger *zap.Logger
}

func NewQuizHandler(svc QuizService, logger *zap.Logger) *QuizHandler {
	return &QuizHandler{svc: svc, logger: logger}
}

// Submit handles POST /quiz-submissions (public)
func (h *QuizHandler) Submit(c *gin.Context) {
	var in quiz.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	q, err := h.svc.Submit(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "submission": q})
}

// List handles GET /admin/quiz-submissions?kit_type=&limit=&offset=
func (h *QuizHandler) List(c *gin.Context) {
	kit, err := tierQuery(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	limit, offset := pagination(c)
	res, err := h.svc.List(c.Request.Context(), kit, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Users handles GET /admin/quiz-submissions/users
func (h *QuizHandler) Users(c *gin.Context) {
	limit, offset := pagination(c)
	res, err := h.svc.Users(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Detail handles GET /admin/quiz-submissions/:id
func (h *QuizHandler) Detail(c *gin.Context) {
	id, ok := pathID(c, h.logger, quiz.ErrSubmissionNotFound)
	if !ok {
		return
	}
	res, err := h.svc.Detail(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// pagination 解析 limit/offset，默认 100/0，非法值回落到默认
func pagination(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// tierQuery 解析 ?kit_type=，为空时返回 nil
func tierQuery(c *gin.Context) (*phase.Tier, error) {
	raw := c.Query("kit_type")
	if raw == "" {
		return nil, nil
	}
	t, err := phase.ParseTier(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
