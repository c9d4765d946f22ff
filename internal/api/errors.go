package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"kitdash/internal/phase"
	"kitdash/internal/repository"
	"kitdash/internal/service/auth"
	"kitdash/internal/service/dashboard"
	"kitdash/internal/service/onboarding"
	"kitdash/internal/service/quiz"
	"kitdash/pkg/logger"
	"kitdash/pkg/outbox"
)

var badRequest = []error{
	phase.ErrInvalidTier,
	phase.ErrInvalidPhase,
	phase.ErrInvalidChecklistLabel,
	phase.ErrInvalidStatus,
	phase.ErrNothingToUpdate,
	dashboard.ErrInvalidDay,
	onboarding.ErrInvalidStep,
	onboarding.ErrStepIncomplete,
	onboarding.ErrMissingSteps,
	quiz.ErrMissingFields,
	auth.ErrEmailRequired,
}

var notFound = []error{
	dashboard.ErrClientNotFound,
	quiz.ErrSubmissionNotFound,
	repository.ErrNotFound,
	outbox.ErrEventNotFound,
}

// statusOf 把服务层错误映射为 HTTP 状态码
func statusOf(err error) int {
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	for _, target := range notFound {
		if errors.Is(err, target) {
			return http.StatusNotFound
		}
	}
	switch {
	case errors.Is(err, repository.ErrPlanMismatch), errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError 4xx 返回错误原因；5xx 只记录日志，对外返回通用信息
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := statusOf(err)
	if status < http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	logger.WithTrace(c.Request.Context(), log).Error("Request failed",
		zap.String("path", c.FullPath()),
		zap.Int("status", status),
		zap.Error(err),
	)
	msg := "internal server error"
	if status == http.StatusServiceUnavailable {
		msg = "service unavailable"
	}
	c.JSON(status, gin.H{"error": msg})
}

// pathID 校验路径参数 :id 是 UUID；否则按 missing 返回 404，不查库
func pathID(c *gin.Context, log *zap.Logger, missing error) (string, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, log, missing)
		return "", false
	}
	return id.String(), true
}
