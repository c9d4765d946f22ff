package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kitdash/internal/model"
	"kitdash/pkg/logger"
	"kitdash/pkg/mq"
)

var (
	ErrMalformedEvent = errors.New("event payload has no client_id")
	ErrMissingEventID = errors.New("event has no x-event-id header")
)

type ActivityStore interface {
	Insert(ctx context.Context, a *model.Activity) error
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context, clientID string)
}

type Deduper interface {
	AcquireOnce(ctx context.Context, handler string, eventID int64) bool
	Release(ctx context.Context, handler string, eventID int64)
}

// ActivityHandler 把项目事件写入 project_activity 并让看板缓存失效
type ActivityHandler struct {
	store  ActivityStore
	cache  CacheInvalidator
	dedup  Deduper
	logger *zap.Logger
}

func NewActivityHandler(store ActivityStore, cache CacheInvalidator, dedup Deduper, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		store:  store,
		cache:  cache,
		dedup:  dedup,
		logger: logger,
	}
}

// eventEnvelope 各事件 payload 的公共字段
type eventEnvelope struct {
	ClientID   string    `json:"client_id"`
	PhaseID    *string   `json:"phase_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// For 返回绑定到某个 routing key 的消息处理函数
func (h *ActivityHandler) For(routingKey string) mq.MessageHandler {
	return func(ctx context.Context, raw json.RawMessage) error {
		return h.Handle(ctx, routingKey, raw)
	}
}

// Handle 同一事件重复投递时只处理一次；写入失败释放去重标记以便重试
func (h *ActivityHandler) Handle(ctx context.Context, routingKey string, raw json.RawMessage) error {
	log := logger.WithTrace(ctx, h.logger).With(zap.String("routing_key", routingKey))

	var p eventEnvelope
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Error("Failed to unmarshal event payload", zap.Error(err))
		return err
	}
	if p.ClientID == "" {
		return ErrMalformedEvent
	}

	// event_id 唯一，缺少时无法去重也无法落库
	eventID, hasID := mq.EventIDFromContext(ctx)
	if !hasID {
		log.Warn("Event without id rejected", zap.String("client_id", p.ClientID))
		return ErrMissingEventID
	}
	if h.dedup != nil && !h.dedup.AcquireOnce(ctx, "activity", eventID) {
		return nil
	}

	occurred := p.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	a := &model.Activity{
		ClientID:   p.ClientID,
		EventID:    eventID,
		Kind:       routingKey,
		PhaseID:    p.PhaseID,
		Detail:     raw,
		OccurredAt: occurred,
	}
	if err := h.store.Insert(ctx, a); err != nil {
		if h.dedup != nil {
			h.dedup.Release(ctx, "activity", eventID)
		}
		log.Error("Failed to insert activity",
			zap.String("client_id", p.ClientID),
			zap.Int64("event_id", eventID),
			zap.Error(err),
		)
		return fmt.Errorf("insert activity: %w", err)
	}

	if h.cache != nil {
		h.cache.Invalidate(ctx, p.ClientID)
	}

	log.Info("Activity recorded",
		zap.String("client_id", p.ClientID),
		zap.Int64("event_id", eventID),
	)
	return nil
}
