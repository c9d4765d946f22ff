package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"kitdash/pkg/metrics"
)

const (
	dashboardKeyPrefix = "dashboard:"
	generationPrefix   = "dashboard:gen:"
	generationTTL      = 7 * 24 * time.Hour
)

var errStaleGeneration = errors.New("dashboard cache generation changed")

// NoGeneration 读取代数失败；Set 收到它时不写缓存
const NoGeneration int64 = -1

// DashboardCache 按项目缓存看板读结果。缓存失败只记录日志，不影响请求。
// 每个项目有一个代数计数器：Invalidate 递增它，Set 只在代数未变时写入，
// 所以读取期间发生的提交不会被旧快照覆盖。
type DashboardCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDashboardCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *DashboardCache {
	return &DashboardCache{rdb: rdb, ttl: ttl, logger: logger}
}

func dashboardKey(clientID string) string {
	return dashboardKeyPrefix + clientID
}

func generationKey(clientID string) string {
	return generationPrefix + clientID
}

// Generation 返回项目当前的缓存代数，必须在读取数据库之前调用。
// 计数器不存在时为 0（过期后从 0 重新开始，旧代数不会再匹配）。
func (c *DashboardCache) Generation(ctx context.Context, clientID string) int64 {
	if c == nil || c.rdb == nil {
		return NoGeneration
	}
	gen, err := c.rdb.Get(ctx, generationKey(clientID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0
	}
	if err != nil {
		c.logger.Warn("Dashboard cache generation read failed", zap.String("client_id", clientID), zap.Error(err))
		return NoGeneration
	}
	return gen
}

// Get 命中时把缓存解码到 dst 并返回 true
func (c *DashboardCache) Get(ctx context.Context, clientID string, dst any) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, dashboardKey(clientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.IncrementDashboardCache("miss")
		return false
	}
	if err != nil {
		metrics.IncrementDashboardCache("error")
		c.logger.Warn("Dashboard cache read failed", zap.String("client_id", clientID), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		metrics.IncrementDashboardCache("error")
		c.logger.Warn("Dashboard cache entry corrupt", zap.String("client_id", clientID), zap.Error(err))
		return false
	}
	metrics.IncrementDashboardCache("hit")
	return true
}

// Set 在代数仍为 gen 时写入；期间有 Invalidate 则放弃
func (c *DashboardCache) Set(ctx context.Context, clientID string, gen int64, v any) {
	if c == nil || c.rdb == nil || c.ttl <= 0 || gen == NoGeneration {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("Dashboard cache encode failed", zap.String("client_id", clientID), zap.Error(err))
		return
	}

	genKey := generationKey(clientID)
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, dashboardKey(clientID), raw, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		metrics.IncrementDashboardCache("stale")
	default:
		c.logger.Warn("Dashboard cache write failed", zap.String("client_id", clientID), zap.Error(err))
	}
}

// Invalidate 递增代数并删除项目的缓存
func (c *DashboardCache) Invalidate(ctx context.Context, clientID string) {
	if c == nil || c.rdb == nil {
		return
	}
	genKey := generationKey(clientID)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, generationTTL)
		pipe.Del(ctx, dashboardKey(clientID))
		return nil
	})
	if err != nil {
		c.logger.Warn("Dashboard cache invalidate failed", zap.String("client_id", clientID), zap.Error(err))
	}
}
