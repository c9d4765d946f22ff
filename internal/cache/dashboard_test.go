package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type entry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newCache(t *testing.T, ttl time.Duration) (*DashboardCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewDashboardCache(rdb, ttl, zap.NewNop()), mr
}

func TestDashboardCacheRoundTrip(t *testing.T) {
	c, mr := newCache(t, time.Minute)
	ctx := context.Background()

	var got entry
	assert.False(t, c.Get(ctx, "c1", &got))

	c.Set(ctx, "c1", c.Generation(ctx, "c1"), entry{Name: "launch", Count: 3})
	require.True(t, c.Get(ctx, "c1", &got))
	assert.Equal(t, entry{Name: "launch", Count: 3}, got)

	mr.FastForward(2 * time.Minute)
	assert.False(t, c.Get(ctx, "c1", &got))
}

func TestDashboardCacheInvalidate(t *testing.T) {
	c, _ := newCache(t, time.Minute)
	ctx := context.Background()

	c.Set(ctx, "c1", 0, entry{Name: "x"})
	c.Set(ctx, "c2", 0, entry{Name: "y"})
	c.Invalidate(ctx, "c1")

	var got entry
	assert.False(t, c.Get(ctx, "c1", &got))
	assert.True(t, c.Get(ctx, "c2", &got))
}

func TestDashboardCacheCorruptEntryIsMiss(t *testing.T) {
	c, mr := newCache(t, time.Minute)
	require.NoError(t, mr.Set("dashboard:c1", "not-json"))

	var got entry
	assert.False(t, c.Get(context.Background(), "c1", &got))
}

func TestDashboardCacheRedisDown(t *testing.T) {
	c, mr := newCache(t, time.Minute)
	mr.Close()

	ctx := context.Background()
	var got entry
	assert.False(t, c.Get(ctx, "c1", &got))
	assert.Equal(t, NoGeneration, c.Generation(ctx, "c1"))
	c.Set(ctx, "c1", 0, entry{})
	c.Invalidate(ctx, "c1")
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *DashboardCache
	var got entry
	assert.False(t, c.Get(context.Background(), "c1", &got))
	assert.Equal(t, NoGeneration, c.Generation(context.Background(), "c1"))
	c.Set(context.Background(), "c1", 0, entry{})
	c.Invalidate(context.Background(), "c1")
}

func TestDashboardCacheSkipsWriteAfterInvalidate(t *testing.T) {
	c, _ := newCache(t, time.Minute)
	ctx := context.Background()

	// 读取方在查库前拿到代数，查库期间发生了一次提交
	gen := c.Generation(ctx, "c1")
	assert.Equal(t, int64(0), gen)
	c.Invalidate(ctx, "c1")
	assert.Equal(t, int64(1), c.Generation(ctx, "c1"))

	c.Set(ctx, "c1", gen, entry{Name: "stale"})
	var got entry
	assert.False(t, c.Get(ctx, "c1", &got), "snapshot from before the commit must not be cached")

	c.Set(ctx, "c1", c.Generation(ctx, "c1"), entry{Name: "fresh"})
	require.True(t, c.Get(ctx, "c1", &got))
	assert.Equal(t, "fresh", got.Name)
}

func TestDashboardCacheNoGenerationNeverWrites(t *testing.T) {
	c, _ := newCache(t, time.Minute)
	ctx := context.Background()

	c.Set(ctx, "c1", NoGeneration, entry{Name: "x"})
	var got entry
	assert.False(t, c.Get(ctx, "c1", &got))
}

func TestDashboardCacheGenerationExpires(t *testing.T) {
	c, mr := newCache(t, time.Minute)
	ctx := context.Background()

	c.Invalidate(ctx, "c1")
	c.Invalidate(ctx, "c1")
	assert.Equal(t, int64(2), c.Generation(ctx, "c1"))
	assert.Greater(t, mr.TTL("dashboard:gen:c1"), time.Duration(0))

	mr.FastForward(8 * 24 * time.Hour)
	assert.Equal(t, int64(0), c.Generation(ctx, "c1"))
}
