package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestDeduperAcquireOnce(t *testing.T) {
	mr, rdb := newRedis(t)
	d := NewDeduper(rdb, time.Hour, zap.NewNop())
	ctx := context.Background()

	assert.True(t, d.AcquireOnce(ctx, "activity", 42))
	assert.False(t, d.AcquireOnce(ctx, "activity", 42))
	assert.True(t, d.AcquireOnce(ctx, "other", 42))
	assert.Equal(t, time.Hour, mr.TTL("dedup:activity:42"))

	d.Release(ctx, "activity", 42)
	assert.True(t, d.AcquireOnce(ctx, "activity", 42))
}

func TestDeduperAllowsWhenRedisDown(t *testing.T) {
	mr, rdb := newRedis(t)
	d := NewDeduper(rdb, time.Hour, nil)
	mr.Close()

	assert.True(t, d.AcquireOnce(context.Background(), "activity", 1))
	assert.True(t, d.AcquireOnce(context.Background(), "activity", 1))
}

func TestRetryCounter(t *testing.T) {
	mr, rdb := newRedis(t)
	rc := NewRetryCounter(rdb, time.Hour)
	ctx := context.Background()
	key := FormatRetryKey("phase.checklist_toggled.activity.q", "7")
	assert.Equal(t, "retry:phase.checklist_toggled.activity.q:7", key)

	for i := int64(1); i <= 3; i++ {
		n, err := rc.IncrementAndGet(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	assert.Equal(t, time.Hour, mr.TTL(key))

	require.NoError(t, rc.Reset(ctx, key))
	n, err := rc.IncrementAndGet(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestIsRetryableError(t *testing.T) {
	var v map[string]any
	jsonErr := json.Unmarshal([]byte("{bad"), &v)

	tests := []struct {
		name      string
		err       error
		retryable bool
		errorType string
	}{
		{"nil", nil, false, ""},
		{"json", fmt.Errorf("decode: %w", jsonErr), false, "json_decode_error"},
		{"no rows", pgx.ErrNoRows, false, "row_not_found"},
		{"unique", &pgconn.PgError{Code: "23505"}, false, "duplicate_key"},
		{"foreign key", &pgconn.PgError{Code: "23503"}, false, "foreign_key_violation"},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true, "db_conflict"},
		{"connection", errors.New("connection refused"), true, "db_connection_error"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"unknown", errors.New("boom"), false, "unknown_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryable, errorType := IsRetryableError(tt.err)
			assert.Equal(t, tt.retryable, retryable)
			assert.Equal(t, tt.errorType, errorType)
		})
	}

	retryable, _ := IsRetryableError(context.DeadlineExceeded)
	assert.True(t, retryable)
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(3, 3, true))
	assert.False(t, ShouldRetry(4, 3, true))
	assert.False(t, ShouldRetry(1, 3, false))
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, CheckPassword("correct horse", hash))
	assert.False(t, CheckPassword("wrong", hash))
}
