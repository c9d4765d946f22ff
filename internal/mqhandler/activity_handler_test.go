package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mqcontract "kitdash/contracts/mq"
	"kitdash/internal/model"
	"kitdash/pkg/mq"
	"kitdash/pkg/util"
)

type memActivity struct {
	rows []*model.Activity
	fail error
}

func (m *memActivity) Insert(_ context.Context, a *model.Activity) error {
	if m.fail != nil {
		return m.fail
	}
	m.rows = append(m.rows, a)
	return nil
}

type invalidations []string

func (i *invalidations) Invalidate(_ context.Context, clientID string) {
	*i = append(*i, clientID)
}

func newHandler(t *testing.T, store *memActivity) (*ActivityHandler, *invalidations) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	inv := &invalidations{}
	return NewActivityHandler(store, inv, util.NewDeduper(rdb, time.Hour, zap.NewNop()), zap.NewNop()), inv
}

func togglePayload(t *testing.T) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(mqcontract.ChecklistToggledPayload{
		ClientID:       "c1",
		PhaseID:        "PHASE_1",
		ChecklistLabel: "Onboarding steps completed",
		IsDone:         true,
		Status:         "IN_PROGRESS",
		OccurredAt:     time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return raw
}

func TestActivityHandlerRecordsOnce(t *testing.T) {
	store := &memActivity{}
	h, inv := newHandler(t, store)
	ctx := mq.WithEventID(context.Background(), 42)
	handle := h.For(mqcontract.RoutingKeyChecklistToggled)

	require.NoError(t, handle(ctx, togglePayload(t)))
	require.NoError(t, handle(ctx, togglePayload(t)))

	require.Len(t, store.rows, 1)
	row := store.rows[0]
	assert.Equal(t, "c1", row.ClientID)
	assert.Equal(t, int64(42), row.EventID)
	assert.Equal(t, mqcontract.RoutingKeyChecklistToggled, row.Kind)
	require.NotNil(t, row.PhaseID)
	assert.Equal(t, "PHASE_1", *row.PhaseID)
	assert.Equal(t, []string{"c1"}, []string(*inv))
}

func TestActivityHandlerReleasesOnFailure(t *testing.T) {
	store := &memActivity{fail: errors.New("connection reset")}
	h, inv := newHandler(t, store)
	ctx := mq.WithEventID(context.Background(), 7)

	err := h.Handle(ctx, mqcontract.RoutingKeyChecklistToggled, togglePayload(t))
	require.Error(t, err)
	retryable, _ := util.IsRetryableError(err)
	assert.True(t, retryable)
	assert.Empty(t, *inv)

	store.fail = nil
	require.NoError(t, h.Handle(ctx, mqcontract.RoutingKeyChecklistToggled, togglePayload(t)))
	assert.Len(t, store.rows, 1)
}

func TestActivityHandlerRejectsBadPayload(t *testing.T) {
	h, _ := newHandler(t, &memActivity{})

	err := h.Handle(context.Background(), mqcontract.RoutingKeyClientUpdated, json.RawMessage(`{"fields":["next_from_us"]}`))
	assert.ErrorIs(t, err, ErrMalformedEvent)

	err = h.Handle(context.Background(), mqcontract.RoutingKeyClientUpdated, json.RawMessage(`{not json`))
	require.Error(t, err)
	retryable, kind := util.IsRetryableError(err)
	assert.False(t, retryable)
	assert.Equal(t, "json_decode_error", kind)
}

func TestActivityHandlerRejectsEventWithoutID(t *testing.T) {
	store := &memActivity{}
	h, inv := newHandler(t, store)

	err := h.Handle(context.Background(), mqcontract.RoutingKeyChecklistToggled, togglePayload(t))
	assert.ErrorIs(t, err, ErrMissingEventID)
	retryable, _ := util.IsRetryableError(err)
	assert.False(t, retryable, "goes straight to the dead-letter queue")
	assert.Empty(t, store.rows)
	assert.Empty(t, *inv)
}
