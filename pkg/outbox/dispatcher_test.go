package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kitdash/pkg/circuitbreaker"
	"kitdash/pkg/trace"
)

type memStore struct {
	events map[int64]*Event
	sent   []int64
	failed []int64
}

func newMemStore(events ...*Event) *memStore {
	s := &memStore{events: map[int64]*Event{}}
	for _, e := range events {
		s.events[e.ID] = e
	}
	return s
}

func (s *memStore) GetPendingEvents(_ context.Context, limit int) ([]*Event, error) {
	var out []*Event
	for id := int64(1); id <= int64(len(s.events)) && len(out) < limit; id++ {
		if e, ok := s.events[id]; ok && e.Status == StatusPending {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) GetFailedEvents(_ context.Context, limit int) ([]*Event, error) {
	var out []*Event
	for id := int64(1); id <= int64(len(s.events)) && len(out) < limit; id++ {
		if e, ok := s.events[id]; ok && e.Status == StatusFailed {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) GetEventByID(_ context.Context, id int64) (*Event, error) {
	e, ok := s.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return e, nil
}

func (s *memStore) MarkAsSent(_ context.Context, id int64) error {
	s.events[id].Status = StatusSent
	s.sent = append(s.sent, id)
	return nil
}

func (s *memStore) MarkAsFailed(_ context.Context, id int64, _ int) error {
	s.events[id].Status = StatusFailed
	s.failed = append(s.failed, id)
	return nil
}

type published struct {
	routingKey string
	eventID    int64
	traceID    string
}

type fakePublisher struct {
	fail map[int64]bool
	down bool
	got  []published
}

func (p *fakePublisher) PublishEvent(ctx context.Context, routingKey string, eventID int64, _ []byte) error {
	if p.down || p.fail[eventID] {
		return errors.New("broker unavailable")
	}
	p.got = append(p.got, published{routingKey, eventID, trace.FromContext(ctx)})
	return nil
}

func event(id int64, key string, payload any) *Event {
	raw, _ := json.Marshal(payload)
	return &Event{ID: id, RoutingKey: key, Payload: raw, Status: StatusPending}
}

func TestProcessPendingEvents(t *testing.T) {
	store := newMemStore(
		event(1, "phase.checklist_toggled", map[string]any{"client_id": "c1", "trace_id": "trace-1"}),
		event(2, "phase.status_changed", map[string]any{"client_id": "c1"}),
		event(3, "onboarding.completed", map[string]any{"client_id": "c2"}),
	)
	pub := &fakePublisher{fail: map[int64]bool{2: true}}
	d := NewDispatcher(store, pub, zap.NewNop())

	sent := d.ProcessPendingEvents(context.Background())
	assert.Equal(t, 2, sent)
	assert.Equal(t, []int64{1, 3}, store.sent)
	assert.Equal(t, []int64{2}, store.failed)

	require.Len(t, pub.got, 2)
	assert.Equal(t, "trace-1", pub.got[0].traceID)
	assert.Equal(t, "onboarding.completed", pub.got[1].routingKey)

	assert.Zero(t, d.ProcessPendingEvents(context.Background()))
}

func TestDispatcherStopsWhenBreakerOpens(t *testing.T) {
	var events []*Event
	for i := int64(1); i <= 5; i++ {
		events = append(events, event(i, "phase.checklist_toggled", map[string]any{"client_id": "c1"}))
	}
	store := newMemStore(events...)
	pub := &fakePublisher{down: true}
	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		FailureThreshold:    2,
		SuccessThreshold:    1,
		Timeout:             time.Hour,
		HalfOpenMaxRequests: 1,
	})
	d := NewDispatcher(store, pub, zap.NewNop()).WithBreaker(cb)

	assert.Zero(t, d.ProcessPendingEvents(context.Background()))
	// 前两次失败计入重试，熔断后剩余事件保持 pending
	assert.Equal(t, []int64{1, 2}, store.failed)
	assert.Equal(t, StatusPending, store.events[3].Status)
	assert.Equal(t, circuitbreaker.StateOpen, cb.GetState())
}

func TestReplayService(t *testing.T) {
	failed := event(1, "client.updated", map[string]any{"client_id": "c1"})
	failed.Status = StatusFailed
	store := newMemStore(failed, event(2, "client.updated", map[string]any{"client_id": "c2"}))
	pub := &fakePublisher{}
	svc := NewReplayService(store, pub, zap.NewNop())

	n, err := svc.ReplayFailedEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, StatusSent, store.events[1].Status)

	err = svc.ReplayEvent(context.Background(), 99)
	assert.ErrorIs(t, err, ErrEventNotFound)

	pub.down = true
	err = svc.ReplayEvent(context.Background(), 2)
	assert.Error(t, err)
	assert.Equal(t, StatusFailed, store.events[2].Status)
}
