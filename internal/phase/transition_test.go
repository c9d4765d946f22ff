package phase

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestApplyToggleStartsPhase(t *testing.T) {
	next := ApplyToggle(nil, "Forms tested", true, now)
	assert.Equal(t, StatusInProgress, next.Status)
	require.NotNil(t, next.StartedAt)
	assert.Equal(t, now, *next.StartedAt)
	assert.Equal(t, map[string]bool{"Forms tested": true}, next.Checklist)
}

func TestApplyToggleUncheckKeepsStatus(t *testing.T) {
	started := now.Add(-time.Hour)
	prev := &State{
		Status:    StatusInProgress,
		StartedAt: &started,
		Checklist: map[string]bool{"a": true, "b": true},
	}
	next := ApplyToggle(prev, "a", false, now)

	assert.Equal(t, StatusInProgress, next.Status)
	assert.Equal(t, &started, next.StartedAt)
	assert.Equal(t, map[string]bool{"a": false, "b": true}, next.Checklist)
	// input is not mutated
	assert.True(t, prev.Checklist["a"])
}

func TestApplyToggleUncheckOnNewPhase(t *testing.T) {
	next := ApplyToggle(nil, "a", false, now)
	assert.Equal(t, StatusNotStarted, next.Status)
	assert.Nil(t, next.StartedAt)
}

func TestApplyToggleKeepsExistingStartedAt(t *testing.T) {
	started := now.Add(-48 * time.Hour)
	next := ApplyToggle(&State{Status: StatusNotStarted, StartedAt: &started}, "a", true, now)
	assert.Equal(t, StatusInProgress, next.Status)
	assert.Equal(t, &started, next.StartedAt)
}

func TestApplyToggleDoesNotReopenDone(t *testing.T) {
	next := ApplyToggle(&State{Status: StatusDone}, "a", true, now)
	assert.Equal(t, StatusDone, next.Status)
}

func statusPtr(s Status) *Status { return &s }

func TestApplyStatusUpdate(t *testing.T) {
	earlier := now.Add(-24 * time.Hour)

	t.Run("in progress stamps started_at once", func(t *testing.T) {
		next, err := ApplyStatusUpdate(nil, StatusUpdate{Status: statusPtr(StatusInProgress)}, now)
		require.NoError(t, err)
		assert.Equal(t, now, *next.StartedAt)
		assert.Nil(t, next.CompletedAt)

		next, err = ApplyStatusUpdate(&State{Status: StatusWaitingOnClient, StartedAt: &earlier}, StatusUpdate{Status: statusPtr(StatusInProgress)}, now)
		require.NoError(t, err)
		assert.Equal(t, earlier, *next.StartedAt)
	})

	t.Run("done stamps completed_at", func(t *testing.T) {
		next, err := ApplyStatusUpdate(&State{Status: StatusInProgress, StartedAt: &earlier}, StatusUpdate{Status: statusPtr(StatusDone)}, now)
		require.NoError(t, err)
		assert.Equal(t, now, *next.CompletedAt)
		assert.Equal(t, earlier, *next.StartedAt)
	})

	t.Run("not started clears timestamps", func(t *testing.T) {
		prev := &State{Status: StatusDone, StartedAt: &earlier, CompletedAt: &now, Checklist: map[string]bool{"a": true}}
		next, err := ApplyStatusUpdate(prev, StatusUpdate{Status: statusPtr(StatusNotStarted)}, now)
		require.NoError(t, err)
		assert.Nil(t, next.StartedAt)
		assert.Nil(t, next.CompletedAt)
		assert.Equal(t, map[string]bool{"a": true}, next.Checklist)
	})

	t.Run("explicit timestamps win", func(t *testing.T) {
		next, err := ApplyStatusUpdate(nil, StatusUpdate{
			Status:    statusPtr(StatusNotStarted),
			StartedAt: TimeUpdate{Set: true, Value: &earlier},
		}, now)
		require.NoError(t, err)
		assert.Equal(t, earlier, *next.StartedAt)

		next, err = ApplyStatusUpdate(nil, StatusUpdate{
			Status:      statusPtr(StatusDone),
			CompletedAt: TimeUpdate{Set: true, Value: &earlier},
		}, now)
		require.NoError(t, err)
		assert.Equal(t, earlier, *next.CompletedAt)
	})

	t.Run("timestamps only", func(t *testing.T) {
		prev := &State{Status: StatusInProgress, StartedAt: &earlier}
		next, err := ApplyStatusUpdate(prev, StatusUpdate{StartedAt: TimeUpdate{Set: true}}, now)
		require.NoError(t, err)
		assert.Equal(t, StatusInProgress, next.Status)
		assert.Nil(t, next.StartedAt)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := ApplyStatusUpdate(nil, StatusUpdate{Status: statusPtr("PAUSED")}, now)
		assert.ErrorIs(t, err, ErrInvalidStatus)

		_, err = ApplyStatusUpdate(nil, StatusUpdate{}, now)
		assert.ErrorIs(t, err, ErrNothingToUpdate)
	})
}

func TestTimeUpdateJSON(t *testing.T) {
	var body struct {
		StartedAt   TimeUpdate `json:"started_at"`
		CompletedAt TimeUpdate `json:"completed_at"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"started_at":"2025-03-01T12:00:00Z","completed_at":null}`), &body))
	assert.True(t, body.StartedAt.Set)
	assert.Equal(t, now, *body.StartedAt.Value)
	assert.True(t, body.CompletedAt.Set)
	assert.Nil(t, body.CompletedAt.Value)

	var absent struct {
		StartedAt TimeUpdate `json:"started_at"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{}`), &absent))
	assert.False(t, absent.StartedAt.Set)
}
