package model

import (
	"encoding/json"
	"time"
)

// Activity 项目动态，由 worker 从事件写入
type Activity struct {
	ID         int64           `json:"id"`
	ClientID   string          `json:"client_id"`
	EventID    int64           `json:"event_id"`
	Kind       string          `json:"kind"`
	PhaseID    *string         `json:"phase_id"`
	Detail     json.RawMessage `json:"detail"`
	OccurredAt time.Time       `json:"occurred_at"`
}
