package mq

import "time"

// Routing keys，发布到 kitdash.events topic exchange
const (
	RoutingKeyChecklistToggled   = "phase.checklist_toggled"
	RoutingKeyPhaseStatusChanged = "phase.status_changed"
	RoutingKeyOnboardingComplete = "onboarding.completed"
	RoutingKeyClientUpdated      = "client.updated"
)

// AggregateTypeClient outbox 事件的聚合类型
const AggregateTypeClient = "client"

// ChecklistToggledPayload 清单项勾选事件的 payload
type ChecklistToggledPayload struct {
	ClientID       string    `json:"client_id"`
	PhaseID        string    `json:"phase_id"`
	ChecklistLabel string    `json:"checklist_label"`
	IsDone         bool      `json:"is_done"`
	Status         string    `json:"status"`
	ActorRole      string    `json:"actor_role"`
	TraceID        string    `json:"trace_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// PhaseStatusChangedPayload 阶段状态覆盖事件的 payload
type PhaseStatusChangedPayload struct {
	ClientID    string     `json:"client_id"`
	PhaseID     string     `json:"phase_id"`
	From        string     `json:"from"`
	To          string     `json:"to"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	TraceID     string     `json:"trace_id,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

// OnboardingCompletedPayload 入驻问卷提交事件的 payload
type OnboardingCompletedPayload struct {
	ClientID          string    `json:"client_id"`
	UserID            string    `json:"user_id"`
	Email             string    `json:"email"`
	KitType           string    `json:"kit_type"`
	OnboardingPercent int       `json:"onboarding_percent"`
	TraceID           string    `json:"trace_id,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// ClientUpdatedPayload 管理端更新项目字段的事件
type ClientUpdatedPayload struct {
	ClientID   string    `json:"client_id"`
	Fields     []string  `json:"fields"`
	TraceID    string    `json:"trace_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ClientRef 所有事件 payload 共有的字段，供消费者先解出 client_id
type ClientRef struct {
	ClientID string `json:"client_id"`
}
