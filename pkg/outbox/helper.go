package outbox

import (
	"context"
	"encoding/json"
	"fmt"
)

// Enqueue 在事务中序列化 payload 并写入 outbox
func Enqueue(
	ctx context.Context,
	q Querier,
	aggregateType string,
	aggregateID string,
	routingKey string,
	payload interface{},
) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	event := &Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		RoutingKey:    routingKey,
		Payload:       payloadJSON,
		Status:        StatusPending,
	}

	return InsertEvent(ctx, q, event)
}
