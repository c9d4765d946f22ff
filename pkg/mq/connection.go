package mq

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "kitdash.events"

	// EventIDHeader carries the outbox event id so consumers can dedupe and count retries.
	EventIDHeader = "x-event-id"
)

var ErrNotConnected = errors.New("rabbitmq connection closed")

// NewConnection creates a new RabbitMQ connection.
func NewConnection(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// DeclareExchange declares the events exchange.
func DeclareExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}

type eventIDKey struct{}

// WithEventID 把 x-event-id 放进 context，供 handler 去重
func WithEventID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, eventIDKey{}, id)
}

// EventIDFromContext 返回 consumer 写入的事件 ID
func EventIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(eventIDKey{}).(int64)
	return id, ok
}

// eventIDOf AMQP 头里的整数可能被解码成不同宽度
func eventIDOf(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case string:
		id, err := strconv.ParseInt(n, 10, 64)
		return id, err == nil
	}
	return 0, false
}
