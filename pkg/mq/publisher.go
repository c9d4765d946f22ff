package mq

import (
	"context"
	"fmt"
	"sync"

	"github.com/rabbitmq/amqp091-go"

	"kitdash/pkg/otel"
	"kitdash/pkg/trace"
)

type Publisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	mu      sync.Mutex // amqp channel 不是并发安全的
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := DeclareExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	if err := DeclareDLQExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare dlq exchange: %w", err)
	}

	return &Publisher{
		conn:    conn,
		channel: ch,
	}, nil
}

func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// Ping 连接或 channel 已关闭时返回错误，供 /readyz 使用
func (p *Publisher) Ping(context.Context) error {
	if p.conn == nil || p.channel == nil || p.conn.IsClosed() || p.channel.IsClosed() {
		return ErrNotConnected
	}
	return nil
}

// PublishRaw publishes an already encoded body.
func (p *Publisher) PublishRaw(ctx context.Context, exchange, routingKey string, body []byte, headers amqp091.Table) error {
	if headers == nil {
		headers = amqp091.Table{}
	}
	if traceID := trace.FromContext(ctx); traceID != "" {
		headers[trace.TraceIDKey] = traceID
	}
	ctx, span := otel.MQPublishSpan(ctx, exchange, routingKey, headers)
	defer span.End()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.PublishWithContext(
		ctx,
		exchange,
		routingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			Headers:      headers,
		},
	)
}

// PublishEvent publishes an outbox event body tagged with its event id.
func (p *Publisher) PublishEvent(ctx context.Context, routingKey string, eventID int64, body []byte) error {
	return p.PublishRaw(ctx, ExchangeName, routingKey, body, amqp091.Table{EventIDHeader: eventID})
}
