package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Autopost/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeSubmit MessageType = "workflow.submit"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// SubmitPayload — заявка на создание и запуск workflow через очередь.
type SubmitPayload struct {
	Spec domain.WorkflowSpec `json:"spec"`

	// Start — запустить сразу после создания (по умолчанию true).
	Start *bool `json:"start,omitempty"`
}

// ShouldStart сообщает, нужно ли запускать workflow после создания.
func (p SubmitPayload) ShouldStart() bool {
	return p.Start == nil || *p.Start
}

// NewMessage создаёт сообщение с новым ID.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishSubmit публикует заявку на создание workflow.
// Потребитель: autopost serve.
func (p *Publisher) PublishSubmit(ctx context.Context, payload SubmitPayload) error {
	return p.Publish(ctx, ExchangeWorkflows, RoutingKeySubmit, NewMessage(MessageTypeSubmit, payload))
}

// PublishEvent публикует событие жизненного цикла workflow.
// Routing key совпадает с типом события (workflow.completed и т.д.).
func (p *Publisher) PublishEvent(ctx context.Context, event domain.WorkflowEvent) error {
	msg := NewMessage(MessageType(event.Type), event)
	return p.Publish(ctx, ExchangeEvents, EventRoutingKey(event.Type), msg)
}

// EventRoutingKey возвращает routing key для типа события.
func EventRoutingKey(t domain.EventType) RoutingKey {
	return RoutingKey(t)
}
