package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeWorkflows Exchange = "autopost.workflows"
	ExchangeEvents    Exchange = "autopost.events"
	ExchangeDLQ       Exchange = "autopost.dlq"
)

// Queues — имена очередей.
const (
	QueueWorkflowsSubmit Queue = "workflows.submit"
	QueueWorkflowEvents  Queue = "workflows.events"
	QueueDLQWorkflows    Queue = "dlq.workflows"
)

// Routing keys.
const (
	RoutingKeySubmit       RoutingKey = "submit"
	RoutingKeyEventsAll    RoutingKey = "workflow.#"
	RoutingKeyDLQWorkflows RoutingKey = "workflows"
)

// SetupTopology объявляет exchanges, queues и bindings. Операция идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeWorkflows, amqp.ExchangeDirect},
		{ExchangeEvents, amqp.ExchangeTopic},
		{ExchangeDLQ, amqp.ExchangeDirect},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}
	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQWorkflows),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// workflows.submit — с DLQ (невалидные заявки уходят в DLQ)
		{QueueWorkflowsSubmit, dlqArgs},

		// workflows.events — события жизненного цикла для внешних подписчиков
		{QueueWorkflowEvents, nil},

		{QueueDLQWorkflows, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}
	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueWorkflowsSubmit, RoutingKeySubmit, ExchangeWorkflows},
		{QueueWorkflowEvents, RoutingKeyEventsAll, ExchangeEvents},
		{QueueDLQWorkflows, RoutingKeyDLQWorkflows, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Autopost RabbitMQ Topology:

    autopost.workflows (direct)
    └── workflows.submit [routing: submit]
            Consumer: autopost serve
            DLQ: dlq.workflows

    autopost.events (topic)
    └── workflows.events [routing: workflow.#]
            Consumer: external subscribers

    autopost.dlq (direct)
    └── dlq.workflows [routing: workflows]
            Manual processing
  `
}
