package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

const (
	ExchangeRuns Exchange = "conveyor.runs"

	// QueueRunsFinished хранит события, пока downstream их не заберёт.
	QueueRunsFinished Queue = "runs.finished"

	RoutingKeyFinished RoutingKey = "finished"
)

// SetupTopology объявляет exchange, очередь и binding. Операция идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.ExchangeDeclare(
			string(ExchangeRuns), // name
			"direct",             // type
			true,                 // durable
			false,                // auto-deleted
			false,                // internal
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeRuns, err)
		}

		if _, err := ch.QueueDeclare(string(QueueRunsFinished), true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", QueueRunsFinished, err)
		}

		err = ch.QueueBind(
			string(QueueRunsFinished),
			string(RoutingKeyFinished),
			string(ExchangeRuns),
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", QueueRunsFinished, ExchangeRuns, err)
		}

		return nil
	})
}
