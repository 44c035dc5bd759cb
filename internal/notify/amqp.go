package notify

import (
	"context"
	"fmt"

	"github.com/shaiso/Conveyor/internal/mq"
)

// runPublisher — то, что AMQP нужно от mq.Publisher.
type runPublisher interface {
	PublishRunFinished(ctx context.Context, payload mq.RunFinishedPayload) error
}

// AMQP публикует событие run.finished в exchange conveyor.runs.
type AMQP struct {
	publisher runPublisher
}

// NewAMQP создаёт AMQP поверх mq.Publisher.
func NewAMQP(publisher *mq.Publisher) *AMQP {
	return &AMQP{publisher: publisher}
}

func (a *AMQP) Notify(ctx context.Context, n Notification) error {
	err := a.publisher.PublishRunFinished(ctx, mq.RunFinishedPayload{
		RunID:      n.RunID,
		Status:     n.Status,
		FinishedAt: n.FinishedAt.UTC(),
		Data:       n.Payload,
	})
	if err != nil {
		return fmt.Errorf("publish run finished: %w", err)
	}
	return nil
}
