package mq

import (
	"context"
	"log/slog"

	"github.com/shaiso/Autopost/internal/domain"
)

// eventPublisher — часть Publisher, нужная EventNotifier.
type eventPublisher interface {
	PublishEvent(ctx context.Context, event domain.WorkflowEvent) error
}

// EventNotifier рассылает события workflows в exchange autopost.events.
//
// Ошибка публикации не влияет на состояние workflow: событие логируется и
// теряется. Гарантированная доставка не требуется.
type EventNotifier struct {
	publisher eventPublisher
	logger    *slog.Logger
}

// NewEventNotifier создаёт новый EventNotifier. publisher — обычно *Publisher.
func NewEventNotifier(publisher eventPublisher, logger *slog.Logger) *EventNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventNotifier{publisher: publisher, logger: logger}
}

// Notify публикует событие.
func (n *EventNotifier) Notify(ctx context.Context, event domain.WorkflowEvent) error {
	if err := n.publisher.PublishEvent(ctx, event); err != nil {
		n.logger.Warn("failed to publish workflow event",
			"workflow_id", event.WorkflowID,
			"type", event.Type,
			"error", err,
		)
		return err
	}
	return nil
}
