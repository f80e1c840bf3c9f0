package orchestrator

import (
	"context"
	"errors"

	"github.com/shaiso/Autopost/internal/mq"
)

// handleSubmit обрабатывает заявку workflow.submit из очереди.
//
// Невалидная заявка уходит в DLQ. Ошибка запуска после успешного
// создания не возвращается: workflow уже сохранён, повторная доставка
// создала бы дубликат.
func (o *Orchestrator) handleSubmit(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.SubmitPayload](&delivery.Message)
	if err != nil {
		o.metrics.MQMessage("in", "error")
		o.logger.Error("failed to parse workflow.submit payload", "error", err)
		return mq.Permanent(err)
	}

	o.logger.Debug("received workflow.submit",
		"message_id", delivery.Message.ID,
		"user_id", payload.Spec.UserID,
		"start", payload.ShouldStart(),
	)

	w, err := o.Create(ctx, payload.Spec)
	if err != nil {
		o.metrics.MQMessage("in", "error")
		if errors.Is(err, ErrValidation) {
			return mq.Permanent(err)
		}
		return err
	}

	if payload.ShouldStart() {
		if err := o.StartWorkflow(ctx, w.ID); err != nil {
			o.logger.Error("failed to start submitted workflow",
				"workflow_id", w.ID,
				"error", err,
			)
		}
	}

	o.metrics.MQMessage("in", "ok")
	return nil
}
