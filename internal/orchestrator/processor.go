package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Autopost/internal/domain"
	"github.com/shaiso/Autopost/internal/retry"
	"github.com/shaiso/Autopost/internal/scheduler"
	"github.com/shaiso/Autopost/internal/telemetry"
)

// job возвращает тело единицы исполнения для workflow.
func (o *Orchestrator) job(id uuid.UUID) scheduler.Job {
	return func(ctx context.Context) scheduler.Outcome {
		return o.process(ctx, id)
	}
}

// process выполняет один прогон workflow:
// PENDING → PROCESSING → препроцессинг → публикация → COMPLETED | FAILED.
//
// При FAILED с оставшимися попытками workflow в той же записи возвращается
// в PENDING, а единица перевзводится через Outcome.
func (o *Orchestrator) process(ctx context.Context, id uuid.UUID) scheduler.Outcome {
	ctx, span := telemetry.StartSpan(ctx, o.tracer, "workflow.process", telemetry.WorkflowIDKey.String(id.String()))
	defer span.End()

	logger := telemetry.WithWorkflowID(o.logger, id.String())

	w, err := o.store.Update(ctx, id, func(w *domain.Workflow) error {
		if w.Status != domain.StatusPending {
			return fmt.Errorf("%w: %s", ErrInvalidState, w.Status)
		}
		w.MarkProcessing(o.clock.Now())
		return nil
	})
	if err != nil {
		// Отменён до запуска или удалён.
		logger.Info("workflow not runnable, skipping", "reason", err)
		return scheduler.Finish()
	}

	o.metrics.Transition(string(domain.StatusProcessing))
	span.SetAttributes(
		telemetry.UserIDKey.String(w.UserID),
		telemetry.ContentTypeKey.String(string(w.ContentType)),
		telemetry.RetryCountKey.Int(w.RetryCount),
	)
	logger = telemetry.WithUserID(logger, w.UserID)
	logger.Info("processing workflow", "retry_count", w.RetryCount, "max_retries", w.MaxRetries)

	result, err := o.execute(ctx, w, logger)

	// Фиксация не должна зависеть от отмены единицы.
	commitCtx := context.WithoutCancel(ctx)
	if err != nil {
		telemetry.SetError(span, err, telemetry.RetryCountKey.Int(w.RetryCount+1))
		return o.fail(commitCtx, id, err, logger)
	}
	return o.complete(commitCtx, id, result, logger)
}

// execute выполняет препроцессинг и публикацию. panic превращается в ошибку.
func (o *Orchestrator) execute(ctx context.Context, w *domain.Workflow, logger *slog.Logger) (result *domain.PublishResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("workflow processing panicked", "panic", r)
			result, err = nil, fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	bundle, err := o.preprocess(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}

	result, err = o.publish(ctx, w, bundle)
	if err != nil {
		return nil, err
	}

	o.postProcess(ctx, w, result, logger)
	return result, nil
}

func (o *Orchestrator) preprocess(ctx context.Context, w *domain.Workflow) (*domain.ProcessedContent, error) {
	_, span := telemetry.StartSpan(ctx, o.tracer, "workflow.preprocess",
		telemetry.ContentTypeKey.String(string(w.ContentType)),
	)
	defer span.End()

	bundle, err := o.preprocessor.Process(w)
	if err != nil {
		telemetry.SetError(span, err)
		return nil, err
	}
	return bundle, nil
}

// publish вызывает Publisher. Success=false превращается в ошибку с Message.
func (o *Orchestrator) publish(ctx context.Context, w *domain.Workflow, bundle *domain.ProcessedContent) (*domain.PublishResult, error) {
	ctx, span := telemetry.StartSpan(ctx, o.tracer, "workflow.publish",
		telemetry.ConnectionIDKey.String(w.ConnectionID),
	)
	defer span.End()

	started := o.clock.Now()
	result, err := o.publisher.Publish(ctx, w.UserID, w.ConnectionID, bundle)
	if err == nil && result == nil {
		err = errors.New("publisher returned no result")
	}
	if err == nil && !result.Success {
		msg := result.Message
		if msg == "" {
			msg = "publish failed"
		}
		err = errors.New(msg)
	}
	o.metrics.ObservePublish(err == nil, o.clock.Since(started))

	if err != nil {
		telemetry.SetError(span, err)
		return nil, err
	}

	span.SetAttributes(telemetry.ExternalIDKey.String(result.ExternalID))
	return result, nil
}

// postProcess — точка расширения после успешной публикации.
func (o *Orchestrator) postProcess(_ context.Context, w *domain.Workflow, result *domain.PublishResult, logger *slog.Logger) {
	logger.Info("content published",
		"connection_id", w.ConnectionID,
		"post_id", result.ExternalID,
		"link", result.Link,
	)
}

// complete фиксирует COMPLETED, если workflow всё ещё PROCESSING.
func (o *Orchestrator) complete(ctx context.Context, id uuid.UUID, result *domain.PublishResult, logger *slog.Logger) scheduler.Outcome {
	now := o.clock.Now()
	w, err := o.store.Update(ctx, id, func(w *domain.Workflow) error {
		if w.Status != domain.StatusProcessing {
			return fmt.Errorf("%w: %s", ErrInvalidState, w.Status)
		}
		w.MarkCompleted(result.ExternalID, result.Link, now)
		return nil
	})
	if errors.Is(err, ErrInvalidState) {
		logger.Warn("workflow cancelled during publish, post is not rolled back",
			"post_id", result.ExternalID,
			"link", result.Link,
		)
		return scheduler.Finish()
	}
	if err != nil {
		logger.Error("failed to commit completion", "post_id", result.ExternalID, "error", err)
		return scheduler.Finish()
	}

	o.metrics.Transition(string(domain.StatusCompleted))
	o.notify(ctx, domain.NewWorkflowEvent(domain.EventCompleted, w, now))
	logger.Info("workflow completed", "post_id", result.ExternalID, "retry_count", w.RetryCount)
	return scheduler.Finish()
}

// fail фиксирует FAILED и, если попытки остались, в той же записи
// возвращает workflow в PENDING и перевзводит единицу с задержкой.
func (o *Orchestrator) fail(ctx context.Context, id uuid.UUID, cause error, logger *slog.Logger) scheduler.Outcome {
	now := o.clock.Now()
	var (
		retrying bool
		delay    time.Duration
	)

	w, err := o.store.Update(ctx, id, func(w *domain.Workflow) error {
		if w.Status != domain.StatusProcessing {
			return fmt.Errorf("%w: %s", ErrInvalidState, w.Status)
		}
		w.MarkFailed(cause.Error(), now)
		retrying = retry.ShouldRetry(w.RetryCount, w.MaxRetries)
		if retrying {
			delay = o.policy.Backoff(w.RetryCount)
			w.ResetForRetry(now)
		}
		return nil
	})
	if errors.Is(err, ErrInvalidState) {
		logger.Info("workflow cancelled during processing", "error", cause)
		return scheduler.Finish()
	}
	if err != nil {
		logger.Error("failed to commit failure", "cause", cause, "error", err)
		return scheduler.Finish()
	}

	o.metrics.Transition(string(domain.StatusFailed))

	if !retrying {
		o.notify(ctx, domain.NewWorkflowEvent(domain.EventFailed, w, now))
		logger.Error("workflow failed",
			"error", cause,
			"retry_count", w.RetryCount,
			"max_retries", w.MaxRetries,
		)
		return scheduler.Finish()
	}

	o.metrics.RetryScheduled()
	o.metrics.Transition(string(domain.StatusPending))

	event := domain.NewWorkflowEvent(domain.EventRetryScheduled, w, now)
	event.RetryInSec = int(delay / time.Second)
	o.notify(ctx, event)

	logger.Warn("workflow failed, retry scheduled",
		"error", cause,
		"retry_count", w.RetryCount,
		"max_retries", w.MaxRetries,
		"delay", delay,
	)
	return scheduler.RearmAfter(delay)
}
