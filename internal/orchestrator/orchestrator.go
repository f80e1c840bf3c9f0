package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/shaiso/Autopost/internal/content"
	"github.com/shaiso/Autopost/internal/domain"
	"github.com/shaiso/Autopost/internal/mq"
	"github.com/shaiso/Autopost/internal/repo"
	"github.com/shaiso/Autopost/internal/retry"
	"github.com/shaiso/Autopost/internal/scheduler"
	"github.com/shaiso/Autopost/internal/telemetry"
)

// Publisher — внешний сервис публикации (CMS).
//
// Success=false и ошибка обрабатываются одинаково: переход в FAILED.
type Publisher interface {
	Publish(ctx context.Context, userID, connectionID string, bundle *domain.ProcessedContent) (*domain.PublishResult, error)
}

// Notifier получает события жизненного цикла workflow.
// Ошибка Notifier не влияет на состояние workflow.
type Notifier interface {
	Notify(ctx context.Context, event domain.WorkflowEvent) error
}

// notifyTimeout — предел на доставку одного события.
const notifyTimeout = 5 * time.Second

// Orchestrator управляет жизненным циклом workflows.
//
// Orchestrator — центральный компонент, который:
//   - Создаёт workflows и валидирует спецификации
//   - Взводит единицы исполнения в Scheduler (сразу или на время публикации)
//   - Выполняет препроцессинг и публикацию, фиксирует результат в Store
//   - Назначает автоматические повторы с экспоненциальной задержкой
//   - Принимает заявки из RabbitMQ (workflows.submit), если задано соединение
type Orchestrator struct {
	store        repo.WorkflowStore
	sched        *scheduler.Scheduler
	preprocessor *content.Preprocessor
	publisher    Publisher
	notifier     Notifier

	validate *validator.Validate
	clock    clockwork.Clock
	metrics  *telemetry.Metrics
	tracer   trace.Tracer

	policy           retry.Policy
	maxRetries       int
	manualRetryLimit int

	// MQ
	conn           *mq.Connection
	submitConsumer *mq.Consumer
	prefetch       int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Orchestrator.
type Config struct {
	Store        repo.WorkflowStore
	Scheduler    *scheduler.Scheduler
	Preprocessor *content.Preprocessor // default: content.NewPreprocessor(content.Config{})
	Publisher    Publisher
	Notifier     Notifier // опционально

	Clock   clockwork.Clock    // default: clockwork.NewRealClock()
	Metrics *telemetry.Metrics // опционально
	Tracer  trace.Tracer       // default: otel.Tracer("autopost/orchestrator")

	RetryPolicy retry.Policy
	MaxRetries  int // default: domain.DefaultMaxRetries

	// ManualRetryLimit — сколько раз можно вручную повторить FAILED workflow (0 — без ограничений).
	ManualRetryLimit int

	// Conn — соединение RabbitMQ для приёма заявок (опционально).
	Conn     *mq.Connection
	Prefetch int // default: 10

	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	sched := cfg.Scheduler
	if sched == nil {
		sched = scheduler.New(scheduler.Config{Clock: clock, Logger: logger})
	}
	pre := cfg.Preprocessor
	if pre == nil {
		pre = content.NewPreprocessor(content.Config{})
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("autopost/orchestrator")
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = domain.DefaultMaxRetries
	}
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 10
	}

	return &Orchestrator{
		store:            cfg.Store,
		sched:            sched,
		preprocessor:     pre,
		publisher:        cfg.Publisher,
		notifier:         cfg.Notifier,
		validate:         validator.New(validator.WithRequiredStructEnabled()),
		clock:            clock,
		metrics:          cfg.Metrics,
		tracer:           tracer,
		policy:           cfg.RetryPolicy,
		maxRetries:       maxRetries,
		manualRetryLimit: cfg.ManualRetryLimit,
		conn:             cfg.Conn,
		prefetch:         prefetch,
		logger:           logger.With("component", "orchestrator"),
	}
}

// Start запускает фоновые части: consumer workflows.submit (если задан Conn).
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	if o.conn != nil {
		o.submitConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:    mq.QueueWorkflowsSubmit,
			Handler:  o.handleSubmit,
			Prefetch: o.prefetch,
		})

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := o.submitConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error("submit consumer error", "error", err)
			}
		}()
	}

	o.logger.Info("orchestrator started",
		"max_retries", o.maxRetries,
		"manual_retry_limit", o.manualRetryLimit,
		"queue_enabled", o.conn != nil,
	)
	return nil
}

// Stop останавливает consumer и Scheduler, дожидаясь выполняющихся публикаций.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.logger.Info("stopping orchestrator...")

	if o.cancelFunc != nil {
		o.cancelFunc()
	}
	if o.submitConsumer != nil {
		o.submitConsumer.Stop()
	}
	o.wg.Wait()

	outstanding := o.sched.Len()
	if err := o.sched.Stop(ctx); err != nil {
		return err
	}

	o.logger.Info("orchestrator stopped", "cancelled_tasks", outstanding)
	return nil
}

// Create валидирует спецификацию и создаёт workflow в статусе PENDING.
func (o *Orchestrator) Create(ctx context.Context, spec domain.WorkflowSpec) (*domain.Workflow, error) {
	if err := o.validateSpec(spec); err != nil {
		return nil, err
	}

	w := domain.NewWorkflow(spec, o.maxRetries, o.clock.Now())
	if err := o.store.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}

	o.metrics.WorkflowCreated()
	telemetry.WithUserID(telemetry.WithWorkflowID(o.logger, w.ID.String()), w.UserID).Info("workflow created",
		"content_type", w.ContentType,
		"max_retries", w.MaxRetries,
		"scheduled", w.ScheduledPublishTime != nil,
	)
	return w, nil
}

// StartWorkflow взводит исполнение PENDING workflow.
//
// Если время публикации в будущем, исполнение откладывается до него,
// workflow остаётся PENDING.
func (o *Orchestrator) StartWorkflow(ctx context.Context, id uuid.UUID) error {
	w, err := o.Get(ctx, id)
	if err != nil {
		return err
	}
	if w.Status != domain.StatusPending {
		return fmt.Errorf("%w: cannot start workflow in status %s", ErrInvalidState, w.Status)
	}

	logger := telemetry.WithWorkflowID(o.logger, id.String())
	now := o.clock.Now()

	var h *scheduler.Handle
	if w.IsScheduledAfter(now) {
		h, err = o.sched.ArmAt(id, *w.ScheduledPublishTime, o.job(id))
	} else {
		h, err = o.sched.ArmImmediate(id, o.job(id))
	}
	switch {
	case errors.Is(err, scheduler.ErrAlreadyArmed):
		return fmt.Errorf("%w: %s", ErrAlreadyStarted, id)
	case errors.Is(err, scheduler.ErrStopped):
		return ErrStopped
	case err != nil:
		return fmt.Errorf("arm workflow: %w", err)
	}

	o.metrics.SetOutstandingTasks(o.sched.Len())
	if h.Kind() == scheduler.KindScheduled {
		logger.Info("workflow scheduled", "publish_at", h.DueAt())
	} else {
		logger.Info("workflow started")
	}
	return nil
}

// Submit создаёт workflow и сразу запускает его.
// При ошибке запуска возвращает созданный workflow вместе с ошибкой.
func (o *Orchestrator) Submit(ctx context.Context, spec domain.WorkflowSpec) (*domain.Workflow, error) {
	w, err := o.Create(ctx, spec)
	if err != nil {
		return nil, err
	}
	if err := o.StartWorkflow(ctx, w.ID); err != nil {
		return w, err
	}
	return o.Get(ctx, w.ID)
}

// Get возвращает workflow по ID.
func (o *Orchestrator) Get(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	w, err := o.store.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	return w, nil
}

// List возвращает workflows пользователя, новые первыми.
func (o *Orchestrator) List(ctx context.Context, filter repo.WorkflowFilter) ([]domain.Workflow, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, filter.Status)
	}
	workflows, err := o.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	return workflows, nil
}

// Count возвращает количество workflows под фильтром без учёта Limit и Offset.
func (o *Orchestrator) Count(ctx context.Context, filter repo.WorkflowFilter) (int, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return 0, fmt.Errorf("%w: unknown status %q", ErrValidation, filter.Status)
	}
	n, err := o.store.Count(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count workflows: %w", err)
	}
	return n, nil
}

// Cancel переводит PENDING или PROCESSING workflow в CANCELLED и снимает
// его единицу исполнения. Возвращает false, если статус уже финальный.
//
// Уже созданный в CMS пост не откатывается.
func (o *Orchestrator) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	w, ok, err := o.store.Cancel(ctx, id, o.clock.Now())
	if errors.Is(err, repo.ErrNotFound) {
		return false, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}
	if err != nil {
		return false, fmt.Errorf("cancel workflow: %w", err)
	}
	if !ok {
		return false, nil
	}

	o.sched.Cancel(id)
	o.metrics.Transition(string(domain.StatusCancelled))
	o.metrics.SetOutstandingTasks(o.sched.Len())
	o.notify(ctx, domain.NewWorkflowEvent(domain.EventCancelled, w, o.clock.Now()))

	telemetry.WithWorkflowID(o.logger, id.String()).Info("workflow cancelled")
	return true, nil
}

// Retry вручную перезапускает FAILED workflow: сбрасывает retry_count и
// error_message, затем запускает как StartWorkflow.
func (o *Orchestrator) Retry(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	w, err := o.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.Status != domain.StatusFailed {
		return nil, fmt.Errorf("%w: only failed workflows can be retried, got %s", ErrInvalidState, w.Status)
	}

	// FAILED фиксируется до снятия единицы с реестра: дожидаемся её.
	if h, ok := o.sched.Lookup(id); ok {
		select {
		case <-h.Done():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	_, err = o.store.Update(ctx, id, func(w *domain.Workflow) error {
		if w.Status != domain.StatusFailed {
			return fmt.Errorf("%w: only failed workflows can be retried, got %s", ErrInvalidState, w.Status)
		}
		if o.manualRetryLimit > 0 && w.ManualRetries >= o.manualRetryLimit {
			return fmt.Errorf("%w: %d of %d used", ErrManualRetryLimit, w.ManualRetries, o.manualRetryLimit)
		}
		w.ResetForManualRetry(o.clock.Now())
		return nil
	})
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	o.metrics.Transition(string(domain.StatusPending))
	telemetry.WithWorkflowID(o.logger, id.String()).Info("manual retry requested")

	if err := o.StartWorkflow(ctx, id); err != nil {
		return nil, err
	}
	return o.Get(ctx, id)
}

// Preview возвращает результат препроцессинга без публикации.
func (o *Orchestrator) Preview(ctx context.Context, id uuid.UUID) (*domain.ProcessedContent, error) {
	w, err := o.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return o.preprocessor.Process(w)
}

// Outstanding возвращает взведённые единицы исполнения.
func (o *Orchestrator) Outstanding() []scheduler.Info {
	return o.sched.Outstanding()
}

// Recover взводит исполнение для незавершённых workflows после рестарта.
//
// PROCESSING означает, что процесс упал во время публикации: такие
// workflows возвращаются в PENDING. Возвращает количество взведённых.
func (o *Orchestrator) Recover(ctx context.Context) (int, error) {
	interrupted, err := o.store.List(ctx, repo.WorkflowFilter{Status: domain.StatusProcessing})
	if err != nil {
		return 0, fmt.Errorf("list processing workflows: %w", err)
	}
	for _, w := range interrupted {
		if _, ok := o.sched.Lookup(w.ID); ok {
			continue
		}
		_, err := o.store.Update(ctx, w.ID, func(w *domain.Workflow) error {
			if w.Status != domain.StatusProcessing {
				return ErrInvalidState
			}
			w.ResetForRetry(o.clock.Now())
			return nil
		})
		if err != nil && !errors.Is(err, ErrInvalidState) {
			return 0, fmt.Errorf("reset workflow %s: %w", w.ID, err)
		}
	}

	pending, err := o.store.List(ctx, repo.WorkflowFilter{Status: domain.StatusPending})
	if err != nil {
		return 0, fmt.Errorf("list pending workflows: %w", err)
	}

	armed := 0
	for _, w := range pending {
		err := o.StartWorkflow(ctx, w.ID)
		switch {
		case err == nil:
			armed++
		case errors.Is(err, ErrAlreadyStarted), errors.Is(err, ErrInvalidState):
		default:
			return armed, err
		}
	}

	if armed > 0 {
		o.logger.Info("recovered workflows", "armed", armed, "interrupted", len(interrupted))
	}
	return armed, nil
}

// ReportStats обновляет gauge-метрики и пишет сводку по статусам.
func (o *Orchestrator) ReportStats(ctx context.Context) error {
	counts, err := o.store.CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("count workflows: %w", err)
	}

	byStatus := make(map[string]int, len(counts))
	attrs := make([]any, 0, 2*len(counts)+2)
	for _, st := range domain.AllStatuses() {
		byStatus[string(st)] = counts[st]
		attrs = append(attrs, string(st), counts[st])
	}
	outstanding := o.sched.Len()
	attrs = append(attrs, "outstanding_tasks", outstanding)

	o.metrics.SetWorkflowCounts(byStatus)
	o.metrics.SetOutstandingTasks(outstanding)
	o.logger.Info("workflow stats", attrs...)
	return nil
}

// validateSpec проверяет обязательные поля и допустимые значения.
func (o *Orchestrator) validateSpec(spec domain.WorkflowSpec) error {
	err := o.validate.Struct(spec)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

// notify доставляет событие, не завися от отмены ctx вызывающего.
func (o *Orchestrator) notify(ctx context.Context, event domain.WorkflowEvent) {
	if o.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := o.notifier.Notify(ctx, event); err != nil {
		o.logger.Warn("notify failed",
			"workflow_id", event.WorkflowID,
			"event", event.Type,
			"error", err,
		)
	}
}
