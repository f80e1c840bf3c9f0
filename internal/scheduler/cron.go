package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (5 полей и дескрипторы @every, @hourly).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	_, err := cronParser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}

// NextRun возвращает следующее время срабатывания выражения после from (в UTC).
func NextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from).UTC(), nil
}

// Reporter — периодическая фоновая задача по cron-расписанию.
//
// Используется для сводки по статусам workflows и обновления gauge-метрик.
type Reporter struct {
	cron    *cron.Cron
	task    func(ctx context.Context) error
	timeout time.Duration
	logger  *slog.Logger
}

// ReporterConfig — конфигурация Reporter.
type ReporterConfig struct {
	Schedule string                          // cron-выражение, default: "@every 1m"
	Task     func(ctx context.Context) error // выполняется на каждом срабатывании
	Timeout  time.Duration                   // default: 10s
	Logger   *slog.Logger
}

// NewReporter создаёт Reporter. Возвращает ошибку при невалидном расписании.
func NewReporter(cfg ReporterConfig) (*Reporter, error) {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = "@every 1m"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reporter")

	r := &Reporter{
		task:    cfg.Task,
		timeout: timeout,
		logger:  logger,
	}

	cronLog := cronLogger{logger: logger}
	r.cron = cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := r.cron.AddFunc(schedule, r.tick); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", schedule, err)
	}
	return r, nil
}

// Start запускает расписание в фоне.
func (r *Reporter) Start() {
	r.cron.Start()
}

// Stop останавливает расписание и ждёт завершения текущего запуска.
func (r *Reporter) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce выполняет задачу немедленно, вне расписания.
func (r *Reporter) RunOnce(ctx context.Context) error {
	if r.task == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.task(ctx)
}

func (r *Reporter) tick() {
	if err := r.RunOnce(context.Background()); err != nil {
		r.logger.Warn("report failed", "error", err)
	}
}

// cronLogger адаптирует slog к cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
