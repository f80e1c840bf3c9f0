package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shaiso/Autopost/internal/api"
	"github.com/shaiso/Autopost/internal/config"
	"github.com/shaiso/Autopost/internal/content"
	"github.com/shaiso/Autopost/internal/mq"
	"github.com/shaiso/Autopost/internal/orchestrator"
	"github.com/shaiso/Autopost/internal/repo"
	"github.com/shaiso/Autopost/internal/scheduler"
	"github.com/shaiso/Autopost/internal/telemetry"
	"github.com/shaiso/Autopost/internal/wordpress"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the workflow engine and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolved, exists, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			logger := telemetry.SetupLogger(telemetry.LoggerConfig{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
			})
			logger.Info("starting autopost",
				"version", version,
				"config", resolved,
				"config_found", exists,
				"store", cfg.Engine.Store,
			)

			// graceful shutdown
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Tracing
	tracer, shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		Enabled:     cfg.Telemetry.TracingEnabled,
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(reg)

	// DB pool: credentials подключений WordPress и, опционально, workflows
	pool, err := repo.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	store, err := newStore(ctx, cfg, pool, logger)
	if err != nil {
		return err
	}

	// WordPress
	publisher := wordpress.New(wordpress.Config{
		Credentials:     repo.NewConnectionRepo(pool),
		Timeout:         cfg.WordPressTimeout(),
		UserAgent:       cfg.WordPress.UserAgent,
		DefaultUsername: cfg.WordPress.DefaultUsername,
		Logger:          logger,
	})

	// RabbitMQ
	var (
		mqConn   *mq.Connection
		notifier orchestrator.Notifier
	)
	if cfg.RabbitMQ.Enabled {
		mqConn, err = mq.NewConnection(mq.ConnectionConfig{URL: cfg.RabbitMQ.URL, Logger: logger})
		if err != nil {
			logger.Warn("RabbitMQ not available, running without queue", "error", err)
		} else {
			defer mqConn.Close()
			logger.Info("RabbitMQ connected")

			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			notifier = mq.NewEventNotifier(mq.NewPublisher(mqConn, logger), logger)
		}
	}

	// Engine
	orch := orchestrator.New(orchestrator.Config{
		Store:     store,
		Scheduler: scheduler.New(scheduler.Config{Logger: logger}),
		Preprocessor: content.NewPreprocessor(content.Config{
			ExcerptLength: cfg.Content.ExcerptLength,
			MaxTags:       cfg.Content.MaxTags,
		}),
		Publisher:        publisher,
		Notifier:         notifier,
		Metrics:          metrics,
		Tracer:           tracer,
		RetryPolicy:      cfg.RetryPolicy(),
		MaxRetries:       cfg.Engine.MaxRetries,
		ManualRetryLimit: cfg.Engine.ManualRetryLimit,
		Conn:             mqConn,
		Prefetch:         cfg.RabbitMQ.Prefetch,
		Logger:           logger,
	})

	if err := orch.Start(ctx); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}
	if _, err := orch.Recover(ctx); err != nil {
		logger.Error("failed to recover workflows", "error", err)
	}

	// Stats
	var reporter *scheduler.Reporter
	if cfg.Telemetry.StatsSchedule != "" {
		reporter, err = scheduler.NewReporter(scheduler.ReporterConfig{
			Schedule: cfg.Telemetry.StatsSchedule,
			Task:     orch.ReportStats,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("create stats reporter: %w", err)
		}
		reporter.Start()
	}

	// HTTP
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	api.NewHandler(api.Config{Orchestrator: orch, Metrics: metrics, Logger: logger}).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.API.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Ожидаем сигнал завершения
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	}
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	if reporter != nil {
		reporter.Stop(shutdownCtx)
	}
	if err := orch.Stop(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown error", "error", err)
	}

	logger.Info("autopost stopped")
	return nil
}

// newStore выбирает хранилище workflows по конфигу.
func newStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) (repo.WorkflowStore, error) {
	if cfg.Engine.Store != config.StorePostgres {
		return repo.NewMemoryStore(), nil
	}
	if err := repo.Migrate(ctx, pool); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("using postgres workflow store")
	return repo.NewWorkflowRepo(pool), nil
}
