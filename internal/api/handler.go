package api

import (
	"log/slog"
	"time"

	"github.com/shaiso/Autopost/internal/orchestrator"
	"github.com/shaiso/Autopost/internal/telemetry"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	orch      *orchestrator.Orchestrator
	metrics   *telemetry.Metrics
	logger    *slog.Logger
	startTime time.Time
}

// Config — конфигурация для создания Handler.
type Config struct {
	Orchestrator *orchestrator.Orchestrator
	Metrics      *telemetry.Metrics // опционально
	Logger       *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		orch:      cfg.Orchestrator,
		metrics:   cfg.Metrics,
		logger:    logger.With("component", "api"),
		startTime: time.Now(),
	}
}
