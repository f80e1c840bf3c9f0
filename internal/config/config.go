package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/shaiso/Autopost/internal/mq"
	"github.com/shaiso/Autopost/internal/repo"
	"github.com/shaiso/Autopost/internal/retry"
	"github.com/shaiso/Autopost/internal/scheduler"
)

//go:embed sample_config.toml
var sampleConfig string

// EnvConfigPath — переменная окружения с путём к конфигу.
const EnvConfigPath = "AUTOPOST_CONFIG"

// Хранилища workflows.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// API — HTTP API.
type API struct {
	Addr string `toml:"addr"`
}

// Engine — параметры движка workflows.
type Engine struct {
	Store            string `toml:"store"`
	MaxRetries       int    `toml:"max_retries"`
	ManualRetryLimit int    `toml:"manual_retry_limit"`
	BackoffBaseSec   int    `toml:"backoff_base_sec"`
	BackoffMaxSec    int    `toml:"backoff_max_sec"`
}

// Content — параметры препроцессинга.
type Content struct {
	ExcerptLength int `toml:"excerpt_length"`
	MaxTags       int `toml:"max_tags"`
}

// WordPress — клиент WordPress REST API.
type WordPress struct {
	TimeoutSec      int    `toml:"timeout_sec"`
	UserAgent       string `toml:"user_agent"`
	DefaultUsername string `toml:"default_username"`
}

// Database — PostgreSQL.
type Database struct {
	URL      string `toml:"url"`
	MaxConns int32  `toml:"max_conns"`
}

// RabbitMQ — брокер для заявок и событий.
type RabbitMQ struct {
	Enabled  bool   `toml:"enabled"`
	URL      string `toml:"url"`
	Prefetch int    `toml:"prefetch"`
}

// Logging — structured logging.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Telemetry — трейсинг и периодическая статистика.
type Telemetry struct {
	TracingEnabled bool   `toml:"tracing_enabled"`
	ServiceName    string `toml:"service_name"`
	OTLPEndpoint   string `toml:"otlp_endpoint"`
	StatsSchedule  string `toml:"stats_schedule"`
}

// Config — корневая конфигурация.
type Config struct {
	API       API       `toml:"api"`
	Engine    Engine    `toml:"engine"`
	Content   Content   `toml:"content"`
	WordPress WordPress `toml:"wordpress"`
	Database  Database  `toml:"database"`
	RabbitMQ  RabbitMQ  `toml:"rabbitmq"`
	Logging   Logging   `toml:"logging"`
	Telemetry Telemetry `toml:"telemetry"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() Config {
	return Config{
		API: API{Addr: ":8080"},
		Engine: Engine{
			Store:          StoreMemory,
			MaxRetries:     3,
			BackoffBaseSec: int(retry.DefaultBase / time.Second),
			BackoffMaxSec:  int(retry.DefaultMax / time.Second),
		},
		Content: Content{ExcerptLength: 160, MaxTags: 8},
		WordPress: WordPress{
			TimeoutSec:      30,
			UserAgent:       "Autopost-WordPress-Connector/1.0",
			DefaultUsername: "admin",
		},
		Database: Database{
			URL:      repo.DefaultDSN,
			MaxConns: 10,
		},
		RabbitMQ: RabbitMQ{
			URL:      mq.DefaultURL,
			Prefetch: 10,
		},
		Logging: Logging{Level: "info", Format: "json"},
		Telemetry: Telemetry{
			ServiceName:   "autopost",
			StatsSchedule: "@every 1m",
		},
	}
}

// Load читает конфиг из path (или AUTOPOST_CONFIG) и применяет env.
//
// Отсутствие файла не ошибка: используются значения по умолчанию.
// Возвращает итоговый путь и признак существования файла.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	exists := false
	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, "", false, fmt.Errorf("open config: %w", err)
		default:
			defer file.Close()
			exists = true

			decoder := toml.NewDecoder(file)
			decoder.DisallowUnknownFields()
			if err := decoder.Decode(&cfg); err != nil {
				return nil, "", false, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, path, exists, nil
}

// applyEnv применяет переменные окружения поверх файла.
func (c *Config) applyEnv() {
	if v := os.Getenv("DB_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		c.RabbitMQ.URL = v
		c.RabbitMQ.Enabled = true
	}
	if v := os.Getenv("API_PORT"); v != "" {
		c.API.Addr = ":" + v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.OTLPEndpoint = v
		c.Telemetry.TracingEnabled = true
	}
}

func (c *Config) normalize() {
	c.Engine.Store = strings.ToLower(strings.TrimSpace(c.Engine.Store))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Telemetry.StatsSchedule = strings.TrimSpace(c.Telemetry.StatsSchedule)
}

// Validate проверяет согласованность значений.
func (c *Config) Validate() error {
	var errs []error

	switch c.Engine.Store {
	case StoreMemory, StorePostgres:
	default:
		errs = append(errs, fmt.Errorf("engine.store: unknown store %q", c.Engine.Store))
	}
	if c.Engine.MaxRetries < 0 {
		errs = append(errs, errors.New("engine.max_retries must not be negative"))
	}
	if c.Engine.ManualRetryLimit < 0 {
		errs = append(errs, errors.New("engine.manual_retry_limit must not be negative"))
	}
	if c.Engine.BackoffBaseSec <= 0 || c.Engine.BackoffMaxSec <= 0 {
		errs = append(errs, errors.New("engine.backoff_base_sec and engine.backoff_max_sec must be positive"))
	} else if c.Engine.BackoffBaseSec > c.Engine.BackoffMaxSec {
		errs = append(errs, errors.New("engine.backoff_base_sec must not exceed engine.backoff_max_sec"))
	}
	if c.Content.ExcerptLength < 4 {
		errs = append(errs, errors.New("content.excerpt_length must be at least 4"))
	}
	if c.WordPress.TimeoutSec <= 0 {
		errs = append(errs, errors.New("wordpress.timeout_sec must be positive"))
	}
	if c.Engine.Store == StorePostgres && c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required for the postgres store"))
	}
	if c.RabbitMQ.Enabled && c.RabbitMQ.URL == "" {
		errs = append(errs, errors.New("rabbitmq.url is required when rabbitmq is enabled"))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}

	if c.Telemetry.StatsSchedule != "" {
		if err := scheduler.ValidateCronExpr(c.Telemetry.StatsSchedule); err != nil {
			errs = append(errs, fmt.Errorf("telemetry.stats_schedule: %w", err))
		}
	}

	return errors.Join(errs...)
}

// RetryPolicy возвращает политику задержек движка.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		Base: time.Duration(c.Engine.BackoffBaseSec) * time.Second,
		Max:  time.Duration(c.Engine.BackoffMaxSec) * time.Second,
	}
}

// WordPressTimeout возвращает таймаут запросов к WordPress.
func (c *Config) WordPressTimeout() time.Duration {
	return time.Duration(c.WordPress.TimeoutSec) * time.Second
}

// CreateSample записывает пример конфига по пути path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists: %s", path)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
