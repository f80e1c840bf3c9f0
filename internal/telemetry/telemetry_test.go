package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, LogLevel("WARN"))
	assert.Equal(t, slog.LevelError, LogLevel(" error "))
	assert.Equal(t, slog.LevelInfo, LogLevel(""))
	assert.Equal(t, slog.LevelInfo, LogLevel("verbose"))
}

func TestNewLogger_Formats(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: "info", Format: "json", Output: &buf})
	WithWorkflowID(logger, "wf-1").Info("hello")
	assert.Contains(t, buf.String(), `"workflow_id":"wf-1"`)

	buf.Reset()
	logger = NewLogger(LoggerConfig{Level: "warn", Format: "text", Output: &buf})
	logger.Info("skipped")
	WithUserID(logger, "u1").Warn("kept")
	assert.NotContains(t, buf.String(), "skipped")
	assert.Contains(t, buf.String(), "user_id=u1")
}

func TestFromContext(t *testing.T) {
	logger := NewLogger(LoggerConfig{Output: &bytes.Buffer{}})
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.WorkflowCreated()
	m.Transition("completed")
	m.Transition("completed")
	m.RetryScheduled()
	m.ObservePublish(true, 120*time.Millisecond)
	m.SetWorkflowCounts(map[string]int{"pending": 4})
	m.SetOutstandingTasks(2)
	m.HTTPRequest("GET", "200")
	m.MQMessage("in", "ok")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.workflowsCreated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retriesScheduled))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.workflowsByStatus.WithLabelValues("pending")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.outstandingTasks))
	assert.Equal(t, 1, testutil.CollectAndCount(m.publishDuration))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() {
		nilMetrics.WorkflowCreated()
		nilMetrics.Transition("failed")
		nilMetrics.ObservePublish(false, time.Second)
		nilMetrics.SetOutstandingTasks(1)
	})
}

func TestSetupTracing_Disabled(t *testing.T) {
	tracer, shutdown, err := SetupTracing(context.Background(), TracingConfig{})
	require.NoError(t, err)
	_, span := StartSpan(context.Background(), tracer, "noop")
	span.End()
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	_, span := StartSpan(context.Background(), tp.Tracer("test"), "op", WorkflowIDKey.String("wf-1"))
	SetError(span, errors.New("boom"), RetryCountKey.Int(2))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 2) // exception + error_occurred
}
