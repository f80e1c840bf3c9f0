package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "autopost"

// Metrics — Prometheus метрики движка публикаций.
//
// Все методы безопасны для nil *Metrics.
type Metrics struct {
	workflowsCreated  prometheus.Counter
	transitions       *prometheus.CounterVec
	retriesScheduled  prometheus.Counter
	publishDuration   *prometheus.HistogramVec
	workflowsByStatus *prometheus.GaugeVec
	outstandingTasks  prometheus.Gauge
	httpRequests      *prometheus.CounterVec
	mqMessages        *prometheus.CounterVec
}

// NewMetrics регистрирует метрики в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		workflowsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_created_total",
			Help:      "Total workflows created",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_transitions_total",
			Help:      "Workflow status transitions by target status",
		}, []string{"status"}),
		retriesScheduled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_retries_scheduled_total",
			Help:      "Automatic retries scheduled after a failed publish",
		}),
		publishDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Duration of publisher calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		workflowsByStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workflows",
			Help:      "Current number of workflows by status",
		}, []string{"status"}),
		outstandingTasks: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_outstanding_tasks",
			Help:      "Armed scheduler units not yet finished",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests handled by the API",
		}, []string{"method", "code"}),
		mqMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mq_messages_total",
			Help:      "RabbitMQ messages by direction and result",
		}, []string{"direction", "result"}),
	}
}

// WorkflowCreated увеличивает счётчик созданных workflows.
func (m *Metrics) WorkflowCreated() {
	if m == nil {
		return
	}
	m.workflowsCreated.Inc()
}

// Transition отмечает переход workflow в status.
func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

// RetryScheduled отмечает автоматический повтор.
func (m *Metrics) RetryScheduled() {
	if m == nil {
		return
	}
	m.retriesScheduled.Inc()
}

// ObservePublish записывает длительность вызова Publisher.
func (m *Metrics) ObservePublish(success bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.publishDuration.WithLabelValues(result).Observe(d.Seconds())
}

// SetWorkflowCounts обновляет gauge workflows по статусам.
func (m *Metrics) SetWorkflowCounts(counts map[string]int) {
	if m == nil {
		return
	}
	for status, n := range counts {
		m.workflowsByStatus.WithLabelValues(status).Set(float64(n))
	}
}

// SetOutstandingTasks обновляет количество взведённых единиц планировщика.
func (m *Metrics) SetOutstandingTasks(n int) {
	if m == nil {
		return
	}
	m.outstandingTasks.Set(float64(n))
}

// HTTPRequest отмечает обработанный HTTP запрос.
func (m *Metrics) HTTPRequest(method, code string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, code).Inc()
}

// MQMessage отмечает сообщение RabbitMQ. direction: in/out, result: ok/error.
func (m *Metrics) MQMessage(direction, result string) {
	if m == nil {
		return
	}
	m.mqMessages.WithLabelValues(direction, result).Inc()
}
