package internal

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics collects the telemetry emitted by the admin engine.
type PrometheusMetrics struct {
	registry         *prometheus.Registry
	operations       *prometheus.CounterVec
	durations        *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	breakerRejection *prometheus.CounterVec
}

// NewPrometheusMetrics registers the admin collectors on a dedicated registry.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Admin operations by operation, model and outcome.",
		}, []string{"operation", "model", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of admin operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "model"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "option_cache_lookups_total",
			Help:      "Relationship option cache lookups by model and result.",
		}, []string{"model", "result"}),
		breakerRejection: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_rejected_total",
			Help:      "Storage calls refused by an open circuit breaker.",
		}, []string{"model"}),
	}
	m.registry.MustRegister(
		m.operations,
		m.durations,
		m.cacheLookups,
		m.breakerRejection,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Emit is a TelemetryEmitter recording into the collectors.
func (m *PrometheusMetrics) Emit(ctx context.Context, name string, labels map[string]string, value any) {
	switch name {
	case MetricOperation:
		m.operations.WithLabelValues(labels["operation"], labels["model"], labels["outcome"]).Inc()
		if elapsed, ok := value.(time.Duration); ok {
			m.durations.WithLabelValues(labels["operation"], labels["model"]).Observe(elapsed.Seconds())
		}
	case MetricCacheLookup:
		m.cacheLookups.WithLabelValues(labels["model"], labels["result"]).Inc()
	case MetricBreakerRejected:
		m.breakerRejection.WithLabelValues(labels["model"]).Inc()
	}
}

// Handler serves the collected metrics in the Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}
