// Package telemetry records processor and transport telemetry as Prometheus metrics.
package telemetry

import (
	"context"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector implements the Telemetry interfaces of the dashboard packages.
type Collector struct {
	registry *prometheus.Registry
	logger   *zap.Logger

	Events     *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	QueryCache *prometheus.CounterVec
	Failures   *prometheus.CounterVec
}

// NewCollector builds a collector on its own registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if namespace == "" {
		namespace = "dashboard"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := prometheus.NewRegistry()

	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_events_total",
			Help:      "Telemetry events recorded, by event and subject",
		},
		[]string{"event", "subject"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Command and query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"event", "subject"},
	)
	queryCache := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_total",
			Help:      "Completed queries by cache outcome",
		},
		[]string{"query", "outcome"},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failed commands and queries by error kind",
		},
		[]string{"subject", "kind"},
	)
	registry.MustRegister(events, duration, queryCache, failures)

	return &Collector{
		registry:   registry,
		logger:     logger.Named("telemetry"),
		Events:     events,
		Duration:   duration,
		QueryCache: queryCache,
		Failures:   failures,
	}
}

// Registry exposes the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Record maps a telemetry event onto the metric families.
func (c *Collector) Record(_ context.Context, event string, payload map[string]any) {
	subject := subjectOf(payload)
	c.Events.WithLabelValues(event, subject).Inc()

	if ms, ok := number(payload["duration_ms"]); ok {
		c.Duration.WithLabelValues(event, subject).Observe(ms / 1000)
	}
	if query, ok := payload["query"].(string); ok {
		if cached, ok := payload["cached"].(bool); ok && !strings.HasSuffix(event, "failed") {
			outcome := "miss"
			if cached {
				outcome = "hit"
			}
			c.QueryCache.WithLabelValues(query, outcome).Inc()
		}
	}
	if kind, ok := payload["kind"].(string); ok {
		c.Failures.WithLabelValues(subject, kind).Inc()
	} else if _, ok := payload["error"]; ok {
		c.Failures.WithLabelValues(subject, "transport").Inc()
	}
	c.logger.Debug("telemetry recorded", zap.String("event", event), zap.String("subject", subject))
}

func subjectOf(payload map[string]any) string {
	for _, key := range []string{"command", "query"} {
		if value, ok := payload[key].(string); ok && value != "" {
			return value
		}
	}
	return "none"
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
