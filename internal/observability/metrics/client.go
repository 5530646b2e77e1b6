package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ClientMetrics counts what the client does against the backend and what
// the views do with the answers.
type ClientMetrics struct {
	service  string
	registry *prometheus.Registry

	apiCallsTotal      *prometheus.CounterVec
	apiCallDuration    *prometheus.HistogramVec
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec
	revertsTotal       *prometheus.CounterVec
	uploadProgress     prometheus.Histogram
	uploadOutcomes     *prometheus.CounterVec

	http *HTTPServerMetrics
}

func NewClientMetrics(service string) *ClientMetrics {
	registry := prometheus.NewRegistry()

	apiCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prashnly",
			Subsystem: "api",
			Name:      "calls_total",
			Help:      "Total backend API calls by operation and status.",
		},
		[]string{"service", "operation", "status"},
	)
	apiCallDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "prashnly",
			Subsystem: "api",
			Name:      "call_duration_seconds",
			Help:      "Backend API call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "operation"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "prashnly",
			Subsystem: "api",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per operation: 0 closed, 1 half-open, 2 open.",
		},
		[]string{"service", "operation"},
	)
	breakerTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prashnly",
			Subsystem: "api",
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state changes.",
		},
		[]string{"service", "operation", "to"},
	)
	revertsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prashnly",
			Subsystem: "view",
			Name:      "optimistic_reverts_total",
			Help:      "Optimistic updates rolled back after a failed request.",
		},
		[]string{"service", "operation"},
	)
	uploadProgress := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "prashnly",
			Subsystem:   "upload",
			Name:        "progress_percent",
			Help:        "Progress values reported for uploaded documents.",
			Buckets:     []float64{0, 25, 50, 75, 99, 100},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	uploadOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prashnly",
			Subsystem: "upload",
			Name:      "outcomes_total",
			Help:      "Finished uploads by outcome.",
		},
		[]string{"service", "outcome"},
	)

	httpMetrics := newHTTPServerMetrics(service)
	registry.MustRegister(
		apiCallsTotal,
		apiCallDuration,
		breakerState,
		breakerTransitions,
		revertsTotal,
		uploadProgress,
		uploadOutcomes,
	)
	httpMetrics.register(registry)

	return &ClientMetrics{
		service:            service,
		registry:           registry,
		apiCallsTotal:      apiCallsTotal,
		apiCallDuration:    apiCallDuration,
		breakerState:       breakerState,
		breakerTransitions: breakerTransitions,
		revertsTotal:       revertsTotal,
		uploadProgress:     uploadProgress,
		uploadOutcomes:     uploadOutcomes,
		http:               httpMetrics,
	}
}

func (m *ClientMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ClientMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTP returns the metrics of the ops server, registered in the same
// registry.
func (m *ClientMetrics) HTTP() *HTTPServerMetrics {
	return m.http
}

func (m *ClientMetrics) ObserveAPICall(operation, status string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.apiCallsTotal.WithLabelValues(m.service, operation, status).Inc()
	m.apiCallDuration.WithLabelValues(m.service, operation).Observe(duration.Seconds())
}

// BreakerStateChanged matches resilience.StateListener.
func (m *ClientMetrics) BreakerStateChanged(operation, _, to string) {
	m.breakerTransitions.WithLabelValues(m.service, operation, to).Inc()
	m.breakerState.WithLabelValues(m.service, operation).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

func (m *ClientMetrics) RecordRevert(operation string) {
	m.revertsTotal.WithLabelValues(m.service, operation).Inc()
}

func (m *ClientMetrics) RecordUploadProgress(progress int) {
	m.uploadProgress.Observe(float64(progress))
}

func (m *ClientMetrics) RecordUploadOutcome(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.uploadOutcomes.WithLabelValues(m.service, outcome).Inc()
}
