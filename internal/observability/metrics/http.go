package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
}

func newHTTPServerMetrics(service string) *HTTPServerMetrics {
	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prashnly",
			Subsystem: "ops_http",
			Name:      "requests_total",
			Help:      "Total ops HTTP requests processed.",
		},
		[]string{"service", "path", "method", "code"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "prashnly",
			Subsystem: "ops_http",
			Name:      "request_duration_seconds",
			Help:      "Ops HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "prashnly",
			Subsystem: "ops_http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight ops HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	return &HTTPServerMetrics{
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
	}
}

func (m *HTTPServerMetrics) register(registry *prometheus.Registry) {
	registry.MustRegister(m.requestTotal, m.requestDuration, m.requestInFlight)
}

// Middleware instruments next per ops route. Handlers are curried once per
// route so unknown paths share the "other" series.
func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	routes := make(map[string]http.Handler, len(opsRoutes)+1)
	for _, path := range append(opsRoutes, otherRoute) {
		labels := prometheus.Labels{"service": service, "path": path}
		routes[path] = promhttp.InstrumentHandlerInFlight(m.requestInFlight,
			promhttp.InstrumentHandlerDuration(m.requestDuration.MustCurryWith(labels),
				promhttp.InstrumentHandlerCounter(m.requestTotal.MustCurryWith(labels), next),
			),
		)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		routes[normalizePath(r.URL.Path)].ServeHTTP(w, r)
	})
}

const otherRoute = "other"

var opsRoutes = []string{"/healthz", "/readyz", "/metrics"}

func normalizePath(path string) string {
	for _, route := range opsRoutes {
		if path == route {
			return route
		}
	}
	return otherRoute
}
