package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// State-core metrics.
var (
	stateHydrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_hydrations_total",
			Help: "Durable-state hydrations by store and outcome (valid, absent, recovered).",
		},
		[]string{"store", "outcome"},
	)

	entitlementValidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_validations_total",
			Help: "Access-token validation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	notificationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Notifications created by type.",
		},
		[]string{"type"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		stateHydrations, entitlementValidations, notificationsCreated,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHydration records the outcome of a store hydration.
func ObserveHydration(store, outcome string) {
	stateHydrations.WithLabelValues(store, outcome).Inc()
}

// ObserveValidation records the outcome of an entitlement validation call.
func ObserveValidation(outcome string) {
	entitlementValidations.WithLabelValues(outcome).Inc()
}

// ObserveNotification records a created notification by type.
func ObserveNotification(kind string) {
	notificationsCreated.WithLabelValues(kind).Inc()
}

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses resource identifiers into placeholders so metric
// label cardinality stays bounded.
func CanonicalPath(p string) string {
	if p == "" {
		return "/"
	}
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if rest, ok := strings.CutPrefix(p, "/v1/notifications/"); ok && rest != "" {
		switch rest {
		case "stream", "read-all", "unread-count", "purge":
			return p
		}
		if id, found := strings.CutSuffix(rest, "/read"); found && !strings.Contains(id, "/") {
			return "/v1/notifications/:id/read"
		}
		if !strings.Contains(rest, "/") {
			return "/v1/notifications/:id"
		}
		return p
	}
	if rest, ok := strings.CutPrefix(p, "/v1/modules/"); ok {
		if module, found := strings.CutSuffix(rest, "/access"); found && module != "" && !strings.Contains(module, "/") {
			return "/v1/modules/:module/access"
		}
	}
	return p
}

// statusWriter captures the response code for labelling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE responses streaming through the instrumented wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
