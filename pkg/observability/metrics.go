package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the console.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Sign-in pipeline metrics
	SignInsTotal       *prometheus.CounterVec
	RoleLookupsTotal   *prometheus.CounterVec
	RoleLookupDuration prometheus.Histogram

	// Authorization metrics
	GuardRedirectsTotal     *prometheus.CounterVec
	PermissionDenialsTotal  *prometheus.CounterVec
	SessionsActive          prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "console_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		SignInsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_sign_ins_total",
				Help: "Total sign-in attempts by result (success, role_less, failure)",
			},
			[]string{"result"},
		),
		RoleLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_role_lookups_total",
				Help: "Total upstream role lookups by result",
			},
			[]string{"result"},
		),
		RoleLookupDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "console_role_lookup_duration_seconds",
				Help:    "Upstream role lookup duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		GuardRedirectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_guard_redirects_total",
				Help: "Route guard redirects by reason (unauthenticated, under_privileged)",
			},
			[]string{"reason"},
		),
		PermissionDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_permission_denials_total",
				Help: "Permission wrapper denials by operation",
			},
			[]string{"operation"},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "console_sessions_active",
				Help: "Currently active sessions",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SignInsTotal,
		m.RoleLookupsTotal,
		m.RoleLookupDuration,
		m.GuardRedirectsTotal,
		m.PermissionDenialsTotal,
		m.SessionsActive,
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HTTPMiddleware instruments HTTP requests with count and duration metrics.
// The path label uses the route template, not the raw URL, to keep
// cardinality bounded; callers pass mux-matched handlers through this after
// routing.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		path := routeTemplate(r)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// statusRecorder captures the response status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routeTemplate(r *http.Request) string {
	// Collapse asset paths so every static file doesn't mint a new series.
	path := r.URL.Path
	for _, prefix := range []string{"/_next/static/", "/_next/image/"} {
		if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
			return prefix + "*"
		}
	}
	return path
}
