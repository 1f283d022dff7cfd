package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	LoginAttemptsTotal *prometheus.CounterVec
	AccountLockouts    prometheus.Counter

	AuthzDecisionsTotal  *prometheus.CounterVec
	PermissionGrantTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all collectors on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoice_admin_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "invoice_admin_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoice_admin_login_attempts_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		AccountLockouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "invoice_admin_account_lockouts_total",
				Help: "Number of times an account was locked after repeated failures",
			},
		),
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoice_admin_authz_decisions_total",
				Help: "Authorization gate decisions",
			},
			[]string{"permission", "decision"},
		),
		PermissionGrantTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoice_admin_permission_changes_total",
				Help: "Permission grant and revoke operations",
			},
			[]string{"tier", "operation", "status"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginAttemptsTotal,
		m.AccountLockouts,
		m.AuthzDecisionsTotal,
		m.PermissionGrantTotal,
	)

	return m
}

// NewNopMetrics returns collectors bound to a private registry, for tests and disabled metrics.
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

func (m *Metrics) RecordLogin(outcome string) {
	m.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordLockout() {
	m.AccountLockouts.Inc()
}

func (m *Metrics) RecordDecision(permission string, allowed bool) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	m.AuthzDecisionsTotal.WithLabelValues(permission, decision).Inc()
}

func (m *Metrics) RecordPermissionChange(tier, operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.PermissionGrantTotal.WithLabelValues(tier, operation, status).Inc()
}

// Handler exposes the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latencies. pathFn maps a request to a low-cardinality label.
func (m *Metrics) Middleware(pathFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			path := pathFn(r)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
