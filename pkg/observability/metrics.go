package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Role management metrics
	RoleOperationsTotal *prometheus.CounterVec
	SeededRolesTotal    prometheus.Counter

	// Authorization metrics
	AdminGateTotal              *prometheus.CounterVec
	AuthorizationDecisionsTotal *prometheus.CounterVec

	// Cache metrics
	RoleCacheHitsTotal   prometheus.Counter
	RoleCacheMissesTotal prometheus.Counter

	// Session metrics
	SessionLookupsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rolegate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rolegate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RoleOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rolegate_role_operations_total",
				Help: "Role management operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		SeededRolesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rolegate_seeded_roles_total",
				Help: "Number of default roles inserted by seeding",
			},
		),
		AdminGateTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rolegate_admin_gate_total",
				Help: "Administrator gate decisions",
			},
			[]string{"outcome"},
		),
		AuthorizationDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rolegate_authorization_decisions_total",
				Help: "Resource/action authorization decisions",
			},
			[]string{"resource", "decision"},
		),
		RoleCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rolegate_role_cache_hits_total",
				Help: "Role grant cache hits",
			},
		),
		RoleCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rolegate_role_cache_misses_total",
				Help: "Role grant cache misses",
			},
		),
		SessionLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rolegate_session_lookups_total",
				Help: "Session lookups by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RoleOperationsTotal,
		m.SeededRolesTotal,
		m.AdminGateTotal,
		m.AuthorizationDecisionsTotal,
		m.RoleCacheHitsTotal,
		m.RoleCacheMissesTotal,
		m.SessionLookupsTotal,
	)

	return m
}

// RecordRoleOperation counts a role management call and its outcome
func (m *Metrics) RecordRoleOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.RoleOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordSeeded counts roles inserted by seeding
func (m *Metrics) RecordSeeded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SeededRolesTotal.Add(float64(n))
}

// RecordAdminGate counts an administrator gate decision
func (m *Metrics) RecordAdminGate(outcome string) {
	if m == nil {
		return
	}
	m.AdminGateTotal.WithLabelValues(outcome).Inc()
}

// RecordAuthorization counts an IsAllowed decision
func (m *Metrics) RecordAuthorization(resource string, allowed bool) {
	if m == nil {
		return
	}
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	m.AuthorizationDecisionsTotal.WithLabelValues(resource, decision).Inc()
}

// RecordRoleCache counts a role grant cache lookup
func (m *Metrics) RecordRoleCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.RoleCacheHitsTotal.Inc()
	} else {
		m.RoleCacheMissesTotal.Inc()
	}
}

// RecordSessionLookup counts a session resolution
func (m *Metrics) RecordSessionLookup(result string) {
	if m == nil {
		return
	}
	m.SessionLookupsTotal.WithLabelValues(result).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Requests are labelled by the matched mux route template to bound cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := "unmatched"
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(router *mux.Router, gatherer prometheus.Gatherer) {
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}
