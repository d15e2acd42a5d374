package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthzDecisionsTotal *prometheus.CounterVec
	GrantFetchDuration  *prometheus.HistogramVec
	GrantFetchErrors    *prometheus.CounterVec

	// Access-list metrics
	ACLCacheHitsTotal   *prometheus.CounterVec
	ACLCacheMissesTotal *prometheus.CounterVec
	ACLSyncTotal        *prometheus.CounterVec
	ACLSyncDuration     *prometheus.HistogramVec

	// Upstream metrics
	UpstreamRequestsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permgw_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "permgw_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permgw_authz_decisions_total",
				Help: "Total number of authorization decisions",
			},
			[]string{"resource", "action", "decision", "reason"},
		),
		GrantFetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "permgw_grant_fetch_duration_seconds",
				Help:    "Grant matrix fetch duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"source"},
		),
		GrantFetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permgw_grant_fetch_errors_total",
				Help: "Total number of failed grant matrix fetches",
			},
			[]string{"source"},
		),

		ACLCacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permgw_acl_cache_hits_total",
				Help: "Total number of access-list cache hits",
			},
			[]string{"provider"},
		),
		ACLCacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permgw_acl_cache_misses_total",
				Help: "Total number of access-list cache misses",
			},
			[]string{"provider"},
		),
		ACLSyncTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permgw_acl_sync_total",
				Help: "Total number of access-list synchronizations",
			},
			[]string{"provider", "status"},
		),
		ACLSyncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "permgw_acl_sync_duration_seconds",
				Help:    "Access-list synchronization duration in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider"},
		),

		UpstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permgw_upstream_requests_total",
				Help: "Total number of upstream service requests",
			},
			[]string{"service", "status"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "permgw_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "permgw_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzDecisionsTotal,
		m.GrantFetchDuration,
		m.GrantFetchErrors,
		m.ACLCacheHitsTotal,
		m.ACLCacheMissesTotal,
		m.ACLSyncTotal,
		m.ACLSyncDuration,
		m.UpstreamRequestsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// The recorders below are nil-safe so collaborators can hold a *Metrics
// unconditionally; a nil receiver means metrics are disabled.

// RecordDecision counts an authorization decision. The reason is empty for
// allows and names the denial class otherwise.
func (m *Metrics) RecordDecision(resource, action string, allowed bool, reason string) {
	if m == nil {
		return
	}
	decision := "allow"
	if !allowed {
		decision = "deny"
	}
	m.AuthzDecisionsTotal.WithLabelValues(resource, action, decision, reason).Inc()
}

// RecordGrantFetch observes one grant-matrix fetch from the named source.
func (m *Metrics) RecordGrantFetch(source string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.GrantFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
	if err != nil {
		m.GrantFetchErrors.WithLabelValues(source).Inc()
	}
}

// RecordCacheHit counts an access-list cache hit.
func (m *Metrics) RecordCacheHit(provider string) {
	if m == nil {
		return
	}
	m.ACLCacheHitsTotal.WithLabelValues(provider).Inc()
}

// RecordCacheMiss counts an access-list cache miss.
func (m *Metrics) RecordCacheMiss(provider string) {
	if m == nil {
		return
	}
	m.ACLCacheMissesTotal.WithLabelValues(provider).Inc()
}

// RecordSync observes one access-list synchronization attempt.
func (m *Metrics) RecordSync(provider string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.ACLSyncTotal.WithLabelValues(provider, status).Inc()
	m.ACLSyncDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordUpstreamRequest counts one request to an upstream service.
func (m *Metrics) RecordUpstreamRequest(service, status string) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(service, status).Inc()
}

// UpdateDBStats publishes connection pool gauges from database/sql stats.
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
