package transport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
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

	authDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_requests_total",
			Help: "Authentication middleware decisions by outcome.",
		},
		[]string{"outcome"},
	)

	permissionDenialsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "permission_denials_total",
		Help: "Requests rejected by the permission middleware.",
	})

	tenantDenialsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tenant_access_denials_total",
		Help: "Requests rejected by the tenant isolation guard.",
	})

	auditWritesDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_writes_dropped_total",
		Help: "Audit entries that could not be persisted.",
	})
)

// InitMetrics registers all collectors in the default registry. Call once at
// startup.
func InitMetrics() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		authDecisionsTotal,
		permissionDenialsTotal,
		tenantDenialsTotal,
		auditWritesDroppedTotal,
	)
}

// MetricsHandler exposes the prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func RecordAuthDecision(outcome string) {
	authDecisionsTotal.WithLabelValues(outcome).Inc()
}

func RecordPermissionDenial() {
	permissionDenialsTotal.Inc()
}

func RecordTenantDenial() {
	tenantDenialsTotal.Inc()
}

func RecordAuditDrop() {
	auditWritesDroppedTotal.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// Instrument wraps a handler with request count and latency metrics.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		status := strconv.Itoa(rec.status)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
	})
}
