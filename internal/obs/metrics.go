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

// Ledger metrics.
var (
	postingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_postings_total",
			Help: "Journal posting attempts by source type and result.",
		},
		[]string{"source_type", "result"},
	)

	auditWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_write_failures_total",
		Help: "Audit records dropped because the sink failed.",
	})

	periodTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "period_transitions_total",
			Help: "Accounting period lifecycle transitions by target status.",
		},
		[]string{"to"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		postingsTotal, auditWriteFailures, periodTransitions,
	)
}

// CountPosting records a posting attempt outcome (posted, replayed, rejected, error).
func CountPosting(sourceType, result string) {
	postingsTotal.WithLabelValues(sourceType, result).Inc()
}

// CountAuditFailure records a dropped audit record. Audit writes are
// best-effort, so the loss must at least be visible to operators.
func CountAuditFailure() {
	auditWriteFailures.Inc()
}

// CountPeriodTransition records a period status change.
func CountPeriodTransition(to string) {
	periodTransitions.WithLabelValues(to).Inc()
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps an http.Handler with RPS/latency/in-flight measurement.
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

// CanonicalPath collapses resource identifiers so metric label cardinality
// stays bounded.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	collections := map[string]bool{
		"postings": true, "open-items": true, "tenants": true, "periods": true,
	}
	parts := strings.Split(p, "/")
	changed := false
	for i := 1; i < len(parts); i++ {
		if collections[parts[i-1]] && parts[i] != "" && !collections[parts[i]] {
			parts[i] = ":id"
			changed = true
		}
	}
	if !changed {
		return p
	}
	return strings.Join(parts, "/")
}

// statusWriter captures the response code written downstream.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
