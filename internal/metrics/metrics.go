package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "erpai",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by method, path, and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "erpai",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	ActionExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "erpai",
		Name:      "action_executions_total",
		Help:      "Total action executions by action type and outcome.",
	}, []string{"action_type", "outcome"})

	ActionExecutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "erpai",
		Name:      "action_execution_duration_seconds",
		Help:      "Action handler latency in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"action_type"})

	SafetyGateRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "erpai",
		Name:      "safety_gate_rejections_total",
		Help:      "Executions rejected by the per-user daily quota gate.",
	})

	ReportGenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "erpai",
		Name:      "report_generations_total",
		Help:      "Total report generations by outcome.",
	}, []string{"outcome"})

	NarrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "erpai",
		Name:      "narrations_total",
		Help:      "Narration hook calls by outcome (ok, error, skipped).",
	}, []string{"outcome"})

	ScheduledReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "erpai",
		Name:      "scheduled_reports_total",
		Help:      "Reports triggered by the cron scheduler, by outcome.",
	}, []string{"outcome"})
)

// Handler returns an http.Handler that serves the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware wraps an http.Handler to record request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start).Seconds()

		path := normalizePath(r.URL.Path)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath buckets URL paths to avoid high cardinality.
// It keeps the first two path segments and drops the rest.
func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	switch p {
	case "/healthz", "/readyz", "/metrics":
		return p
	}
	segments := 0
	for i := 1; i < len(p); i++ {
		if p[i] == '/' {
			segments++
			if segments >= 2 {
				return p[:i]
			}
		}
	}
	return p
}
