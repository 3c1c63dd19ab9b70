package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bulletin",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bulletin",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bulletin",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	taskEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bulletin",
			Subsystem: "tasks",
			Name:      "events_total",
			Help:      "Task lifecycle events by kind.",
		},
		[]string{"event"},
	)

	completionCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bulletin",
			Subsystem: "completion",
			Name:      "calls_total",
			Help:      "Text generation calls by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	completionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bulletin",
			Subsystem: "completion",
			Name:      "call_duration_seconds",
			Help:      "Duration of text generation calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"operation"},
	)

	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bulletin",
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Scheduled job runs.",
		},
		[]string{"job", "success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		taskEvents,
		completionCalls,
		completionDuration,
		jobRuns,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps next with HTTP metrics collection. It should sit
// directly around the ServeMux so the matched route pattern is visible.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := routeLabel(r)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordTaskEvent counts a task lifecycle event (created, updated, deleted, note_added).
func RecordTaskEvent(event string) {
	taskEvents.WithLabelValues(event).Inc()
}

// RecordCompletion records one text generation attempt. outcome is "ok",
// "error" or "fallback".
func RecordCompletion(operation, outcome string, duration time.Duration) {
	completionCalls.WithLabelValues(operation, outcome).Inc()
	if duration > 0 {
		completionDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// RecordJobRun records a scheduled job execution.
func RecordJobRun(job string, success bool) {
	if job == "" {
		job = "unknown"
	}
	jobRuns.WithLabelValues(job, strconv.FormatBool(success)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// routeLabel prefers the ServeMux pattern, keeping label cardinality bounded.
func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		if _, path, ok := strings.Cut(r.Pattern, " "); ok {
			return path
		}
		return r.Pattern
	}
	return canonicalPath(r.URL.Path)
}

func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) >= 2 && parts[0] == "api" {
		return "/api/" + parts[1]
	}
	return "/" + parts[0]
}
