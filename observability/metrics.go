/*
Package observability exposes Prometheus metrics for the HTTP API, the
recalculation engine and background jobs.

PURPOSE:
  One registry per process. The HTTP server mounts Handler at /metrics;
  the API, scheduler and job worker record into the same Metrics value.

SERIES:
  reqengine_http_requests_total{route,code}
  reqengine_http_request_duration_seconds{route}
  reqengine_line_items_recalculated_total{trigger}
  reqengine_validation_errors_total{column}
  reqengine_template_cycles_total
  reqengine_job_runs_total{job,status}
  reqengine_job_duration_seconds{job}

A nil *Metrics is valid everywhere and records nothing.
*/
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the process.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	recalculated    *prometheus.CounterVec
	validation      *prometheus.CounterVec
	cycles          prometheus.Counter
	jobRuns         *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
}

// NewMetrics initialises the registry and every collector.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reqengine_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reqengine_http_request_duration_seconds",
			Help:    "HTTP request duration by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		recalculated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reqengine_line_items_recalculated_total",
			Help: "Line items whose calculated columns were recomputed.",
		}, []string{"trigger"}),
		validation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reqengine_validation_errors_total",
			Help: "Line-item and template validation errors by column.",
		}, []string{"column"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reqengine_template_cycles_total",
			Help: "Templates rejected for a circular column dependency.",
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reqengine_job_runs_total",
			Help: "Background job runs by job and outcome.",
		}, []string{"job", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reqengine_job_duration_seconds",
			Help:    "Background job duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
	registry.MustRegister(m.requestsTotal, m.requestDuration, m.recalculated,
		m.validation, m.cycles, m.jobRuns, m.jobDuration)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler returns the http.Handler for /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registerer exposes the registry for extra collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// Gatherer exposes the registry for tests and exporters.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.DefaultGatherer
	}
	return m.registry
}

// =============================================================================
// HTTP
// =============================================================================

// Middleware records count and duration of every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

// =============================================================================
// ENGINE
// =============================================================================

// Recalculated counts n recomputed line items for trigger (edit, template, scheduler, job).
func (m *Metrics) Recalculated(trigger string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recalculated.WithLabelValues(trigger).Add(float64(n))
}

// ValidationError counts one validation error on column.
func (m *Metrics) ValidationError(column string) {
	if m == nil {
		return
	}
	m.validation.WithLabelValues(column).Inc()
}

// CycleDetected counts a template rejected for a dependency cycle.
func (m *Metrics) CycleDetected() {
	if m == nil {
		return
	}
	m.cycles.Inc()
}

// =============================================================================
// JOBS
// =============================================================================

// Tracker instruments a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts a tracker for job.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records the outcome and returns err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	t.metrics.jobRuns.WithLabelValues(t.job, status).Inc()
	t.metrics.jobDuration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}
