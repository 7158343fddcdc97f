package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry for HTTP, cache and scheduling instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	reservations    *prometheus.CounterVec
	sessionsClosed  *prometheus.CounterVec
	progressRuns    prometheus.Histogram
	webhookResults  *prometheus.CounterVec
	maintenanceRuns *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by result",
		}, []string{"result"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache reads",
			Buckets: prometheus.DefBuckets,
		}),
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "academy_reservations_total",
			Help: "Reservation attempts by outcome",
		}, []string{"outcome"}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "academy_session_closures_total",
			Help: "Sessions closed by path",
		}, []string{"path"}),
		progressRuns: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "academy_progress_recompute_seconds",
			Help:    "Duration of student progress recomputation",
			Buckets: prometheus.DefBuckets,
		}),
		webhookResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "academy_placement_webhook_total",
			Help: "LMS placement webhook calls by result",
		}, []string{"result"}),
		maintenanceRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "academy_maintenance_runs_total",
			Help: "Maintenance task executions by task and status",
		}, []string{"task", "status"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(m.requestDuration, m.requestTotal, m.cacheLookups, m.cacheLatency, m.reservations,
		m.sessionsClosed, m.progressRuns, m.webhookResults, m.maintenanceRuns, goroutines)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	label := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, label).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, label).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// RecordReservation counts a reservation outcome such as reserved, busy or rejected.
func (m *MetricsService) RecordReservation(outcome string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(outcome).Inc()
}

// RecordSessionFinished counts a closed session by normal or novelty path.
func (m *MetricsService) RecordSessionFinished(path string) {
	if m == nil {
		return
	}
	m.sessionsClosed.WithLabelValues(path).Inc()
}

// ObserveProgressRecompute records one recomputation.
func (m *MetricsService) ObserveProgressRecompute(duration time.Duration) {
	if m == nil {
		return
	}
	m.progressRuns.Observe(duration.Seconds())
}

// RecordWebhook counts a placement webhook result.
func (m *MetricsService) RecordWebhook(result string) {
	if m == nil {
		return
	}
	m.webhookResults.WithLabelValues(result).Inc()
}

// RecordMaintenance counts a maintenance task run.
func (m *MetricsService) RecordMaintenance(task string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.maintenanceRuns.WithLabelValues(task, status).Inc()
}
