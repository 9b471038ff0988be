// Package metrics provides Prometheus metrics for the qualtrack service.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace       string
	enabled         bool
	refreshInterval time.Duration
	registry        prometheus.Registerer

	// Engine
	cutoffSeries      *prometheus.CounterVec
	cutoffLatency     prometheus.Histogram
	predictions       *prometheus.CounterVec
	predictionLatency prometheus.Histogram

	// Scraper
	sourceFetches      *prometheus.CounterVec
	sourceFetchLatency *prometheus.HistogramVec

	// Cache
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheWrites *prometheus.CounterVec

	// Refresh jobs
	refreshJobs *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository
	boardEntries           prometheus.Gauge
	repositoryQueryLatency *prometheus.HistogramVec

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Configure rebuilds the global manager on a fresh registry with opts applied. Call it once
// at startup, before any handler or worker records metrics.
func Configure(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(customRegistry)}, opts...)...)
}

// RefreshInterval reports the global manager's gauge sampling interval.
func RefreshInterval() time.Duration {
	if globalManager == nil {
		return defaultRefreshInterval
	}
	return globalManager.refreshInterval
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:       "qualtrack",
		enabled:         true,
		refreshInterval: defaultRefreshInterval,
		registry:        prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// RefreshInterval reports how often gauge updaters should run.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// Enabled reports whether recording is on.
func (m *Manager) Enabled() bool { return m.enabled }

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Name: name, Help: help}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Name: name, Help: help}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Name: name, Help: help, Buckets: buckets}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	latency := []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

	m.cutoffSeries = auto.NewCounterVec(m.counterOpts("cutoff_series_total",
		"Virtual cutoff series computed, by cutoff size"), []string{"size"})
	m.cutoffLatency = auto.NewHistogram(m.histogramOpts("cutoff_latency_milliseconds",
		"Time to compute a virtual cutoff series", latency))
	m.predictions = auto.NewCounterVec(m.counterOpts("predictions_total",
		"Predictions computed, by kind"), []string{"kind"})
	m.predictionLatency = auto.NewHistogram(m.histogramOpts("prediction_latency_milliseconds",
		"Time to compute a cohort prediction", latency))

	m.sourceFetches = auto.NewCounterVec(m.counterOpts("source_fetches_total",
		"Pages fetched from the results site, by page kind and outcome"), []string{"kind", "status"})
	m.sourceFetchLatency = auto.NewHistogramVec(m.histogramOpts("source_fetch_latency_milliseconds",
		"Results site fetch latency", latency), []string{"kind"})

	m.cacheHits = auto.NewCounterVec(m.counterOpts("cache_hits_total",
		"Cache hits by tier"), []string{"tier"})
	m.cacheMisses = auto.NewCounterVec(m.counterOpts("cache_misses_total",
		"Cache misses by tier"), []string{"tier"})
	m.cacheWrites = auto.NewCounterVec(m.counterOpts("cache_writes_total",
		"Cache writes by tier"), []string{"tier"})

	m.refreshJobs = auto.NewCounterVec(m.counterOpts("refresh_jobs_total",
		"Segment refresh jobs by outcome"), []string{"outcome"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", latency), []string{"endpoint", "method", "status_code"})

	m.boardEntries = auto.NewGauge(m.gaugeOpts("board_entries",
		"Swimmers held on the live ranking board"))
	m.repositoryQueryLatency = auto.NewHistogramVec(m.histogramOpts("repository_query_latency_milliseconds",
		"Snapshot store query latency", latency), []string{"query"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current refresh queue backlog"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Refresh queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Refresh queue utilization ratio"))
	m.queueEnqueueRate = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Jobs enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Enqueue failures"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogramOpts("queue_processing_latency_milliseconds",
		"Time from enqueue to processing", latency))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Configured refresh workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Workers processing a job"))
	m.workerIdleCount = auto.NewGauge(m.gaugeOpts("worker_idle_count", "Workers waiting for a job"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds",
		"Refresh job processing latency", latency))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Refresh jobs that failed"))

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Errors by component and type"), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds",
		"GC pause time in milliseconds", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

func on() bool { return globalManager != nil && globalManager.enabled }

// RecordCutoffSeries counts a computed cutoff series and its latency.
func RecordCutoffSeries(size int, latencyMs float64) {
	if !on() {
		return
	}
	globalManager.cutoffSeries.WithLabelValues(fmt.Sprint(size)).Inc()
	globalManager.cutoffLatency.Observe(latencyMs)
}

// RecordPrediction counts a prediction of the given kind (cohort, tracked, drop).
func RecordPrediction(kind string, latencyMs float64) {
	if !on() {
		return
	}
	globalManager.predictions.WithLabelValues(kind).Inc()
	globalManager.predictionLatency.Observe(latencyMs)
}

// RecordSourceFetch records one results-site page fetch.
func RecordSourceFetch(kind, status string, latencyMs float64) {
	if !on() {
		return
	}
	globalManager.sourceFetches.WithLabelValues(kind, status).Inc()
	globalManager.sourceFetchLatency.WithLabelValues(kind).Observe(latencyMs)
}

// RecordCacheHit records a hit on a cache tier.
func RecordCacheHit(tier string) {
	if on() {
		globalManager.cacheHits.WithLabelValues(tier).Inc()
	}
}

// RecordCacheMiss records a miss on a cache tier.
func RecordCacheMiss(tier string) {
	if on() {
		globalManager.cacheMisses.WithLabelValues(tier).Inc()
	}
}

// RecordCacheWrite records a write on a cache tier.
func RecordCacheWrite(tier string) {
	if on() {
		globalManager.cacheWrites.WithLabelValues(tier).Inc()
	}
}

// RecordRefreshJob records a refresh job outcome (enqueued, duplicate, completed, failed, rejected).
func RecordRefreshJob(outcome string) {
	if on() {
		globalManager.refreshJobs.WithLabelValues(outcome).Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if on() {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if on() {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// UpdateBoardEntries sets the number of swimmers on the ranking board.
func UpdateBoardEntries(count int) {
	if on() {
		globalManager.boardEntries.Set(float64(count))
	}
}

// RecordRepositoryQueryLatency records snapshot store query latency.
func RecordRepositoryQueryLatency(query string, latencyMs float64) {
	if on() {
		globalManager.repositoryQueryLatency.WithLabelValues(query).Observe(latencyMs)
	}
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	if on() {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	if on() {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	if on() {
		globalManager.queueUtilization.Set(utilization)
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	if on() {
		globalManager.queueEnqueueRate.Inc()
	}
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	if on() {
		globalManager.queueDequeueRate.Inc()
	}
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	if on() {
		globalManager.queueEnqueueErrors.Inc()
	}
}

// RecordQueueProcessingLatency records time spent waiting in the queue.
func RecordQueueProcessingLatency(latencyMs float64) {
	if on() {
		globalManager.queueProcessingLatency.Observe(latencyMs)
	}
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	if on() {
		globalManager.workerCount.Set(float64(count))
	}
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	if on() {
		globalManager.workerActiveCount.Set(float64(count))
	}
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	if on() {
		globalManager.workerIdleCount.Set(float64(count))
	}
}

// RecordWorkerProcessingLatency records job processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if on() {
		globalManager.workerProcessingLatency.Observe(latencyMs)
	}
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	if on() {
		globalManager.workerErrors.Inc()
	}
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if on() {
		globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	if on() {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	if on() {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	if on() {
		globalManager.systemGCPauseTime.Observe(pauseMs)
	}
}

// Register adds an extra collector to the service registry.
func Register(c prometheus.Collector) error {
	if c == nil {
		return ErrNilCollector
	}
	return customRegistry.Register(c)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
