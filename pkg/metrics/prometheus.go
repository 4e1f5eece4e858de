// Package metrics provides Prometheus metrics for the Juryline scoring service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Review ingestion
	reviewsIngested  prometheus.Counter
	reviewsDuplicate prometheus.Counter
	reviewsRejected  *prometheus.CounterVec

	// Report computation
	reportComputations *prometheus.CounterVec
	reportLatency      *prometheus.HistogramVec
	reportCache        *prometheus.CounterVec
	integrityIssues    *prometheus.CounterVec

	// Assignment planning
	plannerRuns        prometheus.Counter
	assignmentsCreated prometheus.Counter
	underAssigned      prometheus.Counter

	// Notifications
	notifications *prometheus.CounterVec

	// Store
	storeRecords      *prometheus.GaugeVec
	storeQueryLatency prometheus.Histogram
	storeLockWait     prometheus.Histogram

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueDequeue       prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
	errorsByComponent   *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps the default Go collectors out of /healthz.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "juryline",
		subsystem:        "scoring",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.reviewsIngested = m.counter("reviews_ingested_total", "Reviews persisted by the ingestion workers")
	m.reviewsDuplicate = m.counter("reviews_duplicate_total", "Review submissions dropped as duplicates")
	m.reviewsRejected = m.counterVec("reviews_rejected_total", "Review submissions rejected before or during persistence", "reason")

	m.reportComputations = m.counterVec("report_computations_total", "Aggregate report computations by report kind", "report")
	m.reportLatency = m.histogramVec("report_latency_milliseconds", "Aggregate report computation latency in milliseconds", "report")
	m.reportCache = m.counterVec("report_cache_total", "Report cache lookups by outcome", "outcome")
	m.integrityIssues = m.counterVec("integrity_issues_total", "Review data points skipped for integrity problems", "kind")

	m.plannerRuns = m.counter("planner_runs_total", "Assignment planner runs")
	m.assignmentsCreated = m.counter("assignments_created_total", "Judge assignments created by the planner")
	m.underAssigned = m.counter("under_assigned_submissions_total", "Submissions left below the target review count")

	m.notifications = m.counterVec("notifications_total", "Assignment notifications by outcome", "outcome")

	m.storeRecords = m.gaugeVec("store_records", "Records held by the store by kind", "kind")
	m.storeQueryLatency = m.histogram("store_query_latency_milliseconds", "Store snapshot query latency in milliseconds")
	m.storeLockWait = m.histogram("store_event_lock_wait_milliseconds", "Time spent waiting for a per-event write lock")

	m.queueSize = m.gauge("queue_size", "Current size of the review ingestion queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum review ingestion queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (size / capacity)")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Messages enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Messages dequeued")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Enqueue failures by reason", "reason")

	m.workerCount = m.gauge("worker_count", "Active ingestion workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker processing latency in milliseconds")
	m.workerErrors = m.counter("worker_errors_total", "Worker processing failures")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")
	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause in milliseconds")
}

// Review ingestion.

// RecordReviewIngested increments the persisted reviews counter.
func RecordReviewIngested() { globalManager.reviewsIngested.Inc() }

// RecordReviewDuplicate increments the duplicate reviews counter.
func RecordReviewDuplicate() { globalManager.reviewsDuplicate.Inc() }

// RecordReviewRejected counts a rejected review by reason.
func RecordReviewRejected(reason string) { globalManager.reviewsRejected.WithLabelValues(reason).Inc() }

// Reports.

// RecordReportComputation records one computation of the given report and its latency.
func RecordReportComputation(report string, latencyMs float64) {
	globalManager.reportComputations.WithLabelValues(report).Inc()
	globalManager.reportLatency.WithLabelValues(report).Observe(latencyMs)
}

// RecordReportCache counts a cache lookup outcome ("hit" or "miss").
func RecordReportCache(outcome string) { globalManager.reportCache.WithLabelValues(outcome).Inc() }

// RecordIntegrityIssues adds n skipped data points of the given kind.
func RecordIntegrityIssues(kind string, n int) {
	if n <= 0 {
		return
	}
	globalManager.integrityIssues.WithLabelValues(kind).Add(float64(n))
}

// Planner.

// RecordPlannerRun records a planner run with its outcome counts.
func RecordPlannerRun(created, underAssigned int) {
	globalManager.plannerRuns.Inc()
	if created > 0 {
		globalManager.assignmentsCreated.Add(float64(created))
	}
	if underAssigned > 0 {
		globalManager.underAssigned.Add(float64(underAssigned))
	}
}

// RecordNotification counts an assignment notification outcome.
func RecordNotification(outcome string) { globalManager.notifications.WithLabelValues(outcome).Inc() }

// Store.

// UpdateStoreRecords sets the number of records of a kind held by the store.
func UpdateStoreRecords(kind string, count int) {
	globalManager.storeRecords.WithLabelValues(kind).Set(float64(count))
}

// RecordStoreQueryLatency records a snapshot query latency in milliseconds.
func RecordStoreQueryLatency(latencyMs float64) { globalManager.storeQueryLatency.Observe(latencyMs) }

// RecordStoreLockWait records time spent waiting for an event lock.
func RecordStoreLockWait(latencyMs float64) { globalManager.storeLockWait.Observe(latencyMs) }

// Queue.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueue.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeue.Inc() }

// RecordQueueEnqueueError counts an enqueue failure by reason.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// Workers.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error by endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByComponent records an error by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
