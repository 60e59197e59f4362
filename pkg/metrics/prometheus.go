// Package metrics provides Prometheus metrics for the taskpulse analytics service.
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

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Ingestion and aggregation
	eventsIngested      *prometheus.CounterVec
	ingestErrors        *prometheus.CounterVec
	aggregationLatency  prometheus.Histogram
	aggregationFailures prometheus.Counter
	snapshotUpserts     prometheus.Counter
	eventsPurged        prometheus.Counter
	eventsStored        prometheus.Gauge
	storeLatency        *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Emitter queue
	emitEnqueued         *prometheus.CounterVec
	emitDropped          *prometheus.CounterVec
	emitSent             prometheus.Counter
	emitFailed           prometheus.Counter
	emitQueueSize        prometheus.Gauge
	emitQueueCapacity    prometheus.Gauge
	emitQueueUtilization prometheus.Gauge

	// Emitter workers
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "taskpulse",
		subsystem:        "analytics",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	// A disabled manager still hands out live collectors, they are just
	// never exposed.
	if !m.enabled {
		m.registry = prometheus.NewRegistry()
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

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.eventsIngested = auto.NewCounterVec(
		m.counterOpts("events_ingested_total", "Total number of events durably appended, by event type"),
		[]string{"event_type"},
	)
	m.ingestErrors = auto.NewCounterVec(
		m.counterOpts("ingest_errors_total", "Total number of rejected or failed ingestions, by kind"),
		[]string{"kind"},
	)
	m.aggregationLatency = auto.NewHistogram(
		m.histogramOpts("aggregation_latency_milliseconds", "Full-history aggregation latency in milliseconds"),
	)
	m.aggregationFailures = auto.NewCounter(
		m.counterOpts("aggregation_failures_total", "Total number of post-append aggregation or snapshot failures"),
	)
	m.snapshotUpserts = auto.NewCounter(
		m.counterOpts("snapshot_upserts_total", "Total number of daily snapshot upserts"),
	)
	m.eventsPurged = auto.NewCounter(
		m.counterOpts("events_purged_total", "Total number of events removed by bulk purge"),
	)
	m.eventsStored = auto.NewGauge(
		m.gaugeOpts("events_stored", "Number of events currently held by the event store"),
	)
	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("store_operation_latency_milliseconds", "Store operation latency in milliseconds, by operation"),
		[]string{"operation"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)

	m.emitEnqueued = auto.NewCounterVec(
		m.counterOpts("emit_enqueued_total", "Total number of emissions accepted by the emitter queue, by event type"),
		[]string{"event_type"},
	)
	m.emitDropped = auto.NewCounterVec(
		m.counterOpts("emit_dropped_total", "Total number of emissions dropped before sending, by reason"),
		[]string{"reason"},
	)
	m.emitSent = auto.NewCounter(
		m.counterOpts("emit_sent_total", "Total number of emissions delivered to the ingestion endpoint"),
	)
	m.emitFailed = auto.NewCounter(
		m.counterOpts("emit_failed_total", "Total number of emissions that failed to send"),
	)
	m.emitQueueSize = auto.NewGauge(
		m.gaugeOpts("emit_queue_size", "Current number of emissions waiting in the queue"),
	)
	m.emitQueueCapacity = auto.NewGauge(
		m.gaugeOpts("emit_queue_capacity", "Maximum number of emissions the queue holds"),
	)
	m.emitQueueUtilization = auto.NewGauge(
		m.gaugeOpts("emit_queue_utilization_ratio", "Emitter queue utilization (size / capacity)"),
	)

	m.workerActiveCount = auto.NewGauge(
		m.gaugeOpts("worker_active_count", "Number of running emitter workers"),
	)
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogramOpts("worker_processing_latency_milliseconds", "Emitter worker send latency in milliseconds"),
	)
	m.workerErrors = auto.NewCounter(
		m.counterOpts("worker_errors_total", "Total number of emitter worker errors"),
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component and error type"),
		[]string{"component", "error_type"},
	)
	m.errorRateByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Total number of errors by type and severity"),
		[]string{"error_type", "severity"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total number of errors by endpoint, method and error type"),
		[]string{"endpoint", "method", "error_type"},
	)
	m.errorLatency = auto.NewHistogramVec(
		m.histogramOpts("error_latency_milliseconds", "Latency of operations that resulted in errors"),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(
		m.gaugeOpts("system_memory_usage_bytes", "Current heap allocation in bytes"),
	)
	m.systemGoroutineCount = auto.NewGauge(
		m.gaugeOpts("system_goroutine_count", "Current number of goroutines"),
	)
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_time_milliseconds", "Average GC pause time in milliseconds"),
	)
}

// Ingestion and aggregation functions.

// RecordEventIngested increments the ingested counter for eventType.
func RecordEventIngested(eventType string) {
	globalManager.eventsIngested.WithLabelValues(eventType).Inc()
}

// RecordIngestError increments the ingest error counter for kind
// (validation, storage).
func RecordIngestError(kind string) {
	globalManager.ingestErrors.WithLabelValues(kind).Inc()
}

// RecordAggregationLatency records how long one aggregation took.
func RecordAggregationLatency(latencyMs float64) {
	globalManager.aggregationLatency.Observe(latencyMs)
}

// RecordAggregationFailure increments the best-effort aggregation failure counter.
func RecordAggregationFailure() {
	globalManager.aggregationFailures.Inc()
}

// RecordSnapshotUpsert increments the snapshot upsert counter.
func RecordSnapshotUpsert() {
	globalManager.snapshotUpserts.Inc()
}

// RecordEventsPurged adds n to the purged events counter.
func RecordEventsPurged(n int64) {
	if n > 0 {
		globalManager.eventsPurged.Add(float64(n))
	}
}

// UpdateEventsStored sets the number of events held by the store.
func UpdateEventsStored(count int) {
	globalManager.eventsStored.Set(float64(count))
}

// RecordStoreLatency records the latency of a store operation.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// HTTP functions.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Emitter functions.

// RecordEmitEnqueued increments the enqueued emission counter.
func RecordEmitEnqueued(eventType string) {
	globalManager.emitEnqueued.WithLabelValues(eventType).Inc()
}

// RecordEmitDropped increments the dropped emission counter for reason.
func RecordEmitDropped(reason string) {
	globalManager.emitDropped.WithLabelValues(reason).Inc()
}

// RecordEmitSent increments the delivered emission counter.
func RecordEmitSent() {
	globalManager.emitSent.Inc()
}

// RecordEmitFailed increments the failed emission counter.
func RecordEmitFailed() {
	globalManager.emitFailed.Inc()
}

// UpdateEmitQueueSize sets the current emitter queue size.
func UpdateEmitQueueSize(size int) {
	globalManager.emitQueueSize.Set(float64(size))
}

// UpdateEmitQueueCapacity sets the emitter queue capacity.
func UpdateEmitQueueCapacity(capacity int) {
	globalManager.emitQueueCapacity.Set(float64(capacity))
}

// UpdateEmitQueueUtilization sets the emitter queue utilization ratio.
func UpdateEmitQueueUtilization(utilization float64) {
	globalManager.emitQueueUtilization.Set(utilization)
}

// Worker functions.

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Error functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
