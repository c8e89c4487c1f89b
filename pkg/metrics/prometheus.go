// Package metrics provides Prometheus metrics for the spike curation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the spike curation service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      map[string]string
	metricPrefix     string
	registry         prometheus.Registerer
	commandKinds     []string

	// Curation Metrics - what the user is doing to the spike set
	commandsApplied   *prometheus.CounterVec
	commandsRejected  *prometheus.CounterVec
	commandsDuplicate prometheus.Counter
	spikesRemoved     prometheus.Counter
	spikesRestored    prometheus.Counter
	editLatency       prometheus.Histogram

	// Spike Set State
	spikesDetected prometheus.Gauge
	spikesLive     prometheus.Gauge
	undoDepth      prometheus.Gauge

	// Pipeline Stage Timings
	detectionLatency  prometheus.Histogram
	projectionLatency prometheus.Histogram

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Command Queue Metrics
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Enhanced Error Metrics - Detailed error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "spikecurator",
		subsystem:        "curation",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		enabled:          true,
		constLabels:      make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// name joins the optional prefix onto a metric name.
func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.constLabels)

	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	histogram := func(name, help string, buckets []float64) prometheus.Histogram {
		return auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
			Buckets: buckets,
		})
	}
	counterVec := func(name, help string, lv ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		}, lv)
	}
	histogramVec := func(name, help string, lv ...string) *prometheus.HistogramVec {
		return auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
			Buckets: m.histogramBuckets,
		}, lv)
	}

	// Curation Metrics
	m.commandsApplied = counterVec("commands_applied_total", "Total number of curation commands applied by kind", "kind")
	m.commandsRejected = counterVec("commands_rejected_total", "Total number of curation commands rejected by kind and reason", "kind", "reason")
	m.commandsDuplicate = counter("commands_duplicate_total", "Total number of replayed command ids ignored")
	m.spikesRemoved = counter("spikes_removed_total", "Total number of spikes removed by cuts")
	m.spikesRestored = counter("spikes_restored_total", "Total number of spikes restored by undo")
	m.seedCommandKinds(m.commandKinds...)
	m.editLatency = histogram("edit_latency_milliseconds", "Latency of one mutating command including reprojection", m.histogramBuckets)

	// Spike Set State
	m.spikesDetected = gauge("spikes_detected", "Number of spikes found by the detector at session start")
	m.spikesLive = gauge("spikes_live", "Number of spikes currently in the curated set")
	m.undoDepth = gauge("undo_depth", "Number of edits on the undo stack")

	// Pipeline Stage Timings
	m.detectionLatency = histogram("detection_latency_milliseconds", "Latency of peak detection and waveform extraction", m.histogramBuckets)
	m.projectionLatency = histogram("projection_latency_milliseconds", "Latency of fitting and applying the feature projection", m.histogramBuckets)

	// HTTP Performance Metrics
	m.httpRequests = counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	// Command Queue Metrics
	m.queueSize = gauge("queue_size", "Current number of commands waiting for the dispatcher")
	m.queueCapacity = gauge("queue_capacity", "Maximum capacity of the command queue")
	m.queueUtilization = gauge("queue_utilization_ratio", "Current utilization ratio of the command queue (0-1)")
	m.queueEnqueueRate = counter("queue_enqueue_total", "Total number of commands enqueued")
	m.queueDequeueRate = counter("queue_dequeue_total", "Total number of commands dequeued")
	m.queueEnqueueErrors = counter("queue_enqueue_errors_total", "Total number of enqueue errors")
	m.queueProcessingLatency = histogram("queue_processing_latency_milliseconds", "Time spent in queue operations", m.histogramBuckets)

	// Enhanced Error Metrics
	m.errorRateByComponent = counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByType = counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = histogramVec("error_latency_milliseconds", "Latency of operations that resulted in errors", "component", "error_type")

	// System Performance Metrics
	m.systemMemoryUsage = gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Enabled reports whether recording is switched on.
func (m *Manager) Enabled() bool { return m.enabled }

func (m *Manager) seedCommandKinds(kinds ...string) {
	for _, k := range kinds {
		m.commandsApplied.WithLabelValues(k)
	}
}

// RegisterCommandKinds pre-creates the applied counter for each kind on the
// global manager. Repeated kinds are harmless.
func RegisterCommandKinds(kinds ...string) {
	globalManager.seedCommandKinds(kinds...)
}

// Curation Metrics Functions.

// RecordCommandApplied increments the applied counter for a command kind.
func RecordCommandApplied(kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.commandsApplied.WithLabelValues(kind).Inc()
}

// RecordCommandRejected increments the rejected counter for a command kind.
func RecordCommandRejected(kind, reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.commandsRejected.WithLabelValues(kind, reason).Inc()
}

// RecordCommandDuplicate increments the replayed command counter.
func RecordCommandDuplicate() {
	if !globalManager.enabled {
		return
	}
	globalManager.commandsDuplicate.Inc()
}

// RecordSpikesRemoved adds n to the removed spikes counter.
func RecordSpikesRemoved(n int) {
	if !globalManager.enabled {
		return
	}
	globalManager.spikesRemoved.Add(float64(n))
}

// RecordSpikesRestored adds n to the restored spikes counter.
func RecordSpikesRestored(n int) {
	if !globalManager.enabled {
		return
	}
	globalManager.spikesRestored.Add(float64(n))
}

// RecordEditLatency records the latency of a mutating command.
func RecordEditLatency(latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.editLatency.Observe(latencyMs)
}

// UpdateSpikesDetected sets the detector's spike count.
func UpdateSpikesDetected(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.spikesDetected.Set(float64(count))
}

// UpdateSpikesLive sets the live spike count.
func UpdateSpikesLive(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.spikesLive.Set(float64(count))
}

// UpdateUndoDepth sets the undo stack depth.
func UpdateUndoDepth(depth int) {
	if !globalManager.enabled {
		return
	}
	globalManager.undoDepth.Set(float64(depth))
}

// RecordDetectionLatency records detection plus extraction latency.
func RecordDetectionLatency(latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.detectionLatency.Observe(latencyMs)
}

// RecordProjectionLatency records feature projection latency.
func RecordProjectionLatency(latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.projectionLatency.Observe(latencyMs)
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	if !globalManager.enabled {
		return
	}
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	if !globalManager.enabled {
		return
	}
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	if !globalManager.enabled {
		return
	}
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Enhanced Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Performance Metrics Functions.

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
