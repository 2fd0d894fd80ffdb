// Package metrics provides Prometheus metrics for the pedalrank service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager manages all Prometheus metrics for the pedalrank service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Rating engine
	votes          *prometheus.CounterVec
	votesDuplicate prometheus.Counter
	upsets         *prometheus.CounterVec
	ratingDelta    prometheus.Histogram
	matchups       *prometheus.CounterVec
	matchupsNone   prometheus.Counter
	poolSpread     prometheus.Gauge
	pedals         prometheus.Gauge
	resets         prometheus.Counter

	// Write coalescer
	coalescerPending  prometheus.Gauge
	coalescerEnqueued prometheus.Counter
	coalescerRequeued prometheus.Counter
	coalescerDropped  prometheus.Counter
	flushes           *prometheus.CounterVec
	flushLatency      prometheus.Histogram
	flushStaleness    prometheus.Histogram

	// Queues and workers
	queueSize     *prometheus.GaugeVec
	queueCapacity *prometheus.GaugeVec
	queueEnqueued *prometheus.CounterVec
	queueRejected *prometheus.CounterVec
	workerCount   prometheus.Gauge

	// Store
	storeOps     *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

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
		namespace:        "pedalrank",
		subsystem:        "engine",
		histogramBuckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.votes = m.counterVec("votes_total", "Total number of votes applied by mode", "mode")
	m.votesDuplicate = m.counter("votes_duplicate_total", "Total number of resubmitted votes that were ignored")
	m.upsets = m.counterVec("upsets_total", "Total number of votes won by the lower-rated pedal", "mode")
	m.ratingDelta = m.histogram("rating_delta", "Rating points transferred per vote",
		[]float64{1, 2, 4, 8, 12, 16, 24, 32, 48, 64})
	m.matchups = m.counterVec("matchups_total", "Total number of matchups served by mode and phase", "mode", "phase")
	m.matchupsNone = m.counter("matchups_unavailable_total", "Total number of matchup requests with fewer than two pedals")
	m.poolSpread = m.gauge("pool_spread", "Rating standard deviation of the last matched pool")
	m.pedals = m.gauge("pedals", "Number of pedals in the catalogue")
	m.resets = m.counter("resets_total", "Total number of full rating resets")

	m.coalescerPending = m.gauge("coalescer_pending_keys", "Keys waiting for their quiet period to end")
	m.coalescerEnqueued = m.counter("coalescer_enqueued_total", "Total number of values handed to the coalescer")
	m.coalescerRequeued = m.counter("coalescer_requeued_total", "Total number of values re-armed after a full queue or failed write")
	m.coalescerDropped = m.counter("coalescer_dropped_total", "Total number of values dropped after repeated write failures")
	m.flushes = m.counterVec("flushes_total", "Total number of store writes by flush workers", "result")
	m.flushLatency = m.histogram("flush_write_latency_milliseconds", "Store write latency of flush workers", m.histogramBuckets)
	m.flushStaleness = m.histogram("flush_staleness_milliseconds", "Time from enqueue to completed write", m.histogramBuckets)

	m.queueSize = m.gaugeVec("queue_size", "Current number of queued flush jobs", "queue")
	m.queueCapacity = m.gaugeVec("queue_capacity", "Capacity of a flush queue", "queue")
	m.queueEnqueued = m.counterVec("queue_enqueued_total", "Total number of jobs accepted by a queue", "queue")
	m.queueRejected = m.counterVec("queue_rejected_total", "Total number of jobs a queue refused", "queue", "reason")
	m.workerCount = m.gauge("worker_count", "Current number of flush workers")

	m.storeOps = m.counterVec("store_operations_total", "Total number of store operations", "backend", "op", "result")
	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store operation latency", "backend", "op")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		"endpoint", "method", "status_code")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint",
		"endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// RecordVote records an applied vote.
func (m *Manager) RecordVote(mode string, delta float64, upset bool) {
	m.votes.WithLabelValues(mode).Inc()
	m.ratingDelta.Observe(delta)
	if upset {
		m.upsets.WithLabelValues(mode).Inc()
	}
}

// RecordMatchup records a served matchup.
func (m *Manager) RecordMatchup(mode, phase string, spread float64) {
	m.matchups.WithLabelValues(mode, phase).Inc()
	m.poolSpread.Set(spread)
}

// RecordFlush records a flush worker write.
func (m *Manager) RecordFlush(write, staleness time.Duration, err error) {
	m.flushes.WithLabelValues(result(err)).Inc()
	m.flushLatency.Observe(ms(write))
	if err == nil {
		m.flushStaleness.Observe(ms(staleness))
	}
}

// RecordStoreOp records a store operation.
func (m *Manager) RecordStoreOp(backend, op string, d time.Duration, err error) {
	m.storeOps.WithLabelValues(backend, op, result(err)).Inc()
	m.storeLatency.WithLabelValues(backend, op).Observe(ms(d))
}

// RecordHTTP records a served HTTP request.
func (m *Manager) RecordHTTP(endpoint, method string, status int, d time.Duration) {
	code := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(endpoint, method, code).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, code).Observe(ms(d))
	if status >= http.StatusBadRequest {
		m.errorRateByEndpoint.WithLabelValues(endpoint, method, http.StatusText(status)).Inc()
	}
}

// Rating engine.

// RecordVote records an applied vote.
func RecordVote(mode string, delta float64, upset bool) { globalManager.RecordVote(mode, delta, upset) }

// RecordDuplicateVote increments the duplicate votes counter.
func RecordDuplicateVote() { globalManager.votesDuplicate.Inc() }

// RecordMatchup records a served matchup and the spread of its pool.
func RecordMatchup(mode, phase string, spread float64) {
	globalManager.RecordMatchup(mode, phase, spread)
}

// RecordNoMatchup increments the unavailable matchup counter.
func RecordNoMatchup() { globalManager.matchupsNone.Inc() }

// UpdatePedalCount sets the catalogue size.
func UpdatePedalCount(n int) { globalManager.pedals.Set(float64(n)) }

// RecordReset increments the reset counter.
func RecordReset() { globalManager.resets.Inc() }

// Write coalescer.

// UpdateCoalescerPending sets the number of keys awaiting flush.
func UpdateCoalescerPending(n int) { globalManager.coalescerPending.Set(float64(n)) }

// RecordCoalescerEnqueued increments the coalescer enqueue counter.
func RecordCoalescerEnqueued() { globalManager.coalescerEnqueued.Inc() }

// RecordCoalescerRequeued increments the re-armed value counter.
func RecordCoalescerRequeued() { globalManager.coalescerRequeued.Inc() }

// RecordCoalescerDropped increments the dropped value counter.
func RecordCoalescerDropped() { globalManager.coalescerDropped.Inc() }

// RecordFlush records a flush worker write.
func RecordFlush(write, staleness time.Duration, err error) {
	globalManager.RecordFlush(write, staleness, err)
}

// Queues and workers.

// UpdateQueueSize sets the current size of a queue.
func UpdateQueueSize(queue string, size int) {
	globalManager.queueSize.WithLabelValues(queue).Set(float64(size))
}

// UpdateQueueCapacity sets the capacity of a queue.
func UpdateQueueCapacity(queue string, capacity int) {
	globalManager.queueCapacity.WithLabelValues(queue).Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter of a queue.
func RecordQueueEnqueue(queue string) { globalManager.queueEnqueued.WithLabelValues(queue).Inc() }

// RecordQueueRejected increments the rejection counter of a queue.
func RecordQueueRejected(queue, reason string) {
	globalManager.queueRejected.WithLabelValues(queue, reason).Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// Store.

// RecordStoreOp records a store operation.
func RecordStoreOp(backend, op string, d time.Duration, err error) {
	globalManager.RecordStoreOp(backend, op, d, err)
}

// HTTP.

// RecordHTTP records a served HTTP request.
func RecordHTTP(endpoint, method string, status int, d time.Duration) {
	globalManager.RecordHTTP(endpoint, method, status, d)
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

// Handler serves the custom registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}
