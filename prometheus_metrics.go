package mfsstore

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const promNamespace = "mfsstore"

// PrometheusMetrics implements the Metrics interface using Prometheus.
// Queries record metrics from many goroutines, so the vectors are guarded.
type PrometheusMetrics struct {
	mu         sync.RWMutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	registry   prometheus.Registerer
}

// NewPrometheusMetrics creates a new Prometheus metrics instance.
// If registry is nil, the default Prometheus registerer is used.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	pm := &PrometheusMetrics{
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		registry:   registry,
	}

	pm.registerDefaultMetrics()
	return pm
}

func (p *PrometheusMetrics) counter(metric, subsystem, name, help string, labels ...string) {
	p.counters[metric] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: promNamespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func (p *PrometheusMetrics) histogram(metric, subsystem, name, help string, buckets []float64, labels ...string) {
	p.histograms[metric] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: promNamespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

// registerDefaultMetrics registers all standard projection metrics.
// Label sets must match the tags passed at the call sites.
func (p *PrometheusMetrics) registerDefaultMetrics() {
	// Records
	p.counter(MetricRecordGet, "record", "gets_total", "Record reads served")
	p.counter(MetricRecordPut, "record", "puts_total", "Records written")
	p.counter(MetricRecordRemove, "record", "removes_total", "Records removed")
	p.counter(MetricRecordErrors, "record", "errors_total", "Record store failures", "operation")
	p.counter(MetricCacheHits, "cache", "hits_total", "Record cache hits")
	p.counter(MetricCacheMisses, "cache", "misses_total", "Record cache misses")
	p.histogram(MetricRecordPutDuration, "record", "put_duration_seconds",
		"Record write duration including index maintenance", prometheus.DefBuckets)

	// Indexes
	p.counter(MetricIndexUpdate, "index", "updates_total", "Index entries changed", "column")
	p.counter(MetricIndexFlush, "index", "flushes_total", "Full index set flushes")
	p.counter(MetricIndexErrors, "index", "errors_total", "Index flush failures")
	p.histogram(MetricIndexFlushDuration, "index", "flush_duration_seconds",
		"Index set flush duration", prometheus.DefBuckets)
	p.histogram(MetricIndexFlushBytes, "index", "flush_bytes",
		"Serialized index set size", prometheus.ExponentialBuckets(256, 4, 10))

	// Replay
	p.counter(MetricReplayReceived, "replay", "received_total", "Log entries received")
	p.counter(MetricReplaySkipped, "replay", "skipped_total", "Log entries skipped as already handled")
	p.counter(MetricReplayApplied, "replay", "applied_total", "Log entries applied")
	p.counter(MetricReplayIgnored, "replay", "ignored_total", "Log entries with an unknown op")
	p.counter(MetricReplayErrors, "replay", "errors_total", "Replay batches that failed")
	p.histogram(MetricReplayDuration, "replay", "duration_seconds",
		"Replay batch duration", prometheus.DefBuckets)

	// Handled set
	p.counter(MetricHandledSave, "handled", "saves_total", "Handled set flushes")
	p.gauges[MetricHandledSize] = promauto.With(p.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: promNamespace,
			Subsystem: "handled",
			Name:      "size",
			Help:      "Number of handled operation identities",
		},
		[]string{},
	)

	// Queries
	p.histogram(MetricQueryDuration, "query", "duration_seconds", "Index query duration",
		[]float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1}, "kind")
	p.histogram(MetricQueryResults, "query", "results", "Keys returned by index queries",
		[]float64{0, 1, 5, 10, 25, 50, 100, 250, 1000}, "kind")
}

// Increment increments a Prometheus counter
func (p *PrometheusMetrics) Increment(name string, tags ...string) {
	p.mu.RLock()
	counter, ok := p.counters[name]
	p.mu.RUnlock()
	if !ok {
		p.mu.Lock()
		if counter, ok = p.counters[name]; !ok {
			counter = promauto.With(p.registry).NewCounterVec(
				prometheus.CounterOpts{
					Namespace: promNamespace,
					Name:      promName(name),
					Help:      "Dynamic counter: " + name,
				},
				p.extractLabels(tags),
			)
			p.counters[name] = counter
		}
		p.mu.Unlock()
	}

	counter.With(p.extractLabelValues(tags)).Inc()
}

// Gauge sets a Prometheus gauge value
func (p *PrometheusMetrics) Gauge(name string, value float64, tags ...string) {
	p.mu.RLock()
	gauge, ok := p.gauges[name]
	p.mu.RUnlock()
	if !ok {
		p.mu.Lock()
		if gauge, ok = p.gauges[name]; !ok {
			gauge = promauto.With(p.registry).NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: promNamespace,
					Name:      promName(name),
					Help:      "Dynamic gauge: " + name,
				},
				p.extractLabels(tags),
			)
			p.gauges[name] = gauge
		}
		p.mu.Unlock()
	}

	gauge.With(p.extractLabelValues(tags)).Set(value)
}

// Histogram records a value in a Prometheus histogram
func (p *PrometheusMetrics) Histogram(name string, value float64, tags ...string) {
	p.mu.RLock()
	histogram, ok := p.histograms[name]
	p.mu.RUnlock()
	if !ok {
		p.mu.Lock()
		if histogram, ok = p.histograms[name]; !ok {
			histogram = promauto.With(p.registry).NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: promNamespace,
					Name:      promName(name),
					Help:      "Dynamic histogram: " + name,
					Buckets:   prometheus.DefBuckets,
				},
				p.extractLabels(tags),
			)
			p.histograms[name] = histogram
		}
		p.mu.Unlock()
	}

	histogram.With(p.extractLabelValues(tags)).Observe(value)
}

// Timing records a duration in a Prometheus histogram
func (p *PrometheusMetrics) Timing(name string, duration time.Duration, tags ...string) {
	p.Histogram(name, duration.Seconds(), tags...)
}

// promName turns "mfsstore.replay.lag" into "replay_lag"
func promName(name string) string {
	name = strings.TrimPrefix(name, promNamespace+".")
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

// extractLabels extracts label names from tags (every even index)
func (p *PrometheusMetrics) extractLabels(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	labels := make([]string, 0, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		labels = append(labels, tags[i])
	}
	return labels
}

// extractLabelValues creates a label map from tags (key-value pairs)
func (p *PrometheusMetrics) extractLabelValues(tags []string) prometheus.Labels {
	labels := make(prometheus.Labels, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		labels[tags[i]] = tags[i+1]
	}
	return labels
}

// Registry returns the registerer the metrics were created on
func (p *PrometheusMetrics) Registry() prometheus.Registerer {
	return p.registry
}
