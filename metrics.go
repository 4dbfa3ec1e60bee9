package mfsstore

import (
	"sync"
	"time"
)

// Metrics provides observability for projection operations
type Metrics interface {
	// Increment increases a counter by 1
	Increment(name string, tags ...string)

	// Gauge sets an absolute value
	Gauge(name string, value float64, tags ...string)

	// Histogram records a value distribution (latency, size, etc)
	Histogram(name string, value float64, tags ...string)

	// Timing records a duration
	Timing(name string, duration time.Duration, tags ...string)
}

// NoOpMetrics is a metrics collector that does nothing
type NoOpMetrics struct{}

func (m *NoOpMetrics) Increment(name string, tags ...string)                      {}
func (m *NoOpMetrics) Gauge(name string, value float64, tags ...string)           {}
func (m *NoOpMetrics) Histogram(name string, value float64, tags ...string)       {}
func (m *NoOpMetrics) Timing(name string, duration time.Duration, tags ...string) {}

// InMemoryMetrics stores metrics in memory for testing.
// Safe for use from the store's writer goroutine and test goroutines at once.
type InMemoryMetrics struct {
	mu         sync.Mutex
	Counters   map[string]int
	Gauges     map[string]float64
	Histograms map[string][]float64
	Timings    map[string][]time.Duration
}

func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		Counters:   make(map[string]int),
		Gauges:     make(map[string]float64),
		Histograms: make(map[string][]float64),
		Timings:    make(map[string][]time.Duration),
	}
}

func (m *InMemoryMetrics) Increment(name string, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counters[name]++
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gauges[name] = value
}

func (m *InMemoryMetrics) Histogram(name string, value float64, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Histograms[name] = append(m.Histograms[name], value)
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Timings[name] = append(m.Timings[name], duration)
}

// Counter returns the current value of a counter
func (m *InMemoryMetrics) Counter(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Counters[name]
}

// GaugeValue returns the last value set for a gauge
func (m *InMemoryMetrics) GaugeValue(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Gauges[name]
}

// Common metric names
const (
	MetricRecordGet         = "mfsstore.record.get"
	MetricRecordPut         = "mfsstore.record.put"
	MetricRecordPutDuration = "mfsstore.record.put.duration"
	MetricRecordRemove      = "mfsstore.record.remove"
	MetricRecordErrors      = "mfsstore.record.errors"
	MetricCacheHits         = "mfsstore.cache.hits"
	MetricCacheMisses       = "mfsstore.cache.misses"

	MetricIndexUpdate        = "mfsstore.index.update"
	MetricIndexFlush         = "mfsstore.index.flush"
	MetricIndexFlushDuration = "mfsstore.index.flush.duration"
	MetricIndexFlushBytes    = "mfsstore.index.flush.bytes"
	MetricIndexErrors        = "mfsstore.index.errors"

	MetricReplayReceived = "mfsstore.replay.received"
	MetricReplaySkipped  = "mfsstore.replay.skipped"
	MetricReplayApplied  = "mfsstore.replay.applied"
	MetricReplayIgnored  = "mfsstore.replay.ignored"
	MetricReplayErrors   = "mfsstore.replay.errors"
	MetricReplayDuration = "mfsstore.replay.duration"

	MetricHandledSize = "mfsstore.handled.size"
	MetricHandledSave = "mfsstore.handled.save"

	MetricQueryDuration = "mfsstore.query.duration"
	MetricQueryResults  = "mfsstore.query.results"
)
