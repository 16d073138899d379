// Package telemetry defines the boundary to the operational metrics system.
// The engine pushes a fixed set of named gauges once per aggregation
// interval; a Sink decides where those numbers go.
package telemetry

import "sync"

// Gauge names pushed by the cache engine once per aggregation interval.
const (
	MetricHitRate             = "cache_hit_rate"
	MetricCostSavedUSD        = "cache_cost_saved_usd"
	MetricExpensiveCallsSaved = "cache_expensive_calls_saved"
	MetricAvgResponseTimeMs   = "cache_avg_response_time_ms"
	MetricCompressionRatio    = "cache_compression_ratio"
	MetricMemoryTierBytes     = "cache_memory_tier_bytes"
	MetricMemoryTierEntries   = "cache_memory_tier_entries"
	MetricEvictions           = "cache_evictions_total"
)

// Sink accepts (metric name, numeric value) pairs.
type Sink interface {
	Record(name string, value float64)
}

// NopSink drops every metric.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(string, float64) {}

// MemorySink retains the last value per metric. Useful in tests and for
// report endpoints.
type MemorySink struct {
	mu     sync.Mutex
	values map[string]float64
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{values: make(map[string]float64)}
}

// Record implements Sink.
func (m *MemorySink) Record(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
}

// Get returns the last value recorded for name.
func (m *MemorySink) Get(name string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[name]
	return v, ok
}

// Len returns how many distinct metrics have been recorded.
func (m *MemorySink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}
