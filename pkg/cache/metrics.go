package cache

import (
	"sync"
	"time"

	"github.com/roamly/storycache/pkg/types"
)

// responseTimeAlpha is the smoothing factor of the response time moving
// average. Each sample contributes 10%, the running average keeps 90%.
const responseTimeAlpha = 0.1

// Metrics accumulates operation counters across both tiers. All methods are
// safe for concurrent use.
type Metrics struct {
	mu sync.Mutex

	hits                 uint64
	misses               uint64
	expensiveCallsSaved  uint64
	costSavedUSD         float64
	avgResponseTimeMs    float64
	hasResponseSample    bool
	lastCompressionRatio float64
}

// NewMetrics returns an empty counter set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordHit counts a successful read from either tier.
func (m *Metrics) RecordHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits++
}

// RecordMiss counts a read that found no live entry in any tier.
func (m *Metrics) RecordMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses++
}

// RecordResponseTime folds one sample into the exponential moving average.
// The first sample seeds the average directly.
func (m *Metrics) RecordResponseTime(ms float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasResponseSample {
		m.avgResponseTimeMs = ms
		m.hasResponseSample = true
		return
	}
	m.avgResponseTimeMs = (1-responseTimeAlpha)*m.avgResponseTimeMs + responseTimeAlpha*ms
}

// RecordSavings accounts one avoided regeneration of an expensive value.
func (m *Metrics) RecordSavings(costUSD float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expensiveCallsSaved++
	m.costSavedUSD += costUSD
}

// RecordCompressionRatio stores the most recent observed ratio.
func (m *Metrics) RecordCompressionRatio(ratio float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCompressionRatio = ratio
}

// HitRate returns hits / (hits + misses), or zero before any read.
func (m *Metrics) HitRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hitRateLocked()
}

func (m *Metrics) hitRateLocked() float64 {
	total := m.hits + m.misses
	if total == 0 {
		return 0
	}
	return float64(m.hits) / float64(total)
}

// Snapshot returns a point-in-time copy of the counters. Evictions are owned
// by the memory tier and filled in by the caller.
func (m *Metrics) Snapshot() types.MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return types.MetricsSnapshot{
		Hits:                 m.hits,
		Misses:               m.misses,
		HitRate:              m.hitRateLocked(),
		ExpensiveCallsSaved:  m.expensiveCallsSaved,
		CostSavedUSD:         m.costSavedUSD,
		AvgResponseTimeMs:    m.avgResponseTimeMs,
		LastCompressionRatio: m.lastCompressionRatio,
		Taken:                time.Now(),
	}
}
