package cache

import (
	"context"
	"time"

	"github.com/roamly/storycache/pkg/errors"
	"github.com/roamly/storycache/pkg/telemetry"
)

// Start launches the background metrics and warming loops. It is an error to
// start an engine twice without stopping it in between.
func (c *MultiTierCache) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return errors.NewError(errors.ErrCodeAlreadyStarted, "cache engine already started").
			WithComponent("cache")
	}

	c.stopCh = make(chan struct{})
	c.started = true
	// A restarted engine regains the remote tier.
	c.pool.Resume()

	c.wg.Add(2)
	go c.metricsLoop(ctx, c.stopCh)
	go c.warmLoop(ctx, c.stopCh)

	c.log.Info("cache engine started", map[string]interface{}{
		"max_entries":      c.config.MaxEntries,
		"max_memory_mb":    c.config.MaxMemoryMB,
		"remote_tier":      c.remote != nil,
		"remote_workers":   c.config.RemoteWorkers,
		"metrics_interval": c.config.MetricsInterval.String(),
		"warm_interval":    c.config.WarmInterval.String(),
	})
	return nil
}

// Stop halts the background loops and drains in-flight remote work. After
// Stop the engine still serves the memory tier; remote operations fail fast
// and are treated as tier-down until the engine is started again.
func (c *MultiTierCache) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	close(c.stopCh)
	c.mu.Unlock()

	c.wg.Wait()
	c.pool.Stop()
	c.log.Info("cache engine stopped")
}

func (c *MultiTierCache) metricsLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.MetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.publishMetrics()
		}
	}
}

func (c *MultiTierCache) warmLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.WarmInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			patterns := c.registeredWarmups()
			if len(patterns) > 0 {
				c.WarmCache(ctx, patterns)
			}
		}
	}
}

// publishMetrics pushes the current counters to the telemetry sink and logs
// a summary line.
func (c *MultiTierCache) publishMetrics() {
	stats := c.memory.Stats()
	snapshot := c.metrics.Snapshot()
	snapshot.Evictions = stats.Evictions

	c.sink.Record(telemetry.MetricHitRate, snapshot.HitRate)
	c.sink.Record(telemetry.MetricCostSavedUSD, snapshot.CostSavedUSD)
	c.sink.Record(telemetry.MetricExpensiveCallsSaved, float64(snapshot.ExpensiveCallsSaved))
	c.sink.Record(telemetry.MetricAvgResponseTimeMs, snapshot.AvgResponseTimeMs)
	c.sink.Record(telemetry.MetricCompressionRatio, snapshot.LastCompressionRatio)
	c.sink.Record(telemetry.MetricMemoryTierBytes, float64(stats.MemoryBytes))
	c.sink.Record(telemetry.MetricMemoryTierEntries, float64(stats.Entries))
	c.sink.Record(telemetry.MetricEvictions, float64(stats.Evictions))

	c.log.Debug("metrics published", map[string]interface{}{
		"hit_rate":       snapshot.HitRate,
		"hits":           snapshot.Hits,
		"misses":         snapshot.Misses,
		"evictions":      snapshot.Evictions,
		"entries":        stats.Entries,
		"memory_bytes":   stats.MemoryBytes,
		"cost_saved_usd": snapshot.CostSavedUSD,
		"breaker_state":  c.breaker.GetState().String(),
	})
}
