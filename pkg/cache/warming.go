package cache

import (
	"context"

	"github.com/roamly/storycache/pkg/types"
)

// WarmupPattern describes one key to pre-populate ahead of demand.
type WarmupPattern struct {
	Key      string
	Category types.Category
	OwnerID  string
	Premium  bool
	Tags     []string

	// CostToGenerate feeds savings accounting for warmed entries the same
	// way it does for regular writes.
	CostToGenerate   float64
	GenerationTimeMs float64

	Generate Generator
}

// RegisterWarmup adds patterns to the set refreshed by the background warming
// loop.
func (c *MultiTierCache) RegisterWarmup(patterns ...WarmupPattern) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warmups = append(c.warmups, patterns...)
}

// WarmCache pre-populates the given patterns, skipping keys that are already
// cached in either tier. Generator failures are logged and the batch
// continues. Returns the number of entries actually written.
func (c *MultiTierCache) WarmCache(ctx context.Context, patterns []WarmupPattern) int {
	warmed := 0
	for _, p := range patterns {
		if p.Generate == nil {
			continue
		}
		full := FullKey(p.Category, p.Key)
		if c.peek(ctx, full) {
			continue
		}

		value, err := p.Generate(ctx)
		if err != nil {
			c.log.Warn("warmup generator failed", map[string]interface{}{
				"key":   full,
				"error": err.Error(),
			})
			continue
		}
		if value == nil {
			continue
		}

		ok := c.Set(ctx, p.Key, value, SetOptions{
			Category:         p.Category,
			OwnerID:          p.OwnerID,
			Premium:          p.Premium,
			Tags:             p.Tags,
			CostToGenerate:   p.CostToGenerate,
			GenerationTimeMs: p.GenerationTimeMs,
		})
		if ok {
			warmed++
		}
	}

	if warmed > 0 {
		c.log.Info("cache warming pass complete", map[string]interface{}{
			"warmed": warmed,
		})
	}
	return warmed
}

// peek reports whether a live entry exists for the full key in either tier
// without touching hit/miss counters or recency.
func (c *MultiTierCache) peek(ctx context.Context, full string) bool {
	if c.memory.Contains(full) {
		return true
	}
	if c.remote == nil {
		return false
	}

	var present bool
	err := c.pool.Do(ctx, func() error {
		return c.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
			data, err := c.remote.Get(ctx, full)
			present = data != nil
			return err
		})
	})
	if err != nil {
		return false
	}
	return present
}

func (c *MultiTierCache) registeredWarmups() []WarmupPattern {
	c.mu.Lock()
	defer c.mu.Unlock()
	patterns := make([]WarmupPattern, len(c.warmups))
	copy(patterns, c.warmups)
	return patterns
}
