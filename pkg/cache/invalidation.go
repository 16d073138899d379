package cache

import (
	"context"

	"github.com/roamly/storycache/pkg/types"
)

// Invalidator is a thin facade over Invalidate for the removal shapes hosts
// reach for most often.
type Invalidator struct {
	cache *MultiTierCache
}

// NewInvalidator wraps an engine.
func NewInvalidator(c *MultiTierCache) *Invalidator {
	return &Invalidator{cache: c}
}

// InvalidateUserCache removes every memory-tier entry owned by the given
// user.
func (i *Invalidator) InvalidateUserCache(ctx context.Context, ownerID string) int {
	return i.cache.Invalidate(ctx, InvalidationOptions{Owner: ownerID})
}

// InvalidateByTags removes every memory-tier entry carrying any of the given
// tags.
func (i *Invalidator) InvalidateByTags(ctx context.Context, tags ...string) int {
	return i.cache.Invalidate(ctx, InvalidationOptions{Tags: tags})
}

// InvalidatePattern removes entries whose full key matches the wildcard
// pattern, in both tiers.
func (i *Invalidator) InvalidatePattern(ctx context.Context, pattern string) int {
	return i.cache.Invalidate(ctx, InvalidationOptions{Pattern: pattern})
}

// InvalidateContentCategory removes every entry of a category in both tiers.
func (i *Invalidator) InvalidateContentCategory(ctx context.Context, category types.Category) int {
	return i.cache.Invalidate(ctx, InvalidationOptions{Pattern: string(category) + ":*"})
}
