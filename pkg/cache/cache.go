// Package cache implements the multi-tier cache engine: a bounded in-process
// LRU tier backed by an optional remote tier, with adaptive TTLs,
// opportunistic compression, remote failure isolation, and value generation
// on miss.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/roamly/storycache/internal/circuit"
	"github.com/roamly/storycache/internal/codec"
	"github.com/roamly/storycache/internal/store"
	"github.com/roamly/storycache/internal/ttl"
	"github.com/roamly/storycache/internal/workpool"
	"github.com/roamly/storycache/pkg/errors"
	"github.com/roamly/storycache/pkg/logging"
	"github.com/roamly/storycache/pkg/telemetry"
	"github.com/roamly/storycache/pkg/types"
)

// RemoteCache is the contract the remote tier must satisfy. Get returns
// (nil, nil) for an absent key. Implementations are expected to be safe for
// concurrent use.
type RemoteCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
	DeleteByPattern(ctx context.Context, pattern string) (int, error)
}

// Generator produces a value for a key that is absent from every tier.
type Generator func(ctx context.Context) (interface{}, error)

// SetOptions carries the write-time hints that drive TTL selection, tier
// placement, and savings accounting.
type SetOptions struct {
	Category         types.Category
	OwnerID          string
	Premium          bool
	Tags             []string
	CostToGenerate   float64
	GenerationTimeMs float64

	// TTLOverride, when positive, bypasses the adaptive policy. The value
	// is still clamped into the allowed range.
	TTLOverride time.Duration
}

// InvalidationOptions selects entries to remove. Selectors are applied
// independently; the returned count sums removals across all of them.
// Key and Pattern operate on full namespaced keys ("<category>:<key>").
// Pattern supports '*' as its only wildcard; every other character,
// including the remote tier's glob metacharacters, matches literally in
// both tiers.
// Tags and Owner scan the memory tier only; matching remote entries are left
// to expire on their TTLs.
type InvalidationOptions struct {
	Key     string
	Pattern string
	Tags    []string
	Owner   string
}

// MultiTierCache is the engine facade. All read and write paths degrade to
// the surviving tiers when the remote tier is down; no remote failure is ever
// surfaced to callers of Get or Set.
type MultiTierCache struct {
	config  *Config
	log     *logging.Logger
	metrics *Metrics
	sink    telemetry.Sink

	memory  *store.LRUStore
	remote  RemoteCache
	breaker *circuit.Breaker
	codec   *codec.Codec
	pool    *workpool.Pool

	mu      sync.Mutex
	warmups []WarmupPattern
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New assembles an engine from the given configuration. remote may be nil,
// in which case the engine runs memory-only. A nil logger or sink is replaced
// with a no-op implementation.
func New(config *Config, remote RemoteCache, log *logging.Logger, sink telemetry.Sink) (*MultiTierCache, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "invalid cache configuration").
			WithComponent("cache").
			WithCause(err)
	}
	if log == nil {
		log = logging.Nop()
	}
	if sink == nil {
		sink = telemetry.NopSink{}
	}

	cdc, err := codec.New(config.CompressionThresholdBytes)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeCompression, "failed to initialize compression codec").
			WithComponent("cache").
			WithCause(err)
	}

	log = log.WithComponent("cache")

	breaker := circuit.New("remote-tier", circuit.Config{
		FailureThreshold: config.CircuitFailureThreshold,
		RecoveryTimeout:  config.CircuitRecoveryTimeout,
		OnStateChange: func(name string, from, to circuit.State) {
			log.Warn("circuit breaker state change", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	return &MultiTierCache{
		config:  config,
		log:     log,
		metrics: NewMetrics(),
		sink:    sink,
		memory:  store.New(config.MaxEntries, config.MaxMemoryBytes()),
		remote:  remote,
		breaker: breaker,
		codec:   cdc,
		pool:    workpool.New(config.RemoteWorkers),
	}, nil
}

// FullKey builds the namespaced form of a key, "<category>:<key>". All tiers
// store entries under full keys, which makes category-wide invalidation a
// prefix pattern delete.
func FullKey(category types.Category, key string) string {
	return string(category) + ":" + key
}

// Get looks the key up in the memory tier first and falls back to the remote
// tier, promoting small remote entries into memory. The boolean reports
// whether a live value was found. Remote failures are logged and treated as
// misses.
func (c *MultiTierCache) Get(ctx context.Context, key string, category types.Category) ([]byte, bool) {
	start := time.Now()
	full := FullKey(category, key)

	if entry := c.memory.Get(full); entry != nil {
		value, err := c.decode(entry)
		if err != nil {
			c.log.Error("failed to decode memory entry, dropping it", map[string]interface{}{
				"key":   full,
				"error": err.Error(),
			})
			c.memory.Delete(full)
			c.metrics.RecordMiss()
			return nil, false
		}
		c.metrics.RecordHit()
		c.metrics.RecordResponseTime(msSince(start))
		return value, true
	}

	if c.remote != nil {
		if value, ok := c.remoteGet(ctx, full); ok {
			c.metrics.RecordHit()
			c.metrics.RecordResponseTime(msSince(start))
			return value, true
		}
	}

	c.metrics.RecordMiss()
	c.metrics.RecordResponseTime(msSince(start))
	return nil, false
}

// remoteGet fetches and decodes an entry from the remote tier, promoting it
// into the memory tier when it fits the small-object rule.
func (c *MultiTierCache) remoteGet(ctx context.Context, full string) ([]byte, bool) {
	var raw []byte
	err := c.pool.Do(ctx, func() error {
		return c.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
			data, err := c.remote.Get(ctx, full)
			raw = data
			return err
		})
	})
	if err != nil {
		c.log.Debug("remote tier read failed", map[string]interface{}{
			"key":   full,
			"error": err.Error(),
		})
		return nil, false
	}
	if raw == nil {
		return nil, false
	}

	var entry types.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.log.Warn("discarding undecodable remote entry", map[string]interface{}{
			"key":   full,
			"error": err.Error(),
		})
		return nil, false
	}

	now := time.Now()
	if entry.Expired(now) {
		return nil, false
	}

	value, err := c.decode(&entry)
	if err != nil {
		c.log.Warn("failed to decompress remote entry", map[string]interface{}{
			"key":   full,
			"error": err.Error(),
		})
		return nil, false
	}

	entry.Touch(now)
	if entry.SizeBytes <= c.config.SmallObjectThresholdBytes {
		promoted := entry
		promoted.Tier = types.TierMemory
		c.memory.Set(&promoted)
	}

	return value, true
}

// Set writes the value through both tiers. Values above the small-object
// threshold skip the memory tier. The boolean reports whether at least one
// tier accepted the write; serialization failures and double tier failures
// return false and leave nothing behind.
func (c *MultiTierCache) Set(ctx context.Context, key string, value interface{}, opts SetOptions) bool {
	data, err := encodeValue(value)
	if err != nil {
		c.log.Error("failed to serialize value", map[string]interface{}{
			"key":      key,
			"category": string(opts.Category),
			"error":    err.Error(),
		})
		return false
	}
	return c.setEncoded(ctx, key, data, opts)
}

func (c *MultiTierCache) setEncoded(ctx context.Context, key string, data []byte, opts SetOptions) bool {
	full := FullKey(opts.Category, key)
	now := time.Now()

	stored := data
	compressed := false
	if c.codec.ShouldCompress(data) {
		packed, ratio := c.codec.Compress(data)
		c.metrics.RecordCompressionRatio(ratio)
		if ratio > c.config.CompressionMinRatio {
			stored = packed
			compressed = true
		}
	}

	entryTTL := opts.TTLOverride
	if entryTTL > 0 {
		entryTTL = ttl.Clamp(entryTTL)
	} else {
		// Peek keeps the overwrite lookup off the tier-1 hit/miss counters.
		pattern := c.memory.Peek(full)
		entryTTL = ttl.Calculate(opts.Category, opts.Premium, opts.OwnerID != "", pattern)
	}

	entry := &types.CacheEntry{
		Key:              full,
		Value:            stored,
		Category:         opts.Category,
		Tier:             types.TierMemory,
		CreatedAt:        now,
		LastAccessedAt:   now,
		TTLSeconds:       int64(entryTTL.Seconds()),
		SizeBytes:        int64(len(stored)),
		Compressed:       compressed,
		OwnerID:          opts.OwnerID,
		Tags:             opts.Tags,
		CostToGenerate:   opts.CostToGenerate,
		GenerationTimeMs: opts.GenerationTimeMs,
	}

	memoryOK := false
	if entry.SizeBytes <= c.config.SmallObjectThresholdBytes {
		memoryOK = c.memory.Set(entry)
	}

	remoteOK := c.remoteSet(ctx, full, entry, entryTTL)

	if !memoryOK && !remoteOK {
		return false
	}
	if opts.CostToGenerate > 0 {
		c.metrics.RecordSavings(opts.CostToGenerate)
	}
	return true
}

// remoteSet writes the JSON envelope of the entry to the remote tier with the
// same TTL. Failures are logged, never propagated.
func (c *MultiTierCache) remoteSet(ctx context.Context, full string, entry *types.CacheEntry, entryTTL time.Duration) bool {
	if c.remote == nil {
		return false
	}

	envelope := *entry
	envelope.Tier = types.TierRemote
	raw, err := json.Marshal(&envelope)
	if err != nil {
		c.log.Error("failed to encode remote envelope", map[string]interface{}{
			"key":   full,
			"error": err.Error(),
		})
		return false
	}

	err = c.pool.Do(ctx, func() error {
		return c.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
			return c.remote.Set(ctx, full, raw, entryTTL)
		})
	})
	if err != nil {
		c.log.Warn("remote tier write failed", map[string]interface{}{
			"key":   full,
			"error": err.Error(),
		})
		return false
	}
	return true
}

// GetOrCompute returns the cached value for key, or runs generate, caches the
// result, and returns its serialized form. A nil generated value is passed
// through without being cached.
func (c *MultiTierCache) GetOrCompute(ctx context.Context, key string, opts SetOptions, generate Generator) ([]byte, error) {
	if value, ok := c.Get(ctx, key, opts.Category); ok {
		return value, nil
	}

	produced, err := generate(ctx)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeGeneratorFailed, "value generator failed").
			WithComponent("cache").
			WithOperation("get_or_compute").
			WithContext("key", key).
			WithCause(err)
	}
	if produced == nil {
		return nil, nil
	}

	data, err := encodeValue(produced)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeSerialization, "failed to serialize generated value").
			WithComponent("cache").
			WithContext("key", key).
			WithCause(err)
	}

	c.setEncoded(ctx, key, data, opts)
	return data, nil
}

// Invalidate removes entries matching the given selectors and returns the
// number of removals. See InvalidationOptions for selector semantics.
func (c *MultiTierCache) Invalidate(ctx context.Context, opts InvalidationOptions) int {
	count := 0

	if opts.Key != "" {
		removed := c.memory.Delete(opts.Key)
		if c.remote != nil {
			err := c.pool.Do(ctx, func() error {
				return c.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
					ok, err := c.remote.Delete(ctx, opts.Key)
					removed = removed || ok
					return err
				})
			})
			if err != nil {
				c.log.Warn("remote tier delete failed", map[string]interface{}{
					"key":   opts.Key,
					"error": err.Error(),
				})
			}
		}
		if removed {
			count++
		}
	}

	if opts.Pattern != "" {
		for _, key := range c.memory.Keys() {
			if wildcardMatch(opts.Pattern, key) && c.memory.Delete(key) {
				count++
			}
		}
		if c.remote != nil {
			remotePattern := escapeRemotePattern(opts.Pattern)
			var deleted int
			err := c.pool.Do(ctx, func() error {
				return c.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
					n, err := c.remote.DeleteByPattern(ctx, remotePattern)
					deleted = n
					return err
				})
			})
			if err != nil {
				c.log.Warn("remote tier pattern delete failed", map[string]interface{}{
					"pattern": opts.Pattern,
					"error":   err.Error(),
				})
			}
			count += deleted
		}
	}

	if len(opts.Tags) > 0 {
		for _, entry := range c.memory.Entries() {
			for _, tag := range opts.Tags {
				if entry.HasTag(tag) {
					if c.memory.Delete(entry.Key) {
						count++
					}
					break
				}
			}
		}
	}

	if opts.Owner != "" {
		for _, entry := range c.memory.Entries() {
			if entry.OwnerID == opts.Owner && c.memory.Delete(entry.Key) {
				count++
			}
		}
	}

	if count > 0 {
		c.log.Info("invalidated cache entries", map[string]interface{}{
			"removed": count,
		})
	}
	return count
}

// Clear drops every entry from the memory tier. The remote tier is left
// untouched; use Invalidate with a pattern for remote cleanup.
func (c *MultiTierCache) Clear() {
	c.memory.Clear()
}

// Stats returns memory tier statistics.
func (c *MultiTierCache) Stats() types.CacheStats {
	return c.memory.Stats()
}

// Metrics exposes the process counters, mainly for tests and reporting.
func (c *MultiTierCache) Metrics() *Metrics {
	return c.metrics
}

// GetPerformanceReport assembles the operator-facing report from the process
// counters, the memory tier, and the breaker.
func (c *MultiTierCache) GetPerformanceReport() types.PerformanceReport {
	stats := c.memory.Stats()
	snapshot := c.metrics.Snapshot()
	snapshot.Evictions = stats.Evictions

	return types.PerformanceReport{
		Metrics:      snapshot,
		MemoryTier:   stats,
		BreakerState: c.breaker.GetState().String(),
		GeneratedAt:  time.Now(),
	}
}

// decode returns the plain value bytes of an entry, decompressing when
// needed.
func (c *MultiTierCache) decode(entry *types.CacheEntry) ([]byte, error) {
	if !entry.Compressed {
		return entry.Value, nil
	}
	return c.codec.Decompress(entry.Value)
}

// encodeValue serializes a value for storage. Byte slices pass through
// untouched, strings become their bytes, everything else is JSON.
func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("json marshal: %w", err)
		}
		return data, nil
	}
}

// escapeRemotePattern backslash-escapes the glob metacharacters the remote
// tier would otherwise interpret, so that '*' stays the only wildcard in
// both tiers.
func escapeRemotePattern(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern))
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '?', '[', ']', '^', '\\':
			b.WriteByte('\\')
		}
		b.WriteByte(pattern[i])
	}
	return b.String()
}

// wildcardMatch reports whether s matches pattern, where '*' matches any run
// of characters including none.
func wildcardMatch(pattern, s string) bool {
	// Iterative glob with single-star backtracking.
	p, i := 0, 0
	starP, starI := -1, 0
	for i < len(s) {
		switch {
		case p < len(pattern) && pattern[p] == '*':
			starP = p
			starI = i
			p++
		case p < len(pattern) && pattern[p] == s[i]:
			p++
			i++
		case starP >= 0:
			starI++
			i = starI
			p = starP + 1
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
