package types

import (
	"time"
)

// Category identifies the kind of content a cache entry holds. The category
// drives TTL selection and cost accounting.
type Category string

const (
	CategoryAIResponse   Category = "ai_response"   // generated answers
	CategoryStory        Category = "story"         // narrative content
	CategoryVoiceAudio   Category = "voice_audio"   // synthesized audio
	CategoryDBQuery      Category = "db_query"      // stored query results
	CategoryAPIResponse  Category = "api_response"  // upstream API responses
	CategoryStaticAsset  Category = "static_asset"  // immutable assets
	CategoryUserPref     Category = "user_pref"     // user settings
	CategoryGeoData      Category = "geo_data"      // geographic lookups
	CategorySearchResult Category = "search_result" // search results
	CategoryRouteInfo    Category = "route_info"    // routing information
)

// Categories lists every known content category.
func Categories() []Category {
	return []Category{
		CategoryAIResponse,
		CategoryStory,
		CategoryVoiceAudio,
		CategoryDBQuery,
		CategoryAPIResponse,
		CategoryStaticAsset,
		CategoryUserPref,
		CategoryGeoData,
		CategorySearchResult,
		CategoryRouteInfo,
	}
}

// Tier identifies which storage tier owns the authoritative copy of an entry.
type Tier int

const (
	// TierMemory is the fast, bounded, in-process store.
	TierMemory Tier = iota + 1
	// TierRemote is the shared network cache service.
	TierRemote
)

// String returns string representation of the tier
func (t Tier) String() string {
	switch t {
	case TierMemory:
		return "memory"
	case TierRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// CacheEntry is one cached value plus the metadata the engine needs for
// expiry, eviction accounting, and scoped invalidation. Value holds the
// serialized payload after the compression decision; SizeBytes always equals
// len(Value) as stored.
type CacheEntry struct {
	Key              string    `json:"key"`
	Value            []byte    `json:"value"`
	Category         Category  `json:"category"`
	Tier             Tier      `json:"tier"`
	CreatedAt        time.Time `json:"created_at"`
	LastAccessedAt   time.Time `json:"last_accessed_at"`
	AccessCount      int64     `json:"access_count"`
	TTLSeconds       int64     `json:"ttl_seconds,omitempty"` // 0 means no expiry enforced here
	SizeBytes        int64     `json:"size_bytes"`
	Compressed       bool      `json:"compressed"`
	OwnerID          string    `json:"owner_id,omitempty"`
	Tags             []string  `json:"tags,omitempty"`
	CostToGenerate   float64   `json:"cost_to_generate,omitempty"`
	GenerationTimeMs float64   `json:"generation_time_ms,omitempty"`
}

// Expired reports whether the entry's TTL has elapsed. Entries without a TTL
// never expire at this layer.
func (e *CacheEntry) Expired(now time.Time) bool {
	if e.TTLSeconds <= 0 {
		return false
	}
	return now.Sub(e.CreatedAt) > time.Duration(e.TTLSeconds)*time.Second
}

// Touch records a read: bumps the access counter and the last-access time.
func (e *CacheEntry) Touch(now time.Time) {
	e.AccessCount++
	e.LastAccessedAt = now
}

// HasTag reports whether the entry carries the given tag.
func (e *CacheEntry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ValueScore ranks the entry's retention worth: recent, frequently accessed,
// expensive-to-generate, small entries score highest. Recency decays over
// hours, frequency saturates at 100 accesses, cost is normalized against one
// cent. Eviction stays strict LRU; the score is reported for observability.
func (e *CacheEntry) ValueScore(now time.Time) float64 {
	recency := 1.0 / (1.0 + now.Sub(e.LastAccessedAt).Hours())

	frequency := float64(e.AccessCount) / 100.0
	if frequency > 1.0 {
		frequency = 1.0
	}

	cost := e.CostToGenerate / 0.01
	if cost > 1.0 {
		cost = 1.0
	}

	size := 1.0 / (1.0 + float64(e.SizeBytes)/(1024.0*1024.0))

	return 0.35*recency + 0.25*frequency + 0.25*cost + 0.15*size
}

// CacheStats represents per-store performance statistics.
type CacheStats struct {
	Entries     int     `json:"entries"`
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Evictions   uint64  `json:"evictions"`
	MemoryBytes int64   `json:"memory_bytes"`
	Capacity    int64   `json:"capacity"`
	HitRate     float64 `json:"hit_rate"`
	Utilization float64 `json:"utilization"`
}

// AccessPattern carries read-history hints into the TTL policy.
type AccessPattern struct {
	AccessCount  int64     `json:"access_count"`
	LastAccessed time.Time `json:"last_accessed"`
}

// MetricsSnapshot is a point-in-time copy of the engine's process-wide
// counters, safe to hand to telemetry sinks and reports.
type MetricsSnapshot struct {
	Hits                 uint64    `json:"hits"`
	Misses               uint64    `json:"misses"`
	Evictions            uint64    `json:"evictions"`
	ExpensiveCallsSaved  uint64    `json:"expensive_calls_saved"`
	CostSavedUSD         float64   `json:"cost_saved_usd"`
	AvgResponseTimeMs    float64   `json:"avg_response_time_ms"`
	LastCompressionRatio float64   `json:"last_compression_ratio"`
	HitRate              float64   `json:"hit_rate"`
	Taken                time.Time `json:"taken"`
}

// PerformanceReport combines process metrics with memory-tier statistics and
// the remote breaker state for operator-facing reporting.
type PerformanceReport struct {
	Metrics      MetricsSnapshot `json:"metrics"`
	MemoryTier   CacheStats      `json:"memory_tier"`
	BreakerState string          `json:"breaker_state"`
	GeneratedAt  time.Time       `json:"generated_at"`
}
