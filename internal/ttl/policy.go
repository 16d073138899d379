// Package ttl computes adaptive time-to-live values for cache entries.
// The policy is a pure function of content category, premium and
// personalization flags, and optional access-pattern hints.
package ttl

import (
	"math"
	"time"

	"github.com/roamly/storycache/pkg/types"
)

const (
	// MinTTL is the floor for any computed TTL.
	MinTTL = 60 * time.Second
	// MaxTTL is the ceiling for any computed TTL.
	MaxTTL = 365 * 24 * time.Hour

	// popularAccessCount marks an entry as popular enough to keep longer.
	popularAccessCount = 10
	// staleAfter marks an entry as cold when untouched this long.
	staleAfter = 7 * 24 * time.Hour
)

// baseTTL maps each content category to its base lifetime. Volatile query
// results live minutes; immutable assets live a year.
var baseTTL = map[types.Category]time.Duration{
	types.CategoryAIResponse:   24 * time.Hour,
	types.CategoryStory:        7 * 24 * time.Hour,
	types.CategoryVoiceAudio:   30 * 24 * time.Hour,
	types.CategoryDBQuery:      5 * time.Minute,
	types.CategoryAPIResponse:  30 * time.Minute,
	types.CategoryStaticAsset:  365 * 24 * time.Hour,
	types.CategoryUserPref:     time.Hour,
	types.CategoryGeoData:      6 * time.Hour,
	types.CategorySearchResult: 15 * time.Minute,
	types.CategoryRouteInfo:    2 * time.Hour,
}

// defaultBase is used for categories missing from the table.
const defaultBase = time.Hour

// Calculate returns the TTL for an entry. Premium content lives twice as
// long; personalized content goes stale twice as fast; popular entries get a
// 1.5x boost and entries idle for over a week are halved. The result is
// clamped to [MinTTL, MaxTTL].
func Calculate(category types.Category, premium, personalized bool, pattern *types.AccessPattern) time.Duration {
	base, ok := baseTTL[category]
	if !ok {
		base = defaultBase
	}

	seconds := base.Seconds()

	if premium {
		seconds *= 2
	}
	if personalized {
		seconds *= 0.5
	}

	if pattern != nil {
		if pattern.AccessCount > popularAccessCount {
			seconds *= 1.5
		}
		if !pattern.LastAccessed.IsZero() && time.Since(pattern.LastAccessed) > staleAfter {
			seconds *= 0.5
		}
	}

	ttl := time.Duration(math.Round(seconds)) * time.Second
	return Clamp(ttl)
}

// Clamp bounds a TTL to [MinTTL, MaxTTL].
func Clamp(ttl time.Duration) time.Duration {
	if ttl < MinTTL {
		return MinTTL
	}
	if ttl > MaxTTL {
		return MaxTTL
	}
	return ttl
}

// Base returns the base TTL for a category, before any modifiers.
func Base(category types.Category) time.Duration {
	if base, ok := baseTTL[category]; ok {
		return base
	}
	return defaultBase
}
