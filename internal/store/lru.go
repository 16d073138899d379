// Package store implements the in-process memory tier: a bounded LRU cache
// of entries with strict recency-order eviction, byte and entry-count
// budgets, and lazy expiry on read.
package store

import (
	"container/list"
	"sync"
	"time"

	"github.com/roamly/storycache/pkg/types"
)

// LRUStore is a thread-safe LRU cache of cache entries. A single mutex
// serializes every operation, including reads, because a read reorders the
// recency list.
type LRUStore struct {
	mu          sync.Mutex
	maxEntries  int
	maxBytes    int64
	currentSize int64
	items       map[string]*storeItem
	evictList   *list.List

	stats types.CacheStats
}

// storeItem ties an entry to its position in the recency list.
type storeItem struct {
	entry   *types.CacheEntry
	element *list.Element
}

// listEntry is the value stored in the recency list element.
type listEntry struct {
	key string
}

// New creates an LRU store bounded by entry count and total bytes.
func New(maxEntries int, maxBytes int64) *LRUStore {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if maxBytes <= 0 {
		maxBytes = 100 * 1024 * 1024
	}

	return &LRUStore{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		items:      make(map[string]*storeItem),
		evictList:  list.New(),
		stats: types.CacheStats{
			Capacity: maxBytes,
		},
	}
}

// Get returns the entry for key, or nil on a miss. A hit refreshes the
// recency order and access metadata. An expired entry is evicted and counted
// as a miss.
func (s *LRUStore) Get(key string) *types.CacheEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[key]
	if !exists {
		s.stats.Misses++
		return nil
	}

	now := time.Now()
	if item.entry.Expired(now) {
		s.removeItem(key, true)
		s.stats.Misses++
		return nil
	}

	item.entry.Touch(now)
	s.evictList.MoveToFront(item.element)
	s.stats.Hits++

	return item.entry
}

// Peek returns a copy of the access history for key, or nil if the key holds
// no live entry. Unlike Get it does not count a read, refresh recency, or
// evict an expired entry; the copy is taken under the lock so it is safe to
// read after return.
func (s *LRUStore) Peek(key string) *types.AccessPattern {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[key]
	if !exists || item.entry.Expired(time.Now()) {
		return nil
	}
	return &types.AccessPattern{
		AccessCount:  item.entry.AccessCount,
		LastAccessed: item.entry.LastAccessedAt,
	}
}

// Contains reports whether key holds a live entry, without touching recency
// order or counters.
func (s *LRUStore) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[key]
	return exists && !item.entry.Expired(time.Now())
}

// Set inserts an entry, evicting least-recently-used entries until both the
// entry-count and byte budgets admit it. Returns false if the entry alone
// exceeds the byte budget.
func (s *LRUStore) Set(entry *types.CacheEntry) bool {
	if entry == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.SizeBytes > s.maxBytes {
		return false
	}

	// Replace an existing entry in place.
	if item, exists := s.items[entry.Key]; exists {
		s.currentSize += entry.SizeBytes - item.entry.SizeBytes
		item.entry = entry
		s.evictList.MoveToFront(item.element)
		s.evictIfNeeded()
		return true
	}

	for len(s.items) >= s.maxEntries || s.currentSize+entry.SizeBytes > s.maxBytes {
		if !s.evictOldest() {
			break
		}
	}

	element := s.evictList.PushFront(&listEntry{key: entry.Key})
	s.items[entry.Key] = &storeItem{entry: entry, element: element}
	s.currentSize += entry.SizeBytes

	return true
}

// Delete removes the entry for key, reporting whether one was present.
func (s *LRUStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[key]; !exists {
		return false
	}
	s.removeItem(key, false)
	return true
}

// Clear removes every entry.
func (s *LRUStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*storeItem)
	s.evictList.Init()
	s.currentSize = 0
}

// Keys returns every stored key, in no particular order.
func (s *LRUStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.items))
	for key := range s.items {
		keys = append(keys, key)
	}
	return keys
}

// Entries returns the stored entries, in no particular order. The entries
// are the live objects; callers must treat them as read-only.
func (s *LRUStore) Entries() []*types.CacheEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]*types.CacheEntry, 0, len(s.items))
	for _, item := range s.items {
		entries = append(entries, item.entry)
	}
	return entries
}

// Stats returns a snapshot of store statistics.
func (s *LRUStore) Stats() types.CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.Entries = len(s.items)
	stats.MemoryBytes = s.currentSize
	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	if s.maxBytes > 0 {
		stats.Utilization = float64(s.currentSize) / float64(s.maxBytes)
	}
	return stats
}

// RemoveExpired evicts every expired entry and returns how many were removed.
func (s *LRUStore) RemoveExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var expired []string
	for key, item := range s.items {
		if item.entry.Expired(now) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		s.removeItem(key, true)
	}
	return len(expired)
}

// removeItem deletes a key. Explicit deletes do not count as evictions.
// Callers must hold the mutex.
func (s *LRUStore) removeItem(key string, evicted bool) {
	item, exists := s.items[key]
	if !exists {
		return
	}

	if item.element != nil {
		s.evictList.Remove(item.element)
	}
	delete(s.items, key)
	s.currentSize -= item.entry.SizeBytes
	if evicted {
		s.stats.Evictions++
	}
}

// evictOldest removes the entry at the back of the recency list.
func (s *LRUStore) evictOldest() bool {
	element := s.evictList.Back()
	if element == nil {
		return false
	}
	s.removeItem(element.Value.(*listEntry).key, true)
	return true
}

func (s *LRUStore) evictIfNeeded() {
	for s.currentSize > s.maxBytes && s.evictList.Len() > 0 {
		s.evictOldest()
	}
	for len(s.items) > s.maxEntries && s.evictList.Len() > 0 {
		s.evictOldest()
	}
}
