package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/roamly/storycache/pkg/types"
)

func newEntry(key string, size int64) *types.CacheEntry {
	return &types.CacheEntry{
		Key:            key,
		Value:          make([]byte, size),
		Category:       types.CategoryStory,
		Tier:           types.TierMemory,
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
		SizeBytes:      size,
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(0, 0)
	if s.maxEntries != 1000 {
		t.Errorf("maxEntries = %d, want 1000", s.maxEntries)
	}
	if s.maxBytes != 100*1024*1024 {
		t.Errorf("maxBytes = %d, want 100MB", s.maxBytes)
	}
}

func TestLRUStore_SetGet(t *testing.T) {
	s := New(10, 1024*1024)

	entry := newEntry("story:route-66", 128)
	if !s.Set(entry) {
		t.Fatal("Set rejected an admissible entry")
	}

	got := s.Get("story:route-66")
	if got == nil {
		t.Fatal("Get returned nil for stored key")
	}
	if got.AccessCount != 1 {
		t.Errorf("AccessCount = %d, want 1", got.AccessCount)
	}

	if s.Get("story:missing") != nil {
		t.Error("Get returned an entry for a missing key")
	}
}

func TestLRUStore_EvictionOrder(t *testing.T) {
	t.Run("no reads evicts insertion order", func(t *testing.T) {
		s := New(2, 1024*1024)

		s.Set(newEntry("a", 10))
		s.Set(newEntry("b", 10))
		s.Set(newEntry("c", 10))

		if s.Get("a") != nil {
			t.Error("a should have been evicted first")
		}
		if s.Get("b") == nil || s.Get("c") == nil {
			t.Error("b and c should survive")
		}
	})

	t.Run("a read refreshes recency", func(t *testing.T) {
		s := New(2, 1024*1024)

		s.Set(newEntry("a", 10))
		s.Set(newEntry("b", 10))
		if s.Get("a") == nil {
			t.Fatal("warm-up read of a failed")
		}
		s.Set(newEntry("c", 10))

		if s.Get("b") != nil {
			t.Error("b should have been evicted first after a was read")
		}
		if s.Get("a") == nil || s.Get("c") == nil {
			t.Error("a and c should survive")
		}
	})
}

func TestLRUStore_ByteBudgetEviction(t *testing.T) {
	s := New(100, 1000)

	s.Set(newEntry("a", 400))
	s.Set(newEntry("b", 400))
	s.Set(newEntry("c", 400)) // forces a out

	if s.Get("a") != nil {
		t.Error("a should have been evicted to fit c")
	}

	stats := s.Stats()
	if stats.MemoryBytes != 800 {
		t.Errorf("MemoryBytes = %d, want 800", stats.MemoryBytes)
	}
	if stats.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", stats.Evictions)
	}
}

func TestLRUStore_RejectsOversizedEntry(t *testing.T) {
	s := New(10, 1000)

	if s.Set(newEntry("huge", 1001)) {
		t.Error("Set accepted an entry larger than the byte budget")
	}
	if s.Stats().Entries != 0 {
		t.Error("store should remain empty")
	}
}

func TestLRUStore_ReplaceAdjustsSize(t *testing.T) {
	s := New(10, 1000)

	s.Set(newEntry("k", 400))
	s.Set(newEntry("k", 100))

	stats := s.Stats()
	if stats.Entries != 1 {
		t.Errorf("Entries = %d, want 1", stats.Entries)
	}
	if stats.MemoryBytes != 100 {
		t.Errorf("MemoryBytes = %d, want 100", stats.MemoryBytes)
	}
}

func TestLRUStore_Expiry(t *testing.T) {
	s := New(10, 1024*1024)

	entry := newEntry("volatile", 32)
	entry.TTLSeconds = 1
	s.Set(entry)

	if s.Get("volatile") == nil {
		t.Fatal("entry should be retrievable immediately after set")
	}

	time.Sleep(1100 * time.Millisecond)

	if s.Get("volatile") != nil {
		t.Error("expired entry returned to caller")
	}

	stats := s.Stats()
	// First read was a hit, second a miss, and the lazy removal counts as
	// an eviction.
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", stats.Hits, stats.Misses)
	}
	if stats.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", stats.Evictions)
	}
}

func TestLRUStore_Contains(t *testing.T) {
	s := New(10, 1024)

	s.Set(newEntry("k", 16))

	before := s.Stats()
	if !s.Contains("k") {
		t.Error("Contains = false for stored key")
	}
	if s.Contains("absent") {
		t.Error("Contains = true for missing key")
	}
	after := s.Stats()

	if before.Hits != after.Hits || before.Misses != after.Misses {
		t.Error("Contains must not move hit/miss counters")
	}
}

func TestLRUStore_Peek(t *testing.T) {
	s := New(2, 1024)

	if s.Peek("absent") != nil {
		t.Error("Peek returned a pattern for a missing key")
	}

	s.Set(newEntry("a", 16))
	if s.Get("a") == nil {
		t.Fatal("warm-up read of a failed")
	}

	pattern := s.Peek("a")
	if pattern == nil {
		t.Fatal("Peek returned nil for stored key")
	}
	if pattern.AccessCount != 1 {
		t.Errorf("AccessCount = %d, want 1", pattern.AccessCount)
	}
	if pattern.LastAccessed.IsZero() {
		t.Error("LastAccessed not populated")
	}

	// Peek must not move the counters the way a read does.
	before := s.Stats()
	s.Peek("a")
	s.Peek("absent")
	after := s.Stats()
	if before.Hits != after.Hits || before.Misses != after.Misses {
		t.Error("Peek must not move hit/miss counters")
	}

	// Nor refresh recency: a peeked key still evicts in insertion order.
	s.Set(newEntry("b", 16))
	s.Peek("a")
	s.Set(newEntry("c", 16))
	if s.Contains("a") {
		t.Error("a survived eviction; Peek must not refresh recency")
	}

	expired := newEntry("stale", 16)
	expired.CreatedAt = time.Now().Add(-2 * time.Hour)
	expired.TTLSeconds = 60
	s.Set(expired)
	if s.Peek("stale") != nil {
		t.Error("Peek returned a pattern for an expired entry")
	}
}

func TestLRUStore_Delete(t *testing.T) {
	s := New(10, 1024)

	s.Set(newEntry("k", 16))

	if !s.Delete("k") {
		t.Error("Delete = false for stored key")
	}
	if s.Delete("k") {
		t.Error("Delete = true for already-removed key")
	}
	if s.Stats().Evictions != 0 {
		t.Error("explicit delete must not count as an eviction")
	}
	if s.Stats().MemoryBytes != 0 {
		t.Errorf("MemoryBytes = %d after delete, want 0", s.Stats().MemoryBytes)
	}
}

func TestLRUStore_Clear(t *testing.T) {
	s := New(10, 1024)

	for i := 0; i < 5; i++ {
		s.Set(newEntry(fmt.Sprintf("k%d", i), 16))
	}
	s.Clear()

	stats := s.Stats()
	if stats.Entries != 0 || stats.MemoryBytes != 0 {
		t.Errorf("after Clear: entries=%d bytes=%d", stats.Entries, stats.MemoryBytes)
	}
}

func TestLRUStore_KeysAndEntries(t *testing.T) {
	s := New(10, 1024)

	s.Set(newEntry("k1", 16))
	s.Set(newEntry("k2", 16))

	if len(s.Keys()) != 2 {
		t.Errorf("Keys() returned %d keys, want 2", len(s.Keys()))
	}
	if len(s.Entries()) != 2 {
		t.Errorf("Entries() returned %d entries, want 2", len(s.Entries()))
	}
}

func TestLRUStore_RemoveExpired(t *testing.T) {
	s := New(10, 1024*1024)

	live := newEntry("live", 16)
	s.Set(live)

	dead := newEntry("dead", 16)
	dead.TTLSeconds = 1
	dead.CreatedAt = time.Now().Add(-2 * time.Second)
	s.Set(dead)

	if removed := s.RemoveExpired(); removed != 1 {
		t.Errorf("RemoveExpired = %d, want 1", removed)
	}
	if !s.Contains("live") {
		t.Error("live entry removed")
	}
}

func TestLRUStore_HitRate(t *testing.T) {
	s := New(10, 1024)

	s.Set(newEntry("k", 16))
	s.Get("k")
	s.Get("k")
	s.Get("absent")
	s.Get("absent")

	stats := s.Stats()
	if stats.HitRate != 0.5 {
		t.Errorf("HitRate = %f, want 0.5", stats.HitRate)
	}
}

func TestLRUStore_ConcurrentAccess(t *testing.T) {
	s := New(100, 1024*1024)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", j%20)
				switch j % 3 {
				case 0:
					s.Set(newEntry(key, 64))
				case 1:
					s.Get(key)
				case 2:
					s.Delete(key)
				}
			}
		}(i)
	}
	wg.Wait()

	stats := s.Stats()
	if stats.Entries > 100 {
		t.Errorf("entry budget exceeded: %d", stats.Entries)
	}
	if stats.MemoryBytes < 0 {
		t.Errorf("negative memory accounting: %d", stats.MemoryBytes)
	}
}
