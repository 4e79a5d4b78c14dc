package spotify

import (
	"sync"
	"testing"
	"time"
)

func TestTTLCacheGetSet(t *testing.T) {
	cache := NewTTLCache[string](10, 60)

	if _, ok := cache.Get("missing"); ok {
		t.Error("Get(missing) ok = true")
	}
	cache.Set("a", "alpha")
	if v, ok := cache.Get("a"); !ok || v != "alpha" {
		t.Errorf("Get(a) = %q, %v; want alpha, true", v, ok)
	}
	cache.Set("a", "again")
	if v, _ := cache.Get("a"); v != "again" {
		t.Errorf("Get(a) after overwrite = %q, want again", v)
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	cache := NewTTLCache[int](10, 30)
	now := time.Unix(1_000_000, 0)
	cache.now = func() time.Time { return now }

	cache.Set("k", 1)
	now = now.Add(29 * time.Second)
	if _, ok := cache.Get("k"); !ok {
		t.Fatal("entry expired too early")
	}
	now = now.Add(time.Second)
	if _, ok := cache.Get("k"); ok {
		t.Fatal("entry should have expired")
	}
	if cache.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after expired read", cache.Len())
	}
}

func TestTTLCacheLRUEviction(t *testing.T) {
	cache := NewTTLCache[int](2, 60)
	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Get("a") // a is now most recently used
	cache.Set("c", 3)

	if _, ok := cache.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := cache.Get("a"); !ok {
		t.Error("a should still be cached")
	}
	if stats := cache.Stats(); stats.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", stats.Evictions)
	}
}

func TestTTLCacheStats(t *testing.T) {
	cache := NewTTLCache[int](5, 60)
	cache.Set("a", 1)
	cache.Get("a")
	cache.Get("a")
	cache.Get("nope")

	stats := cache.Stats()
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("Stats = %+v, want 2 hits 1 miss", stats)
	}
	if stats.HitRate < 0.66 || stats.HitRate > 0.67 {
		t.Errorf("HitRate = %f, want ~0.667", stats.HitRate)
	}
	if stats.Size != 1 || stats.MaxSize != 5 {
		t.Errorf("Size/MaxSize = %d/%d", stats.Size, stats.MaxSize)
	}
}

func TestTTLCacheClear(t *testing.T) {
	cache := NewTTLCache[int](5, 60)
	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len() after Clear = %d", cache.Len())
	}
}

func TestTTLCacheSweep(t *testing.T) {
	cache := NewTTLCache[int](5, 10)
	now := time.Unix(1_000_000, 0)
	cache.now = func() time.Time { return now }
	cache.Set("old", 1)
	now = now.Add(5 * time.Second)
	cache.Set("new", 2)
	now = now.Add(6 * time.Second)

	cache.sweep()
	if cache.Len() != 1 {
		t.Fatalf("Len() after sweep = %d, want 1", cache.Len())
	}
	if _, ok := cache.Get("new"); !ok {
		t.Error("fresh entry was swept")
	}
}

func TestTTLCacheCleanupStartStop(t *testing.T) {
	cache := NewTTLCache[int](5, 60)
	cache.StartCleanup(10 * time.Millisecond)
	cache.StartCleanup(10 * time.Millisecond)
	cache.StopCleanup()
	cache.StopCleanup()
}

func TestTTLCacheConcurrent(t *testing.T) {
	cache := NewTTLCache[int](50, 60)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := string(rune('a' + (n+j)%26))
				cache.Set(key, j)
				cache.Get(key)
			}
		}(i)
	}
	wg.Wait()
	if cache.Len() > 26 {
		t.Errorf("Len() = %d, want <= 26", cache.Len())
	}
}
