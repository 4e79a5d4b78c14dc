package spotify

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// CacheStats holds cache statistics.
type CacheStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Size      int     `json:"size"`
	MaxSize   int     `json:"max_size"`
	HitRate   float64 `json:"hit_rate"`
}

type cacheEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// TTLCache is a thread-safe cache whose entries expire after a fixed TTL.
// When full, the least recently used entry is evicted.
type TTLCache[V any] struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	lru     *list.List // front = most recently used
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
}

// NewTTLCache creates a cache holding at most maxSize entries for ttlSeconds each.
func NewTTLCache[V any](maxSize, ttlSeconds int) *TTLCache[V] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &TTLCache[V]{
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		maxSize: maxSize,
		ttl:     time.Duration(ttlSeconds) * time.Second,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

// Get returns the value for key and whether it was present and fresh.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		return zero, false
	}
	entry := el.Value.(*cacheEntry[V])
	if !c.now().Before(entry.expiresAt) {
		c.removeLocked(el)
		c.misses.Add(1)
		return zero, false
	}
	c.lru.MoveToFront(el)
	c.hits.Add(1)
	return entry.value, true
}

// Set stores value under key, resetting its TTL.
func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		entry := el.Value.(*cacheEntry[V])
		entry.value = value
		entry.expiresAt = expiresAt
		c.lru.MoveToFront(el)
		return
	}

	if len(c.items) >= c.maxSize {
		if back := c.lru.Back(); back != nil {
			c.removeLocked(back)
			c.evictions.Add(1)
		}
	}
	c.items[key] = c.lru.PushFront(&cacheEntry[V]{key: key, value: value, expiresAt: expiresAt})
}

// Clear removes every entry.
func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.lru.Init()
}

// Len returns the number of entries, including expired ones not yet swept.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns cache statistics.
func (c *TTLCache[V]) Stats() CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()
	rate := 0.0
	if hits+misses > 0 {
		rate = float64(hits) / float64(hits+misses)
	}
	return CacheStats{
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		Size:      c.Len(),
		MaxSize:   c.maxSize,
		HitRate:   rate,
	}
}

// StartCleanup sweeps expired entries every interval until StopCleanup.
func (c *TTLCache[V]) StartCleanup(interval time.Duration) {
	if interval <= 0 || !c.running.CompareAndSwap(false, true) {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sweep()
			case <-c.stop:
				return
			}
		}
	}()
}

// StopCleanup stops the sweeper. It is safe to call more than once.
func (c *TTLCache[V]) StopCleanup() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *TTLCache[V]) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for el := c.lru.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*cacheEntry[V]).expiresAt) {
			c.removeLocked(el)
		}
		el = prev
	}
}

func (c *TTLCache[V]) removeLocked(el *list.Element) {
	delete(c.items, el.Value.(*cacheEntry[V]).key)
	c.lru.Remove(el)
}
