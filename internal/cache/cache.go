package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// Default tuning. Policy and model-list entries are few and small, so the
// bound exists to cap pathological key growth, not memory pressure.
const (
	DefaultTTL           = 5 * time.Minute
	DefaultMaxEntries    = 1024
	DefaultSweepInterval = time.Minute
)

// Cache is an in-memory TTL cache with LRU eviction at a max-entry bound.
// Values are stored as-is and returned as-is; callers must treat them as
// immutable once stored. All methods are safe for concurrent use.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	lru        *list.List // front = most recently used
	maxEntries int
	defaultTTL time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Options configures a Cache. Zero fields fall back to package defaults.
type Options struct {
	MaxEntries    int
	DefaultTTL    time.Duration
	SweepInterval time.Duration
}

// New creates a Cache and starts its background sweep. Call Close to stop
// the sweep goroutine; the sweep never blocks readers for longer than one
// lock acquisition.
func New[V any](opts Options) *Cache[V] {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}

	c := &Cache[V]{
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: opts.MaxEntries,
		defaultTTL: opts.DefaultTTL,
		stop:       make(chan struct{}),
	}

	go c.sweepLoop(opts.SweepInterval)
	return c
}

// Get returns the value for key. An entry past its expiry is treated as
// absent and evicted before returning.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}

	e := el.Value.(*entry[V])
	if time.Now().After(e.expiresAt) {
		c.removeElement(el)
		var zero V
		return zero, false
	}

	c.lru.MoveToFront(el)
	return e.value, true
}

// Set stores value under key with the cache's default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL stores value under key with an explicit TTL. If inserting a new key
// would exceed the entry bound, the least recently used entry is evicted
// first, regardless of its remaining TTL.
func (c *Cache[V]) SetTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.expiresAt = time.Now().Add(ttl)
		c.lru.MoveToFront(el)
		return
	}

	if c.lru.Len() >= c.maxEntries {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}

	el := c.lru.PushFront(&entry[V]{key: key, value: value, expiresAt: time.Now().Add(ttl)})
	c.entries[key] = el
}

// Delete removes key from the cache. Removing an absent key is a no-op.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}
}

// DeletePattern removes every entry whose key matches pattern and returns
// how many were removed. A pattern may contain at most one "*", which
// matches any substring; a pattern without "*" matches exactly.
func (c *Cache[V]) DeletePattern(pattern string) int {
	prefix, suffix, wildcard := strings.Cut(pattern, "*")

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, el := range c.entries {
		if !wildcard {
			if key != pattern {
				continue
			}
		} else if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key[len(prefix):], suffix) {
			continue
		}
		c.removeElement(el)
		removed++
	}
	return removed
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.lru.Init()
}

// Len returns the number of entries, including any not yet swept expired ones.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Close stops the background sweep. Safe to call multiple times.
func (c *Cache[V]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache[V]) sweepLoop(interval time.Duration) {
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
}

func (c *Cache[V]) sweep() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, el := range c.entries {
		if now.After(el.Value.(*entry[V]).expiresAt) {
			c.removeElement(el)
		}
	}
}

// removeElement must be called with c.mu held.
func (c *Cache[V]) removeElement(el *list.Element) {
	c.lru.Remove(el)
	delete(c.entries, el.Value.(*entry[V]).key)
}
