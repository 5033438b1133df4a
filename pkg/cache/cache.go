package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type entry struct {
	value   interface{}
	expires time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.expires)
}

// Cache is an in-memory key/value store where every entry carries a
// TTL. A background sweeper drops expired entries so idle keys do not
// pile up between reads.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

// NewCache starts a cache whose entries default to defaultTTL. Call
// Stop to release the sweeper.
func NewCache(defaultTTL time.Duration) *Cache {
	c := &Cache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		done:       make(chan struct{}),
	}

	sweepEvery := defaultTTL / 2
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	go c.sweepLoop(sweepEvery)

	return c
}

// Get returns the live value for key, if any.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || e.expired(time.Now()) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value under key, expiring after ttl.
func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expires: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Invalidate removes entries whose key starts with prefix. An empty
// prefix removes only entries that have already expired.
func (c *Cache) Invalidate(prefix string) {
	if prefix == "" {
		c.sweep(time.Now())
		return
	}

	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// Size returns the number of stored entries, counting expired ones the
// sweeper has not reached yet.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stop ends the background sweeper. Safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *Cache) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			c.sweep(now)
		case <-c.done:
			return
		}
	}
}

func (c *Cache) sweep(now time.Time) {
	c.mu.Lock()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// CacheWithFallback reads through the cache: a miss runs the supplied
// loader and stores its result.
type CacheWithFallback struct {
	cache *Cache
}

// NewCacheWithFallback creates a read-through cache with the given
// default TTL.
func NewCacheWithFallback(defaultTTL time.Duration) *CacheWithFallback {
	return &CacheWithFallback{cache: NewCache(defaultTTL)}
}

// GetOrSet returns the cached value for key, or runs fallback and
// caches its result for ttl (the default TTL when ttl is zero). Loader
// errors are returned as-is and nothing is cached.
func (c *CacheWithFallback) GetOrSet(ctx context.Context, key string, fallback func(context.Context) (interface{}, error), ttl time.Duration) (interface{}, error) {
	if value, ok := c.cache.Get(key); ok {
		return value, nil
	}

	value, err := fallback(ctx)
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = c.cache.defaultTTL
	}
	c.cache.SetWithTTL(key, value, ttl)
	return value, nil
}

// Invalidate removes cached entries under the key prefix.
func (c *CacheWithFallback) Invalidate(prefix string) {
	c.cache.Invalidate(prefix)
}

// Stop releases the underlying sweeper.
func (c *CacheWithFallback) Stop() {
	c.cache.Stop()
}
