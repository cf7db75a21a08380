package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// entry holds one cached value. Expired entries stay in the map until the
// sweeper or a prefix invalidation removes them; readers treat them as
// misses either way.
type entry struct {
	value     interface{}
	expiresAt time.Time
}

func (e *entry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// Cache is an in-memory TTL cache. The relay puts it in front of the room
// store, where the same room record is read on every join and every token
// check, so entries are short-lived and writes invalidate by key prefix.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	defaultTTL time.Duration
	stopSweep  chan struct{}
}

func NewCache(defaultTTL time.Duration) *Cache {
	c := &Cache{
		entries:    make(map[string]*entry),
		defaultTTL: defaultTTL,
		stopSweep:  make(chan struct{}),
	}
	go c.sweep(defaultTTL / 2)
	return c
}

func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || e.expired() {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{value: value, expiresAt: time.Now().Add(ttl)}
}

// Invalidate drops every key with the given prefix. An empty prefix drops
// only expired entries, which is what the sweeper uses.
func (c *Cache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if prefix == "" {
			if e.expired() {
				delete(c.entries, key)
			}
			continue
		}
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

func (c *Cache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Invalidate("")
		case <-c.stopSweep:
			return
		}
	}
}

// Stop terminates the background sweeper.
func (c *Cache) Stop() {
	close(c.stopSweep)
}

// CacheWithFallback is a read-through wrapper: a miss calls the loader and
// caches its result. Loader errors are returned as-is and never cached, so
// a flaky backend does not poison the cache.
type CacheWithFallback struct {
	cache *Cache
}

func NewCacheWithFallback(defaultTTL time.Duration) *CacheWithFallback {
	return &CacheWithFallback{cache: NewCache(defaultTTL)}
}

func (c *CacheWithFallback) GetOrSet(ctx context.Context, key string, load func(context.Context) (interface{}, error), ttl time.Duration) (interface{}, error) {
	if value, found := c.cache.Get(key); found {
		return value, nil
	}

	value, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if ttl > 0 {
		c.cache.SetWithTTL(key, value, ttl)
	} else {
		c.cache.Set(key, value)
	}
	return value, nil
}

func (c *CacheWithFallback) Invalidate(prefix string) {
	c.cache.Invalidate(prefix)
}

func (c *CacheWithFallback) Stop() {
	c.cache.Stop()
}
