package secrets

import (
	"sync"
	"time"
)

// CacheConfig configures the secret cache.
type CacheConfig struct {
	Enabled bool          // Enable caching
	TTL     time.Duration // Zero keeps entries until Clear
	MaxSize int           // Zero means unbounded
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

func (e cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Cache is a small thread-safe TTL cache for resolved secrets. When full,
// the entry closest to expiry is evicted.
type Cache struct {
	config  CacheConfig
	entries map[string]cacheEntry
	mu      sync.RWMutex
	now     func() time.Time
}

// NewCache creates a new secret cache with the given configuration.
func NewCache(config CacheConfig) *Cache {
	return &Cache{
		config:  config,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns a cached, unexpired value.
func (c *Cache) Get(key string) (string, bool) {
	if !c.config.Enabled {
		return "", false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || entry.expired(c.now()) {
		return "", false
	}
	return entry.value, true
}

// Set stores value under key.
func (c *Cache) Set(key, value string) {
	if !c.config.Enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.config.MaxSize > 0 && len(c.entries) >= c.config.MaxSize {
		c.evictLocked()
	}

	entry := cacheEntry{value: value}
	if c.config.TTL > 0 {
		entry.expiresAt = c.now().Add(c.config.TTL)
	}
	c.entries[key] = entry
}

// evictLocked drops the entry that expires first. Entries without a TTL
// are dropped in map order.
func (c *Cache) evictLocked() {
	var victim string
	var soonest time.Time
	for k, e := range c.entries {
		if victim == "" || e.expiresAt.Before(soonest) {
			victim, soonest = k, e.expiresAt
		}
	}
	delete(c.entries, victim)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Size returns the current number of cached entries.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
