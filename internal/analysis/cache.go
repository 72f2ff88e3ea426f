package analysis

import (
	"sync"
	"time"
)

// entry is one cached analysis result with its expiry.
type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a TTL result cache keyed by (fingerprint, operation, params).
// Expired entries are dropped lazily on read and swept when a dataset is
// invalidated.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

func cacheKey(fp Fingerprint, op, params string) string {
	return string(fp) + "|" + op + "|" + params
}

// Get returns the cached value for the key, or false when absent or expired.
func (c *Cache) Get(fp Fingerprint, op, params string) (any, bool) {
	key := cacheKey(fp, op, params)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Put stores a value under the key with the cache's TTL.
func (c *Cache) Put(fp Fingerprint, op, params string, value any) {
	key := cacheKey(fp, op, params)
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate drops every entry belonging to a fingerprint. Called when a
// new upload supersedes the dataset.
func (c *Cache) Invalidate(fp Fingerprint) {
	prefix := string(fp) + "|"
	c.mu.Lock()
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

// Len reports the number of live entries, expired included until swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
