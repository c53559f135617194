package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Cache keys shared between the ingestion tick and the query surface.
const (
	KeyFrontpage = "frontpage_response"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// Cache is a short-TTL in-process response cache with explicit key
// invalidation. The ingestion tick invalidates on completion so readers
// never serve a window older than one TTL past the latest tick.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	clock   clockwork.Clock
}

// New creates a cache with the given TTL.
func New(ttl time.Duration, clock clockwork.Clock) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the cached value for key, or false on a miss or expiry.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if c.clock.Now().After(e.expiresAt) {
		// expired entries are left behind for Invalidate or the next
		// Set to reap; reads hold only the read lock
		return nil, false
	}

	return e.value, true
}

// Set stores a value under key for one TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{
		value:     value,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
}

// Invalidate removes a key immediately.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
