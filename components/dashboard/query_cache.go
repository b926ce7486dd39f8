package dashboard

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

// QueryCache is an in-memory TTL cache for query results.
type QueryCache struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]cachedResult
}

// cacheable results are copied into and out of the cache so callers never
// share backing arrays with a stored entry.
type cacheable interface {
	cloneResult() any
}

func cloneResult(value any) any {
	if c, ok := value.(cacheable); ok {
		return c.cloneResult()
	}
	return value
}

type cachedResult struct {
	value   any
	expires time.Time
}

// NewQueryCache builds a cache with the provided TTL. A non-positive TTL
// disables caching.
func NewQueryCache(ttl time.Duration, now func() time.Time) *QueryCache {
	if now == nil {
		now = time.Now
	}
	return &QueryCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cachedResult),
	}
}

// GetOrLoad returns a cached entry or loads and stores a new one. The
// second result reports a cache hit.
func (c *QueryCache) GetOrLoad(key string, load func() (any, error)) (any, bool, error) {
	if value, ok := c.get(key); ok {
		return value, true, nil
	}
	value, err := load()
	if err != nil {
		return nil, false, err
	}
	c.set(key, value)
	return value, false, nil
}

// Clear drops every entry.
func (c *QueryCache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]cachedResult)
	c.mu.Unlock()
}

// Len returns the number of live and expired entries.
func (c *QueryCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *QueryCache) get(key string) (any, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expires) {
		if ok {
			c.mu.Lock()
			delete(c.entries, key)
			c.mu.Unlock()
		}
		return nil, false
	}
	return cloneResult(entry.value), true
}

func (c *QueryCache) set(key string, value any) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = cachedResult{
		value:   cloneResult(value),
		expires: c.now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// queryKey returns a deterministic cache key for a query payload.
func queryKey(queryType string, payload any) string {
	b, err := json.Marshal(payload)
	if err != nil {
		return queryType + ":invalid"
	}
	sum := sha1.Sum(b)
	return queryType + ":" + hex.EncodeToString(sum[:])
}
