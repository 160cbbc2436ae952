package classify

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/queryon/queryon/ai/cache"
)

// Cache memoises LLM classification verdicts. Keys are derived from the
// normalised query only, so it must be bypassed whenever conversation
// history is in play.
type Cache struct {
	lru    *cache.LRUCache[string, Result]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates a classification cache. capacity <= 0 defaults to 500,
// ttl <= 0 to 30 minutes.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 500
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Cache{lru: cache.NewLRUCache[string, Result](capacity, ttl)}
}

// Get returns the cached verdict for a query.
func (c *Cache) Get(query string) (Result, bool) {
	r, ok := c.lru.Get(hashKey(query))
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return r, ok
}

// Set stores a verdict under the normalised query.
func (c *Cache) Set(query string, r Result) {
	c.lru.SetWithDefaultTTL(hashKey(query), r)
}

// Stats returns hit and miss counts since construction.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Size returns the number of live entries.
func (c *Cache) Size() int {
	return c.lru.Size()
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.lru.Clear()
}

// hashKey hashes the normalised query. The first 8 bytes of SHA256 keep
// keys short with negligible collision odds.
func hashKey(query string) string {
	sum := sha256.Sum256([]byte(normalizeQuery(query)))
	return "classify:" + hex.EncodeToString(sum[:8])
}
