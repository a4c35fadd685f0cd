package embeddings

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache stores vectors keyed by a content hash. Implementations must be safe
// for concurrent use. Every Get counts as a hit or a miss in Stats, and
// Purge resets the counters.
type Cache interface {
	Get(key string) ([]float32, bool)
	Add(key string, vector []float32)
	Len() int
	Purge()
	Stats() CacheStats
}

// CacheStats reports cache effectiveness since the last Purge.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// LRUCache is a bounded least-recently-used cache with optional expiry.
type LRUCache struct {
	lru    *expirable.LRU[string, []float32]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewLRUCache creates a cache holding at most size entries, each expiring
// after ttl. A size of 0 means unbounded and a ttl of 0 disables expiry.
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	if size < 0 {
		size = 0
	}
	return &LRUCache{lru: expirable.NewLRU[string, []float32](size, nil, ttl)}
}

func (c *LRUCache) Get(key string) ([]float32, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

func (c *LRUCache) Add(key string, vector []float32) { c.lru.Add(key, vector) }
func (c *LRUCache) Len() int                         { return c.lru.Len() }

func (c *LRUCache) Purge() {
	c.lru.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
}

// Stats returns hit/miss counters and the current number of entries.
func (c *LRUCache) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Size: c.lru.Len()}
}

// cacheKey returns the content hash used as cache key.
func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
