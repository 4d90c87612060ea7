package slide

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// TileCacheKey identifies one encoded JPEG tile.
type TileCacheKey struct {
	SlideID string
	Level   int
	X, Y    int
}

func (k TileCacheKey) String() string {
	return fmt.Sprintf("%s/%d/%d/%d", k.SlideID, k.Level, k.X, k.Y)
}

// DefaultMaxCacheBytes is the default size-weighted cache budget.
const DefaultMaxCacheBytes = 256 << 20 // 256 MiB

// TileCache holds encoded JPEG bytes with a time-to-live, approximate
// time-to-idle (any Get resets the entry's TTL, since expirable.LRU
// does not separately track last-access apart from expiry), and a
// size-weighted eviction budget layered on top of it.
type TileCache struct {
	inner *lru.LRU[TileCacheKey, []byte]

	mu        sync.Mutex
	maxBytes  int64
	curBytes  int64
	sizeOf    map[TileCacheKey]int64

	hits, misses uint64
}

// NewTileCache builds a cache with the given TTL and size budget.
// Hashicorp's expirable LRU gives TTL eviction directly; the
// size-weighted budget above it evicts the oldest entries whenever
// total bytes would exceed maxBytes, approximating time-to-idle by
// resetting an entry's clock on every access (ttl param below).
func NewTileCache(ttl time.Duration, maxBytes int64) *TileCache {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxCacheBytes
	}
	c := &TileCache{maxBytes: maxBytes, sizeOf: make(map[TileCacheKey]int64)}
	c.inner = lru.NewLRU[TileCacheKey, []byte](0, c.onEvict, ttl)
	return c
}

func (c *TileCache) onEvict(key TileCacheKey, _ []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.curBytes -= c.sizeOf[key]
	delete(c.sizeOf, key)
}

// Get returns the cached bytes for key, resetting its TTL (an
// approximation of time-to-idle: the entry survives another full TTL
// window from this access).
func (c *TileCache) Get(key TileCacheKey) ([]byte, bool) {
	v, ok := c.inner.Get(key)
	c.mu.Lock()
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
	return v, ok
}

// Put inserts bytes for key, evicting the oldest entries first if
// doing so would exceed the size budget.
func (c *TileCache) Put(key TileCacheKey, data []byte) {
	c.mu.Lock()
	size := int64(len(data))
	if old, ok := c.sizeOf[key]; ok {
		c.curBytes -= old
	}
	c.sizeOf[key] = size
	c.curBytes += size
	for c.curBytes > c.maxBytes {
		oldestKey, _, ok := c.inner.GetOldest()
		if !ok {
			break
		}
		c.mu.Unlock()
		c.inner.Remove(oldestKey)
		c.mu.Lock()
	}
	c.mu.Unlock()

	c.inner.Add(key, data)
}

// Stats returns cumulative hit/miss counters.
func (c *TileCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
