package slide

import (
	"context"
	"sync"
)

// HandleCache caches open Readers by slide id with LRU eviction, using
// a single mutex over a map plus a recency-ordered slice of ids.
// Renewing an entry's recency scans that slice to remove the id and
// then appends it, so it is O(n) in the number of cached handles, not
// O(1).
type HandleCache struct {
	mu      sync.Mutex
	opener  Opener
	entries map[string]Reader
	order   []string
	maxSize int
}

// NewHandleCache builds a cache that opens slides via opener and keeps
// at most maxSize handles, evicting the least recently used.
func NewHandleCache(opener Opener, maxSize int) *HandleCache {
	if maxSize <= 0 {
		maxSize = 10
	}
	return &HandleCache{
		opener:  opener,
		entries: make(map[string]Reader, maxSize),
		maxSize: maxSize,
	}
}

// Get returns the cached Reader for slideID, opening and inserting it
// if absent. The lock is held only for the map lookup/insert/reorder,
// never across the Open call itself.
func (c *HandleCache) Get(ctx context.Context, slideID string) (Reader, error) {
	c.mu.Lock()
	if r, ok := c.entries[slideID]; ok {
		c.touch(slideID)
		c.mu.Unlock()
		return r, nil
	}
	c.mu.Unlock()

	r, err := c.opener.Open(ctx, slideID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[slideID]; ok {
		// Lost a race with another opener; keep the winner, discard ours.
		r.Close()
		c.touch(slideID)
		return existing, nil
	}

	c.entries[slideID] = r
	c.order = append(c.order, slideID)
	c.evictLocked()
	return r, nil
}

// touch moves slideID to the most-recently-used end. Must be called
// with c.mu held.
func (c *HandleCache) touch(slideID string) {
	for i, id := range c.order {
		if id == slideID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, slideID)
}

// evictLocked drops the least recently used handle until the cache is
// within capacity. Must be called with c.mu held.
func (c *HandleCache) evictLocked() {
	for len(c.order) > c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		if r, ok := c.entries[oldest]; ok {
			r.Close()
			delete(c.entries, oldest)
		}
	}
}

// Close closes every cached handle.
func (c *HandleCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.entries {
		r.Close()
	}
	c.entries = make(map[string]Reader)
	c.order = nil
	return nil
}
