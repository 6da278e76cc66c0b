package leaderboard

import (
	"sync"

	"assignment-tracker-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Cache is a read-side rebuild cache over the authoritative assignment
// set. Reads after a mutation recompute from source; concurrent readers
// coalesce onto a single rebuild via singleflight.
//
// The generation counter fences rebuilds against concurrent
// invalidation: a rebuild that snapshotted source state before an
// Invalidate must not be stored as current, and Forget keeps
// post-invalidate readers from joining that in-flight rebuild. Without
// the fence, a mutation landing mid-rebuild would pin pre-mutation
// standings until the next mutation.
type Cache struct {
	source func() domain.Leaderboard
	sf     singleflight.Group

	mu    sync.RWMutex
	lb    domain.Leaderboard
	valid bool
	gen   uint64
}

func NewCache(source func() domain.Leaderboard) *Cache {
	return &Cache{source: source}
}

// Get returns the cached standings, rebuilding from source when stale.
// Callers that arrive after an Invalidate never observe a rebuild older
// than that Invalidate.
func (c *Cache) Get() domain.Leaderboard {
	c.mu.RLock()
	if c.valid {
		lb := c.lb
		c.mu.RUnlock()
		return lb
	}
	c.mu.RUnlock()

	result, _, _ := c.sf.Do("rebuild", func() (interface{}, error) {
		c.mu.RLock()
		if c.valid {
			lb := c.lb
			c.mu.RUnlock()
			return lb, nil
		}
		gen := c.gen
		c.mu.RUnlock()

		lb := c.source()

		c.mu.Lock()
		if c.gen == gen {
			c.lb = lb
			c.valid = true
		}
		c.mu.Unlock()
		return lb, nil
	})
	return result.(domain.Leaderboard)
}

// Invalidate marks the cache stale and fences any rebuild still in
// flight: its result will not be stored, and later Gets start fresh
// instead of joining it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.gen++
	c.mu.Unlock()
	c.sf.Forget("rebuild")
}
