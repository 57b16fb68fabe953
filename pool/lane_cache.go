// lane_cache.go — per-lane private slot cache in front of the shared pool
//
// Each matcher lane owns exactly one LaneCache.  Hits cost an array index and
// a counter mutation — no atomics, no sharing.  Misses fall through to the
// shared free-list; releases prefer the local cache so a lane's working set
// of slots stays resident in its core's L1/L2.

package pool

import "main/constants"

// LaneCache fronts a Pool for a single lane.  Not safe for concurrent use;
// one lane, one cache, by construction.
type LaneCache struct {
	lane  int32
	n     int
	local [constants.LocalCacheSlots]*Slot
	pool  *Pool
}

// NewLaneCache binds an empty cache to the shared pool for the given lane.
func NewLaneCache(lane int32, p *Pool) *LaneCache {
	return &LaneCache{lane: lane, pool: p}
}

// Acquire returns a slot from the local cache when possible, otherwise one
// lock-free pop from the shared pool (with the pool's exhaustion policy).
//
//go:nosplit
func (c *LaneCache) Acquire() (*Slot, error) {
	if c.n > 0 {
		c.n--
		s := c.local[c.n]
		c.local[c.n] = nil
		s.owner = c.lane
		c.pool.inUse.Add(1)
		return s, nil
	}
	return c.pool.Acquire(c.lane)
}

// Release keeps the slot locally while there is room, preserving locality;
// overflow spills to the shared free-list.
//
//go:nosplit
func (c *LaneCache) Release(s *Slot) {
	if c.n < len(c.local) {
		s.owner = -1
		c.local[c.n] = s
		c.n++
		c.pool.inUse.Add(-1)
		return
	}
	c.pool.Release(s)
}

// Drain spills every locally cached slot back to the shared pool.  Called on
// lane shutdown so conservation holds across engine restarts.
func (c *LaneCache) Drain() {
	for c.n > 0 {
		c.n--
		s := c.local[c.n]
		c.local[c.n] = nil
		c.pool.pushFree(s) // already counted free; skip occupancy accounting
	}
}
