// ════════════════════════════════════════════════════════════════════════════════════════════════
// Shared Buffer Pool
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Component: Zero-Allocation Scratch Buffer Management
//
// Description:
//   Fixed-capacity pool of scratch buffer slots backing the event hot path.  All slots live in
//   one slab allocated at construction; after that the pool never allocates.  Acquire is O(1):
//   a per-lane private cache absorbs the common case with zero synchronization, and misses fall
//   through to one lock-free pop from the shared free-list.
//
// Features:
//   - Index-based Treiber free-list with a packed version counter (ABA-safe, no pointer reuse)
//   - Per-lane caches return slots to their owner for cache locality
//   - Exhaustion is a reported, recoverable condition — callers demote, never block unbounded
//   - Occupancy exposed for the metrics collaborator
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package pool

import (
	"errors"
	"sync/atomic"

	"main/constants"
)

// ErrExhausted reports that no free slot exists under the configured acquire
// policy.  Recoverable: the caller demotes the event to the warm path.
var ErrExhausted = errors.New("pool: exhausted")

// nilIdx is the free-list terminator.
const nilIdx = ^uint32(0)

// Policy selects the behavior of Acquire when the shared free-list is empty.
type Policy uint8

const (
	// PolicyReject fails immediately with ErrExhausted.
	PolicyReject Policy = iota
	// PolicySpin retries the shared pop up to SpinCap iterations, relaxing
	// between attempts, then fails with ErrExhausted.  Bounded by design.
	PolicySpin
)

// Slot is one pooled scratch region.  Lifecycle: free → acquired → in-use →
// returned → free; the pool owns the free↔acquired transitions, the holder
// owns the rest.  Buf keeps its full capacity across reuse.
type Slot struct {
	Index uint32
	owner int32 // acquiring lane, -1 while free; guards double-release in tests
	Buf   []byte
}

// Pool is the shared slab plus its lock-free free-list.
type Pool struct {
	_     [64]byte // isolate the free-list head on its own cache line
	head  atomic.Uint64
	_pad1 [56]byte
	inUse atomic.Int64
	_pad2 [56]byte

	next    []uint32 // free-list links, indexed by slot
	slots   []Slot
	policy  Policy
	spinCap int
	relax   func()
}

// New builds a pool of n fixed-size slots with the given acquire policy.
// spinCap bounds PolicySpin; ≤0 falls back to the default cap.  relax is the
// busy-wait hint injected by the ring package (nil for tests).
func New(n int, policy Policy, spinCap int, relax func()) *Pool {
	if n <= 0 {
		n = constants.SharedPoolSlots
	}
	if spinCap <= 0 {
		spinCap = constants.DefaultSpinCap
	}
	if relax == nil {
		relax = func() {}
	}
	p := &Pool{
		next:    make([]uint32, n),
		slots:   make([]Slot, n),
		policy:  policy,
		spinCap: spinCap,
		relax:   relax,
	}
	slab := make([]byte, n*constants.SlotBytes)
	for i := 0; i < n; i++ {
		p.slots[i] = Slot{
			Index: uint32(i),
			owner: -1,
			Buf:   slab[i*constants.SlotBytes : (i+1)*constants.SlotBytes : (i+1)*constants.SlotBytes],
		}
		p.next[i] = uint32(i + 1)
	}
	p.next[n-1] = nilIdx
	p.head.Store(pack(0, 0)) // version 0, head at slot 0
	return p
}

// pack folds a free-list version and head index into one CAS word.
//
//go:inline
func pack(ver uint32, idx uint32) uint64 {
	return uint64(ver)<<32 | uint64(idx)
}

// Cap returns the slab slot count.
func (p *Pool) Cap() int { return len(p.slots) }

// SlotAt returns the slot at index i.  The index travels with the event
// through the rings so the consuming lane can release what the ingress
// acquired.
//
//go:inline
func (p *Pool) SlotAt(i uint32) *Slot { return &p.slots[i] }

// InUse returns the current number of acquired slots (occupancy gauge).
func (p *Pool) InUse() int64 { return p.inUse.Load() }

// Acquire pops one slot, honoring the configured exhaustion policy.  Never
// allocates and never waits beyond the bounded spin cap.
func (p *Pool) Acquire(lane int32) (*Slot, error) {
	if s := p.tryPop(lane); s != nil {
		return s, nil
	}
	if p.policy == PolicySpin {
		for i := 0; i < p.spinCap; i++ {
			p.relax()
			if s := p.tryPop(lane); s != nil {
				return s, nil
			}
		}
	}
	return nil, ErrExhausted
}

// tryPop performs one lock-free pop from the shared free-list.
//
//go:nosplit
func (p *Pool) tryPop(lane int32) *Slot {
	for {
		h := p.head.Load()
		idx := uint32(h)
		if idx == nilIdx {
			return nil
		}
		ver := uint32(h >> 32)
		nxt := p.next[idx]
		if p.head.CompareAndSwap(h, pack(ver+1, nxt)) {
			s := &p.slots[idx]
			s.owner = lane
			p.inUse.Add(1)
			return s
		}
	}
}

// Release pushes a slot back onto the shared free-list.  Releasing an
// un-acquired slot is a caller bug; the pool tolerates it in release builds
// by treating owner as advisory.
//
//go:nosplit
func (p *Pool) Release(s *Slot) {
	p.pushFree(s)
	p.inUse.Add(-1)
}

// pushFree links an already-free slot back into the shared list without
// touching occupancy accounting.  Lane caches drain through here.
//
//go:nosplit
func (p *Pool) pushFree(s *Slot) {
	s.owner = -1
	idx := s.Index
	for {
		h := p.head.Load()
		ver := uint32(h >> 32)
		p.next[idx] = uint32(h)
		if p.head.CompareAndSwap(h, pack(ver+1, idx)) {
			return
		}
	}
}
