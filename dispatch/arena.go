// arena.go — cross-tick state for Synchronization dispatch
//
// Synchronization is the one operator that holds an event open past a single
// tick, so its state lives in an explicit fixed-capacity arena instead of a
// suspended stack frame: any lane (or the deadline sweep) can resume or
// demote a slot, not only the lane that opened it.
//
// Slot protocol:
//
//   free ──Open CAS──▶ claimed ──fields written──▶ pending
//                                                     │
//                      ┌──────────────────────────────┤
//                      ▼                              ▼
//            last Complete──▶ complete     deadline Sweep──▶ demoted
//                      │                              │
//                      └────────────▶ free ◀──────────┘
//
// The claimed state is invisible to Complete and Sweep: a slot becomes
// shared only at the pending store, after every field is written, so no
// reader can observe a half-initialized occupant.  The pending→complete and
// pending→demoted edges are single CAS winners, so a late branch completion
// racing a deadline demotion resolves to exactly one outcome.  Tokens carry
// a slot generation; completions aimed at a recycled slot miss the
// generation check and become no-ops, which is what makes demotion
// idempotent from the caller's point of view.

package dispatch

import (
	"errors"
	"sync/atomic"

	"main/constants"
	"main/types"
	"main/utils"
)

// ErrArenaFull reports that every sync slot is open; the caller demotes the
// event rather than waiting for one.
var ErrArenaFull = errors.New("dispatch: sync arena full")

// Slot states.
const (
	slotFree uint32 = iota
	slotClaimed // owned by an in-flight Open; not yet visible to anyone else
	slotPending
	slotComplete
	slotDemoted
)

// Token names one open synchronization: slot index in the low word, slot
// generation in the high word.
type Token uint64

//go:inline
func makeToken(idx, gen uint32) Token { return Token(uint64(gen)<<32 | uint64(idx)) }

//go:inline
func (t Token) split() (idx, gen uint32) { return uint32(t), uint32(t >> 32) }

// syncState is one arena slot, padded so concurrently active slots never
// share a cache line.
//
//go:align 64
type syncState struct {
	state    atomic.Uint32
	gen      atomic.Uint32
	pending  atomic.Uint64 // one bit per unfinished branch
	deadline uint64        // absolute tick; written before publish
	hookRow  uint32
	lane     uint32
	start    uint64
	ev       types.Event
	_        [24]byte
}

// Arena is the fixed pool of synchronization slots plus the completion and
// demotion callbacks the engine wires in.
type Arena struct {
	slots [constants.SyncArenaSlots]syncState

	// onComplete fires once when every branch of a slot has reported.
	onComplete func(ev *types.Event, hookRow uint32, lane uint32, start uint64)
	// onDemote fires once when the deadline sweep pulls a slot; pendingMask
	// is the branch work still outstanding at demotion.
	onDemote func(ev *types.Event, hookRow uint32, pendingMask uint64, start uint64)
}

// NewArena wires the two outcome callbacks; nil callbacks become no-ops so
// unit tests can exercise slices of the protocol.
func NewArena(
	onComplete func(*types.Event, uint32, uint32, uint64),
	onDemote func(*types.Event, uint32, uint64, uint64),
) *Arena {
	if onComplete == nil {
		onComplete = func(*types.Event, uint32, uint32, uint64) {}
	}
	if onDemote == nil {
		onDemote = func(*types.Event, uint32, uint64, uint64) {}
	}
	return &Arena{onComplete: onComplete, onDemote: onDemote}
}

// Open claims a slot for ev with branchCount outstanding branches and the
// given absolute tick deadline.  The event is copied in: the caller's buffer
// slot is released independently of how long the synchronization stays open.
func (a *Arena) Open(ev *types.Event, hookRow uint32, lane uint32, branchCount int, start, deadline uint64) (Token, error) {
	if branchCount <= 0 || branchCount > constants.MaxBranches {
		return 0, ErrArenaFull
	}
	mask := ^uint64(0) >> uint(64-branchCount)
	probe := utils.Mix64(ev.QuickHash) & uint64(constants.SyncArenaSlots-1)
	for i := 0; i < constants.SyncArenaSlots; i++ {
		s := &a.slots[(probe+uint64(i))&uint64(constants.SyncArenaSlots-1)]
		if s.state.Load() != slotFree {
			continue
		}
		if !s.state.CompareAndSwap(slotFree, slotClaimed) {
			continue
		}
		// The slot is ours but invisible: Complete and Sweep only act on
		// slotPending, so every field (and the token's generation) is
		// settled before the publishing store below.
		s.ev = *ev
		s.hookRow = hookRow
		s.lane = lane
		s.start = start
		s.deadline = deadline
		s.pending.Store(mask)
		tok := makeToken(uint32((probe+uint64(i))&uint64(constants.SyncArenaSlots-1)), s.gen.Load())
		s.state.Store(slotPending)
		return tok, nil
	}
	return 0, ErrArenaFull
}

// Complete reports branch completion on an open synchronization.  Safe from
// any goroutine; stale tokens (recycled or demoted slots) and duplicate
// branch reports are no-ops.  Returns true when this call closed the slot.
func (a *Arena) Complete(t Token, branch int) bool {
	idx, gen := t.split()
	if int(idx) >= len(a.slots) || branch < 0 || branch >= constants.MaxBranches {
		return false
	}
	s := &a.slots[idx]
	bit := uint64(1) << uint(branch)
	for {
		if s.gen.Load() != gen || s.state.Load() != slotPending {
			return false // demoted, completed, or recycled — late report is a no-op
		}
		old := s.pending.Load()
		if old&bit == 0 {
			return false // duplicate report
		}
		if !s.pending.CompareAndSwap(old, old&^bit) {
			continue // concurrent branch reported; revalidate and retry
		}
		// The swap must not stand if the slot was demoted and recycled
		// between the validation and the CAS.  Restoring the bit can at
		// worst route the new occupant through the deadline sweep; it can
		// never close a slot with branches outstanding.
		if s.gen.Load() != gen {
			s.pending.Or(bit)
			return false
		}
		if old&^bit != 0 {
			return false // branches still outstanding
		}
		if !s.state.CompareAndSwap(slotPending, slotComplete) {
			return false // deadline sweep won the race; demotion owns the slot
		}
		a.onComplete(&s.ev, s.hookRow, s.lane, s.start)
		a.release(s)
		return true
	}
}

// Sweep demotes every slot whose deadline has passed.  Lanes call it
// opportunistically from their miss path; the engine also drives it from a
// slow ticker so quiet systems still reap.  Returns demotions performed.
func (a *Arena) Sweep(now uint64) int {
	n := 0
	for i := range a.slots {
		s := &a.slots[i]
		if s.state.Load() != slotPending || now <= s.deadline {
			continue
		}
		if !s.state.CompareAndSwap(slotPending, slotDemoted) {
			continue // completion won the race
		}
		a.onDemote(&s.ev, s.hookRow, s.pending.Load(), s.start)
		a.release(s)
		n++
	}
	return n
}

// PendingCount reports slots currently open; feeds the observability gauge.
func (a *Arena) PendingCount() int {
	n := 0
	for i := range a.slots {
		if a.slots[i].state.Load() == slotPending {
			n++
		}
	}
	return n
}

// release recycles a closed slot: bump the generation first so stale tokens
// die, then publish the free state.
func (a *Arena) release(s *syncState) {
	s.gen.Add(1)
	s.state.Store(slotFree)
}
