// hookset.go — epoch-versioned hook snapshots
//
// The active hook set is the only long-lived shared state every lane reads.
// Mutation never happens in place: the control plane stages add/remove calls
// against a Registry, and Commit() builds a brand-new immutable Snapshot and
// swaps one atomic pointer.  A lane loads the pointer once per event, so any
// single matching pass observes exactly one epoch — never a mixed set.
//
// Inside a snapshot the predicates live in a structure-of-arrays lane padded
// to the wide-kernel width, with wildcard and tail bits precomputed, so the
// matcher's screen kernels run straight-line over contiguous memory.

package hookset

import (
	"errors"
	"sync"
	"sync/atomic"

	"main/constants"
	"main/types"
)

var (
	// ErrTooManyHooks reports that a commit would exceed the per-epoch cap.
	ErrTooManyHooks = errors.New("hookset: active hook cap exceeded")
	// ErrTooManyBranches reports a hook whose fan-out exceeds the pending
	// mask width.
	ErrTooManyBranches = errors.New("hookset: branch fan-out exceeds mask width")
	// ErrBadOperator reports a hook registered without a dispatch kind.
	ErrBadOperator = errors.New("hookset: invalid dispatch operator")
	// ErrUnknownHook reports an unregister for an ID not currently staged.
	ErrUnknownHook = errors.New("hookset: unknown hook id")
)

// padPredicate fills SoA rows past the real hook count.  The interner never
// assigns the all-ones term ID, so padded rows can never equal an event
// predicate; the tail mask removes them regardless.
const padPredicate = ^uint64(0)

// Snapshot is one immutable epoch of the hook set.  All slices are private
// to the snapshot and never mutated after Commit returns.
type Snapshot struct {
	Epoch uint64

	// Hooks holds the registered entries in stable row order; row index is
	// the bit position in the candidate mask.
	Hooks []types.HookEntry

	// preds is the SoA predicate lane, length padded to a multiple of the
	// wide kernel width.
	preds []uint64

	// wildMask raises the candidate bit of every wildcard-predicate hook at
	// screen stage; such hooks resolve fully at confirm stage.
	wildMask [constants.MaskWords]uint64

	// tailMask clears padded rows from the final screen word.
	tailMask [constants.MaskWords]uint64
}

// Len returns the number of registered hooks in this epoch.
func (s *Snapshot) Len() int { return len(s.Hooks) }

// Preds exposes the padded predicate lane for the screen kernels.
func (s *Snapshot) Preds() []uint64 { return s.preds }

// WildMask returns the precomputed wildcard-predicate bits.
func (s *Snapshot) WildMask() *[constants.MaskWords]uint64 { return &s.wildMask }

// TailMask returns the valid-row mask.
func (s *Snapshot) TailMask() *[constants.MaskWords]uint64 { return &s.tailMask }

// Registry owns the staged hook list and the published snapshot pointer.
// Register/Unregister are control-plane calls; they are serialized by a
// mutex and touch nothing a lane reads.  Only Commit is visible to lanes,
// through one atomic pointer swap.
type Registry struct {
	mu       sync.Mutex
	staged   []types.HookEntry
	epoch    uint64
	onCommit []func()
	current  atomic.Pointer[Snapshot]
}

// NewRegistry returns a registry whose published epoch 0 snapshot is empty,
// so lanes can start before the control plane registers anything.
func NewRegistry() *Registry {
	r := &Registry{}
	r.current.Store(buildSnapshot(0, nil))
	return r
}

// Register stages a hook for the next epoch.  The live snapshot is
// unaffected until Commit.
func (r *Registry) Register(h types.HookEntry) error {
	if h.Kind < types.OpDiscriminator || h.Kind > types.OpSynchronization {
		return ErrBadOperator
	}
	if len(h.Branches) > constants.MaxBranches {
		return ErrTooManyBranches
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.staged) >= constants.MaxHooks {
		return ErrTooManyHooks
	}
	r.staged = append(r.staged, h)
	return nil
}

// Unregister stages removal of a hook for the next epoch.
func (r *Registry) Unregister(id uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.staged {
		if r.staged[i].ID == id {
			r.staged = append(r.staged[:i], r.staged[i+1:]...)
			return nil
		}
	}
	return ErrUnknownHook
}

// Commit builds a snapshot from the staged set and publishes it.  This swap
// is the epoch boundary: in-flight matches keep the snapshot they loaded,
// later events observe the new epoch.
func (r *Registry) Commit() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	hooks := make([]types.HookEntry, len(r.staged))
	copy(hooks, r.staged)
	snap := buildSnapshot(r.epoch, hooks)
	r.current.Store(snap)
	for _, fn := range r.onCommit {
		fn()
	}
	return snap
}

// OnCommit registers fn to run after every epoch swap.  Row indices are only
// meaningful within one snapshot, so per-row state elsewhere (demote-next
// arms, soft counters) subscribes here to reset itself.
func (r *Registry) OnCommit(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onCommit = append(r.onCommit, fn)
}

// Load returns the live snapshot.  Lanes call this exactly once per event.
//
//go:nosplit
func (r *Registry) Load() *Snapshot {
	return r.current.Load()
}

func buildSnapshot(epoch uint64, hooks []types.HookEntry) *Snapshot {
	n := len(hooks)
	padded := (n + constants.ScreenLaneWidth - 1) &^ (constants.ScreenLaneWidth - 1)
	if padded == 0 {
		padded = constants.ScreenLaneWidth
	}
	s := &Snapshot{
		Epoch: epoch,
		Hooks: hooks,
		preds: make([]uint64, padded),
	}
	for i := 0; i < padded; i++ {
		if i < n {
			s.preds[i] = hooks[i].Predicate
			s.tailMask[i>>6] |= 1 << uint(i&63)
			if hooks[i].Predicate == types.WildcardID {
				s.wildMask[i>>6] |= 1 << uint(i&63)
			}
		} else {
			s.preds[i] = padPredicate
		}
	}
	return s
}
