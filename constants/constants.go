// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: constants.go — Hot-Path Tunables & Sizing Constants
//
// Purpose:
//   - Defines compile-time sizing for the event rings, buffer pool and
//     synchronization arena.
//   - Values here are structural (array lengths, mask widths); anything an
//     operator may want to retune at runtime lives in config/ instead.
//
// Notes:
//   - Power-of-2 sizing throughout so index masking replaces modulo.
//   - Sized for L2/L3 residency on commodity server cores.
//
// ⚠️ No runtime logic here — all values must be compile-time resolvable.
// ─────────────────────────────────────────────────────────────────────────────

package constants

// ───────────────────────────── Event Rings ─────────────────────────────────

const (
	// RingBits sizes the per-lane event ring: 2^12 = 4,096 slots.
	// A lane drains in well under a millisecond at full budget, so 4K slots
	// absorb producer bursts without pushing the ring out of L2.
	RingBits = 12

	// RingSize is the derived slot count for a single lane ring.
	RingSize = 1 << RingBits

	// IngressRingBits sizes the shared multi-producer ingress ring feeding
	// the lane demultiplexer: 2^14 = 16,384 slots.
	IngressRingBits = 14

	// IngressRingSize is the derived ingress ring capacity.
	IngressRingSize = 1 << IngressRingBits
)

// ───────────────────────────── Buffer Pool ─────────────────────────────────

const (
	// SlotBytes is the fixed scratch capacity of one pooled buffer slot.
	// Large enough for a serialized event plus matcher scratch, small enough
	// that a full local cache stays inside one 4 KiB page.
	SlotBytes = 448

	// LocalCacheSlots is the per-lane private slot cache. Acquire/release
	// inside one lane never touches shared state while the cache has room.
	LocalCacheSlots = 8

	// SharedPoolSlots is the lock-free overflow free-list capacity shared by
	// all lanes. Power of two so the index free-list packs cleanly.
	SharedPoolSlots = 1 << 10
)

// ───────────────────────────── Hook Matching ───────────────────────────────

const (
	// MaxHooks caps the active hook set per epoch snapshot. The candidate
	// bitmask is MaxHooks/64 words; 1,024 hooks keeps the whole predicate
	// lane array plus mask inside L1.
	MaxHooks = 1024

	// MaskWords is the candidate bitmask width in 64-bit words.
	MaskWords = MaxHooks / 64

	// ScreenLaneWidth is the wide comparison kernel width: predicates are
	// padded to a multiple of four so the 4-wide screen never tail-checks.
	ScreenLaneWidth = 4
)

// ─────────────────────────── Synchronization Arena ─────────────────────────

const (
	// SyncArenaSlots bounds concurrently open Synchronization dispatches.
	// Each open dispatch holds one arena slot until all branches report or
	// the deadline demotes it.
	SyncArenaSlots = 1 << 8

	// MaxBranches caps the fan-out width of a single hook. Branch completion
	// state packs into one uint64 pending mask.
	MaxBranches = 64
)

// ───────────────────────────── Default Budgets ─────────────────────────────

const (
	// DefaultTickBudget is the fallback cycle ceiling when config supplies
	// none. Eight ticks matches the engine's design target; production
	// deployments tune this downward through config, never through code.
	DefaultTickBudget = 8

	// DefaultSpinCap bounds the pool bounded-spin acquire policy.
	DefaultSpinCap = 64
)
