// governor.go — tick budget measurement and enforcement
//
// The governor wraps the dequeue→dispatch span of every lane: read the cycle
// counter, run the span, read again, classify against the configured ceiling.
// Three outcomes:
//
//   within    — normal completion; receipt carries the measured ticks.
//   soft      — completed but over budget; receipt is flagged and the hook is
//               armed so its *next* event demotes to the warm path for
//               investigation (the completed dispatch is never undone).
//   hard      — a Synchronization hold crossed its deadline mid-flight; the
//               event demotes immediately and no hot-path receipt is emitted.
//
// The ceiling is runtime configuration, adjustable between epochs; nothing
// here hardcodes a budget.

package governor

import (
	"sync/atomic"

	"main/constants"
)

// Class is the budget classification of one completed span.
type Class uint8

const (
	// ClassWithin means the span finished at or under the ceiling.
	ClassWithin Class = iota
	// ClassSoft means the span finished over the ceiling.
	ClassSoft
)

// Governor owns the tick ceiling and the per-hook demote-next arming state.
type Governor struct {
	budget atomic.Uint64
	// armed[row] != 0 → the next event confirming hook row demotes for
	// investigation instead of dispatching.
	armed [constants.MaxHooks]atomic.Uint32
	// softCount tracks lifetime soft violations per hook row.
	softCount [constants.MaxHooks]atomic.Uint64
}

// New returns a governor with the given tick ceiling; ≤0 falls back to the
// compile-time default.
func New(budget uint64) *Governor {
	g := &Governor{}
	if budget == 0 {
		budget = constants.DefaultTickBudget
	}
	g.budget.Store(budget)
	return g
}

// Budget returns the active tick ceiling.
//
//go:nosplit
func (g *Governor) Budget() uint64 { return g.budget.Load() }

// SetBudget retunes the ceiling without restart; takes effect on the next
// span any lane measures.
func (g *Governor) SetBudget(v uint64) {
	if v == 0 {
		v = constants.DefaultTickBudget
	}
	g.budget.Store(v)
}

// Now reads the hardware cycle counter (RDTSC on amd64; calibrated
// monotonic-clock fallback elsewhere).
//
//go:nosplit
func (g *Governor) Now() uint64 { return ticks() }

// Elapsed returns the cycles consumed since start.
//
//go:nosplit
func (g *Governor) Elapsed(start uint64) uint64 { return ticks() - start }

// Deadline converts a span start into the absolute tick at which a
// multi-tick hold (Synchronization) must demote.
//
//go:nosplit
func (g *Governor) Deadline(start uint64) uint64 { return start + g.budget.Load() }

// Classify maps measured ticks onto the soft/within boundary.
//
//go:nosplit
func (g *Governor) Classify(elapsed uint64) Class {
	if elapsed > g.budget.Load() {
		return ClassSoft
	}
	return ClassWithin
}

// NoteSoft records a completed-over-budget span for hook row and arms the
// demote-next flag.  Row bounds are validated at hook registration.
func (g *Governor) NoteSoft(row uint32) {
	g.softCount[row].Add(1)
	g.armed[row].Store(1)
}

// TakeDemoteNext consumes the demote-next arm for row.  Returns true exactly
// once per NoteSoft, so one investigation event reaches the warm path per
// violation rather than a permanent drain.
//
//go:nosplit
func (g *Governor) TakeDemoteNext(row uint32) bool {
	return g.armed[row].CompareAndSwap(1, 0)
}

// SoftCount reports lifetime soft violations for a hook row (observability).
func (g *Governor) SoftCount(row uint32) uint64 { return g.softCount[row].Load() }

// ResetArms clears all demote-next state; called at epoch boundaries since
// row indices are only meaningful within one snapshot.
func (g *Governor) ResetArms() {
	for i := range g.armed {
		g.armed[i].Store(0)
	}
}
