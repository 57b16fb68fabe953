// dispatch.go — workflow fan-out operators
//
// Three exclusive operation kinds decide how one confirmed match reaches its
// branches.  The kind is a property of the matched hook, fixed at
// registration: identical event + identical hook set always selects the same
// operator and fires the same fan-out set.
//
//   Discriminator    — branches are tried in registration order; the first
//                      to confirm wins and the rest are never invoked.
//   Parallel Split   — every branch fires, unconditionally and
//                      independently; one branch's failure is invisible to
//                      the others.
//   Synchronization  — every branch fires, but the event stays open in the
//                      sync arena until all branches report (or the tick
//                      deadline demotes it).

package dispatch

import (
	"errors"

	"main/types"
)

// ErrNoHandler reports a hook branch with no bound handler — a registration
// bug surfaced at dispatch wiring time, not on the hot path.
var ErrNoHandler = errors.New("dispatch: branch has no bound handler")

// Handler executes one branch for one event.  The bool is the branch's
// confirmation: Discriminator stops at the first true; Parallel Split
// ignores it; Synchronization treats true as immediate completion and false
// as work continuing elsewhere (reported later via Arena.Complete).
type Handler func(branch uint32, ev *types.Event) bool

// Table maps branch IDs to handlers.  Built once at engine wiring; read-only
// on the hot path.
type Table struct {
	handlers []Handler
}

// NewTable sizes the handler table for the largest branch ID in use.
func NewTable(maxBranch int) *Table {
	return &Table{handlers: make([]Handler, maxBranch+1)}
}

// Bind attaches a handler to a branch ID.
func (t *Table) Bind(branch uint32, h Handler) error {
	if int(branch) >= len(t.handlers) {
		return ErrNoHandler
	}
	t.handlers[branch] = h
	return nil
}

// Validate confirms every branch of every hook resolves to a handler, so
// lanes never nil-check on the hot path.
func (t *Table) Validate(hooks []types.HookEntry) error {
	for i := range hooks {
		for _, b := range hooks[i].Branches {
			if int(b) >= len(t.handlers) || t.handlers[b] == nil {
				return ErrNoHandler
			}
		}
	}
	return nil
}

// Outcome summarizes one dispatch for receipt emission.
type Outcome struct {
	Fired uint32 // branches invoked
	Token Token  // open synchronization, when Held
	Held  bool   // true while a Synchronization awaits branches
}

// Discriminator fires branches in order until the first confirms.  Branches
// after the winner are short-circuited — never invoked.
//
//go:nosplit
func (t *Table) Discriminator(ev *types.Event, branches []uint32) Outcome {
	for _, b := range branches {
		if t.handlers[b](b, ev) {
			return Outcome{Fired: 1}
		}
	}
	// No branch confirmed: every branch was offered the event; fan-out is
	// complete with zero winners, which is a valid terminal state.
	return Outcome{Fired: 0}
}

// ParallelSplit fires every branch unconditionally.
//
//go:nosplit
func (t *Table) ParallelSplit(ev *types.Event, branches []uint32) Outcome {
	for _, b := range branches {
		t.handlers[b](b, ev)
	}
	return Outcome{Fired: uint32(len(branches))}
}

// Synchronization opens an arena slot, fires every branch, and folds any
// synchronous confirmations straight into the slot.  When every branch
// completed inline the outcome is closed; otherwise the event is Held and
// later Arena.Complete calls (from any lane) or the deadline sweep decide
// its fate.
func (t *Table) Synchronization(
	a *Arena,
	ev *types.Event,
	hookRow uint32,
	lane uint32,
	branches []uint32,
	start, deadline uint64,
) (Outcome, error) {
	tok, err := a.Open(ev, hookRow, lane, len(branches), start, deadline)
	if err != nil {
		return Outcome{}, err
	}
	closed := false
	for i, b := range branches {
		if t.handlers[b](b, ev) {
			if a.Complete(tok, i) {
				closed = true
			}
		}
	}
	if closed {
		return Outcome{Fired: uint32(len(branches))}, nil
	}
	return Outcome{Fired: uint32(len(branches)), Token: tok, Held: true}, nil
}
