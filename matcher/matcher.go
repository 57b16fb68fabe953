// matcher.go — two-stage predicate matching
//
// Stage one (screen) compares the event predicate against the snapshot's
// contiguous predicate lane and produces a candidate bitmask; stage two
// (confirm) resolves subject/object patterns and wildcards for set bits
// only.  The screen is the cheap filter, the confirm the expensive one —
// keeping the expensive work proportional to candidates, not hooks.
//
// Three screen kernels exist: a 4-wide unrolled compare (the wide vector
// path), a 2-wide variant, and a one-at-a-time scalar reference.  All three
// must produce bitwise-identical masks for identical inputs; that
// equivalence is a correctness invariant the differential tests pin down,
// not a performance nicety.

package matcher

import (
	"math/bits"

	"main/constants"
	"main/hookset"
	"main/types"
)

// Matcher binds a selected screen kernel.  Construct once at engine init;
// the zero value screens with the scalar kernel.
type Matcher struct {
	kernel Kernel
}

// New returns a matcher using the given kernel; KernelAuto detects one.
func New(k Kernel) *Matcher {
	if k == KernelAuto {
		k = Detect()
	}
	return &Matcher{kernel: k}
}

// KernelName reports the active screen kernel for startup diagnostics.
func (m *Matcher) KernelName() string { return m.kernel.String() }

// Screen writes the candidate bitmask for ev's predicate into mask, which
// must hold constants.MaskWords words.  Empty snapshots cost one memclr.
//
//go:nosplit
func (m *Matcher) Screen(ev *types.Event, snap *hookset.Snapshot, mask *[constants.MaskWords]uint64) {
	for i := range mask {
		mask[i] = 0
	}
	if snap.Len() == 0 {
		return
	}
	switch m.kernel {
	case KernelWide4:
		screen4(ev.Predicate, snap.Preds(), mask)
	case KernelWide2:
		screen2(ev.Predicate, snap.Preds(), mask)
	default:
		screenScalar(ev.Predicate, snap.Preds(), mask)
	}
	wild, tail := snap.WildMask(), snap.TailMask()
	for i := range mask {
		mask[i] = (mask[i] | wild[i]) & tail[i]
	}
}

// CrossCheck reruns the screen with the scalar reference kernel and reports
// whether the active kernel's mask agrees.  Enabled by config on canary
// deployments; a disagreement is an internal invariant violation and the
// event is demoted with ReasonAmbiguousMatch.
func (m *Matcher) CrossCheck(ev *types.Event, snap *hookset.Snapshot, mask *[constants.MaskWords]uint64) bool {
	if m.kernel == KernelScalar {
		return true
	}
	var ref [constants.MaskWords]uint64
	screenScalar(ev.Predicate, snap.Preds(), &ref)
	wild, tail := snap.WildMask(), snap.TailMask()
	for i := range ref {
		ref[i] = (ref[i] | wild[i]) & tail[i]
		if ref[i] != mask[i] {
			return false
		}
	}
	return true
}

// Confirm resolves full patterns for each candidate bit and appends the
// surviving snapshot rows to out, returning the extended slice.  Row order
// (ascending) keeps dispatch deterministic for identical inputs.
//
//go:nosplit
func Confirm(ev *types.Event, snap *hookset.Snapshot, mask *[constants.MaskWords]uint64, out []uint32) []uint32 {
	hooks := snap.Hooks
	for w, word := range mask {
		for word != 0 {
			row := uint32(w<<6) + uint32(bits.TrailingZeros64(word))
			word &= word - 1

			h := &hooks[row]
			if h.Subject != types.WildcardID && h.Subject != ev.Subject {
				continue
			}
			if h.Object != types.WildcardID && h.Object != ev.Object {
				continue
			}
			if h.Predicate != types.WildcardID && h.Predicate != ev.Predicate {
				continue // wildcard screen bit, predicate constrained elsewhere
			}
			out = append(out, row)
		}
	}
	return out
}

// Cardinality counts set candidate bits; feeds the bitmask-cardinality
// distribution gauge.
//
//go:nosplit
func Cardinality(mask *[constants.MaskWords]uint64) int {
	n := 0
	for _, w := range mask {
		n += bits.OnesCount64(w)
	}
	return n
}
