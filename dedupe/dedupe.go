// dedupe.go — ingress duplicate suppression
//
// Producers frequently replay the same triple in quick succession (retried
// submissions, fan-in from redundant feeds).  The Deduper is a direct-mapped
// window over recent event identities: an exact repeat seen within the
// configured window is suppressed before it costs a lane a full span.
//
// The filter sits on the demux thread, which is the single consumer of the
// ingress ring — the Deduper assumes exclusive access and carries no
// synchronization.  False negatives are possible (a colliding entry evicts
// the slot) and harmless: a missed duplicate just gets matched twice.

package dedupe

import (
	"main/constants"
	"main/utils"
)

// Deduper is a direct-mapped cache of recent event identities.  Not safe for
// concurrent use.
//
//go:align 64
type Deduper struct {
	buf    [1 << constants.RingBits]dedupeSlot
	seq    uint64 // submissions observed, advances every Check
	window uint64 // suppression horizon in submissions
}

// dedupeSlot holds one remembered identity, padded to a full cache line.
//
//go:align 64
type dedupeSlot struct {
	quick uint64 // event fingerprint
	spo   uint64 // folded triple, disambiguates fingerprint collisions
	kind  uint32
	_     uint32
	seen  uint64 // submission sequence at entry
	_     [4]uint64
}

// New builds a deduper suppressing repeats within window submissions.
// window 0 disables suppression entirely; Check always reports new.
func New(window uint64) *Deduper {
	return &Deduper{window: window}
}

// Check tests whether the event identified by (quick, spoKey, kind) is NEW
// and should be processed.  A repeat inside the window returns false; new or
// aged-out identities are recorded and return true.
//
//go:inline
func (d *Deduper) Check(quick, spoKey uint64, kind uint32) bool {
	if d.window == 0 {
		return true
	}
	d.seq++
	slot := &d.buf[utils.Mix64(quick)&((1<<constants.RingBits)-1)]

	// Branchless exact match: XOR folds to zero only on full identity.
	exact := ((slot.quick ^ quick) | (slot.spo ^ spoKey) | uint64(slot.kind^kind)) == 0
	fresh := slot.seen > 0 && d.seq-slot.seen <= d.window

	if exact && fresh {
		return false
	}
	slot.quick = quick
	slot.spo = spoKey
	slot.kind = kind
	slot.seen = d.seq
	return true
}
