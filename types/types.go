package types

// ============================================================================
// EVENT - HOT-PATH TRIPLE REPRESENTATION
// ============================================================================

// Event is the immutable unit of work carried through the matching pipeline.
// Subject/predicate/object are interned 64-bit term IDs assigned at ingress;
// the hot path never touches the original string forms. The struct is padded
// to a full cache line so adjacent ring slots never share a line.
//
// IMPORTANT: an Event is owned by exactly one buffer slot at a time. Lanes
// must not retain references past dispatch or demotion; the slot is recycled.
//
//go:align 64
type Event struct {
	Subject   uint64   // interned subject term ID
	Predicate uint64   // interned predicate term ID
	Object    uint64   // interned object term ID
	Kind      uint32   // producer-assigned event class
	Slot      uint32   // owning buffer-pool slot index
	QuickHash uint64   // xxhash fingerprint computed at ingress
	CorrID    [16]byte // opaque upstream correlation ID
	_         [8]byte  // pad to 64 bytes
}

// ============================================================================
// HOOK ENTRIES - REGISTERED MATCH PATTERNS
// ============================================================================

// OpKind selects the dispatch operator bound to a hook.
type OpKind uint8

const (
	// OpDiscriminator fires the first branch to confirm and short-circuits
	// the rest.
	OpDiscriminator OpKind = iota + 1

	// OpParallelSplit fans out to every branch unconditionally; branches
	// complete independently.
	OpParallelSplit

	// OpSynchronization fans out to every branch and holds the event open
	// until all branches report or the tick deadline demotes it.
	OpSynchronization
)

// String returns the canonical operator name.
func (k OpKind) String() string {
	switch k {
	case OpDiscriminator:
		return "discriminator"
	case OpParallelSplit:
		return "parallel_split"
	case OpSynchronization:
		return "synchronization"
	}
	return "invalid"
}

// WildcardID is the reserved term ID matching any value. Hook patterns use it
// for unconstrained positions; real terms are interned starting at 1.
const WildcardID uint64 = 0

// HookEntry is one registered pattern. Subject and Object may be WildcardID;
// Predicate may also be WildcardID, in which case the hook passes the screen
// stage unconditionally and is resolved at confirm time.
//
// Hooks are registered before a processing epoch begins and are immutable for
// its duration. Branches lists the downstream handler IDs the dispatch
// operator fans out to.
type HookEntry struct {
	ID        uint32
	Kind      OpKind
	Name      string
	Subject   uint64
	Predicate uint64
	Object    uint64
	Branches  []uint32
}

// ============================================================================
// DEMOTION - WARM PATH HAND-OFF
// ============================================================================

// Reason codes carried on every demotion. Nothing on the hot path is dropped
// silently: an event either dispatches with a receipt or demotes with one of
// these.
type Reason uint8

const (
	ReasonBudgetExceeded Reason = iota + 1
	ReasonPoolExhausted
	ReasonAmbiguousMatch
)

// String returns the reason code name used in warm-path diagnostics.
func (r Reason) String() string {
	switch r {
	case ReasonBudgetExceeded:
		return "budget_exceeded"
	case ReasonPoolExhausted:
		return "pool_exhausted"
	case ReasonAmbiguousMatch:
		return "ambiguous_match"
	}
	return "unknown"
}

// Demotion carries an event the hot path could not complete, plus whatever
// partial dispatch state existed when the governor pulled it. PendingMask is
// nonzero only for Synchronization dispatches that timed out mid-flight.
type Demotion struct {
	Event       Event
	Reason      Reason
	HookID      uint32
	PendingMask uint64
	Ticks       uint64
}

// ============================================================================
// RECEIPTS - AUDIT RECORDS
// ============================================================================

// ReceiptEntry is the audit record constructed once per completed dispatch.
// Ownership transfers to the lockchain collaborator the moment it is queued;
// the hot path never waits on persistence.
type ReceiptEntry struct {
	ID          uint64   // monotonic receipt sequence, minted by the emitter
	Ticks       uint64   // measured cycles for the dequeue→dispatch span
	Lanes       uint32   // lane bitmask the dispatch touched
	Flags       uint32   // FlagBudgetExceeded etc.
	Span        [16]byte // emitter span ID (UUID bytes)
	QuickHash   uint64   // event fingerprint for fast lookup
	ContentHash [32]byte // BLAKE2b-256 over the event's defining fields
	UnixMs      int64    // wall-clock emission time
}

// Receipt flag bits.
const (
	// FlagBudgetExceeded marks a dispatch that completed but overran the
	// configured tick ceiling.
	FlagBudgetExceeded uint32 = 1 << 0
)
