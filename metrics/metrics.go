// metrics.go — lock-free counters and gauges for the matching engine
//
// Hot-path instrumentation is a single atomic add into a fixed array; the
// export side (OTel, logs) reads snapshots on its own cadence.  Emission is
// best-effort by construction: nothing here can block a lane.

package metrics

import "sync/atomic"

// ID indexes one counter in the registry.
type ID uint16

const (
	// EventsIngressed counts events accepted onto the ingress ring.
	EventsIngressed ID = iota
	// EventsMatched counts events with at least one confirmed hook.
	EventsMatched
	// EventsDeduped counts ingress events suppressed as recent duplicates.
	EventsDeduped
	// IngressFull counts producer pushes rejected by a full ingress ring.
	IngressFull
	// LaneRingFull counts demux hand-offs rejected by a full lane ring.
	LaneRingFull
	// PoolExhausted counts scratch acquisitions that failed under policy.
	PoolExhausted
	// DispatchDiscriminator counts discriminator dispatches.
	DispatchDiscriminator
	// DispatchParallelSplit counts parallel-split dispatches.
	DispatchParallelSplit
	// DispatchSynchronization counts synchronization dispatches.
	DispatchSynchronization
	// SyncHeld counts synchronizations left open past their opening span.
	SyncHeld
	// BudgetViolations counts completed-over-budget (soft) spans.
	BudgetViolations
	// Demotions counts events handed to the warm path, any reason.
	Demotions
	// AmbiguousMatches counts kernel cross-check disagreements.
	AmbiguousMatches
	// ReceiptsEmitted counts receipts queued to the lockchain channel.
	ReceiptsEmitted
	// ReceiptsDropped counts receipts shed by the emitter's bound policy.
	ReceiptsDropped
	// WarmResolved counts demoted events the warm path fully resolved.
	WarmResolved
	// WarmRejected counts demotions shed by a saturated warm channel.
	WarmRejected

	numIDs
)

// counterNames feeds exporters; order mirrors the ID block.
var counterNames = [numIDs]string{
	"events_ingressed_total",
	"events_matched_total",
	"events_deduped_total",
	"ingress_full_total",
	"lane_ring_full_total",
	"pool_exhausted_total",
	"dispatch_discriminator_total",
	"dispatch_parallel_split_total",
	"dispatch_synchronization_total",
	"sync_held_total",
	"budget_violations_total",
	"demotions_total",
	"ambiguous_matches_total",
	"receipts_emitted_total",
	"receipts_dropped_total",
	"warm_resolved_total",
	"warm_rejected_total",
}

// Name returns the export name for a counter ID.
func (id ID) Name() string { return counterNames[id] }

// CardinalityBuckets are the upper bounds of the candidate-bitmask
// cardinality distribution: 0, 1, 2, 4, 8, 16, 32, and overflow.
var CardinalityBuckets = [8]int{0, 1, 2, 4, 8, 16, 32, 1 << 30}

// Registry is the engine-wide metric store.  All mutators are single atomic
// operations; snapshots are torn-tolerant (each cell individually atomic),
// which is sufficient for monotonic counters.
type Registry struct {
	counters    [numIDs]atomic.Uint64
	cardinality [len(CardinalityBuckets)]atomic.Uint64

	// Hot-span tick aggregates: total/count for the mean, min/max for the
	// envelope.  Min starts at MaxUint64 so the first sample always lands.
	spanTotal atomic.Uint64
	spanCount atomic.Uint64
	spanMin   atomic.Uint64
	spanMax   atomic.Uint64

	// Gauge callbacks registered by owning subsystems; read at snapshot.
	poolInUse   func() int64
	syncPending func() int
}

// NewRegistry returns an empty registry with no gauge sources bound.
func NewRegistry() *Registry {
	r := &Registry{}
	r.spanMin.Store(^uint64(0))
	return r
}

// Inc adds one to a counter.
//
//go:nosplit
func (r *Registry) Inc(id ID) { r.counters[id].Add(1) }

// Add adds n to a counter.
//
//go:nosplit
func (r *Registry) Add(id ID, n uint64) { r.counters[id].Add(n) }

// Get reads one counter.
func (r *Registry) Get(id ID) uint64 { return r.counters[id].Load() }

// ObserveCardinality records one screen-mask cardinality sample into its
// bucket.
//
//go:nosplit
func (r *Registry) ObserveCardinality(n int) {
	for i, bound := range CardinalityBuckets {
		if n <= bound {
			r.cardinality[i].Add(1)
			return
		}
	}
}

// ObserveSpanTicks folds one completed hot-span duration into the tick
// aggregates.  Min/max CAS loops retry only under a concurrent improvement,
// which is rare once the envelope settles.
//
//go:nosplit
func (r *Registry) ObserveSpanTicks(t uint64) {
	r.spanTotal.Add(t)
	r.spanCount.Add(1)
	for {
		cur := r.spanMin.Load()
		if t >= cur || r.spanMin.CompareAndSwap(cur, t) {
			break
		}
	}
	for {
		cur := r.spanMax.Load()
		if t <= cur || r.spanMax.CompareAndSwap(cur, t) {
			break
		}
	}
}

// BindPoolGauge wires the buffer-pool occupancy source.
func (r *Registry) BindPoolGauge(fn func() int64) { r.poolInUse = fn }

// BindSyncGauge wires the open-synchronization source.
func (r *Registry) BindSyncGauge(fn func() int) { r.syncPending = fn }

// Snapshot is a point-in-time copy for exporters.
type Snapshot struct {
	Counters    [numIDs]uint64
	Cardinality [len(CardinalityBuckets)]uint64
	SpanTotal   uint64
	SpanCount   uint64
	SpanMin     uint64 // MaxUint64 until the first sample
	SpanMax     uint64
	PoolInUse   int64
	SyncPending int
}

// SnapshotNow captures all counters, histogram buckets and gauges.
func (r *Registry) SnapshotNow() Snapshot {
	var s Snapshot
	for i := range r.counters {
		s.Counters[i] = r.counters[i].Load()
	}
	for i := range r.cardinality {
		s.Cardinality[i] = r.cardinality[i].Load()
	}
	s.SpanTotal = r.spanTotal.Load()
	s.SpanCount = r.spanCount.Load()
	s.SpanMin = r.spanMin.Load()
	s.SpanMax = r.spanMax.Load()
	if r.poolInUse != nil {
		s.PoolInUse = r.poolInUse()
	}
	if r.syncPending != nil {
		s.SyncPending = r.syncPending()
	}
	return s
}

// NumCounters is the exported counter arity for exporter sizing.
const NumCounters = int(numIDs)
