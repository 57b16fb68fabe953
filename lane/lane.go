// lane.go — single-lane match→dispatch span
//
// One Lane owns the full hot path for the events hashed to it: screen the
// predicate lane, confirm candidates, fan out through the hook's operator,
// measure the span, emit the receipt.  Everything here runs on the lane's
// pinned thread; the only cross-thread traffic is atomics (snapshot load,
// arena CAS, metric counters) and the non-blocking receipt/warm hand-offs.
//
// The tick governor closes the loop on the budget: spans that finish over
// the ceiling still deliver (soft violation), but they flag the receipt,
// bump the hook's violation count, and arm demote-next so the hook's next
// event takes the warm path for investigation instead of burning another
// hot-path span.

package lane

import (
	"main/constants"
	"main/dispatch"
	"main/governor"
	"main/hookset"
	"main/matcher"
	"main/metrics"
	"main/pool"
	"main/receipt"
	"main/types"
	"main/warm"
)

// Lane processes events end to end on one pinned core.  Not safe for
// concurrent use; the ring demux guarantees single-threaded delivery.
type Lane struct {
	id    uint32
	gov   *governor.Governor
	m     *matcher.Matcher
	hooks *hookset.Registry
	tbl   *dispatch.Table
	arena *dispatch.Arena
	emit  *receipt.Emitter
	warm  *warm.Resolver
	reg   *metrics.Registry
	cache *pool.LaneCache
	pool  *pool.Pool

	crossCheck bool

	// scratch, reused across events so Process never allocates
	mask       [constants.MaskWords]uint64
	confirmed  []uint32
	dispatched []uint32
}

// LaneDeps collects the shared collaborators a lane binds at construction.
type LaneDeps struct {
	Governor *governor.Governor
	Matcher  *matcher.Matcher
	Hooks    *hookset.Registry
	Table    *dispatch.Table
	Arena    *dispatch.Arena
	Emitter  *receipt.Emitter
	Warm     *warm.Resolver
	Metrics  *metrics.Registry
	Pool     *pool.Pool

	CrossCheck bool
}

// NewLane binds a lane to its shared collaborators.
func NewLane(id uint32, d LaneDeps) *Lane {
	return &Lane{
		id:         id,
		gov:        d.Governor,
		m:          d.Matcher,
		hooks:      d.Hooks,
		tbl:        d.Table,
		arena:      d.Arena,
		emit:       d.Emitter,
		warm:       d.Warm,
		reg:        d.Metrics,
		pool:       d.Pool,
		cache:      pool.NewLaneCache(int32(id), d.Pool),
		crossCheck: d.CrossCheck,
		confirmed:  make([]uint32, 0, constants.MaxHooks),
		dispatched: make([]uint32, 0, constants.MaxHooks),
	}
}

// Process runs the full span for one event and releases its pool slot.
func (l *Lane) Process(ev *types.Event) {
	l.process(ev)
	l.cache.Release(l.pool.SlotAt(ev.Slot))
}

func (l *Lane) process(ev *types.Event) {
	start := l.gov.Now()
	snap := l.hooks.Load()

	l.m.Screen(ev, snap, &l.mask)

	if l.crossCheck && !l.m.CrossCheck(ev, snap, &l.mask) {
		// Kernel disagreement: the wide path and the scalar reference saw
		// different candidate sets.  Never guess on the hot path — demote
		// and let the warm resolver re-run with reference semantics.
		l.reg.Inc(metrics.AmbiguousMatches)
		l.demote(ev, types.ReasonAmbiguousMatch, 0, 0, l.gov.Elapsed(start))
		return
	}

	l.confirmed = matcher.Confirm(ev, snap, &l.mask, l.confirmed[:0])
	l.reg.ObserveCardinality(len(l.confirmed))
	if len(l.confirmed) == 0 {
		return
	}
	l.reg.Inc(metrics.EventsMatched)

	deadline := l.gov.Deadline(start)
	flags := uint32(0)

	// inline collects rows whose dispatch completed on the hot path this
	// span; demoted and held rows never enter it, so the soft-violation
	// accounting below can only touch work that actually ran here.
	inline := l.dispatched[:0]
	// A closed Synchronization is receipted by the arena's completion
	// callback; the lane owes a receipt only for its own inline fan-outs.
	emitOwn := false

	for _, row := range l.confirmed {
		h := &snap.Hooks[row]

		if l.gov.TakeDemoteNext(row) {
			// The previous span for this hook ran over budget; route one
			// event to the warm path for an unbounded look instead of
			// risking another hot-path overrun.
			l.demote(ev, types.ReasonBudgetExceeded, h.ID, 0, l.gov.Elapsed(start))
			continue
		}

		switch h.Kind {
		case types.OpDiscriminator:
			l.reg.Inc(metrics.DispatchDiscriminator)
			l.tbl.Discriminator(ev, h.Branches)
			inline = append(inline, row)
			emitOwn = true

		case types.OpParallelSplit:
			l.reg.Inc(metrics.DispatchParallelSplit)
			l.tbl.ParallelSplit(ev, h.Branches)
			inline = append(inline, row)
			emitOwn = true

		case types.OpSynchronization:
			l.reg.Inc(metrics.DispatchSynchronization)
			out, err := l.tbl.Synchronization(l.arena, ev, row, l.id, h.Branches, start, deadline)
			if err != nil {
				// Arena full: the synchronization cannot be tracked, so the
				// whole fan-out moves to the warm path untouched.
				l.reg.Inc(metrics.PoolExhausted)
				l.demote(ev, types.ReasonPoolExhausted, h.ID, 0, l.gov.Elapsed(start))
				continue
			}
			if out.Held {
				// Receipt deferred: the arena's completion callback emits it
				// when the last branch reports (or the sweep demotes).
				l.reg.Inc(metrics.SyncHeld)
				continue
			}
			inline = append(inline, row)
		}
	}
	l.dispatched = inline

	elapsed := l.gov.Elapsed(start)
	l.reg.ObserveSpanTicks(elapsed)
	if len(inline) > 0 && l.gov.Classify(elapsed) == governor.ClassSoft {
		// Completed over budget: flag, count, and arm exactly the rows that
		// dispatched here.  A span that only demoted did no hot work and
		// must not re-arm the hook it just routed away, or one violation
		// would drain the hook to the warm path forever.
		l.reg.Inc(metrics.BudgetViolations)
		flags |= types.FlagBudgetExceeded
		for _, row := range inline {
			l.gov.NoteSoft(row)
		}
	}
	if emitOwn {
		l.emit.Emit(ev, elapsed, 1<<(l.id&31), flags)
	}
}

func (l *Lane) demote(ev *types.Event, reason types.Reason, hookID uint32, pendingMask uint64, ticks uint64) {
	l.warm.TryDemote(types.Demotion{
		Event:       *ev,
		Reason:      reason,
		HookID:      hookID,
		PendingMask: pendingMask,
		Ticks:       ticks,
	})
}

// Drain spills the lane's private slot cache back to the shared pool.
func (l *Lane) Drain() { l.cache.Drain() }
