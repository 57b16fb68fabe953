// engine.go — full-engine wiring and ingress demux
//
// The Engine owns every runtime collaborator: the shared buffer pool, the
// multi-producer ingress ring, one SPSC ring plus pinned Lane per core, the
// sync arena with its outcome callbacks, the receipt emitter, and the warm
// resolver.  Producers call Submit from any goroutine; a dedicated demux
// thread hashes each event to its lane so every downstream structure stays
// single-consumer.
//
// Event storage is the pool slab itself: Submit writes the event into an
// acquired slot's buffer and ships the pointer through the rings, so the hot
// path moves one word per hop and allocates nothing after construction.

package lane

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"main/constants"
	"main/control"
	"main/dedupe"
	"main/dispatch"
	"main/governor"
	"main/hookset"
	"main/matcher"
	"main/metrics"
	"main/pool"
	"main/receipt"
	"main/ring"
	"main/types"
	"main/utils"
	"main/warm"
)

// ErrIngressFull reports a rejected Submit; the caller's slot was already
// returned to the pool.
var ErrIngressFull = errors.New("lane: ingress ring full")

// ErrClosed reports a Submit after Close began.
var ErrClosed = errors.New("lane: engine closed")

// Options shapes an Engine.  Zero values fall back to the package defaults.
type Options struct {
	Lanes      int
	Kernel     matcher.Kernel
	CrossCheck bool
	TickBudget uint64

	PoolSlots  int
	PoolPolicy pool.Policy
	PoolSpin   int

	ReceiptBuffer int
	ReceiptPolicy receipt.Policy
	ReceiptSink   receipt.Sink

	WarmBuffer  int
	WarmWorkers int

	// DedupeWindow suppresses exact ingress repeats within this many
	// submissions; 0 disables the filter.
	DedupeWindow uint64
}

// Engine is the assembled event-matching pipeline.
type Engine struct {
	gov   *governor.Governor
	hooks *hookset.Registry
	tbl   *dispatch.Table
	arena *dispatch.Arena
	emit  *receipt.Emitter
	warm  *warm.Resolver
	reg   *metrics.Registry
	pool  *pool.Pool

	ingress *ring.MPRing
	dedupe  *dedupe.Deduper
	rings   []*ring.Ring
	lanes   []*Lane

	ingressLane int32 // pool owner id for producer-side acquires

	ingressClosed atomic.Uint32
	started       bool
	laneDone      []chan struct{}
	demuxDone     chan struct{}
	sweepDone     chan struct{}
	closeOnce     sync.Once
}

// New assembles an engine.  Hooks and the dispatch table must be fully
// registered and validated before Start; the snapshot swap handles later
// epoch changes.
func New(opt Options, hooks *hookset.Registry, tbl *dispatch.Table, reg *metrics.Registry) *Engine {
	if opt.Lanes < 1 {
		opt.Lanes = 1
	}
	if opt.TickBudget == 0 {
		opt.TickBudget = constants.DefaultTickBudget
	}

	e := &Engine{
		gov:         governor.New(opt.TickBudget),
		hooks:       hooks,
		tbl:         tbl,
		reg:         reg,
		ingress:     ring.NewMP(1 << constants.IngressRingBits),
		dedupe:      dedupe.New(opt.DedupeWindow),
		ingressLane: int32(opt.Lanes),
		demuxDone:   make(chan struct{}),
		sweepDone:   make(chan struct{}),
	}
	// Demote-next arms are keyed by snapshot row, so every epoch swap must
	// clear them before the new row numbering goes live.
	hooks.OnCommit(e.gov.ResetArms)

	e.pool = pool.New(opt.PoolSlots, opt.PoolPolicy, opt.PoolSpin, ring.Relax)
	e.warm = warm.New(opt.WarmBuffer, opt.WarmWorkers, hooks, tbl, reg)
	e.emit = receipt.New(opt.ReceiptBuffer, opt.ReceiptPolicy, opt.ReceiptSink, reg)

	// Arena outcomes close the receipt loop: a fully reported
	// synchronization emits like any inline dispatch; a swept one becomes a
	// warm-path demotion carrying the unfinished branch mask.
	e.arena = dispatch.NewArena(
		func(ev *types.Event, _ uint32, lane uint32, start uint64) {
			e.emit.Emit(ev, e.gov.Elapsed(start), 1<<(lane&31), 0)
		},
		func(ev *types.Event, hookRow uint32, pendingMask uint64, start uint64) {
			var hookID uint32
			snap := hooks.Load()
			if int(hookRow) < len(snap.Hooks) {
				hookID = snap.Hooks[hookRow].ID
			}
			e.warm.TryDemote(types.Demotion{
				Event:       *ev,
				Reason:      types.ReasonBudgetExceeded,
				HookID:      hookID,
				PendingMask: pendingMask,
				Ticks:       e.gov.Elapsed(start),
			})
		},
	)

	reg.BindPoolGauge(e.pool.InUse)
	reg.BindSyncGauge(e.arena.PendingCount)

	m := matcher.New(opt.Kernel)
	deps := LaneDeps{
		Governor:   e.gov,
		Matcher:    m,
		Hooks:      hooks,
		Table:      tbl,
		Arena:      e.arena,
		Emitter:    e.emit,
		Warm:       e.warm,
		Metrics:    reg,
		Pool:       e.pool,
		CrossCheck: opt.CrossCheck,
	}
	for i := 0; i < opt.Lanes; i++ {
		e.rings = append(e.rings, ring.New(1<<constants.RingBits))
		e.lanes = append(e.lanes, NewLane(uint32(i), deps))
	}
	return e
}

// Governor exposes the tick governor for runtime budget changes.
func (e *Engine) Governor() *governor.Governor { return e.gov }

// Start spins up the demux thread, the deadline sweeper, and one pinned
// consumer per lane.  Cores are assigned round-robin from firstCore.
func (e *Engine) Start(firstCore int) {
	e.started = true
	stop, hot := control.Flags()
	for i, l := range e.lanes {
		done := make(chan struct{})
		e.laneDone = append(e.laneDone, done)
		ring.PinnedLane(firstCore+i, e.rings[i], stop, hot, l.Process, done)
	}
	go e.demux()
	go e.sweeper()
}

// Submit stamps and enqueues one event from any producer goroutine.  The
// event is copied into a pool slot; rejection paths release it before
// returning, so slot conservation holds on every exit.
func (e *Engine) Submit(subject, predicate, object uint64, kind uint32, corr [16]byte) error {
	if e.ingressClosed.Load() == 1 {
		return ErrClosed
	}
	slot, err := e.pool.Acquire(e.ingressLane)
	if err != nil {
		e.reg.Inc(metrics.PoolExhausted)
		e.warm.TryDemote(types.Demotion{
			Event:  types.Event{Subject: subject, Predicate: predicate, Object: object, Kind: kind, CorrID: corr},
			Reason: types.ReasonPoolExhausted,
		})
		return err
	}
	ev := eventAt(slot)
	*ev = types.Event{
		Subject:   subject,
		Predicate: predicate,
		Object:    object,
		Kind:      kind,
		Slot:      slot.Index,
		QuickHash: receipt.Fingerprint(subject, predicate, object, kind),
		CorrID:    corr,
	}
	if !e.ingress.Push(ev) {
		e.pool.Release(slot)
		e.reg.Inc(metrics.IngressFull)
		return ErrIngressFull
	}
	e.reg.Inc(metrics.EventsIngressed)
	control.SignalActivity()
	return nil
}

// demux drains the ingress ring and routes each event to the lane its
// subject/predicate/object hash selects.  Same triple, same lane — ordering
// within a logical stream is preserved by construction.
func (e *Engine) demux() {
	defer close(e.demuxDone)
	n := uint64(len(e.rings))
	idle := 0
	for {
		ev := e.ingress.Pop()
		if ev == nil {
			if e.ingressClosed.Load() == 1 {
				return
			}
			idle++
			if idle > 256 {
				control.PollCooldown()
				time.Sleep(50 * time.Microsecond)
			} else {
				ring.Relax()
			}
			continue
		}
		idle = 0
		spo := utils.CombineSPO(ev.Subject, ev.Predicate, ev.Object)
		if !e.dedupe.Check(ev.QuickHash, spo, ev.Kind) {
			e.reg.Inc(metrics.EventsDeduped)
			e.pool.Release(e.pool.SlotAt(ev.Slot))
			continue
		}
		target := e.rings[utils.Mix64(spo)%n]
		if !target.Push(ev) {
			// Lane backlogged: shed to the warm path rather than stall the
			// demux (which would back up every other lane behind it).
			e.reg.Inc(metrics.LaneRingFull)
			e.warm.TryDemote(types.Demotion{Event: *ev, Reason: types.ReasonPoolExhausted})
			e.pool.Release(e.pool.SlotAt(ev.Slot))
		}
	}
}

// sweeper periodically demotes synchronizations whose deadline passed with
// branches still outstanding.  Runs off the hot path; Sweep itself is CAS
// idempotent so the cadence only bounds demotion latency, not correctness.
func (e *Engine) sweeper() {
	defer close(e.sweepDone)
	stop, _ := control.Flags()
	t := time.NewTicker(time.Millisecond)
	defer t.Stop()
	for range t.C {
		if *stop == 1 {
			return
		}
		e.arena.Sweep(e.gov.Now())
	}
}

// Close drains and stops everything in dependency order: the demux first so
// every ingressed event reaches its lane ring, then the lanes (which empty
// their rings before honoring the stop flag), then the warm path and emitter
// so late demotions and receipts still land.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.ingressClosed.Store(1)
		if e.started {
			<-e.demuxDone
			control.Shutdown()
			<-e.sweepDone
			for _, done := range e.laneDone {
				<-done
			}
		}
		for _, l := range e.lanes {
			l.Drain()
		}
		e.arena.Sweep(^uint64(0) >> 1) // flush stragglers to the warm path
		e.warm.Close()
		e.emit.Close()
	})
}

// eventAt interprets a pool slot's buffer as the event it carries.  The slot
// size is far larger than the event struct; alignment comes from the slab
// allocation.
//
//go:inline
func eventAt(s *pool.Slot) *types.Event {
	return (*types.Event)(unsafe.Pointer(&s.Buf[0]))
}
