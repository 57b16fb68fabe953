// warm.go — warm-path collaborator boundary
//
// Everything the hot path cannot finish inside its constraints lands here
// with a reason code: budget exceeded, pool exhausted, or a kernel
// cross-check disagreement.  The resolver re-runs the event with full rule
// semantics and no tick bound — blocking, allocating, whatever it takes —
// and is solely responsible for the eventual consistency of demoted events.
//
// The hand-off channel is bounded and non-blocking on the hot side: a
// saturated warm path sheds new demotions into a counter rather than
// stalling a lane.

package warm

import (
	"context"

	"golang.org/x/sync/errgroup"

	"main/constants"
	"main/dispatch"
	"main/hookset"
	"main/matcher"
	"main/metrics"
	"main/types"
)

// Resolver consumes demotions and resolves them with unbounded semantics.
type Resolver struct {
	ch     chan types.Demotion
	m      *matcher.Matcher
	hooks  *hookset.Registry
	tbl    *dispatch.Table
	reg    *metrics.Registry
	cancel context.CancelFunc
	eg     *errgroup.Group
}

// New builds a resolver with the given channel bound and worker count.
func New(buf, workers int, hooks *hookset.Registry, tbl *dispatch.Table, reg *metrics.Registry) *Resolver {
	if buf <= 0 {
		buf = 256
	}
	if workers <= 0 {
		workers = 1
	}
	r := &Resolver{
		ch:    make(chan types.Demotion, buf),
		m:     matcher.New(matcher.KernelScalar),
		hooks: hooks,
		tbl:   tbl,
		reg:   reg,
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.eg, ctx = errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		r.eg.Go(func() error { return r.loop(ctx) })
	}
	return r
}

// TryDemote hands a demotion to the warm path without blocking.  A full
// channel sheds the demotion into the rejected counter — never silently.
func (r *Resolver) TryDemote(d types.Demotion) bool {
	select {
	case r.ch <- d:
		r.reg.Inc(metrics.Demotions)
		return true
	default:
		r.reg.Inc(metrics.WarmRejected)
		return false
	}
}

// Close stops the workers after the channel drains.
func (r *Resolver) Close() {
	close(r.ch)
	_ = r.eg.Wait()
	r.cancel()
}

func (r *Resolver) loop(ctx context.Context) error {
	for {
		select {
		case d, ok := <-r.ch:
			if !ok {
				return nil
			}
			r.resolve(&d)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// resolve finishes one demoted event.  A partial Synchronization carries the
// branch mask still outstanding at demotion; everything else re-matches from
// scratch against the current epoch using the scalar reference path.
func (r *Resolver) resolve(d *types.Demotion) {
	snap := r.hooks.Load()

	if d.PendingMask != 0 {
		if row, ok := findRow(snap, d.HookID); ok {
			branches := snap.Hooks[row].Branches
			for i, b := range branches {
				if d.PendingMask&(1<<uint(i)) != 0 {
					r.tbl.ParallelSplit(&d.Event, []uint32{b})
				}
			}
			r.reg.Inc(metrics.WarmResolved)
			return
		}
		// Hook vanished across an epoch swap; fall through to a full
		// re-match so the event is still accounted for.
	}

	var mask [constants.MaskWords]uint64
	r.m.Screen(&d.Event, snap, &mask)
	confirmed := matcher.Confirm(&d.Event, snap, &mask, nil)
	for _, row := range confirmed {
		h := &snap.Hooks[row]
		switch h.Kind {
		case types.OpDiscriminator:
			r.tbl.Discriminator(&d.Event, h.Branches)
		default:
			// Parallel Split and Synchronization both collapse to an
			// unconditional full fan-out here: with no tick bound there is
			// nothing to hold open.
			r.tbl.ParallelSplit(&d.Event, h.Branches)
		}
	}
	r.reg.Inc(metrics.WarmResolved)
}

func findRow(snap *hookset.Snapshot, id uint32) (uint32, bool) {
	for i := range snap.Hooks {
		if snap.Hooks[i].ID == id {
			return uint32(i), true
		}
	}
	return 0, false
}
