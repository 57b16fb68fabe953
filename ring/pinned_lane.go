// pinned_lane.go
//
// Low-latency SPSC lane consumer.
//
//   • Dedicated OS thread pinned to `core`.
//   • Stays in **hot-spin** (tight loop, no cpuRelax) while
//       – work has arrived within hotTimeout, OR
//       – the ingress keeps the global hot flag == 1.
//   • After the grace window *and* once hot == 0 it drops to the
//     **cold-spin** path: cpuRelax every iteration.
//   • Exits only when *stop == 1 and closes `done` exactly once.
//
// Rationale: keep nanosecond dequeue latency through event bursts yet avoid
// burning a full core per lane when the feed is quiet.
//
// All cross-goroutine variables are accessed atomically; no other
// synchronisation primitives appear in the hot path.

package ring

import (
	"runtime"
	"sync/atomic"
	"time"

	"main/types"
)

const (
	spinBudget = 256              // polls before a cold-path relax burst
	hotTimeout = 15 * time.Second // hot-spin grace after last delivery
)

// PinnedLane drains r until *stop is set, invoking fn for every event.
// fn runs to completion on the pinned thread — it is the match→dispatch span
// and must never block.
func PinnedLane(
	core int,
	r *Ring,
	stop, hot *uint32,
	fn func(*types.Event),
	done chan<- struct{},
) {
	go func() {
		// ── thread & affinity ─────────────────────────────
		runtime.LockOSThread()
		setAffinity(core) // stub on non-Linux
		defer func() {
			runtime.UnlockOSThread()
			close(done)
		}()

		last := time.Now() // last time Pop delivered
		miss := 0

		// ── main loop ─────────────────────────────────────
		for {
			// fast path: Pop succeeded → process & mark activity
			if ev := r.Pop(); ev != nil {
				fn(ev)
				last, miss = time.Now(), 0
				continue
			}

			// stop request?
			if atomic.LoadUint32(stop) != 0 {
				return
			}

			// ---------- choose spin mode ------------------
			hotSpin := atomic.LoadUint32(hot) != 0 ||
				time.Since(last) <= hotTimeout

			if hotSpin {
				// tight loop: no cpuRelax
				continue
			}

			// cold-spin path: power-friendlier
			if miss++; miss >= spinBudget {
				miss = 0
			}
			cpuRelax()
		}
	}()
}
