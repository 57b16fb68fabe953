//go:build !amd64 || noasm

// tsc_stub.go
//
// Portable tick source for targets without an exposed cycle counter: the
// monotonic clock, scaled so one tick ≈ one nanosecond.  Budgets tuned in
// cycles remain order-of-magnitude meaningful; deployments that need exact
// cycle accounting run on amd64.

package governor

import "time"

var tickEpoch = time.Now()

// ticks returns nanoseconds since process start as a cycle-count stand-in.
func ticks() uint64 {
	return uint64(time.Since(tickEpoch))
}
