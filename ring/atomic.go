// atomic.go
//
// Acquire/release helpers for the slot sequence protocol.  sync/atomic's
// seq-cst loads and stores are a conservative superset of the required
// ordering and compile to plain MOV on x86-64, so a per-arch asm split buys
// nothing here.

package ring

import "sync/atomic"

// loadAcquireUint64 is an acquire load of *p.
//
//go:nosplit
func loadAcquireUint64(p *uint64) uint64 {
	return atomic.LoadUint64(p)
}

// storeReleaseUint64 is a release store to *p.
//
//go:nosplit
func storeReleaseUint64(p *uint64, v uint64) {
	atomic.StoreUint64(p, v)
}
