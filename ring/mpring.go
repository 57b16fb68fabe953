// mpring.go
//
// Multi-producer/single-consumer variant of the sequence-stamped ring.  The
// ingress side of the engine accepts events from any number of upstream
// producer goroutines, so the tail index is claimed with a CAS instead of a
// plain store; the consumer side is identical to the SPSC ring.
//
// Ordering contract: per producer FIFO.  Interleaving across producers is
// whatever the CAS race yields — unspecified by design.

package ring

import (
	"sync/atomic"

	"main/types"
)

// MPRing is a fixed-capacity ring safe for concurrent producers and exactly
// one consumer.  Same slot protocol as Ring; only the tail claim differs.
type MPRing struct {
	_    [64]byte
	head uint64
	//lint:ignore U1000 padding to keep head & tail on different cache-lines
	_pad1 [64]byte
	tail  uint64
	//lint:ignore U1000 padding to keep hot fields from colliding with metadata
	_pad2 [64]byte
	mask  uint64
	buf   []slot
}

// NewMP allocates a multi-producer ring; size must be a power of two.
func NewMP(size int) *MPRing {
	if size <= 0 || size&(size-1) != 0 {
		panic("ring: size must be >0 and a power of two")
	}
	r := &MPRing{
		mask: uint64(size - 1),
		buf:  make([]slot, size),
	}
	for i := range r.buf {
		r.buf[i].seq = uint64(i)
	}
	return r
}

// Cap returns the fixed slot capacity.
func (r *MPRing) Cap() int { return len(r.buf) }

// Push claims a tail slot with CAS and publishes ev, returning false when the
// ring is full.  Fail-fast: no spinning inside Push, the producer owns its
// own backpressure policy.
//
//go:nosplit
func (r *MPRing) Push(ev *types.Event) bool {
	for {
		t := atomic.LoadUint64(&r.tail)
		s := &r.buf[t&r.mask]
		seq := loadAcquireUint64(&s.seq)
		switch {
		case seq == t:
			if atomic.CompareAndSwapUint64(&r.tail, t, t+1) {
				s.ev = ev
				storeReleaseUint64(&s.seq, t+1)
				return true
			}
			// Lost the claim race; retry with the fresh tail.
		case seq < t:
			return false // consumer has not reclaimed the slot: full
		default:
			// Another producer claimed t and already published; reload tail.
		}
		cpuRelax()
	}
}

// Pop dequeues one event or nil if the buffer is empty.  Single consumer
// only; the lane demultiplexer owns this side exclusively.
//
//go:nosplit
func (r *MPRing) Pop() *types.Event {
	h := r.head
	s := &r.buf[h&r.mask]
	if loadAcquireUint64(&s.seq) != h+1 {
		return nil
	}
	ev := s.ev
	s.ev = nil
	storeReleaseUint64(&s.seq, h+uint64(len(r.buf)))
	r.head = h + 1
	return ev
}
