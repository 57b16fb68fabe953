// ring.go
//
// Lock-free single-producer/single-consumer event ring tuned for low-double-
// digit-nanosecond hand-off between the lane demultiplexer and a pinned
// matcher lane.  Producer and consumer fields sit on separate cache lines to
// eliminate false sharing, and each slot carries a sequence stamp so Push/Pop
// stay wait-free with one atomic apiece.
//
// Ordering contract: events pushed by the one producer pop in push order.

package ring

import "main/types"

// slot couples an event pointer with its sequence stamp.
type slot struct {
	seq uint64       // position in the sequence space
	ev  *types.Event // payload; valid only between publish and reclaim
}

// Ring is a fixed-capacity circular buffer dedicated to one producer and one
// consumer.  Hot accessors are nosplit so they stay callable from the lane
// spin loop without stack growth checks.
type Ring struct {
	_    [64]byte // producer head isolated on its own cache line
	head uint64
	//lint:ignore U1000 padding to keep head & tail on different cache-lines
	_pad1 [64]byte
	tail  uint64
	//lint:ignore U1000 padding to keep hot fields from colliding with metadata
	_pad2 [64]byte
	mask  uint64
	buf   []slot
}

// New allocates a ring whose size must be a power of two; otherwise it panics
// so the bit-masking arithmetic stays valid.  Construction happens during
// engine bring-up, never on the hot path.
func New(size int) *Ring {
	if size <= 0 || size&(size-1) != 0 {
		panic("ring: size must be >0 and a power of two")
	}
	r := &Ring{
		mask: uint64(size - 1),
		buf:  make([]slot, size),
	}
	for i := range r.buf {
		r.buf[i].seq = uint64(i)
	}
	return r
}

// Cap returns the fixed slot capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Relax is the busy-wait hint for spin loops outside this package (the
// pool's bounded-spin acquire, the ingress demux).
//
//go:nosplit
func Relax() { cpuRelax() }

// Push enqueues ev, returning false if the buffer is full.  Callers decide
// whether to spin, drop, or demote; Push itself never blocks.
//
//go:nosplit
func (r *Ring) Push(ev *types.Event) bool {
	t := r.tail
	s := &r.buf[t&r.mask]
	if loadAcquireUint64(&s.seq) != t {
		return false // consumer has not yet reclaimed the slot
	}
	s.ev = ev
	storeReleaseUint64(&s.seq, t+1)
	r.tail = t + 1
	return true
}

// Pop dequeues one event or nil if the buffer is empty.
//
//go:nosplit
func (r *Ring) Pop() *types.Event {
	h := r.head
	s := &r.buf[h&r.mask]
	if loadAcquireUint64(&s.seq) != h+1 {
		return nil // producer has not yet published to the slot
	}
	ev := s.ev
	s.ev = nil
	storeReleaseUint64(&s.seq, h+uint64(len(r.buf)))
	r.head = h + 1
	return ev
}

