// receipt.go — asynchronous receipt emission
//
// On successful dispatch the lane builds a ReceiptEntry and queues it here.
// The queue is bounded and loss is explicit: a backlog sheds receipts by
// policy (drop-oldest or reject-new) and counts every shed — it never
// applies backpressure to the matching path.  A single drain goroutine owns
// the downstream sink (the lockchain collaborator), so sink latency and
// availability are invisible to lanes.

package receipt

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"main/metrics"
	"main/types"
)

// Sink consumes emitted receipts; the lockchain collaborator implements it.
// Persist may be arbitrarily slow — only the drain goroutine calls it.
type Sink interface {
	Persist(types.ReceiptEntry)
}

// discardSink swallows receipts when no persistence is configured.
type discardSink struct{}

func (discardSink) Persist(types.ReceiptEntry) {}

// Policy selects the shedding behavior when the receipt queue is full.
type Policy uint8

const (
	// PolicyRejectNew drops the incoming receipt.
	PolicyRejectNew Policy = iota
	// PolicyDropOldest evicts the oldest queued receipt to admit the new one.
	PolicyDropOldest
)

// Emitter is the bounded hand-off between lanes and the sink.
type Emitter struct {
	sink    Sink
	policy  Policy
	ch      chan types.ReceiptEntry
	done    chan struct{}
	wg      sync.WaitGroup
	seq     atomic.Uint64
	dropped atomic.Uint64
	closed  atomic.Bool
	once    sync.Once
	span    [16]byte
	reg     *metrics.Registry
}

// New starts an emitter with the given queue bound.  The span ID is minted
// once per emitter lifetime; every receipt from this engine run carries it.
func New(buf int, policy Policy, sink Sink, reg *metrics.Registry) *Emitter {
	if buf <= 0 {
		buf = 1
	}
	if sink == nil {
		sink = discardSink{}
	}
	e := &Emitter{
		sink:   sink,
		policy: policy,
		ch:     make(chan types.ReceiptEntry, buf),
		done:   make(chan struct{}),
		reg:    reg,
	}
	e.span = [16]byte(uuid.New())
	e.wg.Add(1)
	go e.run()
	return e
}

// Span returns the emitter's span ID (engine-run identity in the audit log).
func (e *Emitter) Span() [16]byte { return e.span }

// Dropped returns receipts shed since start.
func (e *Emitter) Dropped() uint64 { return e.dropped.Load() }

// Emit constructs the audit record for one completed dispatch and queues it.
// Returns immediately in all cases; queue-full resolution follows the
// configured policy.  Never called for demoted events — demotions are the
// warm path's to account for.
func (e *Emitter) Emit(ev *types.Event, ticks uint64, lanes uint32, flags uint32) {
	if e == nil || e.closed.Load() {
		return
	}
	entry := types.ReceiptEntry{
		ID:          e.seq.Add(1),
		Ticks:       ticks,
		Lanes:       lanes,
		Flags:       flags,
		Span:        e.span,
		QuickHash:   ev.QuickHash,
		ContentHash: ContentHash(ev),
		UnixMs:      time.Now().UnixMilli(),
	}

	select {
	case e.ch <- entry:
		if e.reg != nil {
			e.reg.Inc(metrics.ReceiptsEmitted)
		}
		return
	default:
	}

	if e.policy == PolicyDropOldest {
		select {
		case <-e.ch:
			e.noteDrop()
		default:
		}
		select {
		case e.ch <- entry:
			if e.reg != nil {
				e.reg.Inc(metrics.ReceiptsEmitted)
			}
			return
		default:
		}
	}
	e.noteDrop()
}

func (e *Emitter) noteDrop() {
	e.dropped.Add(1)
	if e.reg != nil {
		e.reg.Inc(metrics.ReceiptsDropped)
	}
}

func (e *Emitter) run() {
	defer e.wg.Done()
	for {
		select {
		case entry := <-e.ch:
			e.sink.Persist(entry)
		case <-e.done:
			for {
				select {
				case entry := <-e.ch:
					e.sink.Persist(entry)
				default:
					return
				}
			}
		}
	}
}

// Close stops intake, drains the queue into the sink, and returns once the
// drain goroutine has exited.
func (e *Emitter) Close() {
	if e == nil {
		return
	}
	e.once.Do(func() {
		e.closed.Store(true)
		close(e.done)
		e.wg.Wait()
	})
}

// ContentHash computes the BLAKE2b-256 digest over an event's defining
// fields.  The lockchain recomputes the same digest during verification, so
// the packing layout here is part of the audit format.
func ContentHash(ev *types.Event) [32]byte {
	var buf [44]byte
	binary.LittleEndian.PutUint64(buf[0:], ev.Subject)
	binary.LittleEndian.PutUint64(buf[8:], ev.Predicate)
	binary.LittleEndian.PutUint64(buf[16:], ev.Object)
	binary.LittleEndian.PutUint32(buf[24:], ev.Kind)
	copy(buf[28:], ev.CorrID[:])
	return blake2b.Sum256(buf[:])
}

// Fingerprint computes the 64-bit ingress quick hash for an event's triple.
// Producers call this once when minting the event.
func Fingerprint(s, p, o uint64, kind uint32) uint64 {
	var buf [28]byte
	binary.LittleEndian.PutUint64(buf[0:], s)
	binary.LittleEndian.PutUint64(buf[8:], p)
	binary.LittleEndian.PutUint64(buf[16:], o)
	binary.LittleEndian.PutUint32(buf[24:], kind)
	return xxhash.Sum64(buf[:])
}
