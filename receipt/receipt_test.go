package receipt

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/types"
)

type captureSink struct {
	mu      sync.Mutex
	entries []types.ReceiptEntry
	gate    chan struct{} // when non-nil, Persist blocks until closed
}

func (c *captureSink) Persist(e types.ReceiptEntry) {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	c.entries = append(c.entries, e)
	c.mu.Unlock()
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func TestEmitDeliversToSink(t *testing.T) {
	sink := &captureSink{}
	e := New(8, PolicyRejectNew, sink, nil)
	ev := &types.Event{Subject: 1, Predicate: 2, Object: 3, QuickHash: 99}
	e.Emit(ev, 7, 0b1, 0)
	e.Close()

	require.Equal(t, 1, sink.count())
	got := sink.entries[0]
	assert.EqualValues(t, 1, got.ID)
	assert.EqualValues(t, 7, got.Ticks)
	assert.EqualValues(t, 99, got.QuickHash)
	assert.Equal(t, e.Span(), got.Span)
	assert.Equal(t, ContentHash(ev), got.ContentHash)
	assert.NotZero(t, got.UnixMs)
}

// TestRejectNewSheds: with the sink blocked and the queue full, new emits
// are shed and counted, and the lane-side call never blocks.
func TestRejectNewSheds(t *testing.T) {
	gate := make(chan struct{})
	sink := &captureSink{gate: gate}
	e := New(2, PolicyRejectNew, sink, nil)
	ev := &types.Event{}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			e.Emit(ev, 1, 1, 0)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a saturated queue")
	}
	require.NotZero(t, e.Dropped())

	close(gate)
	e.Close()
	assert.Equal(t, 10-int(e.Dropped()), sink.count())
}

// TestDropOldestPrefersFresh: under the drop-oldest policy the newest
// receipt survives a full queue.
func TestDropOldestPrefersFresh(t *testing.T) {
	gate := make(chan struct{})
	sink := &captureSink{gate: gate}
	e := New(1, PolicyDropOldest, sink, nil)
	ev := &types.Event{}

	// The drain goroutine takes one entry (blocked in Persist), the queue
	// holds one more; the third emit must evict the queued one.
	e.Emit(ev, 1, 1, 0)
	e.Emit(ev, 2, 1, 0)
	e.Emit(ev, 3, 1, 0)

	close(gate)
	e.Close()

	require.NotZero(t, e.Dropped())
	last := sink.entries[len(sink.entries)-1]
	assert.EqualValues(t, 3, last.Ticks, "newest receipt should survive drop-oldest")
}

func TestEmitAfterCloseIsNoOp(t *testing.T) {
	sink := &captureSink{}
	e := New(4, PolicyRejectNew, sink, nil)
	e.Close()
	e.Emit(&types.Event{}, 1, 1, 0)
	assert.Equal(t, 0, sink.count())
	e.Close() // second close must be safe
}

// TestContentHashSensitivity: the digest must change with every defining
// field and be stable for identical events.
func TestContentHashSensitivity(t *testing.T) {
	base := types.Event{Subject: 1, Predicate: 2, Object: 3, Kind: 4}
	h := ContentHash(&base)
	assert.Equal(t, h, ContentHash(&base))

	mutations := []types.Event{
		{Subject: 9, Predicate: 2, Object: 3, Kind: 4},
		{Subject: 1, Predicate: 9, Object: 3, Kind: 4},
		{Subject: 1, Predicate: 2, Object: 9, Kind: 4},
		{Subject: 1, Predicate: 2, Object: 3, Kind: 9},
	}
	for i := range mutations {
		assert.NotEqual(t, h, ContentHash(&mutations[i]), "field %d", i)
	}
	withCorr := base
	withCorr.CorrID[0] = 1
	assert.NotEqual(t, h, ContentHash(&withCorr))
}

func TestFingerprintDistinguishesTriples(t *testing.T) {
	a := Fingerprint(1, 2, 3, 0)
	assert.Equal(t, a, Fingerprint(1, 2, 3, 0))
	assert.NotEqual(t, a, Fingerprint(3, 2, 1, 0))
	assert.NotEqual(t, a, Fingerprint(1, 2, 3, 1))
}
