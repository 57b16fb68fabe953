package ring

import (
	"sync"
	"testing"

	"main/types"
)

// TestMPRingRoundTrip sanity-checks single-threaded push/pop through the CAS
// claim path.
func TestMPRingRoundTrip(t *testing.T) {
	r := NewMP(8)
	ev := &types.Event{Subject: 9}
	if !r.Push(ev) {
		t.Fatal("push failed on empty ring")
	}
	if got := r.Pop(); got != ev {
		t.Fatal("round-trip mismatch")
	}
	if r.Pop() != nil {
		t.Fatal("ring should be empty")
	}
}

// TestMPRingFullFailFast fills the ring and confirms Push fails fast rather
// than spinning for the consumer.
func TestMPRingFullFailFast(t *testing.T) {
	r := NewMP(4)
	for i := 0; i < 4; i++ {
		if !r.Push(&types.Event{Subject: uint64(i)}) {
			t.Fatalf("push %d failed", i)
		}
	}
	if r.Push(&types.Event{}) {
		t.Fatal("push into full MP ring should return false")
	}
}

// TestMPRingPerProducerFIFO runs several producers, each tagging events with
// its own ID and a per-producer sequence, and verifies the single consumer
// observes every producer's events in that producer's push order. Global
// interleaving is unspecified; per-producer order is the contract.
func TestMPRingPerProducerFIFO(t *testing.T) {
	const (
		producers = 4
		perProd   = 1 << 12
	)
	r := NewMP(1024)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			for seq := uint64(0); seq < perProd; {
				if r.Push(&types.Event{Kind: uint32(id), Subject: seq}) {
					seq++
				}
			}
		}(uint64(p))
	}

	seen := make([]uint64, producers)
	total := 0
	consumed := make(chan error, 1)
	go func() {
		for total < producers*perProd {
			ev := r.Pop()
			if ev == nil {
				continue
			}
			id := ev.Kind
			if ev.Subject != seen[id] {
				consumed <- errOrder(id, seen[id], ev.Subject)
				return
			}
			seen[id]++
			total++
		}
		consumed <- nil
	}()

	wg.Wait()
	if err := <-consumed; err != nil {
		t.Fatal(err)
	}
}

type orderErr struct {
	id         uint32
	want, have uint64
}

func errOrder(id uint32, want, have uint64) error {
	return &orderErr{id: id, want: want, have: have}
}

func (e *orderErr) Error() string {
	return "per-producer order violated"
}
