package pool

import (
	"sync"
	"testing"
)

// TestConservation acquires every slot, verifies exhaustion is reported
// rather than satisfied by allocation, then releases everything and checks
// occupancy returns to zero.
func TestConservation(t *testing.T) {
	p := New(16, PolicyReject, 0, nil)
	held := make([]*Slot, 0, 16)
	for i := 0; i < 16; i++ {
		s, err := p.Acquire(0)
		if err != nil {
			t.Fatalf("acquire %d failed: %v", i, err)
		}
		held = append(held, s)
	}
	if p.InUse() != 16 {
		t.Fatalf("occupancy %d, want 16", p.InUse())
	}
	if _, err := p.Acquire(0); err != ErrExhausted {
		t.Fatalf("17th acquire: got %v, want ErrExhausted", err)
	}
	for _, s := range held {
		p.Release(s)
	}
	if p.InUse() != 0 {
		t.Fatalf("occupancy %d after full release, want 0", p.InUse())
	}
	if _, err := p.Acquire(0); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
}

// TestSlotIdentity checks that released slots come back with their capacity
// intact and no two live acquisitions ever alias the same slot index.
func TestSlotIdentity(t *testing.T) {
	p := New(8, PolicyReject, 0, nil)
	seen := map[uint32]bool{}
	var held []*Slot
	for {
		s, err := p.Acquire(1)
		if err != nil {
			break
		}
		if seen[s.Index] {
			t.Fatalf("slot %d handed out twice while held", s.Index)
		}
		seen[s.Index] = true
		if cap(s.Buf) == 0 {
			t.Fatal("slot has no backing capacity")
		}
		held = append(held, s)
	}
	for _, s := range held {
		p.Release(s)
	}
}

// TestBoundedSpinPolicy verifies PolicySpin still terminates with
// ErrExhausted when nothing is released — the unbounded-blocking ban.
func TestBoundedSpinPolicy(t *testing.T) {
	p := New(1, PolicySpin, 8, nil)
	s, err := p.Acquire(0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Acquire(0); err != ErrExhausted {
		t.Fatalf("spin acquire on empty pool: got %v, want ErrExhausted", err)
	}
	p.Release(s)
}

// TestLaneCacheLocality verifies a release followed by an acquire on the same
// lane returns the identical slot without touching the shared list.
func TestLaneCacheLocality(t *testing.T) {
	p := New(32, PolicyReject, 0, nil)
	c := NewLaneCache(3, p)
	s, err := c.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	c.Release(s)
	s2, err := c.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	if s2 != s {
		t.Fatalf("locality broken: got slot %d, want %d", s2.Index, s.Index)
	}
	c.Release(s2)
	c.Drain()
	if p.InUse() != 0 {
		t.Fatalf("occupancy %d after drain, want 0", p.InUse())
	}
}

// TestConcurrentAcquireRelease stresses the shared free-list from many
// goroutines and checks conservation afterwards: no leaks, no double-grants.
func TestConcurrentAcquireRelease(t *testing.T) {
	const workers = 8
	p := New(64, PolicySpin, 32, nil)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(lane int32) {
			defer wg.Done()
			for i := 0; i < 4096; i++ {
				s, err := p.Acquire(lane)
				if err != nil {
					continue // exhaustion is legal under contention
				}
				s.Buf = s.Buf[:0]
				s.Buf = append(s.Buf, byte(lane))
				p.Release(s)
			}
		}(int32(w))
	}
	wg.Wait()

	if p.InUse() != 0 {
		t.Fatalf("leaked %d slots", p.InUse())
	}
	// Every slot must still be reachable.
	count := 0
	for {
		if _, err := p.Acquire(0); err != nil {
			break
		}
		count++
	}
	if count != 64 {
		t.Fatalf("free-list lost slots: recovered %d of 64", count)
	}
}
