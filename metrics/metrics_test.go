package metrics

import (
	"sync"
	"testing"
)

// TestCountersConcurrent hammers Inc from several goroutines and checks the
// final totals — the registry's whole contract is losing nothing under
// contention.
func TestCountersConcurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10_000; i++ {
				r.Inc(EventsIngressed)
				r.Add(Demotions, 2)
			}
		}()
	}
	wg.Wait()
	if got := r.Get(EventsIngressed); got != 80_000 {
		t.Fatalf("EventsIngressed = %d, want 80000", got)
	}
	if got := r.Get(Demotions); got != 160_000 {
		t.Fatalf("Demotions = %d, want 160000", got)
	}
}

// TestCardinalityBucketing places samples on bucket boundaries and verifies
// each lands exactly once, including the overflow bucket.
func TestCardinalityBucketing(t *testing.T) {
	r := NewRegistry()
	for _, n := range []int{0, 1, 2, 3, 4, 8, 9, 33, 1000} {
		r.ObserveCardinality(n)
	}
	s := r.SnapshotNow()
	want := [8]uint64{1, 1, 1, 2, 1, 1, 0, 2} // 3→bucket ≤4 with 4 itself; 9→≤16; 33,1000→overflow
	if s.Cardinality != want {
		t.Fatalf("cardinality buckets %v, want %v", s.Cardinality, want)
	}
}

// TestSnapshotGauges verifies bound gauge sources are sampled at snapshot
// time, not registration time.
func TestSnapshotGauges(t *testing.T) {
	r := NewRegistry()
	occupancy := int64(0)
	r.BindPoolGauge(func() int64 { return occupancy })
	r.BindSyncGauge(func() int { return 3 })
	occupancy = 17
	s := r.SnapshotNow()
	if s.PoolInUse != 17 || s.SyncPending != 3 {
		t.Fatalf("gauges %d/%d, want 17/3", s.PoolInUse, s.SyncPending)
	}
}

// TestSpanTickAggregates checks total/count/min/max under concurrent
// observation; the exact sample set is partitioned so every extreme is known.
func TestSpanTickAggregates(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; i <= 100; i++ {
				r.ObserveSpanTicks(uint64(w*100 + i))
			}
		}()
	}
	wg.Wait()
	s := r.SnapshotNow()
	if s.SpanCount != 400 {
		t.Fatalf("SpanCount = %d, want 400", s.SpanCount)
	}
	if s.SpanMin != 1 || s.SpanMax != 400 {
		t.Fatalf("envelope [%d,%d], want [1,400]", s.SpanMin, s.SpanMax)
	}
	if want := uint64(400 * 401 / 2); s.SpanTotal != want {
		t.Fatalf("SpanTotal = %d, want %d", s.SpanTotal, want)
	}
}

// TestSpanMinBeforeSamples the zero-sample envelope must be recognizable.
func TestSpanMinBeforeSamples(t *testing.T) {
	s := NewRegistry().SnapshotNow()
	if s.SpanMin != ^uint64(0) || s.SpanMax != 0 || s.SpanCount != 0 {
		t.Fatalf("unexpected empty envelope: %+v", s)
	}
}

// TestCounterNamesComplete every ID must carry an export name.
func TestCounterNamesComplete(t *testing.T) {
	for id := ID(0); id < ID(NumCounters); id++ {
		if id.Name() == "" {
			t.Fatalf("counter %d has no export name", id)
		}
	}
}
