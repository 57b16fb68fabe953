package matcher

import (
	"math/rand"
	"testing"

	"main/constants"
	"main/hookset"
	"main/types"
)

func buildSnap(t *testing.T, hooks []types.HookEntry) *hookset.Snapshot {
	t.Helper()
	r := hookset.NewRegistry()
	for _, h := range hooks {
		if err := r.Register(h); err != nil {
			t.Fatal(err)
		}
	}
	return r.Commit()
}

func hook(id uint32, s, p, o uint64) types.HookEntry {
	return types.HookEntry{ID: id, Kind: types.OpParallelSplit, Subject: s, Predicate: p, Object: o, Branches: []uint32{id}}
}

// TestDifferentialKernels is the mandatory scalar/vector equivalence
// harness: for randomized hook sets of every padding phase and randomized
// events, all kernels must produce bitwise-identical screen masks.
func TestDifferentialKernels(t *testing.T) {
	rng := rand.New(rand.NewSource(0x5eed))
	kernels := []Kernel{KernelScalar, KernelWide2, KernelWide4}

	for _, n := range []int{0, 1, 2, 3, 4, 5, 7, 8, 63, 64, 65, 200} {
		hooks := make([]types.HookEntry, n)
		for i := range hooks {
			pred := uint64(rng.Intn(8)) // small domain forces collisions
			if rng.Intn(10) == 0 {
				pred = types.WildcardID
			}
			hooks[i] = hook(uint32(i), types.WildcardID, pred, types.WildcardID)
		}
		snap := buildSnap(t, hooks)

		for trial := 0; trial < 256; trial++ {
			ev := &types.Event{Predicate: uint64(rng.Intn(10))}
			var masks [3][constants.MaskWords]uint64
			for ki, k := range kernels {
				New(k).Screen(ev, snap, &masks[ki])
			}
			if masks[0] != masks[1] || masks[0] != masks[2] {
				t.Fatalf("n=%d pred=%d: kernel masks diverge: scalar=%x wide2=%x wide4=%x",
					n, ev.Predicate, masks[0][:2], masks[1][:2], masks[2][:2])
			}
		}
	}
}

// TestScreenEmptySetIsEmptyMask covers the O(1) empty-snapshot edge case.
func TestScreenEmptySetIsEmptyMask(t *testing.T) {
	snap := buildSnap(t, nil)
	var mask [constants.MaskWords]uint64
	mask[0] = ^uint64(0) // stale garbage must be cleared
	New(KernelWide4).Screen(&types.Event{Predicate: 5}, snap, &mask)
	for i, w := range mask {
		if w != 0 {
			t.Fatalf("word %d nonzero for empty hook set: %x", i, w)
		}
	}
}

// TestWildcardScreenAndConfirm: all-wildcard hooks must set their screen bit
// for any predicate and survive confirm; constrained hooks must not.
func TestWildcardScreenAndConfirm(t *testing.T) {
	snap := buildSnap(t, []types.HookEntry{
		hook(0, types.WildcardID, types.WildcardID, types.WildcardID),
		hook(1, types.WildcardID, 77, types.WildcardID),
	})
	ev := &types.Event{Subject: 1, Predicate: 99, Object: 2}
	var mask [constants.MaskWords]uint64
	m := New(KernelWide4)
	m.Screen(ev, snap, &mask)
	if mask[0]&1 == 0 {
		t.Fatal("wildcard hook missing from screen mask")
	}
	if mask[0]&2 != 0 {
		t.Fatal("predicate-constrained hook passed screen for wrong predicate")
	}
	got := Confirm(ev, snap, &mask, nil)
	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("confirm = %v, want [0]", got)
	}
}

// TestConfirmSubjectObjectResolution verifies stage two filters screen
// candidates on subject/object while preserving ascending row order.
func TestConfirmSubjectObjectResolution(t *testing.T) {
	snap := buildSnap(t, []types.HookEntry{
		hook(0, 10, 5, types.WildcardID), // subject mismatch → dropped
		hook(1, 11, 5, 20),               // exact match
		hook(2, types.WildcardID, 5, 21), // object mismatch → dropped
		hook(3, types.WildcardID, 5, types.WildcardID), // survives
	})
	ev := &types.Event{Subject: 11, Predicate: 5, Object: 20}
	var mask [constants.MaskWords]uint64
	m := New(KernelWide2)
	m.Screen(ev, snap, &mask)
	if Cardinality(&mask) != 4 {
		t.Fatalf("screen cardinality %d, want 4", Cardinality(&mask))
	}
	got := Confirm(ev, snap, &mask, nil)
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("confirm = %v, want [1 3]", got)
	}
}

// TestCrossCheckAgreement: on identical inputs the cross-check harness must
// report agreement for every kernel.
func TestCrossCheckAgreement(t *testing.T) {
	snap := buildSnap(t, []types.HookEntry{
		hook(0, 0, 3, 0), hook(1, 0, 4, 0), hook(2, 0, 3, 0),
	})
	for _, k := range []Kernel{KernelWide2, KernelWide4} {
		m := New(k)
		ev := &types.Event{Predicate: 3}
		var mask [constants.MaskWords]uint64
		m.Screen(ev, snap, &mask)
		if !m.CrossCheck(ev, snap, &mask) {
			t.Fatalf("kernel %s disagrees with scalar reference", k)
		}
	}
}

// TestParseKernelRoundTrip pins the config override names.
func TestParseKernelRoundTrip(t *testing.T) {
	for _, k := range []Kernel{KernelScalar, KernelWide2, KernelWide4} {
		if ParseKernel(k.String()) != k {
			t.Fatalf("ParseKernel(%q) mismatch", k.String())
		}
	}
	if ParseKernel("") != KernelAuto || ParseKernel("avx512") != KernelAuto {
		t.Fatal("unknown kernel names must map to auto")
	}
}

// BenchmarkScreen contrasts kernel widths over a full 1,024-hook snapshot.
func BenchmarkScreen(b *testing.B) {
	hooks := make([]types.HookEntry, constants.MaxHooks)
	for i := range hooks {
		hooks[i] = hook(uint32(i), 0, uint64(i%16), 0)
	}
	r := hookset.NewRegistry()
	for _, h := range hooks {
		r.Register(h)
	}
	snap := r.Commit()
	ev := &types.Event{Predicate: 7}
	var mask [constants.MaskWords]uint64

	for _, k := range []Kernel{KernelScalar, KernelWide2, KernelWide4} {
		m := New(k)
		b.Run(k.String(), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				m.Screen(ev, snap, &mask)
			}
		})
	}
}
