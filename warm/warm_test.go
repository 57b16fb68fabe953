package warm

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"main/dispatch"
	"main/hookset"
	"main/metrics"
	"main/types"
)

type branchRecorder struct {
	mu    sync.Mutex
	fired []uint32
}

func (b *branchRecorder) handler(branch uint32, _ *types.Event) bool {
	b.mu.Lock()
	b.fired = append(b.fired, branch)
	b.mu.Unlock()
	return true
}

func (b *branchRecorder) snapshot() []uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]uint32, len(b.fired))
	copy(out, b.fired)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestResolverRematchesDemotedEvent(t *testing.T) {
	hooks := hookset.NewRegistry()
	require.NoError(t, hooks.Register(types.HookEntry{
		ID: 1, Kind: types.OpParallelSplit,
		Subject: 10, Predicate: 20, Object: 30,
		Branches: []uint32{0, 1},
	}))
	hooks.Commit()

	rec := &branchRecorder{}
	tbl := dispatch.NewTable(4)
	require.NoError(t, tbl.Bind(0, rec.handler))
	require.NoError(t, tbl.Bind(1, rec.handler))

	reg := metrics.NewRegistry()
	r := New(16, 1, hooks, tbl, reg)
	defer r.Close()

	ok := r.TryDemote(types.Demotion{
		Event:  types.Event{Subject: 10, Predicate: 20, Object: 30},
		Reason: types.ReasonBudgetExceeded,
	})
	require.True(t, ok)

	waitFor(t, func() bool { return reg.Get(metrics.WarmResolved) == 1 })
	require.ElementsMatch(t, []uint32{0, 1}, rec.snapshot())
	require.EqualValues(t, 1, reg.Get(metrics.Demotions))
}

func TestResolverFiresOnlyPendingBranches(t *testing.T) {
	hooks := hookset.NewRegistry()
	require.NoError(t, hooks.Register(types.HookEntry{
		ID: 7, Kind: types.OpSynchronization,
		Subject: 1, Predicate: 2, Object: 3,
		Branches: []uint32{0, 1, 2},
	}))
	hooks.Commit()

	rec := &branchRecorder{}
	tbl := dispatch.NewTable(4)
	for b := uint32(0); b <= 2; b++ {
		require.NoError(t, tbl.Bind(b, rec.handler))
	}

	reg := metrics.NewRegistry()
	r := New(16, 1, hooks, tbl, reg)
	defer r.Close()

	// Branches 0 and 2 already completed on the hot path; only 1 is owed.
	r.TryDemote(types.Demotion{
		Event:       types.Event{Subject: 1, Predicate: 2, Object: 3},
		Reason:      types.ReasonBudgetExceeded,
		HookID:      7,
		PendingMask: 0b010,
	})

	waitFor(t, func() bool { return reg.Get(metrics.WarmResolved) == 1 })
	require.Equal(t, []uint32{1}, rec.snapshot())
}

func TestResolverShedsWhenSaturated(t *testing.T) {
	reg := metrics.NewRegistry()

	// A blocked handler keeps the single worker busy so the channel fills.
	release := make(chan struct{})
	var entered atomic.Bool
	hooks := hookset.NewRegistry()
	require.NoError(t, hooks.Register(types.HookEntry{
		ID: 1, Kind: types.OpParallelSplit,
		Subject: 1, Predicate: 1, Object: 1,
		Branches: []uint32{0},
	}))
	hooks.Commit()
	tbl := dispatch.NewTable(1)
	require.NoError(t, tbl.Bind(0, func(uint32, *types.Event) bool {
		entered.Store(true)
		<-release
		return true
	}))

	r := New(1, 1, hooks, tbl, reg)

	d := types.Demotion{Event: types.Event{Subject: 1, Predicate: 1, Object: 1}}
	require.True(t, r.TryDemote(d)) // taken by the worker
	waitFor(t, func() bool { return entered.Load() })
	require.True(t, r.TryDemote(d)) // fills the buffer
	require.False(t, r.TryDemote(d))
	require.EqualValues(t, 1, reg.Get(metrics.WarmRejected))

	close(release)
	r.Close()
	require.EqualValues(t, 2, reg.Get(metrics.WarmResolved))
}
