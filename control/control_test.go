package control

import (
	"sync/atomic"
	"testing"
	"time"
)

// TestSignalActivitySetsHot verifies the producer-side signal raises the hot
// flag that lanes poll for spin-mode selection.
func TestSignalActivitySetsHot(t *testing.T) {
	Reset()
	_, hotFlag := Flags()
	if atomic.LoadUint32(hotFlag) != 0 {
		t.Fatal("hot flag should start clear")
	}
	SignalActivity()
	if atomic.LoadUint32(hotFlag) != 1 {
		t.Fatal("SignalActivity must set hot flag")
	}
}

// TestPollCooldownClearsAfterIdle shrinks the cooldown window and confirms an
// idle period drops the system back to cold-spin.
func TestPollCooldownClearsAfterIdle(t *testing.T) {
	Reset()
	old := cooldownNs
	cooldownNs = int64(time.Millisecond)
	defer func() { cooldownNs = old }()

	SignalActivity()
	PollCooldown()
	_, hotFlag := Flags()
	if atomic.LoadUint32(hotFlag) != 1 {
		t.Fatal("cooldown fired before the idle window elapsed")
	}

	time.Sleep(5 * time.Millisecond)
	PollCooldown()
	if atomic.LoadUint32(hotFlag) != 0 {
		t.Fatal("hot flag should clear after idle window")
	}
}

// TestShutdownRaisesStop confirms the termination broadcast is visible via
// the same pointer a lane would hold.
func TestShutdownRaisesStop(t *testing.T) {
	Reset()
	stopFlag, _ := Flags()
	Shutdown()
	if atomic.LoadUint32(stopFlag) != 1 {
		t.Fatal("Shutdown must set stop flag")
	}
	Reset()
	if atomic.LoadUint32(stopFlag) != 0 {
		t.Fatal("Reset must clear stop flag")
	}
}
