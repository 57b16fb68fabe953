// control.go — Global control flags and activity management for pinned lanes
// ============================================================================
// SYSTEM CONTROL ORCHESTRATION
// ============================================================================
//
// Control provides the lightweight global signaling the pinned matcher lanes
// poll: an activity (hot) flag that keeps lanes in tight spin while producers
// are feeding the ingress ring, and a stop flag for coordinated shutdown.
//
//   • Producers call SignalActivity() on every successful ingress push.
//   • Lanes read Flags() pointers directly — no function call per poll.
//   • PollCooldown() clears the hot flag after one idle second so quiet
//     periods drop lanes into the power-friendly cold-spin path.
//   • Shutdown() broadcasts termination; lanes drain and exit.
//
// All fields are plain words written by one side and read by the other; the
// flag protocol tolerates torn timing (a lane that misses a transition by one
// poll simply spins one extra iteration).

package control

import "time"

var (
	hot  uint32 // 1 = producers actively pushing, 0 = idle
	stop uint32 // 1 = drain and terminate

	lastHot    int64                    // ns timestamp of last ingress push
	cooldownNs = int64(1 * time.Second) // idle period before hot clears
)

// SignalActivity marks the system active. Called from the ingress producer on
// every accepted event; keeps lanes hot-spinning through bursts.
//
//go:nosplit
//go:inline
func SignalActivity() {
	hot = 1
	lastHot = time.Now().UnixNano()
}

// PollCooldown clears the hot flag once the ingress has been idle past the
// cooldown window. Lanes call it inline from their miss path.
//
//go:nosplit
//go:inline
func PollCooldown() {
	if hot == 1 && time.Now().UnixNano()-lastHot > cooldownNs {
		hot = 0
	}
}

// Shutdown requests coordinated termination of every lane.
//
//go:nosplit
//go:inline
func Shutdown() {
	stop = 1
}

// Reset rearms the flags; only tests and full engine restarts use it.
func Reset() {
	stop = 0
	hot = 0
	lastHot = 0
}

// Flags returns direct pointers to the coordination words so lane spin loops
// poll without call overhead. Pointers stay valid for process lifetime.
//
//go:nosplit
//go:inline
func Flags() (stopFlag, hotFlag *uint32) {
	return &stop, &hot
}
