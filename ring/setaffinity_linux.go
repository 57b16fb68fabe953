//go:build linux

// setaffinity_linux.go
//
// Linux binding that pins **this** OS thread to a single logical CPU so a
// lane's working set stays in one core's private caches.  Errors are
// deliberately swallowed: inside a cgroup-restricted container the call may
// return EPERM/EINVAL and the fallback is simply "no pin" — the lane still
// runs correctly, just without cache affinity.

package ring

import "golang.org/x/sys/unix"

// setAffinity pins the current thread to cpu (0-based).  Out-of-range or
// failing requests degrade to an unpinned thread.
func setAffinity(cpu int) {
	if cpu < 0 {
		return
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	_ = unix.SchedSetaffinity(0, &set) // pid 0 → current thread
}
