//go:build !linux

// setaffinity_stub.go
//
// No-op affinity pin for platforms without sched_setaffinity.  Lanes still
// lock their OS thread; they just float across cores.

package ring

func setAffinity(int) {}
