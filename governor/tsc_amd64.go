//go:build amd64 && !noasm

// tsc_amd64.go
//
// Go declaration for the RDTSC read on amd64.  The implementation lives in
// tsc_amd64.s.  RDTSC is not serializing; the one-instruction skid is noise
// at the span lengths the governor measures and the non-serialized form
// keeps the probe itself off the budget.

package governor

// ticks returns the current time-stamp counter.
//
//go:noescape
func ticks() uint64
