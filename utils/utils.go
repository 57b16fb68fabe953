package utils

import (
	"os"
	"unsafe"
)

///////////////////////////////////////////////////////////////////////////////
// Conversion Utilities — Zero-Alloc Casts
///////////////////////////////////////////////////////////////////////////////

// B2s converts a []byte to a string **without** allocation.
// ⚠️ Caller must ensure the input slice remains valid and unchanged.
// Used for human-readable print paths.
//
//go:nosplit
//go:inline
func B2s(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// Itoa formats a non-negative int into a stack buffer and returns the string.
// Avoids strconv on cold diagnostic paths; negative inputs print as "-n".
//
//go:inline
func Itoa(v int) string {
	var buf [20]byte
	neg := v < 0
	if neg {
		v = -v
	}
	i := len(buf)
	for {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
		if v == 0 {
			break
		}
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Utoa64 formats a uint64 the same way; used for tick counts and hashes.
//
//go:inline
func Utoa64(v uint64) string {
	var buf [20]byte
	i := len(buf)
	for {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
		if v == 0 {
			break
		}
	}
	return string(buf[i:])
}

///////////////////////////////////////////////////////////////////////////////
// Hash & Mixers — Index Randomization & Fingerprinting
///////////////////////////////////////////////////////////////////////////////

// Mix64 applies a Murmur3-style avalanche to a 64-bit value.
// Used to spread interned term IDs across lane and arena indices.
//
//go:nosplit
//go:inline
func Mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

// CombineSPO folds a subject/predicate/object triple into one 64-bit
// fingerprint seed. Order-sensitive so (s,p,o) and (o,p,s) diverge.
//
//go:nosplit
//go:inline
func CombineSPO(s, p, o uint64) uint64 {
	return Mix64(Mix64(s)*0x9e3779b97f4a7c15 ^ Mix64(p)<<1 ^ Mix64(o)>>1)
}

///////////////////////////////////////////////////////////////////////////////
// Diagnostics — Alloc-Free stderr Writes
///////////////////////////////////////////////////////////////////////////////

// PrintWarning writes msg straight to stderr. No fmt, no buffering, no locks;
// callers pre-concatenate. Cold paths only.
//
//go:inline
func PrintWarning(msg string) {
	_, _ = os.Stderr.WriteString(msg)
}
