// kernels.go — screen comparison kernels
//
// The predicate lane is padded to a multiple of four, so the wide kernels
// never tail-check.  Each kernel writes raw equality bits only; wildcard and
// tail masking happen once in Screen, identically for every kernel — which
// is what makes bitwise equivalence between kernels provable row by row.

package matcher

import "main/constants"

// screen4 compares four predicate rows per iteration.  The four independent
// comparisons give the compiler a branch-free CMOV/SETcc sequence per group
// and keep four loads in flight — the Go rendition of the wide vector path.
//
//go:nosplit
func screen4(p uint64, preds []uint64, mask *[constants.MaskWords]uint64) {
	for i := 0; i < len(preds); i += 4 {
		var g uint64
		if preds[i] == p {
			g |= 1
		}
		if preds[i+1] == p {
			g |= 2
		}
		if preds[i+2] == p {
			g |= 4
		}
		if preds[i+3] == p {
			g |= 8
		}
		mask[i>>6] |= g << uint(i&63)
	}
}

// screen2 is the narrow two-wide variant used when the core's load ports
// stall with four streams (detected capability or config override).
//
//go:nosplit
func screen2(p uint64, preds []uint64, mask *[constants.MaskWords]uint64) {
	for i := 0; i < len(preds); i += 2 {
		var g uint64
		if preds[i] == p {
			g |= 1
		}
		if preds[i+1] == p {
			g |= 2
		}
		mask[i>>6] |= g << uint(i&63)
	}
}

// screenScalar is the one-row-at-a-time reference implementation.  It is the
// semantic ground truth the wide kernels are differentially tested against.
//
//go:nosplit
func screenScalar(p uint64, preds []uint64, mask *[constants.MaskWords]uint64) {
	for i := 0; i < len(preds); i++ {
		if preds[i] == p {
			mask[i>>6] |= 1 << uint(i&63)
		}
	}
}
