// detect.go — screen kernel capability selection
//
// Kernel choice is fixed at initialization, never per event.  64-bit cores
// with wide load pipelines take the 4-wide kernel; 32-bit or constrained
// targets fall back to 2-wide; the scalar reference is always available and
// is what the cross-check harness compares against.

package matcher

import "runtime"

// Kernel identifies one screen implementation.
type Kernel uint8

const (
	// KernelAuto lets Detect pick at init.
	KernelAuto Kernel = iota
	// KernelScalar screens one row per iteration (reference semantics).
	KernelScalar
	// KernelWide2 screens two rows per iteration.
	KernelWide2
	// KernelWide4 screens four rows per iteration.
	KernelWide4
)

// String returns the kernel name used in startup diagnostics and config.
func (k Kernel) String() string {
	switch k {
	case KernelScalar:
		return "scalar"
	case KernelWide2:
		return "wide2"
	case KernelWide4:
		return "wide4"
	}
	return "auto"
}

// ParseKernel maps a config override string onto a kernel; empty or unknown
// strings mean auto-detect.
func ParseKernel(s string) Kernel {
	switch s {
	case "scalar":
		return KernelScalar
	case "wide2":
		return KernelWide2
	case "wide4":
		return KernelWide4
	}
	return KernelAuto
}

// Detect selects the widest kernel the target can drive.
func Detect() Kernel {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return KernelWide4
	case "386", "arm":
		return KernelWide2
	}
	return KernelScalar
}
