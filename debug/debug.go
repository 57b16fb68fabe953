// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: debug.go — Cold-path error logging helper (zero-alloc)
//
// Purpose:
//   - Logs infrequent error paths without introducing heap pressure.
//   - Used only off the matching path: config rejects, lockchain I/O errors,
//     lane startup/shutdown transitions, epoch swaps.
//
// Notes:
//   - Avoids fmt.Sprintf to minimize footprint and latency.
//   - Plain string concatenation; a prefix tags the subsystem.
//
// ⚠️ Never invoke from a lane's match→dispatch span — demote and count instead.
// ─────────────────────────────────────────────────────────────────────────────

package debug

import "main/utils"

// DropError logs an error with its subsystem prefix, or just the prefix when
// err is nil (state-change traces reuse the same entry point).
func DropError(prefix string, err error) {
	if err != nil {
		utils.PrintWarning(prefix + ": " + err.Error() + "\n")
	} else {
		utils.PrintWarning(prefix + "\n")
	}
}

// DropMessage logs a cold-path diagnostic: lane lifecycle, epoch boundaries,
// demotion floods, shutdown phases.
func DropMessage(prefix, message string) {
	utils.PrintWarning(prefix + ": " + message + "\n")
}
