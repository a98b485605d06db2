//go:build !windows

package tui

import (
	"os"
	"os/exec"
)

// bestEffortResetTTY restores terminal modes after bubbletea exits.
// An interrupted program can leave the terminal raw; a failed reset is
// not worth reporting.
func bestEffortResetTTY() {
	fi, err := os.Stdin.Stat()
	if err != nil || fi.Mode()&os.ModeCharDevice == 0 {
		// Not an interactive terminal, nothing to restore.
		return
	}

	// Go through /dev/tty in case stdin was redirected mid-session.
	_ = exec.Command("sh", "-lc", "stty sane < /dev/tty >/dev/null 2>&1 || true").Run()
}
