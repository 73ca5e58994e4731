package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Spawn launches the index daemon as a detached subprocess by re-executing
// the current binary with the "daemon" subcommand. The child gets its own
// session so it survives the parent exiting.
func Spawn() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("finding executable path: %w", err)
	}

	cmd := exec.Command(exe, "daemon")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting daemon: %w", err)
	}

	return cmd.Process.Release()
}
