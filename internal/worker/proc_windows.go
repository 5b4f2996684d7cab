//go:build windows

package worker

import (
	"os"
	"os/exec"
	"time"
)

// configureProcess is a no-op on Windows; there is no process-group
// equivalent worth configuring for exec.Cmd here.
func configureProcess(cmd *exec.Cmd) {}

// terminateProcess kills the worker. Windows has no SIGTERM, so the grace
// period is skipped and the process is stopped outright.
func terminateProcess(cmd *exec.Cmd, grace time.Duration, exited <-chan struct{}) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}

// exitStatus reads a process outcome. Windows reports real exit codes for
// killed processes, so ExitCode is already the whole story.
func exitStatus(state *os.ProcessState) int {
	if state == nil {
		return 0
	}
	return state.ExitCode()
}
