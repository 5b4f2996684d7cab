//go:build !windows

package worker

import (
	"os"
	"os/exec"
	"syscall"
	"time"
)

// configureProcess puts the worker in its own process group so termination
// reaches any children the simulation spawns.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateProcess delivers SIGTERM to the worker's process group, then
// SIGKILLs unless the process exits within the grace period. exited closes
// when the process has been reaped. A process that already exited is fine;
// every path here is best effort.
func terminateProcess(cmd *exec.Cmd, grace time.Duration, exited <-chan struct{}) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	if pid <= 0 {
		return
	}
	pgid, err := syscall.Getpgid(pid)
	if err != nil || pgid <= 0 {
		_ = cmd.Process.Kill()
		return
	}
	_ = syscall.Kill(-pgid, syscall.SIGTERM)
	select {
	case <-exited:
		return
	case <-time.After(grace):
	}
	_ = syscall.Kill(-pgid, syscall.SIGKILL)
}

// exitStatus reads a process outcome, reporting a signal death as the
// negated signal number the way the run metadata expects.
func exitStatus(state *os.ProcessState) int {
	if state == nil {
		return 0
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return state.ExitCode()
}
