package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/VaninJoel/angiorun/internal/batch"
	"github.com/VaninJoel/angiorun/internal/store"
)

// DefaultGrace is how long Terminate waits between the polite stop signal
// and the forced kill.
const DefaultGrace = 5 * time.Second

// Launcher starts tasks as child OS processes so a crashing simulation can
// never take the coordinator down. It implements batch.Launcher.
type Launcher struct {
	// WorkerArgs is the argv prefix used to start a worker; the task input
	// path is appended as the final argument. Empty means re-exec this
	// binary's hidden worker command.
	WorkerArgs []string

	// Experiment and BatchID are the set-level provenance stamped into
	// every task input.
	Experiment string
	BatchID    string

	// StoreFile is the snapshot store file name inside each run directory.
	// Empty means store.DefaultFileName.
	StoreFile string

	// Grace bounds the stop-signal-to-kill window. Zero means DefaultGrace.
	Grace time.Duration

	// Now is the clock; nil means time.Now. Tests pin it.
	Now func() time.Time
}

// Launch prepares the task's run directory and starts its worker process.
//
// Before the process starts, the run directory holds the task input file,
// a pre-execution run_metadata.json, and an empty logs/ directory, so even
// an immediate crash leaves complete provenance behind.
func (l *Launcher) Launch(ctx context.Context, task batch.Task) (batch.Handle, error) {
	now := l.Now
	if now == nil {
		now = time.Now
	}
	storeFile := l.StoreFile
	if storeFile == "" {
		storeFile = store.DefaultFileName
	}

	logsDir := filepath.Join(task.OutputDir, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	in := Input{
		TaskName:       task.Name,
		Experiment:     l.Experiment,
		BatchID:        l.BatchID,
		ComboIndex:     task.ComboIndex,
		ReplicateIndex: task.ReplicateIndex,
		Steps:          task.Steps,
		WriteFrequency: task.WriteFrequency,
		StorePath:      task.StorePath(storeFile),
		Parameters:     task.Parameters,
	}
	inputPath, err := WriteInput(task.OutputDir, in)
	if err != nil {
		return nil, err
	}

	start := now().UTC()
	meta := NewRunMetadata(task.Name, task.Parameters, task.OutputDir, storeFile, start)
	if err := meta.Write(task.OutputDir); err != nil {
		return nil, err
	}

	stdout, err := os.Create(filepath.Join(logsDir, "stdout.log"))
	if err != nil {
		return nil, fmt.Errorf("open stdout log: %w", err)
	}
	stderr, err := os.Create(filepath.Join(logsDir, "stderr.log"))
	if err != nil {
		stdout.Close()
		return nil, fmt.Errorf("open stderr log: %w", err)
	}

	argv, err := l.workerArgv()
	if err != nil {
		stdout.Close()
		stderr.Close()
		return nil, err
	}
	argv = append(argv, inputPath)

	// Deliberately not a CommandContext: cancellation must go through
	// Terminate's graceful stop, not an immediate kill.
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = task.OutputDir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	configureProcess(cmd)

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("start worker: %w", err)
	}

	grace := l.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &processHandle{
		cmd:       cmd,
		task:      task,
		meta:      meta,
		storePath: in.StorePath,
		start:     start,
		grace:     grace,
		now:       now,
		logs:      []*os.File{stdout, stderr},
		exited:    make(chan struct{}),
	}, nil
}

// workerArgv resolves the command line used to start a worker process.
func (l *Launcher) workerArgv() ([]string, error) {
	if len(l.WorkerArgs) > 0 {
		return append([]string(nil), l.WorkerArgs...), nil
	}
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	return []string{self, "worker", "--params"}, nil
}

// processHandle is one running worker process from the scheduler's side.
type processHandle struct {
	cmd       *exec.Cmd
	task      batch.Task
	meta      RunMetadata
	storePath string
	start     time.Time
	grace     time.Duration
	now       func() time.Time
	logs      []*os.File
	exited    chan struct{} // closed once the process has been reaped
}

// Wait blocks until the process exits, finalizes run_metadata.json, and
// reports the outcome.
func (h *processHandle) Wait() batch.RunResult {
	waitErr := h.cmd.Wait()
	close(h.exited)
	end := h.now().UTC()
	for _, f := range h.logs {
		f.Close()
	}

	exitCode := exitStatus(h.cmd.ProcessState)
	if waitErr != nil && exitCode == 0 {
		// Wait failed without a usable exit status.
		return batch.RunResult{ExitCode: -1, Err: fmt.Errorf("wait for worker: %w", waitErr)}
	}

	// The child may have died mid-write; the store's own commit atomicity
	// means whatever we can read back is trustworthy.
	finalStep := h.readFinalStep()

	res := batch.RunResult{ExitCode: exitCode, FinalStep: finalStep}
	if exitCode != 0 {
		res.Detail = failureDetail(exitCode, filepath.Join(h.task.OutputDir, "logs", "stderr.log"))
	}
	h.meta.Finalize(exitCode, finalStep, h.task.Steps, end.Sub(h.start))
	if err := h.meta.Write(h.task.OutputDir); err != nil {
		res.Err = err
	}
	return res
}

// Terminate signals the process group to stop, escalating to a kill only
// if the process outlives the grace period. Safe to call on a process that
// already exited.
func (h *processHandle) Terminate() {
	terminateProcess(h.cmd, h.grace, h.exited)
}

// stderrTailLines bounds how much of a failed worker's stderr log is
// surfaced in its run record.
const stderrTailLines = 20

// failureDetail combines the exit-code explanation with the tail of the
// worker's stderr log, the two places a failure usually explains itself.
func failureDetail(exitCode int, stderrPath string) string {
	detail := fmt.Sprintf("exit code %d: %s", exitCode, InterpretExitCode(exitCode))
	if tail := tailLines(stderrPath, stderrTailLines); tail != "" {
		detail += "\n" + tail
	}
	return detail
}

// tailLines returns the last n lines of a file, "" on any failure.
func tailLines(path string, n int) string {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return ""
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// readFinalStep inspects the task's store for the highest committed step.
// Any failure (no store file, no steps yet) reads as zero.
func (h *processHandle) readFinalStep() int {
	s, err := store.OpenReadOnly(h.storePath)
	if err != nil {
		return 0
	}
	defer s.Close()
	step, err := s.LatestStep(context.Background())
	if err != nil {
		return 0
	}
	return step
}
