package batch

import "time"

// Status is a task's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// RunRecord is the scheduler's bookkeeping entry for one task: exactly one
// per task, created at dispatch, finalized at process exit. Only the
// scheduler mutates records; everyone else gets copies.
type RunRecord struct {
	Task     Task
	Status   Status
	ExitCode int

	// Start/End bound the running interval. Both are zero for tasks that
	// were cancelled before they ever started.
	Start    time.Time
	End      time.Time
	Duration time.Duration

	// Progress is the last fraction observed by the progress monitor,
	// in [0,1]. Zero until the first snapshot lands.
	Progress float64

	// Detail carries the failure or launch-error description, if any.
	Detail string
}

// Event is one task-status-change notification, emitted by the scheduler in
// the order changes occur (exit order may differ from admission order).
type Event struct {
	Task     string
	Status   Status
	Progress float64
	Detail   string
}

// RunResult is what a worker handle reports after its process exits.
type RunResult struct {
	// ExitCode is the process exit code; negative when the process died to
	// a signal, after the convention of os.ProcessState.
	ExitCode int

	// FinalStep is the highest step key committed to the task's store,
	// 0 if none (or unknown).
	FinalStep int

	// Detail optionally carries a failure description from the worker
	// side, typically the tail of its stderr log.
	Detail string

	// Err reports an infrastructure fault (wait failure, metadata write
	// failure), not a simulation failure; simulation failures are non-zero
	// exit codes.
	Err error
}
