package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/VaninJoel/angiorun/internal/store"
)

// Handle is a launched worker as the scheduler sees it: something to wait
// on and, on cancellation, something to signal.
type Handle interface {
	// Wait blocks until the worker process exits and reports the outcome.
	Wait() RunResult

	// Terminate signals the worker to stop. Best effort: a process that
	// already exited is not an error, and the eventual Wait result decides
	// the record's fate.
	Terminate()
}

// Launcher starts one task's worker. The process-backed implementation
// lives in the worker package; tests substitute in-process fakes.
type Launcher interface {
	Launch(ctx context.Context, task Task) (Handle, error)
}

// DefaultConcurrency is the default worker limit: available parallel
// hardware contexts minus one (the coordinating control flow), minimum 1.
func DefaultConcurrency() int {
	if n := runtime.NumCPU() - 1; n > 1 {
		return n
	}
	return 1
}

// Config tunes a Scheduler.
type Config struct {
	// Concurrency is the maximum number of simultaneously running workers.
	// Zero means DefaultConcurrency().
	Concurrency int

	// PollInterval is the progress monitor cadence. Zero disables progress
	// monitoring.
	PollInterval time.Duration

	// StoreFile is the snapshot store file name inside each run directory.
	// Zero value means store.DefaultFileName.
	StoreFile string
}

// Scheduler owns the execution queue over one TaskSet. All mutable state
// (records, slot accounting) lives behind its mutex; outsiders see only
// status events and record copies.
//
// Admission is strict FIFO in TaskSet order with at most Concurrency
// workers in flight. There is no per-task timeout: a hung worker occupies
// its slot until cancellation (a known gap, left unbounded on purpose).
type Scheduler struct {
	tasks        []Task
	launcher     Launcher
	limit        int
	pollInterval time.Duration
	storeFile    string
	now          func() time.Time

	mu      sync.Mutex
	records map[string]*RunRecord
	order   []string
	events  chan Event
}

// NewScheduler builds a scheduler over the task set.
func NewScheduler(set *TaskSet, launcher Launcher, cfg Config) (*Scheduler, error) {
	if set == nil || len(set.Tasks) == 0 {
		return nil, fmt.Errorf("scheduler: empty task set")
	}
	if launcher == nil {
		return nil, fmt.Errorf("scheduler: nil launcher")
	}
	limit := cfg.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency()
	}
	storeFile := cfg.StoreFile
	if storeFile == "" {
		storeFile = store.DefaultFileName
	}

	s := &Scheduler{
		tasks:        set.Tasks,
		launcher:     launcher,
		limit:        limit,
		pollInterval: cfg.PollInterval,
		storeFile:    storeFile,
		now:          func() time.Time { return time.Now().UTC() },
		records:      make(map[string]*RunRecord, len(set.Tasks)),
		events:       make(chan Event, 256),
	}
	return s, nil
}

// SetClock overrides the scheduler's clock. Used by tests.
func (s *Scheduler) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Events returns the status-change stream. The channel closes when Run
// returns; callers should drain it concurrently with Run.
func (s *Scheduler) Events() <-chan Event {
	return s.events
}

// Run executes every task to a terminal state and closes the event stream.
//
// Cancelling ctx halts new admissions immediately, signals every running
// worker, and records never-started tasks as cancelled with no running
// interval. Run itself returns nil on cancellation; the records carry the
// outcome. A worker failure never stops the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.events)

	type exited struct {
		name string
		res  RunResult
	}
	done := make(chan exited)
	handles := make(map[string]Handle, s.limit)
	monitors := make(map[string]context.CancelFunc, s.limit)
	next, running := 0, 0
	cancelled := false
	ctxDone := ctx.Done()

	for {
		for !cancelled && running < s.limit && next < len(s.tasks) {
			task := s.tasks[next]
			next++

			s.markRunning(task)
			h, err := s.launcher.Launch(ctx, task)
			if err != nil {
				// Launch failures never produced a process; record directly
				// without worker-written metadata.
				s.finalize(task.Name, StatusFailed, -1, 0, fmt.Sprintf("launch: %v", err))
				continue
			}

			handles[task.Name] = h
			running++

			if s.pollInterval > 0 {
				mctx, stop := context.WithCancel(context.Background())
				monitors[task.Name] = stop
				mon := &ProgressMonitor{
					StorePath:  task.StorePath(s.storeFile),
					TotalSteps: task.Steps,
					Interval:   s.pollInterval,
				}
				name := task.Name
				go mon.Watch(mctx, func(frac float64) {
					s.updateProgress(name, frac)
				})
			}

			go func(name string, h Handle) {
				done <- exited{name: name, res: h.Wait()}
			}(task.Name, h)
		}

		if running == 0 && (cancelled || next >= len(s.tasks)) {
			break
		}

		select {
		case e := <-done:
			running--
			delete(handles, e.name)
			if stop, ok := monitors[e.name]; ok {
				stop()
				delete(monitors, e.name)
			}

			switch {
			case e.res.Err == nil && e.res.ExitCode == 0:
				// A worker that exits cleanly during cancellation still
				// completed; "already exited" beats the terminate signal.
				s.finalize(e.name, StatusCompleted, 0, e.res.FinalStep, "")
			case cancelled:
				s.finalize(e.name, StatusCancelled, e.res.ExitCode, e.res.FinalStep, detailFor(e.res))
			default:
				s.finalize(e.name, StatusFailed, e.res.ExitCode, e.res.FinalStep, detailFor(e.res))
			}

		case <-ctxDone:
			cancelled = true
			ctxDone = nil
			// Terminate can block for a kill-grace period, so every running
			// worker is signaled from its own goroutine and the loop keeps
			// draining exits.
			for _, h := range handles {
				go h.Terminate()
			}
		}
	}

	// Tasks that were never admitted get cancelled records with no
	// running interval.
	for ; next < len(s.tasks); next++ {
		s.markCancelledUnstarted(s.tasks[next])
	}

	return nil
}

// detailFor summarizes a RunResult for the record's Detail field.
func detailFor(res RunResult) string {
	if res.Err != nil {
		return res.Err.Error()
	}
	if res.Detail != "" {
		return res.Detail
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("exit code %d", res.ExitCode)
	}
	return ""
}

// Record returns a copy of one task's record.
func (s *Scheduler) Record(name string) (RunRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[name]
	if !ok {
		return RunRecord{}, false
	}
	return *rec, true
}

// Records returns copies of all records in creation order.
func (s *Scheduler) Records() []RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunRecord, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *s.records[name])
	}
	return out
}

// Counts tallies records by status.
func (s *Scheduler) Counts() map[Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Status]int, 5)
	for _, rec := range s.records {
		out[rec.Status]++
	}
	return out
}

func (s *Scheduler) markRunning(task Task) {
	s.mu.Lock()
	rec := &RunRecord{Task: task, Status: StatusRunning, Start: s.now()}
	s.records[task.Name] = rec
	s.order = append(s.order, task.Name)
	s.mu.Unlock()

	s.emit(Event{Task: task.Name, Status: StatusRunning}, true)
}

func (s *Scheduler) markCancelledUnstarted(task Task) {
	s.mu.Lock()
	rec := &RunRecord{Task: task, Status: StatusCancelled}
	s.records[task.Name] = rec
	s.order = append(s.order, task.Name)
	s.mu.Unlock()

	s.emit(Event{Task: task.Name, Status: StatusCancelled}, true)
}

func (s *Scheduler) finalize(name string, status Status, exitCode, finalStep int, detail string) {
	s.mu.Lock()
	rec := s.records[name]
	rec.Status = status
	rec.ExitCode = exitCode
	rec.End = s.now()
	if !rec.Start.IsZero() {
		rec.Duration = rec.End.Sub(rec.Start)
	}
	rec.Detail = detail
	if status == StatusCompleted {
		rec.Progress = 1.0
	} else if rec.Task.Steps > 0 && finalStep > 0 {
		frac := float64(finalStep) / float64(rec.Task.Steps)
		if frac > rec.Progress {
			rec.Progress = frac
		}
	}
	progress := rec.Progress
	s.mu.Unlock()

	s.emit(Event{Task: name, Status: status, Progress: progress, Detail: detail}, true)
}

func (s *Scheduler) updateProgress(name string, frac float64) {
	s.mu.Lock()
	rec, ok := s.records[name]
	if !ok || rec.Status.Terminal() || frac <= rec.Progress {
		s.mu.Unlock()
		return
	}
	rec.Progress = frac
	status := rec.Status
	s.mu.Unlock()

	// Progress ticks are droppable; status changes are not.
	s.emit(Event{Task: name, Status: status, Progress: frac}, false)
}

// emit sends an event. Status changes block until delivered; progress ticks
// are dropped if the consumer lags.
func (s *Scheduler) emit(ev Event, block bool) {
	if block {
		s.events <- ev
		return
	}
	select {
	case s.events <- ev:
	default:
	}
}
