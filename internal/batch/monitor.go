package batch

import (
	"context"
	"sort"
	"time"

	"github.com/VaninJoel/angiorun/internal/store"
)

// DefaultPollInterval is how often a running task's store is polled for
// progress when the caller does not choose a cadence.
const DefaultPollInterval = 2 * time.Second

// monitorProgressCap bounds what polling alone may claim. Only the process
// exit confirms completion, so the monitor never reports a full run; the
// scheduler sets 1.0 when it finalizes a completed record.
const monitorProgressCap = 0.95

// ProgressMonitor reports a running task's progress by polling its snapshot
// store. It is strictly read-only (there is no control channel to the
// worker) and tolerates the store not existing yet (the worker may not
// have created it).
type ProgressMonitor struct {
	StorePath  string
	TotalSteps int
	Interval   time.Duration

	// listSteps is a test seam; the default opens the store read-only.
	listSteps func(ctx context.Context) ([]int, error)
}

// Watch polls until ctx is cancelled, invoking report with a monotonically
// non-decreasing fraction in [0, monitorProgressCap] each time progress
// advances. The caller cancels ctx once the task's record turns terminal.
func (m *ProgressMonitor) Watch(ctx context.Context, report func(frac float64)) {
	interval := m.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := 0.0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frac, ok := m.poll(ctx)
		if !ok || frac <= last {
			continue
		}
		last = frac
		report(frac)
	}
}

// poll reads the store once. Any failure (store missing, still locked,
// torn listing) reads as "no progress yet" rather than an error: the
// monitor's signal is advisory and must never disturb the run.
func (m *ProgressMonitor) poll(ctx context.Context) (float64, bool) {
	if m.TotalSteps <= 0 {
		return 0, false
	}

	steps, err := m.listStepsFn(ctx)
	if err != nil || len(steps) == 0 {
		return 0, false
	}

	// Sort before taking the max: filesystem-backed listings may arrive
	// out of order.
	sort.Ints(steps)
	frac := float64(steps[len(steps)-1]) / float64(m.TotalSteps)
	if frac > monitorProgressCap {
		frac = monitorProgressCap
	}
	return frac, true
}

func (m *ProgressMonitor) listStepsFn(ctx context.Context) ([]int, error) {
	if m.listSteps != nil {
		return m.listSteps(ctx)
	}

	st, err := store.OpenReadOnly(m.StorePath)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.ListSteps(ctx)
}
