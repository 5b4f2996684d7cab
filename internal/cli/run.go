package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/VaninJoel/angiorun/internal/batch"
	"github.com/VaninJoel/angiorun/internal/params"
	"github.com/VaninJoel/angiorun/internal/worker"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	OutputDir    string
	Concurrency  int
	PollInterval time.Duration

	// Launcher allows overriding the worker launcher (for testing).
	// If nil, defaults to the process-backed worker.Launcher.
	Launcher batch.Launcher
}

// runSummary is the terminal report of a batch.
type runSummary struct {
	Experiment string         `json:"experiment"`
	BatchID    string         `json:"batch_id"`
	Total      int            `json:"total"`
	Counts     map[string]int `json:"counts"`
	Tasks      []taskSummary  `json:"tasks"`
}

type taskSummary struct {
	Name     string  `json:"name"`
	Status   string  `json:"status"`
	ExitCode int     `json:"exit_code"`
	Progress float64 `json:"progress"`
	Duration string  `json:"duration,omitempty"`
	Detail   string  `json:"detail,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <spec.yaml>",
		Short: "Expand a sweep spec and execute every task",
		Long: `Expand the spec's parameter sweep into tasks and run them as worker
processes, at most --concurrency at a time, in declaration order.

Each task gets a private run directory with a snapshot store, captured
logs, and run_metadata.json. A failing or crashing task never stops the
batch; Ctrl-C stops admissions and signals running workers.

Example:
  angiorun run sweep.yaml --out ./results
  angiorun run sweep.yaml --concurrency 4 --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.OutputDir, "out", ".", "root directory for run output")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "max simultaneous workers (0 = CPUs-1)")
	cmd.Flags().DurationVar(&opts.PollInterval, "poll-interval", batch.DefaultPollInterval, "progress poll cadence (0 disables)")

	return cmd
}

func runBatch(opts *RunOptions, specPath string, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))

	spec, err := params.Load(specPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load spec", err)
	}

	set, err := batch.Generate(spec)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to expand spec", err)
	}
	set.AssignOutputDirs(opts.OutputDir)
	slog.Info("spec expanded",
		"experiment", set.Experiment,
		"batch_id", set.BatchID,
		"tasks", len(set.Tasks),
		"replicates", set.Replicates)

	launcher := opts.Launcher
	if launcher == nil {
		launcher = &worker.Launcher{
			Experiment: set.Experiment,
			BatchID:    set.BatchID,
		}
	}

	sched, err := batch.NewScheduler(set, launcher, batch.Config{
		Concurrency:  opts.Concurrency,
		PollInterval: opts.PollInterval,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build scheduler", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping batch", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// Drain the event stream concurrently with Run; status changes block
	// the scheduler until consumed.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range sched.Events() {
			renderEvent(opts, ev)
		}
	}()

	if err := sched.Run(ctx); err != nil {
		wg.Wait()
		return WrapExitError(ExitCommandError, "scheduler error", err)
	}
	wg.Wait()

	summary := summarize(set, sched.Records())
	if err := printSummary(opts, cmd, summary); err != nil {
		return err
	}

	if summary.Counts[string(batch.StatusFailed)] > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d tasks failed", summary.Counts[string(batch.StatusFailed)], summary.Total))
	}
	return nil
}

// renderEvent logs one status change. Progress ticks only show with
// --verbose; logging goes to stderr so stdout stays a clean summary (one
// JSON document in json mode).
func renderEvent(opts *RunOptions, ev batch.Event) {
	switch ev.Status {
	case batch.StatusRunning:
		if ev.Progress > 0 {
			if opts.Verbose {
				slog.Debug("progress", "task", ev.Task, "fraction", fmt.Sprintf("%.0f%%", ev.Progress*100))
			}
			return
		}
		slog.Info("task started", "task", ev.Task)
	case batch.StatusCompleted:
		slog.Info("task completed", "task", ev.Task)
	case batch.StatusFailed:
		slog.Error("task failed", "task", ev.Task, "detail", ev.Detail)
	case batch.StatusCancelled:
		slog.Warn("task cancelled", "task", ev.Task)
	}
}

func summarize(set *batch.TaskSet, records []batch.RunRecord) runSummary {
	s := runSummary{
		Experiment: set.Experiment,
		BatchID:    set.BatchID,
		Total:      len(records),
		Counts:     make(map[string]int, 4),
		Tasks:      make([]taskSummary, 0, len(records)),
	}
	for _, rec := range records {
		s.Counts[string(rec.Status)]++
		ts := taskSummary{
			Name:     rec.Task.Name,
			Status:   string(rec.Status),
			ExitCode: rec.ExitCode,
			Progress: rec.Progress,
			Detail:   rec.Detail,
		}
		if rec.Duration > 0 {
			ts.Duration = rec.Duration.Round(time.Millisecond).String()
		}
		s.Tasks = append(s.Tasks, ts)
	}
	return s
}

func printSummary(opts *RunOptions, cmd *cobra.Command, s runSummary) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Format == "json" {
		return formatter.Success(s)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nBatch %s (%s): %d tasks\n", s.Experiment, s.BatchID, s.Total)
	for _, t := range s.Tasks {
		line := fmt.Sprintf("  %-40s %s", t.Name, t.Status)
		if t.Duration != "" {
			line += " (" + t.Duration + ")"
		}
		if t.Detail != "" {
			line += " - " + t.Detail
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "completed=%d failed=%d cancelled=%d\n",
		s.Counts[string(batch.StatusCompleted)],
		s.Counts[string(batch.StatusFailed)],
		s.Counts[string(batch.StatusCancelled)])
	return nil
}
