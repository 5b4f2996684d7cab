package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/VaninJoel/angiorun/internal/worker"
)

// NewWorkerCommand creates the hidden worker command: the child half of
// the process split. The run command re-execs this binary with
// "worker --params <file>" for every task; it is not for hand use.
func NewWorkerCommand(rootOpts *RootOptions) *cobra.Command {
	var paramsPath string

	cmd := &cobra.Command{
		Use:           "worker",
		Short:         "Execute a single task (internal)",
		Hidden:        true,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The launcher appends the input path after --params, which
			// cobra hands us as a positional argument.
			path := paramsPath
			if path == "" && len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return NewExitError(ExitCommandError, "worker: missing task input path")
			}
			return runWorker(rootOpts, path, cmd)
		},
	}

	cmd.Flags().StringVar(&paramsPath, "params", "", "path to the task input file")

	return cmd
}

func runWorker(opts *RootOptions, paramsPath string, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	in, err := worker.ReadInput(paramsPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "worker", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	// The parent's Terminate delivers SIGTERM to our process group; turn
	// it into context cancellation so the run loop stops between steps and
	// the store keeps every committed snapshot.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			log.Info("stop signal received", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := worker.ExecuteTask(ctx, in, log); err != nil {
		return WrapExitError(ExitFailure, "task execution", err)
	}
	return nil
}
