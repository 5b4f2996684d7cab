package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/VaninJoel/angiorun/internal/store"
)

// StepsOptions holds flags for the steps command.
type StepsOptions struct {
	*RootOptions
	Attrs bool
}

// storeReport is the steps command's payload.
type storeReport struct {
	Path       string         `json:"path"`
	Steps      []int          `json:"steps"`
	LatestStep int            `json:"latest_step"`
	Attrs      map[string]any `json:"attrs,omitempty"`
}

// NewStepsCommand creates the steps command for inspecting a run's store.
func NewStepsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StepsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "steps <store-file>",
		Short: "List the committed steps of a snapshot store",
		Long: `Open a run's snapshot store read-only and list its committed step keys.
Safe against a live writer: only fully committed steps are visible.

Example:
  angiorun steps results/sweep_combo001_rep01/data.db --attrs`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSteps(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Attrs, "attrs", false, "include store attributes")

	return cmd
}

func runSteps(opts *StepsOptions, path string, cmd *cobra.Command) error {
	s, err := store.OpenReadOnly(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	steps, err := s.ListSteps(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list steps", err)
	}
	report := storeReport{Path: path, Steps: steps}
	if len(steps) > 0 {
		report.LatestStep = steps[len(steps)-1]
	}
	if opts.Attrs {
		attrs, err := s.Attrs(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read attributes", err)
		}
		report.Attrs = attrs
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Format == "json" {
		return formatter.Success(report)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d step(s)\n", path, len(report.Steps))
	for _, step := range report.Steps {
		fmt.Fprintf(out, "  %d\n", step)
	}
	if report.Attrs != nil {
		keys := make([]string, 0, len(report.Attrs))
		for k := range report.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(out, "attrs:")
		for _, k := range keys {
			fmt.Fprintf(out, "  %s = %v\n", k, report.Attrs[k])
		}
	}
	return nil
}
