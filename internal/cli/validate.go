package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/VaninJoel/angiorun/internal/batch"
	"github.com/VaninJoel/angiorun/internal/params"
)

// errCodeInvalidSpec is the machine-readable code attached to JSON error
// responses for spec files that fail validation.
const errCodeInvalidSpec = "E001"

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Expand bool
}

// ValidationResult holds the outcome of validating one spec file.
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Experiment string   `json:"experiment,omitempty"`
	Combos     int      `json:"combos,omitempty"`
	Replicates int      `json:"replicates,omitempty"`
	Tasks      int      `json:"tasks,omitempty"`
	TaskNames  []string `json:"task_names,omitempty"`
	Error      string   `json:"error,omitempty"`
	Field      string   `json:"field,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <spec.yaml>",
		Short: "Validate a sweep spec without running anything",
		Long: `Validate a spec file against the schema and semantic rules, and report
the size of the expansion it would produce. With --expand, list every
task name in admission order.

Nothing is written: no directories, no stores, no processes.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Expand, "expand", false, "list the expanded task names")

	return cmd
}

func runValidate(opts *ValidateOptions, specPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	spec, err := params.Load(specPath)
	if err != nil {
		return outputValidateError(formatter, err)
	}
	formatter.VerboseLog("Loaded %s: %d parameter(s)", specPath, len(spec.Params))

	set, err := batch.Generate(spec)
	if err != nil {
		return outputValidateError(formatter, err)
	}

	result := ValidationResult{
		Valid:      true,
		Experiment: set.Experiment,
		Combos:     spec.SweepSize(),
		Replicates: set.Replicates,
		Tasks:      len(set.Tasks),
	}
	if opts.Expand {
		result.TaskNames = make([]string, 0, len(set.Tasks))
		for _, t := range set.Tasks {
			result.TaskNames = append(result.TaskNames, t.Name)
		}
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Valid: %s\n", result.Experiment)
	fmt.Fprintf(out, "  combos=%d replicates=%d tasks=%d\n", result.Combos, result.Replicates, result.Tasks)
	for _, name := range result.TaskNames {
		fmt.Fprintf(out, "  %s\n", name)
	}
	return nil
}

// outputValidateError reports an invalid spec and returns the ExitFailure
// error. Malformed files (unreadable, bad YAML, schema violations) and
// semantic violations both land here; the distinction lives in the field.
func outputValidateError(f *OutputFormatter, err error) error {
	result := ValidationResult{Valid: false, Error: err.Error()}
	var specErr *params.SpecError
	if errors.As(err, &specErr) {
		result.Field = specErr.Field
	}

	if f.Format == "json" {
		var details any
		if result.Field != "" {
			details = map[string]string{"field": result.Field}
		}
		if encErr := f.Error(errCodeInvalidSpec, result.Error, details); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintf(f.Writer, "Invalid: %s\n", result.Error)
	}
	return NewExitError(ExitFailure, "spec validation failed")
}
