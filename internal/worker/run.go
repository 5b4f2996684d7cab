package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/VaninJoel/angiorun/internal/engine"
	"github.com/VaninJoel/angiorun/internal/store"
)

// ExecuteTask is the child-process entry point: it runs one task end to
// end inside the current process.
//
// The store is stamped with the resolved parameters and batch provenance
// before the first step, so even a run killed at step one identifies
// itself. Terminal attributes (final step, completion) land after the loop
// regardless of how it ended.
func ExecuteTask(ctx context.Context, in Input, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	s, err := store.Open(in.StorePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	attrs := make(map[string]any, len(in.Parameters)+5)
	for k, v := range in.Parameters {
		attrs[k] = v
	}
	attrs["experiment"] = in.Experiment
	attrs["batch_id"] = in.BatchID
	attrs["task_name"] = in.TaskName
	attrs["combo_index"] = in.ComboIndex
	attrs["replicate_index"] = in.ReplicateIndex
	// Provenance goes in even when the run is already being cancelled: a
	// store that exists must identify itself.
	if err := s.MergeAttrs(context.WithoutCancel(ctx), attrs); err != nil {
		return fmt.Errorf("stamp provenance: %w", err)
	}

	seed := in.Seed()
	eng := engine.NewReference(engine.ReferenceConfig{
		NX:         intParam(in.Parameters, "nx"),
		NY:         intParam(in.Parameters, "ny"),
		Seed:       seed,
		Parameters: in.Parameters,
	})

	policy := engine.WritePolicy{Frequency: in.WriteFrequency, FinalStep: in.Steps}

	log.Info("task starting",
		"task", in.TaskName,
		"steps", in.Steps,
		"write_frequency", in.WriteFrequency,
		"seed", seed)

	final, runErr := engine.RunLoop(ctx, eng, s, policy, in.Steps)

	terminal := map[string]any{
		"final_step": final,
		"seed":       seed,
		"completed":  runErr == nil,
	}
	if err := s.MergeAttrs(context.WithoutCancel(ctx), terminal); err != nil && runErr == nil {
		runErr = fmt.Errorf("stamp terminal attributes: %w", err)
	}

	if runErr != nil {
		log.Error("task failed", "task", in.TaskName, "final_step", final, "error", runErr)
		return runErr
	}
	log.Info("task finished", "task", in.TaskName, "final_step", final)
	return nil
}

// intParam reads an integer-valued parameter, 0 (engine default) when
// absent or non-numeric.
func intParam(params map[string]any, name string) int {
	switch v := params[name].(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
