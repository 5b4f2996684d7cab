// Package engine defines the per-step contract between a simulation engine
// and the snapshot store, plus a built-in reference engine.
//
// The biological update rules are opaque to the orchestration layer: the
// scheduler and worker only see an Engine that advances one step at a time
// and exposes its current frame. What they control is persistence, through
// the WriteDirective handed to the loop each step.
package engine

import (
	"context"
	"fmt"

	"github.com/VaninJoel/angiorun/internal/field"
)

// Engine advances a spatial stochastic simulation one step at a time.
type Engine interface {
	// Step executes one simulation step. Steps are 1-based and called in
	// order by the run loop.
	Step(ctx context.Context, step int) error

	// Frame returns the current lattice state. The run loop only reads it
	// between Step calls; implementations may return an internal buffer.
	Frame() *field.Frame
}

// SnapshotWriter is the store-side half of the directive contract. The run
// loop invokes WriteStep exactly when directed to write.
type SnapshotWriter interface {
	WriteStep(ctx context.Context, step int, frame *field.Frame, attrs map[string]any) error
}

// DirectivePolicy yields the instruction for each step.
type DirectivePolicy interface {
	Directive(step int) Directive
}

// RunLoop drives eng for totalSteps steps, consulting policy each step and
// persisting snapshots through w when directed.
//
// Returns the last completed step alongside any error; on failure the store
// retains every snapshot committed before the fault.
func RunLoop(ctx context.Context, eng Engine, w SnapshotWriter, policy DirectivePolicy, totalSteps int) (int, error) {
	if totalSteps <= 0 {
		return 0, fmt.Errorf("engine: total steps must be > 0, got %d", totalSteps)
	}

	for step := 1; step <= totalSteps; step++ {
		if err := ctx.Err(); err != nil {
			return step - 1, err
		}

		if err := eng.Step(ctx, step); err != nil {
			return step - 1, fmt.Errorf("engine: step %d: %w", step, err)
		}

		d := policy.Directive(step)
		switch d.Kind {
		case DirectiveWrite:
			if err := w.WriteStep(ctx, step, eng.Frame(), nil); err != nil {
				return step - 1, fmt.Errorf("engine: persist step %d: %w", step, err)
			}
		case DirectiveSkipWrite:
			// Nothing to do.
		default:
			// Reserved verbs are variant additions the loop does not speak yet.
			return step - 1, fmt.Errorf("engine: unsupported directive %s at step %d", d.Kind, step)
		}
	}

	return totalSteps, nil
}
