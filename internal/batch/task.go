package batch

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/VaninJoel/angiorun/internal/params"
)

// Task is one fully resolved run: a point in the sweep product plus a
// replicate index. Immutable once generated; consumed by exactly one worker.
type Task struct {
	// ComboIndex and ReplicateIndex are 1-based.
	ComboIndex     int
	ReplicateIndex int

	// Name is the unique run name derived from the indices (see TaskName).
	Name string

	// Parameters holds the resolved scalar for every declared parameter.
	Parameters map[string]any

	// Execution controls copied from the spec.
	Steps          int
	WriteFrequency int

	// OutputDir is the task's private directory under the batch root.
	OutputDir string
}

// StorePath returns the task's snapshot store file.
func (t Task) StorePath(storeFile string) string {
	return filepath.Join(t.OutputDir, storeFile)
}

// TaskSet is the ordered expansion of one spec. Order governs admission.
type TaskSet struct {
	// Experiment is the normalized base experiment name.
	Experiment string

	// BatchID is a UUIDv7 stamped into every run's provenance attributes.
	BatchID string

	// CreatedAt is when the set was generated.
	CreatedAt time.Time

	HasSweep   bool
	Replicates int

	Tasks []Task
}

// Generate expands a validated spec into a TaskSet.
//
// Combos enumerate the cartesian product of swept parameter values in
// declared order, last parameter varying fastest, with 1-based combo
// indices in enumeration order. Each combo yields Replicates tasks with
// 1-based replicate indices. The expansion is pure apart from reading the
// clock and minting the batch id: no directories are created here.
//
// Returns *params.SpecError (never a partial set) for an invalid spec.
func Generate(spec *params.Spec) (*TaskSet, error) {
	return generateAt(spec, time.Now().UTC(), uuid.Must(uuid.NewV7()).String())
}

// generateAt is the deterministic core of Generate, split out for tests.
func generateAt(spec *params.Spec, now time.Time, batchID string) (*TaskSet, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	experiment := NormalizeExperiment(spec.Experiment)
	if experiment == "" {
		return nil, &params.SpecError{Field: "experiment", Message: "empty after normalization"}
	}

	set := &TaskSet{
		Experiment: experiment,
		BatchID:    batchID,
		CreatedAt:  now,
		HasSweep:   spec.HasSweep(),
		Replicates: spec.Replicates,
	}

	swept := make([]params.Param, 0, len(spec.Params))
	for _, p := range spec.Params {
		if p.Swept() {
			swept = append(swept, p)
		}
	}

	combos := spec.SweepSize()
	hasReps := spec.Replicates > 1
	set.Tasks = make([]Task, 0, combos*spec.Replicates)

	// odometer holds one value index per swept parameter; the last digit
	// increments fastest, matching product enumeration order.
	odometer := make([]int, len(swept))
	for combo := 1; combo <= combos; combo++ {
		resolved := make(map[string]any, len(spec.Params))
		for _, p := range spec.Params {
			resolved[p.Name] = p.Values[0]
		}
		for i, p := range swept {
			resolved[p.Name] = p.Values[odometer[i]]
		}

		for rep := 1; rep <= spec.Replicates; rep++ {
			// Each task owns its own copy; workers must not share maps.
			paramsCopy := make(map[string]any, len(resolved))
			for k, v := range resolved {
				paramsCopy[k] = v
			}
			set.Tasks = append(set.Tasks, Task{
				ComboIndex:     combo,
				ReplicateIndex: rep,
				Name:           TaskName(experiment, combo, rep, set.HasSweep, hasReps),
				Parameters:     paramsCopy,
				Steps:          spec.Steps,
				WriteFrequency: spec.WriteFrequency,
			})
		}

		for i := len(odometer) - 1; i >= 0; i-- {
			odometer[i]++
			if odometer[i] < len(swept[i].Values) {
				break
			}
			odometer[i] = 0
		}
	}

	return set, nil
}

// BatchDirName returns the timestamped folder name holding a multi-run
// batch: <experiment>_<YYYYMMDD_HHMMSS>.
func (s *TaskSet) BatchDirName() string {
	return fmt.Sprintf("%s_%s", s.Experiment, s.CreatedAt.Format("20060102_150405"))
}

// AssignOutputDirs sets every task's private directory under root.
//
// A single plain run (no sweep, one replicate) lives directly under root;
// anything larger gets the timestamped batch folder first.
func (s *TaskSet) AssignOutputDirs(root string) {
	base := root
	if len(s.Tasks) > 1 {
		base = filepath.Join(root, s.BatchDirName())
	}
	for i := range s.Tasks {
		s.Tasks[i].OutputDir = filepath.Join(base, s.Tasks[i].Name)
	}
}
