package batch

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VaninJoel/angiorun/internal/params"
)

func sweepSpec(experiment string, replicates int, ps ...params.Param) *params.Spec {
	return &params.Spec{
		Experiment:     experiment,
		Steps:          100,
		WriteFrequency: 10,
		Replicates:     replicates,
		Params:         ps,
	}
}

func TestGenerate_SweepSingleReplicate(t *testing.T) {
	spec := sweepSpec("t1", 1,
		params.Param{Name: "jee", Values: []any{int64(2), int64(4)}},
		params.Param{Name: "jem", Values: []any{int64(2)}},
	)

	set, err := Generate(spec)
	require.NoError(t, err)
	require.Len(t, set.Tasks, 2)

	assert.Equal(t, "t1_combo001", set.Tasks[0].Name)
	assert.Equal(t, "t1_combo002", set.Tasks[1].Name)

	assert.Equal(t, int64(2), set.Tasks[0].Parameters["jee"])
	assert.Equal(t, int64(4), set.Tasks[1].Parameters["jee"])
	// The fixed parameter rides along in every combo.
	assert.Equal(t, int64(2), set.Tasks[0].Parameters["jem"])
	assert.Equal(t, int64(2), set.Tasks[1].Parameters["jem"])
}

func TestGenerate_ReplicatesOnly(t *testing.T) {
	spec := sweepSpec("t2", 3,
		params.Param{Name: "jee", Values: []any{int64(2)}},
	)

	set, err := Generate(spec)
	require.NoError(t, err)
	require.Len(t, set.Tasks, 3)

	assert.Equal(t, "t2_rep01", set.Tasks[0].Name)
	assert.Equal(t, "t2_rep02", set.Tasks[1].Name)
	assert.Equal(t, "t2_rep03", set.Tasks[2].Name)
	for i, task := range set.Tasks {
		assert.Equal(t, 1, task.ComboIndex)
		assert.Equal(t, i+1, task.ReplicateIndex)
	}
}

func TestGenerate_FullProductOrdering(t *testing.T) {
	spec := sweepSpec("t3", 2,
		params.Param{Name: "jee", Values: []any{int64(2), int64(4)}},
		params.Param{Name: "jem", Values: []any{int64(2), int64(4)}},
	)

	set, err := Generate(spec)
	require.NoError(t, err)
	require.Len(t, set.Tasks, 8)

	// Last declared parameter varies fastest.
	wantCombos := []struct{ jee, jem int64 }{
		{2, 2}, {2, 4}, {4, 2}, {4, 4},
	}
	for combo := 0; combo < 4; combo++ {
		for rep := 0; rep < 2; rep++ {
			task := set.Tasks[combo*2+rep]
			assert.Equal(t, combo+1, task.ComboIndex)
			assert.Equal(t, rep+1, task.ReplicateIndex)
			assert.Equal(t, wantCombos[combo].jee, task.Parameters["jee"], "task %s", task.Name)
			assert.Equal(t, wantCombos[combo].jem, task.Parameters["jem"], "task %s", task.Name)
		}
	}
	assert.Equal(t, "t3_combo001_rep01", set.Tasks[0].Name)
	assert.Equal(t, "t3_combo004_rep02", set.Tasks[7].Name)
}

func TestGenerate_ParameterMapsAreIndependent(t *testing.T) {
	spec := sweepSpec("t4", 2,
		params.Param{Name: "jee", Values: []any{int64(2)}},
	)

	set, err := Generate(spec)
	require.NoError(t, err)
	require.Len(t, set.Tasks, 2)

	set.Tasks[0].Parameters["jee"] = int64(99)
	assert.Equal(t, int64(2), set.Tasks[1].Parameters["jee"], "tasks must not share parameter maps")
}

func TestGenerate_InvalidSpecProducesNoTasks(t *testing.T) {
	spec := sweepSpec("", 1)

	set, err := Generate(spec)
	var specErr *params.SpecError
	require.ErrorAs(t, err, &specErr)
	assert.Nil(t, set)
}

func TestGenerate_NormalizesExperiment(t *testing.T) {
	spec := sweepSpec("my experiment", 1)

	set, err := Generate(spec)
	require.NoError(t, err)
	assert.Equal(t, "my_experiment", set.Experiment)
	assert.Equal(t, "my_experiment", set.Tasks[0].Name)
}

func TestAssignOutputDirs_SingleRunSkipsBatchFolder(t *testing.T) {
	spec := sweepSpec("solo", 1)
	set, err := Generate(spec)
	require.NoError(t, err)
	require.Len(t, set.Tasks, 1)

	set.AssignOutputDirs("/results")
	assert.Equal(t, filepath.Join("/results", "solo"), set.Tasks[0].OutputDir)
}

func TestAssignOutputDirs_BatchGetsTimestampedFolder(t *testing.T) {
	spec := sweepSpec("batch", 2)
	now := time.Date(2026, 3, 15, 9, 30, 45, 0, time.UTC)

	set, err := generateAt(spec, now, "test-batch-id")
	require.NoError(t, err)
	require.Len(t, set.Tasks, 2)

	assert.Equal(t, "batch_20260315_093045", set.BatchDirName())

	set.AssignOutputDirs("/results")
	want := filepath.Join("/results", "batch_20260315_093045", "batch_rep01")
	assert.Equal(t, want, set.Tasks[0].OutputDir)
}

func TestTask_StorePath(t *testing.T) {
	task := Task{OutputDir: "/results/run1"}
	assert.Equal(t, filepath.Join("/results/run1", "data.db"), task.StorePath("data.db"))
}
