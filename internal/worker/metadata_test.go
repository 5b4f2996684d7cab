package worker

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMetadata_Golden(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	meta := NewRunMetadata(
		"demo_combo001_rep01",
		map[string]any{"jee": int64(2), "lchem": 0.5},
		"/runs/demo_combo001_rep01",
		"data.db",
		start,
	)
	meta.Finalize(0, 100, 100, 12500*time.Millisecond)

	data, err := json.MarshalIndent(meta, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "run_metadata", data)
}

func TestRunMetadata_WriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	meta := NewRunMetadata("demo", map[string]any{"jee": int64(2)}, dir, "data.db", start)
	require.NoError(t, meta.Write(dir))

	// Pre-execution metadata has no execution block.
	got, err := ReadMetadata(dir)
	require.NoError(t, err)
	assert.Nil(t, got.Execution)
	assert.Equal(t, "demo", got.ExperimentName)
	assert.Equal(t, "2026-03-01T12:00:00Z", got.Timestamp)

	meta.Finalize(1, 40, 100, 3*time.Second)
	require.NoError(t, meta.Write(dir))

	got, err = ReadMetadata(dir)
	require.NoError(t, err)
	require.NotNil(t, got.Execution)
	assert.Equal(t, 1, got.Execution.ExitCode)
	assert.False(t, got.Execution.Success)
	assert.Equal(t, 40, got.Execution.FinalStep)
	assert.InDelta(t, 40.0, got.Execution.CompletionPercentage, 1e-9)
	assert.Equal(t, "simulation error (check stderr log)", got.Execution.ExitCodeDetail)
}

func TestRunMetadata_FinalizeZeroExpectedSteps(t *testing.T) {
	meta := NewRunMetadata("demo", nil, "/x", "data.db", time.Now())
	meta.Finalize(0, 0, 0, time.Second)
	assert.Zero(t, meta.Execution.CompletionPercentage)
}
