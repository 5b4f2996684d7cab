package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VaninJoel/angiorun/internal/batch"
)

// instantLauncher completes every task immediately with a per-task exit
// code (default 0), without any real processes.
type instantLauncher struct {
	exitCodes map[string]int
}

type instantHandle struct{ res batch.RunResult }

func (h instantHandle) Wait() batch.RunResult { return h.res }
func (h instantHandle) Terminate()            {}

func (l *instantLauncher) Launch(ctx context.Context, task batch.Task) (batch.Handle, error) {
	code := l.exitCodes[task.Name]
	return instantHandle{res: batch.RunResult{ExitCode: code, FinalStep: task.Steps}}, nil
}

func testCommand() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	cmd := &cobra.Command{}
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	return cmd, &out, &errOut
}

func TestRunBatch_AllTasksComplete(t *testing.T) {
	path := writeSpecFile(t, validSpec)
	cmd, out, _ := testCommand()
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		OutputDir:   t.TempDir(),
		Concurrency: 2,
		Launcher:    &instantLauncher{},
	}

	err := runBatch(opts, path, cmd)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "completed=4 failed=0 cancelled=0")
	assert.Contains(t, out.String(), "demo_combo001_rep01")
}

func TestRunBatch_FailuresProduceExitFailure(t *testing.T) {
	path := writeSpecFile(t, validSpec)
	cmd, out, _ := testCommand()
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		OutputDir:   t.TempDir(),
		Concurrency: 2,
		Launcher: &instantLauncher{exitCodes: map[string]int{
			"demo_combo002_rep01": 1,
		}},
	}

	err := runBatch(opts, path, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 of 4 tasks failed")
	assert.Contains(t, out.String(), "completed=3 failed=1 cancelled=0")
}

func TestRunBatch_JSONSummary(t *testing.T) {
	path := writeSpecFile(t, validSpec)
	cmd, out, _ := testCommand()
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "json"},
		OutputDir:   t.TempDir(),
		Concurrency: 1,
		Launcher:    &instantLauncher{},
	}

	require.NoError(t, runBatch(opts, path, cmd))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 4, data["total"])
	counts, ok := data["counts"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 4, counts["completed"])
}

func TestRunBatch_BadSpecIsCommandError(t *testing.T) {
	cmd, _, _ := testCommand()
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		OutputDir:   t.TempDir(),
		Launcher:    &instantLauncher{},
	}

	err := runBatch(opts, "/does/not/exist.yaml", cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
