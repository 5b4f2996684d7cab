package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSpecFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

const validSpec = `
experiment: demo
steps: 100
write_frequency: 10
replicates: 2
parameters:
  jee: "2,4"
  jem: 2
`

func TestValidate_ValidSpec(t *testing.T) {
	path := writeSpecFile(t, validSpec)

	out, _, err := runCLI(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Valid: demo")
	assert.Contains(t, out, "combos=2 replicates=2 tasks=4")
}

func TestValidate_ExpandListsTaskNames(t *testing.T) {
	path := writeSpecFile(t, validSpec)

	out, _, err := runCLI(t, "validate", "--expand", path)
	require.NoError(t, err)
	assert.Contains(t, out, "demo_combo001_rep01")
	assert.Contains(t, out, "demo_combo002_rep02")
}

func TestValidate_JSONOutput(t *testing.T) {
	path := writeSpecFile(t, validSpec)

	out, _, err := runCLI(t, "--format", "json", "validate", "--expand", path)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["valid"])
	assert.EqualValues(t, 4, data["tasks"])
	assert.Len(t, data["task_names"], 4)
}

func TestValidate_InvalidSpecExitsWithFailure(t *testing.T) {
	path := writeSpecFile(t, `
experiment: demo
steps: 0
write_frequency: 10
`)

	out, _, err := runCLI(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Invalid:")
}

func TestValidate_JSONInvalidSpec(t *testing.T) {
	path := writeSpecFile(t, `
experiment: demo
steps: 100
write_frequency: 10
parameters:
  jee: "2,,4"
`)

	out, _, err := runCLI(t, "--format", "json", "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E001", resp.Error.Code)
	assert.NotEmpty(t, resp.Error.Message)

	details, ok := resp.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "parameters.jee", details["field"])
}

func TestValidate_MissingFileIsFailure(t *testing.T) {
	_, _, err := runCLI(t, "validate", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
