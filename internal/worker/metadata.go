package worker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MetadataFileName is the per-run provenance file.
const MetadataFileName = "run_metadata.json"

// RunMetadata is the complete record of one run, written to
// run_metadata.json in the run directory.
//
// It is written twice: once before the process starts (parameters and
// paths, no execution block) so a crash still leaves provenance behind,
// and once after exit with the terminal outcome.
type RunMetadata struct {
	ExperimentName string          `json:"experiment_name"`
	Timestamp      string          `json:"timestamp"` // ISO-8601, run start
	Parameters     map[string]any  `json:"parameters"`
	Execution      *ExecutionBlock `json:"execution,omitempty"`
	Files          FilesBlock      `json:"files"`
	Paths          PathsBlock      `json:"paths"`
}

// ExecutionBlock is the terminal outcome of a run.
type ExecutionBlock struct {
	ExitCode             int     `json:"exit_code"`
	Success              bool    `json:"success"`
	FinalStep            int     `json:"final_step"`
	ExpectedSteps        int     `json:"expected_steps"`
	DurationSeconds      float64 `json:"duration_seconds"`
	CompletionPercentage float64 `json:"completion_percentage"`
	ExitCodeDetail       string  `json:"exit_code_detail,omitempty"`
}

// FilesBlock names the run's artifacts relative to the run directory.
type FilesBlock struct {
	StdoutLog string `json:"stdout_log"`
	StderrLog string `json:"stderr_log"`
	DataStore string `json:"data_store"`
}

// PathsBlock records absolute locations for post-hoc tooling.
type PathsBlock struct {
	RunDir    string `json:"run_dir"`
	StorePath string `json:"store_path"`
	LogsDir   string `json:"logs_dir"`
}

// NewRunMetadata builds the pre-execution metadata for a run directory.
func NewRunMetadata(taskName string, parameters map[string]any, runDir, storeFile string, start time.Time) RunMetadata {
	return RunMetadata{
		ExperimentName: taskName,
		Timestamp:      start.Format(time.RFC3339),
		Parameters:     parameters,
		Files: FilesBlock{
			StdoutLog: filepath.Join("logs", "stdout.log"),
			StderrLog: filepath.Join("logs", "stderr.log"),
			DataStore: storeFile,
		},
		Paths: PathsBlock{
			RunDir:    runDir,
			StorePath: filepath.Join(runDir, storeFile),
			LogsDir:   filepath.Join(runDir, "logs"),
		},
	}
}

// Finalize fills in the execution block after process exit.
func (m *RunMetadata) Finalize(exitCode, finalStep, expectedSteps int, duration time.Duration) {
	completion := 0.0
	if expectedSteps > 0 {
		completion = float64(finalStep) / float64(expectedSteps) * 100
	}
	m.Execution = &ExecutionBlock{
		ExitCode:             exitCode,
		Success:              exitCode == 0,
		FinalStep:            finalStep,
		ExpectedSteps:        expectedSteps,
		DurationSeconds:      duration.Seconds(),
		CompletionPercentage: completion,
		ExitCodeDetail:       InterpretExitCode(exitCode),
	}
}

// Write persists the metadata atomically into the run directory.
func (m RunMetadata) Write(runDir string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run metadata: %w", err)
	}
	data = append(data, '\n')
	if err := writeFileAtomic(filepath.Join(runDir, MetadataFileName), data); err != nil {
		return fmt.Errorf("write run metadata: %w", err)
	}
	return nil
}

// ReadMetadata loads a run's metadata file.
func ReadMetadata(runDir string) (RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(runDir, MetadataFileName))
	if err != nil {
		return RunMetadata{}, fmt.Errorf("read run metadata: %w", err)
	}
	var m RunMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return RunMetadata{}, fmt.Errorf("decode run metadata: %w", err)
	}
	return m, nil
}
