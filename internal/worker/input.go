package worker

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
)

// InputFileName is the task input file the parent writes into the run
// directory and the child process reads back.
const InputFileName = "params.json"

// Input is everything the child process needs to execute one task. It is
// the only channel from parent to child besides signals.
type Input struct {
	TaskName       string         `json:"task_name"`
	Experiment     string         `json:"experiment"`
	BatchID        string         `json:"batch_id"`
	ComboIndex     int            `json:"combo_index"`
	ReplicateIndex int            `json:"replicate_index"`
	Steps          int            `json:"steps"`
	WriteFrequency int            `json:"write_frequency"`
	StorePath      string         `json:"store_path"`
	Parameters     map[string]any `json:"parameters"`
}

// WriteInput writes the task input file into dir.
func WriteInput(dir string, in Input) (string, error) {
	path := filepath.Join(dir, InputFileName)
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode task input: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("write task input: %w", err)
	}
	return path, nil
}

// ReadInput loads a task input file.
func ReadInput(path string) (Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Input{}, fmt.Errorf("read task input: %w", err)
	}
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return Input{}, fmt.Errorf("decode task input: %w", err)
	}
	if in.TaskName == "" || in.Steps <= 0 || in.WriteFrequency <= 0 || in.StorePath == "" {
		return Input{}, fmt.Errorf("task input %s: missing required fields", path)
	}
	return in, nil
}

// Seed derives the task's RNG seed. A declared "seed" parameter is honored
// with a per-replicate offset so replicates differ; otherwise the seed is a
// stable hash of batch id and task name, reproducible from provenance.
func (in Input) Seed() int64 {
	if v, ok := in.Parameters["seed"]; ok {
		switch n := v.(type) {
		case int64:
			return n + int64(in.ReplicateIndex-1)
		case float64:
			return int64(n) + int64(in.ReplicateIndex-1)
		}
	}
	h := fnv.New64a()
	h.Write([]byte(in.BatchID))
	h.Write([]byte{0})
	h.Write([]byte(in.TaskName))
	return int64(h.Sum64())
}

// writeFileAtomic writes via a temp file and rename so readers never see a
// torn file.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
