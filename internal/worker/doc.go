// Package worker executes one task as an isolated operating-system process.
//
// The parent side (Launcher) prepares the run directory, writes resolved
// parameters to run_metadata.json before the process starts (partial
// provenance that survives a crash), captures stdout/stderr to per-task log
// files, and finalizes the metadata with the terminal outcome after exit.
//
// The child side (ExecuteTask, reached through the hidden `worker` CLI
// command) opens the snapshot store, stamps provenance attributes, and
// drives the engine loop under the write-frequency directive policy.
//
// Parent and child share nothing but the filesystem and the exit code: a
// fault in simulation code cannot corrupt the scheduler or block its loop.
package worker
