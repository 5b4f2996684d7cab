// Package batch turns a parameter specification into an ordered set of
// uniquely named tasks and runs them to completion under a
// concurrency-bounded scheduler.
//
// The pieces:
//   - Generate: pure expansion of (Spec, replicates) into a TaskSet
//   - TaskName/ParseTaskName: deterministic collision-free run naming
//   - Scheduler: strict-FIFO admission, at most C concurrent workers,
//     per-task RunRecords, status events, best-effort cancellation
//   - ProgressMonitor: read-only polling of a running task's store
//
// Workers are launched through the Launcher interface; the scheduler never
// touches a process directly, which keeps one crashing run from ever
// reaching its siblings or the scheduling loop.
package batch
