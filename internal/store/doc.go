// Package store provides the SQLite-backed snapshot container for one
// simulation run.
//
// A store holds:
//   - Root attributes: resolved parameters and provenance, merged as a
//     key/value map (written once at run start, once at run end)
//   - Steps: time-indexed [x, y, z, channel] frames, each split into
//     zstd-compressed chunks of contiguous x planes
//
// # Append-only contract
//
// A step key, once visible, is never rewritten. Each WriteStep runs in a
// single transaction, so with WAL mode a concurrent reader either sees the
// whole step or none of it; ListSteps never exposes a partially written
// step. Step keys form a monotonically increasing (possibly sparse)
// subsequence of simulation steps; writing an existing key fails with
// ErrDuplicateStep.
//
// # Concurrency
//
// One writer per store instance. Concurrent readers open the same file with
// OpenReadOnly; WAL mode lets them read committed steps while the writer is
// still appending.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: chunks cannot outlive their step row
package store
