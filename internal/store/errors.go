package store

import "errors"

// Contract violations of the step API. Both are fatal to the calling
// operation and are not expected under normal operation.
var (
	// ErrDuplicateStep is returned by WriteStep when the step key already
	// exists. Steps are append-only and never rewritten.
	ErrDuplicateStep = errors.New("store: duplicate step key")

	// ErrStepNotFound is returned by ReadStep for a step key that has not
	// been written (or not yet committed).
	ErrStepNotFound = errors.New("store: step not found")
)
