package restore

import (
	"errors"
	"fmt"
)

// ErrAlreadyRestoring is returned when a second restoration is attempted
// while one is already in flight on the same Restorer (spec.md §4.5
// Concurrency: "at most one restoration may run per restorer").
var ErrAlreadyRestoring = errors.New("restore: a restoration is already in progress")

// ErrCheckpointNotFound is returned by Rollback when the named checkpoint
// does not exist (spec.md §7: CheckpointNotFound).
var ErrCheckpointNotFound = errors.New("restore: checkpoint not found")

// AtomFailure records one atom's restoration failure.
type AtomFailure struct {
	Name   string
	AtomID string
	Err    error
}

// RestorationError aggregates failures from a strict-mode restore
// (spec.md §7: RestorationError).
type RestorationError struct {
	Errors      []error
	FailedAtoms []AtomFailure
}

func (e *RestorationError) Error() string {
	return fmt.Sprintf("restore: %d error(s), %d failed atom(s)", len(e.Errors), len(e.FailedAtoms))
}

// Unwrap lets errors.Is/As see through to the aggregated causes.
func (e *RestorationError) Unwrap() []error {
	return e.Errors
}

// InvalidSnapshotError carries the offending rule names from a failed
// strict-mode pre-restore validation (spec.md §7: InvalidSnapshot).
type InvalidSnapshotError struct {
	RuleNames []string
}

func (e *InvalidSnapshotError) Error() string {
	return fmt.Sprintf("restore: snapshot failed validation rules: %v", e.RuleNames)
}
