package models

import "fmt"

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// IsValid reports whether s is one of the four known statuses.
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// allowedTransitions is the full transition table. completed and failed are
// terminal: retrying a failed task is a fresh admission performed by the
// orchestrator, not a transition through this table.
var allowedTransitions = map[TaskStatus][]TaskStatus{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// ValidateTransition checks one status transition against the table. It
// returns an error wrapping ErrInvalidTransition for every pair not in the
// table, including self-transitions. Callers must abort the mutation on a
// non-nil result; a transition that was invalid once stays invalid.
func ValidateTransition(from, to TaskStatus) error {
	if !from.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, from)
	}
	if !to.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
