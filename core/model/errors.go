package model

import "fmt"

// ValidationError reports a bad submission shape or constraint. It is
// detected before any state change.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// NewValidationError wraps a reason into a ValidationError.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown job, asset, or slot identifier.
type NotFoundError struct {
	Kind string // "job", "asset", "slot"
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }

// InvalidStateError reports an operation that is not legal for the job's
// current lifecycle state.
type InvalidStateError struct {
	JobID  string
	Status JobStatus
	Op     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("job %s: %s not allowed in state %s", e.JobID, e.Op, e.Status)
}
