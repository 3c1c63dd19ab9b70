package task

import "errors"

var (
	ErrNotFound  = errors.New("task not found")
	ErrForbidden = errors.New("not authorized to modify this task")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// PersistenceError wraps a storage failure. Op names the failed operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return "failed to " + e.Op + ": " + e.Err.Error() }

func (e *PersistenceError) Unwrap() error { return e.Err }
