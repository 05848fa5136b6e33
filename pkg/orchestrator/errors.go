// Package orchestrator implements the task orchestration substrate: intent
// validation, intent -> task plan compilation, and the task lifecycle state
// machine with its retry and dead-letter policy.
package orchestrator

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an orchestration error.
type ErrorClass string

const (
	// ErrorClassValidation indicates an input document violated its schema.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassTransition indicates a task lifecycle edge that is not in the
	// allowed transition set. This is a programmer error and is never retried.
	ErrorClassTransition ErrorClass = "transition"

	// ErrorClassPrecondition indicates an operation was invoked on a task in
	// the wrong state, such as scheduling a retry for a non-failed task.
	ErrorClassPrecondition ErrorClass = "precondition"

	// ErrorClassPersistence indicates the audit log or dead-letter store
	// failed to record; the enclosing state change did not take effect.
	ErrorClassPersistence ErrorClass = "persistence"
)

// Error represents a classified orchestration error with context.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// TaskID is the task that caused the error, if applicable.
	TaskID string `json:"task_id,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.TaskID != "" {
		if msg := e.unwrapMessage(); msg != "" {
			return fmt.Sprintf("[%s] %s (task=%s): %s", e.Class, e.Message, e.TaskID, msg)
		}
		return fmt.Sprintf("[%s] %s (task=%s)", e.Class, e.Message, e.TaskID)
	}
	if msg := e.unwrapMessage(); msg != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Class, e.Message)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// WithTask adds task context to an error.
func (e *Error) WithTask(taskID string) *Error {
	e.TaskID = taskID
	return e
}

// WithDetail adds a detail field to the error context.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// NewTransitionError creates an error for a lifecycle edge outside the
// allowed transition set. The current and target statuses are carried in the
// error details.
func NewTransitionError(current, target TaskStatus) *Error {
	return &Error{
		Class:   ErrorClassTransition,
		Message: fmt.Sprintf("invalid transition from %s to %s", current, target),
		Details: map[string]any{
			"current_status": string(current),
			"target_status":  string(target),
		},
	}
}

// NewPreconditionError creates an error for an operation invoked on a task in
// the wrong state.
func NewPreconditionError(message string) *Error {
	return &Error{
		Class:   ErrorClassPrecondition,
		Message: message,
	}
}

// NewPersistenceError wraps a store failure. The enclosing state change must
// not be reported as successful.
func NewPersistenceError(message string, err error) *Error {
	return &Error{
		Class:   ErrorClassPersistence,
		Message: message,
		Err:     err,
	}
}

// IsTransitionError returns true if the error is an invalid-transition error.
func IsTransitionError(err error) bool {
	return hasClass(err, ErrorClassTransition)
}

// IsPreconditionError returns true if the error is a precondition error.
func IsPreconditionError(err error) bool {
	return hasClass(err, ErrorClassPrecondition)
}

// IsPersistenceError returns true if the error is a persistence error.
func IsPersistenceError(err error) bool {
	return hasClass(err, ErrorClassPersistence)
}

func hasClass(err error, class ErrorClass) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}
