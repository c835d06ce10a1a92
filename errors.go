package quizstore

import (
	"errors"
	"fmt"
)

// Common errors for quiz storage operations.
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
	ErrNotFound         = errors.New("question not found")
	ErrUnavailable      = errors.New("dependency unavailable")
	ErrConstraint       = errors.New("constraint violation")
	ErrValidation       = errors.New("invalid input")
)

// TransportError marks a failure of the underlying connection, as opposed to
// a failure of the statement that was sent over it. Operations failing with a
// TransportError are retried once on a fresh connection.
type TransportError struct {
	Backend string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport failure: %v", e.Backend, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is reports TransportError as ErrUnavailable.
func (e *TransportError) Is(target error) bool { return target == ErrUnavailable }

// ConnectionError is returned when a new connection cannot be established.
type ConnectionError struct {
	Backend string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Is reports ConnectionError as ErrUnavailable.
func (e *ConnectionError) Is(target error) bool { return target == ErrUnavailable }

// ConstraintError is returned when a write violates a storage constraint,
// such as the uniqueness of question text.
type ConstraintError struct {
	Constraint string
	Value      string
	Err        error
}

func (e *ConstraintError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("constraint %s violated by %q", e.Constraint, e.Value)
	}
	return fmt.Sprintf("constraint %s violated", e.Constraint)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

func (e *ConstraintError) Is(target error) bool { return target == ErrConstraint }

// ValidationError is returned for malformed input before it reaches storage.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
