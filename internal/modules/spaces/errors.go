package spaces

import (
	"errors"
	"fmt"
)

// Base errors matched by the typed errors below through errors.Is
var (
	ErrValidation = errors.New("validation failed")
	ErrState      = errors.New("invalid state")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	// ErrInvariantViolated is wrapped in a ConflictError when space balances
	// no longer add up to the account total
	ErrInvariantViolated = errors.New("account invariant violated")
)

// ValidationError reports bad input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// StateError reports an operation that is not legal in the space's current state
type StateError struct {
	SpaceID string
	Message string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("space %s %s", e.SpaceID, e.Message)
}

func (e *StateError) Is(target error) bool { return target == ErrState }

// NotFoundError reports a missing space or account
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports a duplicate MAIN space, a stale write or a broken invariant
type ConflictError struct {
	Message string
	Err     error
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func (e *ConflictError) Unwrap() error { return e.Err }

// ErrorKind classifies err into one of the domain error kinds.
// Returns "internal" for anything else.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrState):
		return "state"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}

func validationf(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func spaceNotFound(id string) *NotFoundError {
	return &NotFoundError{Resource: "space", ID: id}
}
