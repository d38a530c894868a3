package models

import (
	"errors"
	"fmt"
)

var (
	// ErrIneligible is returned when the participant lacks the required role.
	ErrIneligible = errors.New("you don't have the required role to enter this giveaway")
	// ErrNotStarted is returned when entering a giveaway that is still scheduled.
	ErrNotStarted = errors.New("this giveaway hasn't started yet")
)

// A duplicate registration is not an error: the entry surface reports it
// through EntryResult.AlreadyEntered instead.

// ValidationError reports a rejected input field. It is surfaced to the
// caller verbatim and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidStateError reports an operation that is not legal for the
// giveaway's current lifecycle state.
type InvalidStateError struct {
	Op    string
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s a %s giveaway", e.Op, e.State)
}

// IsInvalidState reports whether err is an InvalidStateError.
func IsInvalidState(err error) bool {
	var ise *InvalidStateError
	return errors.As(err, &ise)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
