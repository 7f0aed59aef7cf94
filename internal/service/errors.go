package service

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden is returned when a portfolio or trade does not belong
	// to the calling user
	ErrForbidden = errors.New("resource does not belong to caller")
	// ErrInsufficientBalance is returned when a SHORT amount exceeds the
	// available parent or initial-coin balance
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// ValidationError reports malformed or out-of-range input. It is raised
// before any mutation happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// InvalidStateError reports an operation that is illegal for the trade's
// current status
type InvalidStateError struct {
	Op     string
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func stateErr(op, reason string) error {
	return &InvalidStateError{Op: op, Reason: reason}
}
