package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation                = errors.New("validation failed")
	ErrNotFound                  = errors.New("not found")
	ErrCarNotFound               = fmt.Errorf("car %w", ErrNotFound)
	ErrBookingNotFound           = fmt.Errorf("booking %w", ErrNotFound)
	ErrInvalidTransition         = errors.New("invalid transition")
	ErrConcurrentBookingConflict = errors.New("booking window conflicts with another booking")
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
	ErrForbidden                 = errors.New("forbidden")
)

// ValidationError reports a rejected input before any mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidTransitionError names the attempted action and the status it was refused in.
type InvalidTransitionError struct {
	Action  BookingAction
	Current BookingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s a booking in status %s", e.Action, e.Current)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
