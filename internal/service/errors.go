package service

import (
	"errors"
	"fmt"

	"github.com/accessgate/access-gate/internal/domain"
)

var (
	// ErrThrottleExceeded means the identity already has the maximum number of
	// pending requests. It is an expected outcome, not a fault.
	ErrThrottleExceeded = errors.New("throttle exceeded")
	// ErrInvalidTransition covers unknown ids and requests that are no longer pending.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidAction is returned for decisions other than approve or reject.
	ErrInvalidAction = errors.New("invalid decision action")
	// ErrStorageFailure wraps infrastructure faults. Callers decide on retries.
	ErrStorageFailure = errors.New("storage failure")
	// ErrTransientQueryFailure marks a failed status read inside a polling
	// loop. The notifier logs it and retries on the next tick.
	ErrTransientQueryFailure = errors.New("transient query failure")
	// ErrRequestNotFound is returned by status lookups for unknown ids or codes.
	ErrRequestNotFound = errors.New("access request not found")
	// ErrInvalidCredentials is returned by operator login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTooManyAttempts is returned when an operator exceeds the login attempt rate.
	ErrTooManyAttempts = errors.New("too many login attempts")
)

// AdmissionError carries the identity a submission was attempted for.
type AdmissionError struct {
	FirstName string
	LastName  string
	Err       error
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("admission for %q %q: %v", e.FirstName, e.LastName, e.Err)
}

func (e *AdmissionError) Unwrap() error {
	return e.Err
}

// ApprovalError carries the request id and the attempted action.
type ApprovalError struct {
	RequestID string
	Action    domain.DecisionAction
	Err       error
}

func (e *ApprovalError) Error() string {
	return fmt.Sprintf("%s request %s: %v", e.Action, e.RequestID, e.Err)
}

func (e *ApprovalError) Unwrap() error {
	return e.Err
}

func storageFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrStorageFailure, err)
}
