package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrAttemptNotFound = errors.New("payment attempt not found")
	ErrNoAttempt       = errors.New("no payment attempt in progress")
)

// TransitionError is returned when a payment state transition is not allowed.
type TransitionError struct {
	Event   PaymentEvent
	Current PaymentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}

// VerificationError is returned when the readiness verification has failed
// for a whole retry budget. The last underlying error is retained.
type VerificationError struct {
	Attempts int
	Last     error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("readiness verification failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *VerificationError) Unwrap() error {
	return e.Last
}

// PaymentError is a structured billing failure. Payment errors are terminal
// per attempt and never silently dropped.
type PaymentError struct {
	Op  string
	Err error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment %s failed: %v", e.Op, e.Err)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}
