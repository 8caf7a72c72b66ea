package rlmtypes

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced across component boundaries.
var (
	ErrNoSuchSession     = errors.New("no_such_session")
	ErrCapacityExhausted = errors.New("capacity_exhausted")
	ErrSessionBusy       = errors.New("busy")
	ErrTransportUnavail  = errors.New("transport_unavailable")
	ErrCancelled         = errors.New("cancelled")
)

// ModelError is a typed error from the Model Client, carrying the error
// kind that drives the retry/fatal policy.
type ModelError struct {
	Kind     ErrorKind
	Provider string
	Model    string
	Message  string
	Cause    error
}

func (e *ModelError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("model client [%s/%s] %s: %s", e.Provider, e.Model, e.Kind, e.Cause)
	}
	return fmt.Sprintf("model client [%s/%s] %s: %s", e.Provider, e.Model, e.Kind, e.Message)
}

func (e *ModelError) Unwrap() error { return e.Cause }

// Retryable reports whether the loop's caller may retry this error with
// backoff, per the ModelError kind taxonomy.
func (e *ModelError) Retryable() bool {
	switch e.Kind {
	case ErrorRateLimited, ErrorTransientNetwork:
		return true
	default:
		return false
	}
}

// Fatal reports whether this error must abort the invocation (or, for
// authentication, the process).
func (e *ModelError) Fatal() bool {
	switch e.Kind {
	case ErrorInvalidRequest, ErrorAuthentication:
		return true
	default:
		return false
	}
}

// LoopError wraps a Reasoning Loop failure with the phase it occurred in.
type LoopError struct {
	Phase       string
	RecursionID string
	Cause       error
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("reasoning loop [%s] recursion=%s: %s", e.Phase, e.RecursionID, e.Cause)
}

func (e *LoopError) Unwrap() error { return e.Cause }
