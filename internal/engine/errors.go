package engine

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// RuntimeError represents an error detected while computing a big step.
//
// Runtime errors are:
//   - Insufficient precision: a decision needs a value the abstract domain
//     cannot determine. The branch is not viable at this precision; the
//     driver reports it, nothing defaults it.
//   - Aborted: the shared abort signal (context cancellation) was observed.
//     No partial result is published.
//   - Contract violation: the model uses a value outside the vocabulary the
//     engine understands. Fatal for the model, carries a stack trace.
//   - Quota exceeded: a big step ran more small steps than allowed.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Thread identifies the evaluated process or "update".
	Thread string

	// Details contains additional context.
	Details map[string]string

	cause error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInsufficientPrecision indicates a non-determined value where a
	// determined one is required.
	ErrCodeInsufficientPrecision RuntimeErrorCode = "INSUFFICIENT_PRECISION"

	// ErrCodeAborted indicates cooperative cancellation.
	ErrCodeAborted RuntimeErrorCode = "ABORTED"

	// ErrCodeContractViolation indicates IR outside the understood vocabulary.
	ErrCodeContractViolation RuntimeErrorCode = "CONTRACT_VIOLATION"

	// ErrCodeQuotaExceeded indicates a big step exceeded max steps.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Thread != "" {
		return fmt.Sprintf("%s: %s (thread=%s)", e.Code, e.Message, e.Thread)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *RuntimeError) Unwrap() error {
	return e.cause
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsPrecisionError returns true if the error is an insufficient-precision
// error. Uses errors.As to handle wrapped errors.
func IsPrecisionError(err error) bool {
	return hasCode(err, ErrCodeInsufficientPrecision)
}

// IsAbortError returns true if evaluation was cancelled.
func IsAbortError(err error) bool {
	return hasCode(err, ErrCodeAborted)
}

// IsContractViolation returns true if the model broke the engine's contract.
func IsContractViolation(err error) bool {
	return hasCode(err, ErrCodeContractViolation)
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and StepsExceededError.
func IsQuotaError(err error) bool {
	if hasCode(err, ErrCodeQuotaExceeded) {
		return true
	}
	var se *StepsExceededError
	return errors.As(err, &se)
}

// NewPrecisionError creates a RuntimeError for a non-determined value.
func NewPrecisionError(thread, what string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInsufficientPrecision,
		Message: what + " is not determined",
		Thread:  thread,
	}
}

// NewAbortError creates a RuntimeError for cancellation.
func NewAbortError(thread string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeAborted,
		Message: "evaluation aborted",
		Thread:  thread,
		cause:   cause,
	}
}

// NewContractViolation creates a RuntimeError carrying a stack trace.
// Print it with %+v to see where the violation was detected.
func NewContractViolation(thread, format string, args ...any) *RuntimeError {
	cause := pkgerrors.Errorf(format, args...)
	return &RuntimeError{
		Code:    ErrCodeContractViolation,
		Message: cause.Error(),
		Thread:  thread,
		cause:   cause,
	}
}

// NewQuotaError creates a RuntimeError for quota exceeded.
func NewQuotaError(thread string, steps, maxSteps int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeQuotaExceeded,
		Message: fmt.Sprintf("big step exceeded max steps (%d > %d)", steps, maxSteps),
		Thread:  thread,
		Details: map[string]string{
			"steps":     fmt.Sprintf("%d", steps),
			"max_steps": fmt.Sprintf("%d", maxSteps),
		},
	}
}

// classify turns loop-level errors into RuntimeErrors: context errors become
// aborts and quota errors keep their code.
func classify(thread string, err error) error {
	if err == nil {
		return nil
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewAbortError(thread, err)
	}
	var se *StepsExceededError
	if errors.As(err, &se) {
		return NewQuotaError(thread, se.Steps, se.Limit)
	}
	return err
}
