package engine

import (
	"errors"
	"fmt"
)

// QuotaEnforcer counts the small steps of one big step and enforces a
// maximum.
//
// Each big step (one process step, or one channel update) gets its own
// QuotaEnforcer. The fixpoint loop calls Check before every small step.
//
// The worklist memo guarantees termination only for info domains of finite
// join height and loops that go through a possibly-repeating step; the quota
// catches everything else, such as a counter incremented forever under a
// domain without widening.
type QuotaEnforcer struct {
	maxSteps int // Maximum allowed small steps
	current  int // Current step count
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
// A non-positive limit disables the quota.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{
		maxSteps: maxSteps,
		current:  0,
	}
}

// Check increments the step counter and validates against the limit.
//
// Returns StepsExceededError if the quota is exceeded.
func (q *QuotaEnforcer) Check(label string) error {
	q.current++
	if q.maxSteps > 0 && q.current > q.maxSteps {
		return &StepsExceededError{
			Label: label,
			Steps: q.current,
			Limit: q.maxSteps,
		}
	}
	return nil
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned when a big step exceeds the max steps quota.
type StepsExceededError struct {
	Label string // The evaluation that exceeded the quota
	Steps int    // Number of steps taken
	Limit int    // Maximum allowed steps
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("%s exceeded max steps quota: %d steps > %d limit",
		e.Label, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
