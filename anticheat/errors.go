/*
errors.go - Centralized error types for the anti-cheat engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (API handlers) should use the helpers below to map errors to
  HTTP status codes instead of string matching.

ERROR CATEGORIES:
  1. Request errors - Malformed award requests
  2. Strategy errors - A strategy could not reach a decision (fail-closed)
  3. Store errors - Counter/pending persistence failures

FAIL-CLOSED RULE:
  If a strategy cannot read or write its counters reliably, the award is
  DENIED, never silently allowed. An unreadable cap counter must not turn
  into unlimited points.

SEE ALSO:
  - pipeline.go: Applies the fail-closed rule
  - store.go: Store interfaces that surface these errors
*/
package anticheat

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidRequest is returned when an AwardRequest is missing required
	// fields or carries out-of-range values.
	ErrInvalidRequest = errors.New("invalid award request")

	// ErrStoreUnavailable is returned when a counter store read/write fails.
	// The pipeline treats this as a denial (fail-closed).
	ErrStoreUnavailable = errors.New("counter store unavailable")

	// ErrStrategyFailed wraps a strategy-level failure. The pipeline never
	// skips a failing strategy; it denies the award instead.
	ErrStrategyFailed = errors.New("strategy evaluation failed")

	// ErrUnknownStrategy is returned when the registry references a strategy
	// code the pipeline has no evaluator for. Configuration bug.
	ErrUnknownStrategy = errors.New("unknown strategy code")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// StrategyError records which strategy failed and why.
type StrategyError struct {
	StrategyCode StrategyCode
	UserID       string
	EventType    string
	Err          error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy %s failed for user=%s event=%s: %v",
		e.StrategyCode, e.UserID, e.EventType, e.Err)
}

// Unwrap exposes both the category sentinel and the underlying cause, so
// errors.Is(err, ErrStrategyFailed) and errors.Is(err, ErrStoreUnavailable)
// both work on a wrapped store failure.
func (e *StrategyError) Unwrap() []error {
	return []error{ErrStrategyFailed, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}

// IsStoreError returns true if the error indicates a backing-store failure.
func IsStoreError(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
