/*
errors.go - Centralized error types for the roster engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Outer layers (store, api) wrap these with additional context.

ERROR CATEGORIES:
  1. Configuration errors - invalid anchor or capacity rules, fail fast
  2. Input errors - malformed requests or date ranges
  3. Commit errors - invariant re-validation failures at commit time

NOTE:
  Unschedulable obligations and detected conflicts are NOT errors. They
  are expected, actionable outcomes returned as data by the allocator and
  the conflict detector.

USAGE:
  Callers branch with errors.Is:

    if errors.Is(err, roster.ErrCommitRace) {
        // re-evaluate against a fresh snapshot and retry
    }

SEE ALSO:
  - cycle.go: Anchor validation
  - allocator.go: Rule validation
  - store.go: Commit-time guarantees
*/
package roster

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidConfiguration is the root of all configuration failures
	// (bad anchor, bad capacity rule). Wrapped by ConfigurationError.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidDateRange is returned when a range ends before it starts.
	ErrInvalidDateRange = errors.New("invalid date range: end before start")

	// ErrCommitRace is returned by stores when commit-time re-validation of
	// a capacity count or staffing minimum fails because a concurrent
	// commit landed first. Evaluation is cheap to re-run against a fresh
	// snapshot.
	ErrCommitRace = errors.New("commit lost validation race")

	// ErrDuplicateAssignment is returned when an obligation already has an
	// assignment. At most one assignment may exist per obligation.
	ErrDuplicateAssignment = errors.New("obligation already assigned")

	// ErrDuplicateRequest is returned when a request ID has already been
	// submitted. Request IDs are caller-assigned and must be unique.
	ErrDuplicateRequest = errors.New("request already submitted")

	// ErrRequestNotFound is returned when a referenced request doesn't exist.
	ErrRequestNotFound = errors.New("request not found")

	// ErrObligationNotFound is returned when a referenced obligation doesn't exist.
	ErrObligationNotFound = errors.New("obligation not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigurationError identifies which piece of configuration is invalid.
// Field names the offending attribute, Subject the rule or anchor it
// belongs to.
type ConfigurationError struct {
	Subject string // e.g. "anchor", `capacity rule "Flight"`
	Field   string // e.g. "CycleDays", "MaxPerCycle"
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s: %s", e.Subject, e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrInvalidConfiguration }

// CommitRaceError reports which invariant failed re-validation at commit
// time, so callers can log the contention point before retrying.
type CommitRaceError struct {
	Invariant string // "capacity" or "staffing"
	Detail    string
}

func (e *CommitRaceError) Error() string {
	return fmt.Sprintf("commit race on %s: %s", e.Invariant, e.Detail)
}

func (e *CommitRaceError) Unwrap() error { return ErrCommitRace }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConfigurationError returns true for fail-fast configuration problems.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration)
}

// IsRetryable returns true if the operation might succeed against a fresh
// snapshot.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCommitRace)
}
