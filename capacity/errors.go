/*
errors.go - Centralized error types for the capacity engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The HTTP layer maps these to status codes; everything else wraps them
  with fmt.Errorf("...: %w").

ERROR CATEGORIES:
  1. Validation errors - Malformed or out-of-range input (never coerced)
  2. Not found errors  - Referenced record id is absent
  3. Upstream errors   - Time-tracking / issue-tracker integration missing
                         or every candidate endpoint failed

USAGE:
  if errors.Is(err, capacity.ErrUpstreamUnavailable) {
      // configuration-level failure, not a data problem
  }

SEE ALSO:
  - planner.go: Produces validation and not-found errors
  - tracker/tempo.go: Produces UpstreamError
  - api/errors.go: HTTP status mapping
*/
package capacity

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the kind shared by every input validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPeriod is returned when a period's end precedes its start.
	ErrInvalidPeriod = errors.New("invalid period: end is before start")

	// ErrUpstreamUnavailable is returned when an external integration is not
	// configured or all of its endpoints failed. It is never masked as zero data.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrWeekendAssignment is returned for FTE assignments dated on Saturday/Sunday.
	ErrWeekendAssignment = errors.New("fte assignments cannot fall on a weekend")

	// ErrDuplicateAssignment is returned when a store detects a second FTE
	// record for the same (subject, project, date).
	ErrDuplicateAssignment = errors.New("duplicate fte assignment for subject/project/date")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field  string
	Reason string
	Err    error // optional more specific kind, e.g. ErrWeekendAssignment
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is matches ErrValidation and, when set, the more specific kind.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation || (e.Err != nil && errors.Is(e.Err, target))
}

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "allocation", "absence", "fte_assignment", "user", "project"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// UpstreamError reports a failed or missing integration.
type UpstreamError struct {
	Service  string  // "tempo", "jira"
	Reason   string  // "not configured", "all endpoints failed"
	Attempts []error // one entry per endpoint tried
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s unavailable: %s", e.Service, e.Reason)
	if len(e.Attempts) == 0 {
		return msg
	}
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Error()
	}
	return msg + " (" + strings.Join(parts, "; ") + ")"
}

func (e *UpstreamError) Unwrap() error { return ErrUpstreamUnavailable }

// NotConfigured builds the error for an integration with no credentials.
func NotConfigured(service string) error {
	return &UpstreamError{Service: service, Reason: "not configured"}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsValidation(err error) bool          { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool            { return errors.Is(err, ErrNotFound) }
func IsUpstreamUnavailable(err error) bool { return errors.Is(err, ErrUpstreamUnavailable) }
