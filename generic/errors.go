/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Change-log errors - Append failures, duplicates
  2. Validation errors - Windows, payloads, report columns
  3. Lookup errors - Missing entities

USAGE:
  Callers classify with errors.Is, never by message:

    if generic.IsNotFound(err) {
        writeError(w, http.StatusNotFound, "Project not found", err)
    }

SEE ALSO:
  - ledger.go: Uses these errors
  - store/sqlite/sqlite.go: Wraps these errors with SQL context
  - api/handlers.go: Maps them to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when a record with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrEntityNotFound is returned when a referenced entity doesn't exist.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrDuplicateName is returned when a uniquely named entity already exists.
	ErrDuplicateName = errors.New("name already exists")

	// ErrInvalidWindow is returned when a window ends before it starts.
	ErrInvalidWindow = errors.New("invalid window: end before start")

	// ErrOutsideProjectWindow is returned when an allocation does not fit
	// inside its project's window.
	ErrOutsideProjectWindow = errors.New("allocation dates must fall within the project window")

	// ErrOpenEndedAllocation is returned when an allocation without an end
	// date targets a project that ends.
	ErrOpenEndedAllocation = errors.New("open-ended allocations require an open-ended project")

	// ErrInvalidPayload is returned when a change payload cannot be decoded
	// or misses required fields.
	ErrInvalidPayload = errors.New("invalid change payload")

	// ErrUnknownKind is returned when appending a change kind the engine
	// does not know. Replay of stored unknown kinds is a no-op instead.
	ErrUnknownKind = errors.New("unknown change kind")

	// ErrUnknownColumn is returned for a report column that is neither a
	// month nor "total".
	ErrUnknownColumn = errors.New("unknown report column")

	// ErrInvalidInput is returned for malformed scalar input (ranges, enums).
	ErrInvalidInput = errors.New("invalid input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// WindowError describes a rejected allocation or project window.
type WindowError struct {
	Start       Date
	End         *Date
	WindowStart Date
	WindowEnd   *Date
	Err         error // ErrInvalidWindow or ErrOutsideProjectWindow
}

func (e *WindowError) Error() string {
	if errors.Is(e.Err, ErrInvalidWindow) {
		return fmt.Sprintf("%v: %s to %s", e.Err, e.Start, FormatOptional(e.End))
	}
	windowEnd := "open-ended"
	if e.WindowEnd != nil {
		windowEnd = e.WindowEnd.String()
	}
	return fmt.Sprintf("%v (%s to %s)", e.Err, e.WindowStart, windowEnd)
}

func (e *WindowError) Unwrap() error {
	return e.Err
}

// PayloadError identifies the offending field of a change payload.
type PayloadError struct {
	Kind   string
	Field  string
	Reason string
}

func (e *PayloadError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s: %s", ErrInvalidPayload, e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s.%s: %s", ErrInvalidPayload, e.Kind, e.Field, e.Reason)
}

func (e *PayloadError) Unwrap() error {
	return ErrInvalidPayload
}

// NotFound wraps ErrEntityNotFound with the entity name and id.
func NotFound(entity string, id int64) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrEntityNotFound)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrOutsideProjectWindow) ||
		errors.Is(err, ErrOpenEndedAllocation) ||
		errors.Is(err, ErrInvalidPayload) ||
		errors.Is(err, ErrUnknownKind) ||
		errors.Is(err, ErrUnknownColumn) ||
		errors.Is(err, ErrInvalidInput)
}

// IsConflict returns true for uniqueness violations.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrDuplicateName)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}
