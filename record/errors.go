/*
errors.go - Store error taxonomy

PURPOSE:
  All store-level error types in one place. Domain packages wrap these
  with additional context and decide per call site whether a failure is
  fatal (allocation scans) or swallowed (balance reconciliation writes).

ERROR CATEGORIES:
  1. Not found  - Query/Update/Delete on a missing row
  2. Conflict   - Unique index violation on Insert/Update
  3. Unavailable - Backend/network failure

USAGE:
  if record.IsConflict(err) {
      // reallocate the identifier and retry the insert
  }

SEE ALSO:
  - record.go: Store interface returning these
  - sales/errors.go: Domain-level error taxonomy
*/
package record

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when the referenced row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a write violates a unique index.
	// Expected under concurrent identifier allocation; callers retry.
	ErrConflict = errors.New("unique constraint violation")

	// ErrUnavailable is returned when the backend cannot be reached.
	ErrUnavailable = errors.New("store unavailable")

	// ErrUnknownTable is returned for tables outside the schema.
	ErrUnknownTable = errors.New("unknown table")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError identifies the missing row.
type NotFoundError struct {
	Table string
	ID    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s/%s: record not found", e.Table, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError identifies which unique index rejected the write.
type ConflictError struct {
	Table string
	Field string
	Value string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s.%s=%q: unique constraint violation", e.Table, e.Field, e.Value)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing row.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict returns true if the error indicates a unique index violation.
// Conflicts are retryable with a freshly allocated identifier.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
