/*
errors.go - Domain error taxonomy

PURPOSE:
  Error types for the sales domain, paired as sentinel + structured the
  same way the record package does it. Handlers map these to HTTP status
  codes; validation failures are recoverable client errors, allocation
  failures are fatal to the current operation.

SEE ALSO:
  - record/errors.go: Store-level taxonomy
  - api/handlers.go: HTTP status mapping
*/
package sales

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the base of all input validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrBalanceExceeded is returned when a payment amount exceeds what
	// the sale's balance can absorb. Rejected before any write.
	ErrBalanceExceeded = errors.New("amount exceeds remaining balance")

	// ErrAllocationExhausted is returned when identifier allocation kept
	// colliding with concurrent writers and ran out of retries.
	ErrAllocationExhausted = errors.New("identifier allocation exhausted retries")

	// ErrDuplicateReference is returned when a caller-supplied reference
	// number is already taken.
	ErrDuplicateReference = errors.New("reference number already in use")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// BalanceExceededError reports how much the sale could still absorb.
// For a payment update, Available includes the edited payment's
// original amount.
type BalanceExceededError struct {
	SaleID    string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *BalanceExceededError) Error() string {
	return fmt.Sprintf("sale %s: requested %s exceeds available balance %s",
		e.SaleID, e.Requested, e.Available)
}

func (e *BalanceExceededError) Unwrap() error { return ErrBalanceExceeded }

// IsClientError returns true if the error is due to invalid client input
// rather than a system failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrBalanceExceeded) ||
		errors.Is(err, ErrDuplicateReference)
}
