/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All engine errors in one place. Validation failures are semantic, not
  transient: they are surfaced synchronously to the caller and carry the
  available-credit figure the caller needs for user display. Store
  failures are wrapped with %w and propagate unchanged.

ERROR CATEGORIES:
  1. Not-found / scope errors - missing or foreign-tenant resources
  2. Credit errors - debit validation failures
  3. Input errors - unknown entry types, negative amounts

USAGE:
  var ice *ledger.InsufficientCreditError
  if errors.As(err, &ice) {
      // ice.Available holds the exact balance at validation time
  }
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCustomerNotFound is returned when a referenced customer does not
	// exist.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrEntryNotFound is returned when a referenced ledger entry does not
	// exist.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrBusinessNotFound is returned when a referenced business does not
	// exist.
	ErrBusinessNotFound = errors.New("business not found")

	// ErrForbidden is returned when the caller's business scope does not
	// match the resource's business.
	ErrForbidden = errors.New("business scope does not permit access")

	// ErrNoAvailableCredit is returned when a positive debit is attempted
	// against a zero balance.
	ErrNoAvailableCredit = errors.New("customer has no available credit")

	// ErrInsufficientCredit is the sentinel under InsufficientCreditError.
	ErrInsufficientCredit = errors.New("insufficient credit")

	// ErrInvalidEntryType is returned when an entry type other than
	// "credit" or "debit" reaches the boundary.
	ErrInvalidEntryType = errors.New("entry type must be credit or debit")

	// ErrInvalidAmount is returned when an amount is negative. Zero is
	// accepted; see DESIGN.md for the amount policy.
	ErrInvalidAmount = errors.New("amount must not be negative")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InsufficientCreditError reports a debit that exceeds available credit.
// Available is the customer's balance at validation time; callers show
// it to the user, so the figure must survive to the response unchanged.
type InsufficientCreditError struct {
	CustomerID int64
	Available  decimal.Decimal
	Requested  decimal.Decimal
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("Insufficient balance. Available credit: %s", e.Available.String())
}

func (e *InsufficientCreditError) Unwrap() error {
	return ErrInsufficientCredit
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether err indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrBusinessNotFound)
}

// IsValidation reports whether err is a semantic rejection of the
// caller's input rather than a store failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNoAvailableCredit) ||
		errors.Is(err, ErrInsufficientCredit) ||
		errors.Is(err, ErrInvalidEntryType) ||
		errors.Is(err, ErrInvalidAmount)
}
