/*
balance.go - Derived balance calculation

PURPOSE:
  Computes a customer's signed balance by folding over the customer's
  ledger entries: credits add, debits subtract. This is the one source
  of truth for "how much credit does this customer have": there is no
  materialized balance column, so every call re-reads the store.

CRITICAL INVARIANTS:
  1. balance == Σ(credit.amount) − Σ(debit.amount), entry order irrelevant
  2. A customer with no entries has balance zero
  3. Arithmetic is exact decimal; float64 never touches an amount

EXCLUSION VARIANT:
  BalanceExcluding filters one entry id out of the fold. It exists for
  in-place edit validation: an edit must not validate against its own
  pre-edit contribution.

SCALE NOTE:
  The fold is an unbounded scan of the customer's entries. Fine at the
  scale of a single business's ledger; a running-balance column updated
  transactionally is the escape hatch if that ceiling is ever hit.
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Calculator derives customer balances from the ledger store.
type Calculator struct {
	Store Store
}

// NewCalculator returns a Calculator over the given store.
func NewCalculator(store Store) *Calculator {
	return &Calculator{Store: store}
}

// Balance returns the customer's current signed balance.
//
// A missing customer is not distinguished from a customer with zero
// entries; both fold to zero. Callers that need existence must check it
// separately.
func (c *Calculator) Balance(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	entries, err := c.Store.EntriesByCustomer(ctx, customerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load entries for customer %d: %w", customerID, err)
	}
	return Fold(entries), nil
}

// BalanceExcluding returns the customer's balance with one entry left
// out of the fold. Used when validating an edit to that entry.
func (c *Calculator) BalanceExcluding(ctx context.Context, customerID, excludeEntryID int64) (decimal.Decimal, error) {
	entries, err := c.Store.EntriesByCustomerExcluding(ctx, customerID, excludeEntryID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load entries for customer %d excluding %d: %w", customerID, excludeEntryID, err)
	}
	return Fold(entries), nil
}
