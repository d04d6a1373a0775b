/*
validator.go - Debit-against-credit validation

PURPOSE:
  Guards ledger writes. Only debits are constrained: a debit may not
  take a customer's balance below zero. Credits always pass regardless
  of amount.

CREATE RULE (order matters):
  1. balance == 0 and amount > 0  -> ErrNoAvailableCredit
  2. amount > balance             -> InsufficientCreditError{Available: balance}
  3. otherwise                    -> accept

  Branch 1 is redundant with branch 2 for positive amounts, but it is a
  distinct rejection with a distinct message and is checked first.
  Downstream callers tell the two apart, so the order is part of the
  contract.

UPDATE RULE:
  Validates against the balance computed EXCLUDING the entry being
  edited, so the edit does not count its own pre-edit contribution.
  Effective type/amount fall back to the entry's current values when the
  update omits them. The hypothetical post-edit balance is
  excluded + amount for credit, excluded − amount otherwise; a debit
  whose hypothetical balance is negative is rejected, reporting the
  EXCLUDED balance, not the hypothetical one (asymmetric with the
  create message, and kept that way).

TRANSACTIONALITY:
  The validator itself only reads. Run it and the subsequent write
  inside Store.WithTx (see service.go) or two concurrent debits can
  both pass against the same snapshot.
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Validator enforces the debit-against-credit rules at create and
// update time.
type Validator struct {
	Calc *Calculator
}

// NewValidator returns a Validator folding balances through store.
func NewValidator(store Store) *Validator {
	return &Validator{Calc: NewCalculator(store)}
}

// ValidateCreate checks whether a new entry may be written for the
// customer. Credits are never rejected here.
func (v *Validator) ValidateCreate(ctx context.Context, customerID int64, entryType EntryType, amount decimal.Decimal) error {
	if entryType.IsCredit() {
		return nil
	}

	balance, err := v.Calc.Balance(ctx, customerID)
	if err != nil {
		return err
	}

	// Zero balance is its own rejection, checked before the generic
	// over-limit branch.
	if balance.IsZero() {
		if amount.IsPositive() {
			return ErrNoAvailableCredit
		}
		return nil
	}
	if amount.GreaterThan(balance) {
		return &InsufficientCreditError{
			CustomerID: customerID,
			Available:  balance,
			Requested:  amount,
		}
	}
	return nil
}

// ValidateUpdate checks whether an in-place edit of entry may be
// applied. The effective type and amount are resolved from upd with the
// entry's current values as fallback.
func (v *Validator) ValidateUpdate(ctx context.Context, entry LedgerEntry, upd EntryUpdate) error {
	excluded, err := v.Calc.BalanceExcluding(ctx, entry.CustomerID, entry.ID)
	if err != nil {
		return err
	}

	newType := upd.EffectiveType(entry)
	newAmount := upd.EffectiveAmount(entry)

	var hypothetical decimal.Decimal
	if newType.IsCredit() {
		hypothetical = excluded.Add(newAmount)
	} else {
		hypothetical = excluded.Sub(newAmount)
	}

	if !newType.IsCredit() && hypothetical.IsNegative() {
		return &InsufficientCreditError{
			CustomerID: entry.CustomerID,
			Available:  excluded,
			Requested:  newAmount,
		}
	}
	return nil
}
