/*
payments.go - Payment view derived from debit entries

PURPOSE:
  Maps every debit-type ledger entry of a customer into a payment-shaped
  record. This is a reporting view, not a settlement ledger: status is
  hardcoded to "paid" and paid_at is always nil, and the persisted
  Payment / PaymentLedgerEntry tables are never consulted.

  The CSV statement export serializes these records field-for-field, so
  the shape is a contract. Real payment tracking through the Payment
  tables would be a behavior change, not a refactor; see DESIGN.md.
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentRecord is one debit entry viewed as an implicitly settled
// payment.
type PaymentRecord struct {
	LedgerEntryID int64           `json:"ledger_entry_id"`
	CustomerID    int64           `json:"customer_id"`
	BusinessID    int64           `json:"business_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	Description   string          `json:"description"`
	ImageURL      string          `json:"image_url"`
	CreatedAt     time.Time       `json:"created_at"`
	PaidAt        *time.Time      `json:"paid_at"`
}

// ReconciliationAdapter derives payment records from the ledger.
type ReconciliationAdapter struct {
	Store Store
}

// NewReconciliationAdapter returns an adapter over the given store.
func NewReconciliationAdapter(store Store) *ReconciliationAdapter {
	return &ReconciliationAdapter{Store: store}
}

// PaymentsFromLedger returns every debit entry of the customer as a
// payment record with status "paid" and no paid_at.
func (r *ReconciliationAdapter) PaymentsFromLedger(ctx context.Context, customerID int64) ([]PaymentRecord, error) {
	entries, err := r.Store.EntriesByCustomerAndType(ctx, customerID, Debit)
	if err != nil {
		return nil, fmt.Errorf("load debit entries for customer %d: %w", customerID, err)
	}

	payments := make([]PaymentRecord, 0, len(entries))
	for _, e := range entries {
		payments = append(payments, PaymentRecord{
			LedgerEntryID: e.ID,
			CustomerID:    e.CustomerID,
			BusinessID:    e.BusinessID,
			Amount:        e.Amount,
			Status:        string(PaymentPaid),
			Description:   e.Description,
			ImageURL:      e.ImageURL,
			CreatedAt:     e.CreatedAt,
			PaidAt:        nil,
		})
	}
	return payments, nil
}
