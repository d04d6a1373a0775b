package ledger_test

import (
	"context"
	"testing"

	"github.com/shopbook/ledger/ledger"
)

// =============================================================================
// PAYMENTS-FROM-LEDGER VIEW
// =============================================================================

func TestPaymentsFromLedger_DebitsOnly_AllPaid(t *testing.T) {
	// GIVEN: credits and debits mixed on one customer
	// WHEN: deriving the payment view
	// THEN: only debits appear, status "paid", paid_at nil

	ctx := context.Background()
	s, _, customer := newTestBusiness(t)
	mustInsert(t, s, customer, ledger.Credit, "500")
	d1 := mustInsert(t, s, customer, ledger.Debit, "120")
	mustInsert(t, s, customer, ledger.Credit, "75")
	d2 := mustInsert(t, s, customer, ledger.Debit, "30.50")

	adapter := ledger.NewReconciliationAdapter(s)
	payments, err := adapter.PaymentsFromLedger(ctx, customer.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(payments) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(payments))
	}
	if payments[0].LedgerEntryID != d1.ID || payments[1].LedgerEntryID != d2.ID {
		t.Errorf("payments should track debit entry ids in order: %+v", payments)
	}
	for _, p := range payments {
		if p.Status != string(ledger.PaymentPaid) {
			t.Errorf("entry %d: expected status paid, got %q", p.LedgerEntryID, p.Status)
		}
		if p.PaidAt != nil {
			t.Errorf("entry %d: paid_at must be nil", p.LedgerEntryID)
		}
	}
	if !payments[1].Amount.Equal(dec("30.50")) {
		t.Errorf("expected amount 30.50, got %s", payments[1].Amount)
	}
}

func TestPaymentsFromLedger_NoDebits_Empty(t *testing.T) {
	// GIVEN: a customer with only credits
	// WHEN: deriving the payment view
	// THEN: an empty slice, no error

	s, _, customer := newTestBusiness(t)
	mustInsert(t, s, customer, ledger.Credit, "250")

	adapter := ledger.NewReconciliationAdapter(s)
	payments, err := adapter.PaymentsFromLedger(context.Background(), customer.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payments) != 0 {
		t.Fatalf("expected no payments, got %+v", payments)
	}
}
