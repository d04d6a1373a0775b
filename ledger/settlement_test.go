package ledger_test

import (
	"context"
	"testing"

	"github.com/shopbook/ledger/ledger"
)

// =============================================================================
// OUTSTANDING BALANCES
// =============================================================================

func TestOutstandingBalances_StrictlyAboveThreshold(t *testing.T) {
	// GIVEN: customers with balances 15000, 10000, and 10000.01
	// WHEN: reporting with the default threshold 10000
	// THEN: exactly-at-threshold is excluded; the other two appear

	ctx := context.Background()
	s, _, over := newTestBusiness(t)
	at := addCustomer(t, s, over.BusinessID, "Exact", "exact@example.com")
	barely := addCustomer(t, s, over.BusinessID, "Barely", "barely@example.com")

	mustInsert(t, s, over, ledger.Credit, "15000")
	mustInsert(t, s, at, ledger.Credit, "10000")
	mustInsert(t, s, barely, ledger.Credit, "10000.01")

	agg := ledger.NewAggregator(s)
	rows, err := agg.OutstandingBalances(ctx, over.BusinessID, ledger.DefaultOutstandingThreshold)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("expected 2 outstanding customers, got %d: %+v", len(rows), rows)
	}
	// Ascending customer id.
	if rows[0].CustomerID != over.ID || rows[1].CustomerID != barely.ID {
		t.Errorf("unexpected rows/order: %+v", rows)
	}
	if !rows[1].OutstandingBalance.Equal(dec("10000.01")) {
		t.Errorf("expected 10000.01, got %s", rows[1].OutstandingBalance)
	}
	if rows[0].Contact != over.Phone {
		t.Errorf("contact should carry the phone number, got %q", rows[0].Contact)
	}
}

func TestOutstandingBalances_CustomThreshold(t *testing.T) {
	// GIVEN: a customer with balance 300
	// WHEN: reporting with threshold 250 and then 300
	// THEN: included only under the lower threshold

	ctx := context.Background()
	s, _, customer := newTestBusiness(t)
	mustInsert(t, s, customer, ledger.Credit, "500")
	mustInsert(t, s, customer, ledger.Debit, "200")

	agg := ledger.NewAggregator(s)
	rows, err := agg.OutstandingBalances(ctx, customer.BusinessID, dec("250"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row under threshold 250, got %d", len(rows))
	}

	rows, err = agg.OutstandingBalances(ctx, customer.BusinessID, dec("300"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows at threshold 300, got %d", len(rows))
	}
}

func TestOutstandingBalances_ZeroEntryCustomerInvisible(t *testing.T) {
	// GIVEN: a customer with no entries next to one far above threshold
	// WHEN: reporting
	// THEN: the inner join keeps the entry-less customer out entirely

	ctx := context.Background()
	s, _, funded := newTestBusiness(t)
	addCustomer(t, s, funded.BusinessID, "Ghost", "ghost@example.com")
	mustInsert(t, s, funded, ledger.Credit, "20000")

	agg := ledger.NewAggregator(s)
	rows, err := agg.OutstandingBalances(ctx, funded.BusinessID, ledger.DefaultOutstandingThreshold)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].CustomerID != funded.ID {
		t.Fatalf("expected only the funded customer, got %+v", rows)
	}
}

// =============================================================================
// PARTIAL SETTLEMENTS
// =============================================================================

func TestPartialSettlements_NonZeroOnly_StatusPending(t *testing.T) {
	// GIVEN: one customer settled to zero, one positive, one negative
	// WHEN: reporting partial settlements
	// THEN: only the non-zero balances appear, both marked "pending"

	ctx := context.Background()
	s, _, settled := newTestBusiness(t)
	positive := addCustomer(t, s, settled.BusinessID, "Open", "open@example.com")
	negative := addCustomer(t, s, settled.BusinessID, "Overdrawn", "over@example.com")

	mustInsert(t, s, settled, ledger.Credit, "100")
	mustInsert(t, s, settled, ledger.Debit, "100")
	mustInsert(t, s, positive, ledger.Credit, "80")
	// Written directly; create validation would refuse this.
	mustInsert(t, s, negative, ledger.Debit, "25")

	agg := ledger.NewAggregator(s)
	rows, err := agg.PartialSettlements(ctx, settled.BusinessID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("expected 2 pending customers, got %d: %+v", len(rows), rows)
	}
	for _, row := range rows {
		if row.Status != "pending" {
			t.Errorf("customer %d: expected status pending, got %q", row.CustomerID, row.Status)
		}
		if row.CustomerID == settled.ID {
			t.Errorf("settled customer must not be reported")
		}
	}
	if !rows[1].Balance.Equal(dec("-25")) {
		t.Errorf("negative balances are still pending; got %s", rows[1].Balance)
	}
}

func TestPartialSettlements_OtherBusinessInvisible(t *testing.T) {
	// GIVEN: two businesses, each with a pending customer
	// WHEN: reporting for business A
	// THEN: business B's customer never appears

	ctx := context.Background()
	s, _, mine := newTestBusiness(t)
	otherBiz, err := s.CreateBusiness(ctx, ledger.Business{Name: "Rival Shop"})
	if err != nil {
		t.Fatalf("create business: %v", err)
	}
	theirs := addCustomer(t, s, otherBiz.ID, "Rival Customer", "")

	mustInsert(t, s, mine, ledger.Credit, "60")
	mustInsert(t, s, theirs, ledger.Credit, "9000")

	agg := ledger.NewAggregator(s)
	rows, err := agg.PartialSettlements(ctx, mine.BusinessID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].CustomerID != mine.ID {
		t.Fatalf("expected only own business's customer, got %+v", rows)
	}
}
