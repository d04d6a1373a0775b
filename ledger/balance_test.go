package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/shopbook/ledger/ledger"
	"github.com/shopbook/ledger/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================
// Shared by the other _test.go files in this package.

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newTestBusiness seeds a business with one owner and one customer and
// returns the store plus both.
func newTestBusiness(t *testing.T) (*store.Memory, ledger.User, ledger.Customer) {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemory()

	business, err := s.CreateBusiness(ctx, ledger.Business{Name: "Corner Shop"})
	if err != nil {
		t.Fatalf("create business: %v", err)
	}
	owner, err := s.CreateUser(ctx, ledger.User{
		Email:      "owner@corner.shop",
		Role:       ledger.RoleOwner,
		BusinessID: business.ID,
		APIToken:   "owner-token",
		IsActive:   true,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	customer, err := s.CreateCustomer(ctx, ledger.Customer{
		Name:       "Asha",
		Email:      "asha@example.com",
		Phone:      "555-0101",
		BusinessID: business.ID,
	})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return s, owner, customer
}

// addCustomer adds another customer to the same business.
func addCustomer(t *testing.T, s *store.Memory, businessID int64, name, email string) ledger.Customer {
	t.Helper()
	c, err := s.CreateCustomer(context.Background(), ledger.Customer{
		Name:       name,
		Email:      email,
		BusinessID: businessID,
	})
	if err != nil {
		t.Fatalf("create customer %s: %v", name, err)
	}
	return c
}

// mustInsert writes an entry directly, bypassing validation.
func mustInsert(t *testing.T, s *store.Memory, c ledger.Customer, entryType ledger.EntryType, amount string) ledger.LedgerEntry {
	t.Helper()
	e, err := s.InsertEntry(context.Background(), ledger.LedgerEntry{
		CustomerID: c.ID,
		BusinessID: c.BusinessID,
		EntryType:  entryType,
		Amount:     dec(amount),
	})
	if err != nil {
		t.Fatalf("insert entry: %v", err)
	}
	return e
}

// =============================================================================
// BALANCE FOLD TESTS
// =============================================================================

func TestBalance_CreditsAddDebitsSubtract(t *testing.T) {
	// GIVEN: credit 500, debit 200, credit 50.25
	// WHEN: deriving the balance
	// THEN: 500 - 200 + 50.25 = 350.25

	ctx := context.Background()
	s, _, customer := newTestBusiness(t)
	mustInsert(t, s, customer, ledger.Credit, "500")
	mustInsert(t, s, customer, ledger.Debit, "200")
	mustInsert(t, s, customer, ledger.Credit, "50.25")

	calc := ledger.NewCalculator(s)
	balance, err := calc.Balance(ctx, customer.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !balance.Equal(dec("350.25")) {
		t.Errorf("expected balance 350.25, got %s", balance)
	}
}

func TestBalance_NoEntries_IsZero(t *testing.T) {
	// GIVEN: a customer with no ledger entries
	// WHEN: deriving the balance
	// THEN: exactly zero, no error

	s, _, customer := newTestBusiness(t)
	calc := ledger.NewCalculator(s)

	balance, err := calc.Balance(context.Background(), customer.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("expected zero balance, got %s", balance)
	}
}

func TestBalance_OrderIndependent(t *testing.T) {
	// GIVEN: the same entries written in two different orders
	// WHEN: deriving both balances
	// THEN: the fold commutes

	ctx := context.Background()
	s, _, a := newTestBusiness(t)
	b := addCustomer(t, s, a.BusinessID, "Bilal", "bilal@example.com")

	mustInsert(t, s, a, ledger.Credit, "100")
	mustInsert(t, s, a, ledger.Debit, "40")
	mustInsert(t, s, a, ledger.Credit, "15.50")

	mustInsert(t, s, b, ledger.Credit, "15.50")
	mustInsert(t, s, b, ledger.Debit, "40")
	mustInsert(t, s, b, ledger.Credit, "100")

	calc := ledger.NewCalculator(s)
	balA, err := calc.Balance(ctx, a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	balB, err := calc.Balance(ctx, b.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !balA.Equal(balB) {
		t.Errorf("fold is order-dependent: %s vs %s", balA, balB)
	}
	if !balA.Equal(dec("75.50")) {
		t.Errorf("expected 75.50, got %s", balA)
	}
}

func TestBalanceExcluding_RemovesOnlyTheNamedEntry(t *testing.T) {
	// GIVEN: credit 500 and debit 200
	// WHEN: computing the balance excluding the debit
	// THEN: 500; and excluding a nonexistent id changes nothing

	ctx := context.Background()
	s, _, customer := newTestBusiness(t)
	mustInsert(t, s, customer, ledger.Credit, "500")
	debit := mustInsert(t, s, customer, ledger.Debit, "200")

	calc := ledger.NewCalculator(s)
	excluded, err := calc.BalanceExcluding(ctx, customer.ID, debit.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !excluded.Equal(dec("500")) {
		t.Errorf("expected 500, got %s", excluded)
	}

	unchanged, err := calc.BalanceExcluding(ctx, customer.ID, 99999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !unchanged.Equal(dec("300")) {
		t.Errorf("expected 300, got %s", unchanged)
	}
}

func TestFold_UnknownTypeSubtracts(t *testing.T) {
	// GIVEN: an entry whose stored type is neither credit nor debit
	// WHEN: folding
	// THEN: it contributes negatively, same as a debit

	entries := []ledger.LedgerEntry{
		{EntryType: ledger.Credit, Amount: dec("100")},
		{EntryType: ledger.EntryType("adjustment"), Amount: dec("30")},
	}
	if got := ledger.Fold(entries); !got.Equal(dec("70")) {
		t.Errorf("expected 70, got %s", got)
	}
}
