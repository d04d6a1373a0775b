package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopbook/ledger/ledger"
)

// =============================================================================
// PAYABLES / RECEIVABLES
// =============================================================================

func TestBusinessPayables_SumsCreditsPerCustomer(t *testing.T) {
	// GIVEN: two customers, one with credits, one with only a debit
	// WHEN: computing payables
	// THEN: every customer gets a row; debit-only customers total zero

	ctx := context.Background()
	s, _, funded := newTestBusiness(t)
	debtor := addCustomer(t, s, funded.BusinessID, "Debtor", "")

	mustInsert(t, s, funded, ledger.Credit, "300")
	mustInsert(t, s, funded, ledger.Credit, "200")
	mustInsert(t, s, funded, ledger.Debit, "50")
	mustInsert(t, s, debtor, ledger.Debit, "40")

	analytics := ledger.NewAnalytics(s)
	report, err := analytics.BusinessPayables(ctx, funded.BusinessID)
	require.NoError(t, err)

	assert.True(t, report.TotalBusinessPayable.Equal(dec("500")),
		"expected total 500, got %s", report.TotalBusinessPayable)
	require.Len(t, report.Customers, 2)
	assert.True(t, report.Customers[0].Total.Equal(dec("500")))
	assert.True(t, report.Customers[1].Total.IsZero())
	assert.Len(t, report.Customers[0].Ledgers, 2, "payables carry the credit entries only")
}

func TestBusinessReceivables_SumsDebitsPerCustomer(t *testing.T) {
	// GIVEN: the same mixed ledgers
	// WHEN: computing receivables
	// THEN: debit totals per customer, credits ignored

	ctx := context.Background()
	s, _, funded := newTestBusiness(t)
	debtor := addCustomer(t, s, funded.BusinessID, "Debtor", "")

	mustInsert(t, s, funded, ledger.Credit, "300")
	mustInsert(t, s, funded, ledger.Debit, "50")
	mustInsert(t, s, debtor, ledger.Debit, "40")

	analytics := ledger.NewAnalytics(s)
	report, err := analytics.BusinessReceivables(ctx, funded.BusinessID)
	require.NoError(t, err)

	assert.True(t, report.TotalBusinessReceivable.Equal(dec("90")),
		"expected total 90, got %s", report.TotalBusinessReceivable)
	require.Len(t, report.Customers, 2)
	assert.True(t, report.Customers[0].Total.Equal(dec("50")))
	assert.True(t, report.Customers[1].Total.Equal(dec("40")))
}

// =============================================================================
// FREQUENT CUSTOMERS
// =============================================================================

func TestFrequentCustomers_MoreThanTwoEntries(t *testing.T) {
	// GIVEN: customers with 3, 2, and 0 entries
	// WHEN: computing frequent customers
	// THEN: only the three-entry customer qualifies; total is unsigned

	ctx := context.Background()
	s, _, frequent := newTestBusiness(t)
	casual := addCustomer(t, s, frequent.BusinessID, "Casual", "")
	addCustomer(t, s, frequent.BusinessID, "Ghost", "")

	mustInsert(t, s, frequent, ledger.Credit, "100")
	mustInsert(t, s, frequent, ledger.Debit, "20")
	mustInsert(t, s, frequent, ledger.Debit, "10")
	mustInsert(t, s, casual, ledger.Credit, "60")
	mustInsert(t, s, casual, ledger.Debit, "5")

	analytics := ledger.NewAnalytics(s)
	rows, err := analytics.FrequentCustomers(ctx, frequent.BusinessID)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, frequent.ID, rows[0].CustomerID)
	assert.Len(t, rows[0].Ledgers, 3)
	// 100 + 20 + 10, not the signed fold 70.
	assert.True(t, rows[0].Total.Equal(dec("130")),
		"expected unsigned total 130, got %s", rows[0].Total)
}
