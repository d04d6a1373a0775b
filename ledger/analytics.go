/*
analytics.go - Business-level ledger reports

PURPOSE:
  Read-only per-business analytics over the raw entry rows:

  BusinessPayables:    per-customer credit totals (what the business
                       owes) plus a business-wide total.
  BusinessReceivables: per-customer debit totals (what the business is
                       owed) plus a business-wide total.
  FrequentCustomers:   customers with more than two entries, with their
                       entries and unsigned amount total attached.

  Unlike the settlement aggregates these walk every customer of the
  business, entries or not; a customer without matching entries just
  contributes a zero total (payables/receivables) or is skipped
  (frequent customers).
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// CustomerLedgerSummary is one customer's slice of an analytics report.
type CustomerLedgerSummary struct {
	CustomerID    int64           `json:"customer_id"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	Total         decimal.Decimal `json:"total"`
	Ledgers       []LedgerEntry   `json:"ledgers"`
}

// PayablesReport is the business-wide payables (credit) rollup.
type PayablesReport struct {
	TotalBusinessPayable decimal.Decimal         `json:"total_business_payable"`
	Customers            []CustomerLedgerSummary `json:"customers"`
}

// ReceivablesReport is the business-wide receivables (debit) rollup.
type ReceivablesReport struct {
	TotalBusinessReceivable decimal.Decimal         `json:"total_business_receivable"`
	Customers               []CustomerLedgerSummary `json:"customers"`
}

// Analytics computes business-level ledger reports.
type Analytics struct {
	Store Store
}

// NewAnalytics returns an Analytics over the given store.
func NewAnalytics(store Store) *Analytics {
	return &Analytics{Store: store}
}

// BusinessPayables sums credit entries per customer across the business.
func (a *Analytics) BusinessPayables(ctx context.Context, businessID int64) (*PayablesReport, error) {
	summaries, total, err := a.sumByType(ctx, businessID, Credit)
	if err != nil {
		return nil, err
	}
	return &PayablesReport{TotalBusinessPayable: total, Customers: summaries}, nil
}

// BusinessReceivables sums debit entries per customer across the business.
func (a *Analytics) BusinessReceivables(ctx context.Context, businessID int64) (*ReceivablesReport, error) {
	summaries, total, err := a.sumByType(ctx, businessID, Debit)
	if err != nil {
		return nil, err
	}
	return &ReceivablesReport{TotalBusinessReceivable: total, Customers: summaries}, nil
}

func (a *Analytics) sumByType(ctx context.Context, businessID int64, t EntryType) ([]CustomerLedgerSummary, decimal.Decimal, error) {
	customers, err := a.Store.ListCustomers(ctx, businessID)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("list customers for business %d: %w", businessID, err)
	}

	summaries := []CustomerLedgerSummary{}
	grandTotal := decimal.Zero

	for _, c := range customers {
		entries, err := a.Store.EntriesByCustomerAndType(ctx, c.ID, t)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("load %s entries for customer %d: %w", t, c.ID, err)
		}

		total := decimal.Zero
		for _, e := range entries {
			total = total.Add(e.Amount)
		}
		grandTotal = grandTotal.Add(total)

		summaries = append(summaries, CustomerLedgerSummary{
			CustomerID:    c.ID,
			CustomerName:  c.Name,
			CustomerEmail: c.Email,
			Total:         total,
			Ledgers:       entries,
		})
	}
	return summaries, grandTotal, nil
}

// FrequentCustomers returns customers of the business with more than
// two ledger entries, each with all entries and their unsigned total.
func (a *Analytics) FrequentCustomers(ctx context.Context, businessID int64) ([]CustomerLedgerSummary, error) {
	customers, err := a.Store.ListCustomers(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("list customers for business %d: %w", businessID, err)
	}

	out := []CustomerLedgerSummary{}
	for _, c := range customers {
		entries, err := a.Store.EntriesByCustomer(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("load entries for customer %d: %w", c.ID, err)
		}
		if len(entries) <= 2 {
			continue
		}

		total := decimal.Zero
		for _, e := range entries {
			total = total.Add(e.Amount)
		}
		out = append(out, CustomerLedgerSummary{
			CustomerID:    c.ID,
			CustomerName:  c.Name,
			CustomerEmail: c.Email,
			Total:         total,
			Ledgers:       entries,
		})
	}
	return out, nil
}
