/*
settlement.go - Per-customer settlement aggregates

PURPOSE:
  Read-only reports across a business's customer base, both built on the
  store's grouped signed sum (AggregateBalances):

  OutstandingBalances: customers whose balance strictly exceeds a
  reporting threshold (default 10000.00). A balance exactly at the
  threshold is NOT outstanding.

  PartialSettlements: customers with a non-zero balance, reported with
  status "pending". Zero-balance customers count as "paid" and are
  filtered OUT; despite the name, only pending customers appear.

JOIN SEMANTICS:
  AggregateBalances is an inner join against ledger entries, so a
  customer of the business with zero entries appears in NEITHER report.
  That is observed, relied-upon behavior, not an accident to fix.

ORDERING:
  Rows come back in ascending customer id so reports and their CSV
  exports are deterministic.
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultOutstandingThreshold is the reporting threshold applied when
// the caller does not supply one.
var DefaultOutstandingThreshold = decimal.NewFromInt(10000)

// OutstandingBalance is one row of the outstanding-balances report.
type OutstandingBalance struct {
	CustomerID         int64           `json:"customer_id"`
	CustomerName       string          `json:"customer_name"`
	Email              string          `json:"email"`
	Contact            string          `json:"contact"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
}

// PartialSettlement is one row of the partial-settlements report.
type PartialSettlement struct {
	CustomerID   int64           `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	Balance      decimal.Decimal `json:"balance"`
	Status       string          `json:"status"`
}

// Aggregator computes settlement reports from grouped balance sums.
type Aggregator struct {
	Store Store
}

// NewAggregator returns an Aggregator over the given store.
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{Store: store}
}

// OutstandingBalances returns customers of the business whose derived
// balance strictly exceeds threshold.
func (a *Aggregator) OutstandingBalances(ctx context.Context, businessID int64, threshold decimal.Decimal) ([]OutstandingBalance, error) {
	rows, err := a.Store.AggregateBalances(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("aggregate balances for business %d: %w", businessID, err)
	}

	out := []OutstandingBalance{}
	for _, row := range rows {
		if row.Balance.GreaterThan(threshold) {
			out = append(out, OutstandingBalance{
				CustomerID:         row.CustomerID,
				CustomerName:       row.Name,
				Email:              row.Email,
				Contact:            row.Phone,
				OutstandingBalance: row.Balance,
			})
		}
	}
	return out, nil
}

// PartialSettlements returns the business's customers that still have a
// non-zero balance, each with status "pending".
func (a *Aggregator) PartialSettlements(ctx context.Context, businessID int64) ([]PartialSettlement, error) {
	rows, err := a.Store.AggregateBalances(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("aggregate balances for business %d: %w", businessID, err)
	}

	out := []PartialSettlement{}
	for _, row := range rows {
		// Zero balance means settled; settled customers are not reported.
		if row.Balance.IsZero() {
			continue
		}
		out = append(out, PartialSettlement{
			CustomerID:   row.CustomerID,
			CustomerName: row.Name,
			Balance:      row.Balance,
			Status:       "pending",
		})
	}
	return out, nil
}
