/*
store.go - Persistence interface for the ledger engine

PURPOSE:
  Defines the transactional store contract the engine runs against. Two
  production implementations exist (store/sqlite, store/postgres) plus
  an in-memory one for tests (ledger/store).

CONSISTENCY:
  The engine never caches. Every balance check re-reads the store, so
  the store's isolation level is the only concurrency control in play.
  Validate-then-write sequences MUST run inside WithTx: two concurrent
  debits that each read the same pre-write balance would otherwise both
  pass validation and over-debit the customer.

SCOPING:
  Every query is scoped by customer_id or business_id. The store does
  not enforce tenancy beyond that; the access guard in the api package
  decides whether the caller may use a given scope.
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// CustomerBalance is one row of the grouped balance sum: a customer of
// the business together with its derived signed balance. Customers with
// zero entries never produce a row (inner join).
type CustomerBalance struct {
	CustomerID int64
	Name       string
	Email      string
	Phone      string
	Balance    decimal.Decimal
}

// Store is the persistence contract for the engine.
type Store interface {
	// Businesses
	CreateBusiness(ctx context.Context, b Business) (Business, error)
	GetBusiness(ctx context.Context, id int64) (*Business, error)

	// Users (access-guard lookups only; provisioning is external)
	CreateUser(ctx context.Context, u User) (User, error)
	GetUserByToken(ctx context.Context, token string) (*User, error)

	// Customers
	CreateCustomer(ctx context.Context, c Customer) (Customer, error)
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	UpdateCustomer(ctx context.Context, id int64, upd CustomerUpdate) (*Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
	ListCustomers(ctx context.Context, businessID int64) ([]Customer, error)

	// Ledger entries
	InsertEntry(ctx context.Context, e LedgerEntry) (LedgerEntry, error)
	GetEntry(ctx context.Context, id int64) (*LedgerEntry, error)
	UpdateEntry(ctx context.Context, id int64, upd EntryUpdate) (*LedgerEntry, error)
	DeleteEntry(ctx context.Context, id int64) error
	EntriesByCustomer(ctx context.Context, customerID int64) ([]LedgerEntry, error)
	EntriesByCustomerExcluding(ctx context.Context, customerID, entryID int64) ([]LedgerEntry, error)
	EntriesByCustomerAndType(ctx context.Context, customerID int64, t EntryType) ([]LedgerEntry, error)
	EntriesByBusiness(ctx context.Context, businessID int64) ([]LedgerEntry, error)

	// AggregateBalances returns per-customer signed sums for the business,
	// grouped in the store (inner join: zero-entry customers excluded),
	// ordered by ascending customer id.
	AggregateBalances(ctx context.Context, businessID int64) ([]CustomerBalance, error)

	// Activity log
	AppendActivity(ctx context.Context, a ActivityLog) error

	// WithTx runs fn against a store view whose writes commit atomically.
	// fn returning an error rolls everything back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Fold computes the signed balance of a set of entries: credits add,
// everything else subtracts. Order-independent by construction.
func Fold(entries []LedgerEntry) decimal.Decimal {
	balance := decimal.Zero
	for _, e := range entries {
		balance = balance.Add(e.Signed())
	}
	return balance
}
