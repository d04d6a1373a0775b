/*
Package ledger implements the balance and settlement engine for a
multi-tenant bookkeeping backend.

PURPOSE:
  Businesses track customers and an append-per-action ledger of credit
  and debit entries against each customer. A customer's balance is never
  stored: it is always derived by folding over the customer's current
  entries. This package owns that fold, the debit-against-credit
  validation that guards entry writes, and the settlement/outstanding
  reports built on the same grouped sums.

KEY CONCEPTS IN THIS FILE (types.go):
  - EntryType: closed credit/debit tag for ledger entries
  - LedgerEntry: the unit of the ledger (amount is decimal.Decimal)
  - Customer, Business: tenant scoping
  - Payment, PaymentLedgerEntry: persisted settlement schema, currently
    unused by the balance math (kept as an extension point)
  - User, Role: principals for the access guard

DESIGN PRINCIPLES:
  1. Precision: all amounts are decimal.Decimal, never float64
  2. Derived balance: no cached balance column anywhere
  3. Tenant scoping: every entry carries business_id alongside its
     customer's business_id

SEE ALSO:
  - balance.go: balance fold and the entry-exclusion variant
  - validator.go: debit-against-credit rules
  - settlement.go: outstanding/partial-settlement aggregates
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENTRY TYPE - Closed credit/debit tag
// =============================================================================

// EntryType classifies a ledger entry. The stored representation is a
// string, but the API boundary only admits the two known values.
//
// The balance fold deliberately stays permissive: anything that is not
// a credit contributes negatively. That mirrors the behavior downstream
// consumers already rely on; ParseEntryType is where strictness lives.
type EntryType string

const (
	Credit EntryType = "credit"
	Debit  EntryType = "debit"
)

// ParseEntryType validates an incoming entry type string.
func ParseEntryType(s string) (EntryType, error) {
	switch EntryType(s) {
	case Credit, Debit:
		return EntryType(s), nil
	}
	return "", ErrInvalidEntryType
}

// IsCredit reports whether the entry adds to the customer's balance.
func (t EntryType) IsCredit() bool { return t == Credit }

// =============================================================================
// TENANCY
// =============================================================================

// Business is the tenant boundary. It owns users, customers, and every
// ledger entry written under it.
type Business struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Customer belongs to exactly one business. BusinessID is immutable once
// set; deleting the business cascades to its customers and their entries.
type Customer struct {
	ID               int64
	Name             string
	Email            string
	Phone            string
	BusinessID       int64
	RelationshipType string
	Notes            string
	CreatedByID      int64
}

// CustomerUpdate carries a partial customer mutation. Nil means "leave
// the field alone".
type CustomerUpdate struct {
	Name             *string
	Email            *string
	Phone            *string
	RelationshipType *string
	Notes            *string
}

// =============================================================================
// LEDGER ENTRY
// =============================================================================

// LedgerEntry is the atomic unit of the ledger. Amount is a non-negative
// decimal with two fractional digits. BusinessID is a denormalized copy
// of the customer's business and must always match it.
//
// Entries are physically deleted on request; there is no soft delete.
// Since balance is derived, every mutation trivially preserves the
// invariant "balance is the fold over current entries".
type LedgerEntry struct {
	ID          int64
	CustomerID  int64
	BusinessID  int64
	EntryType   EntryType
	Amount      decimal.Decimal
	Description string
	ImageURL    string
	CreatedByID int64
	CreatedAt   time.Time
}

// Signed returns the entry's contribution to the balance fold: positive
// for credits, negative for everything else.
func (e LedgerEntry) Signed() decimal.Decimal {
	if e.EntryType.IsCredit() {
		return e.Amount
	}
	return e.Amount.Neg()
}

// EntryUpdate carries a partial entry mutation. Only non-nil fields are
// applied; validation resolves effective type/amount from the current
// entry for any field left nil.
type EntryUpdate struct {
	EntryType   *EntryType
	Amount      *decimal.Decimal
	Description *string
	ImageURL    *string
}

// EffectiveType resolves the type the entry would have after the update.
func (u EntryUpdate) EffectiveType(current LedgerEntry) EntryType {
	if u.EntryType != nil {
		return *u.EntryType
	}
	return current.EntryType
}

// EffectiveAmount resolves the amount the entry would have after the update.
func (u EntryUpdate) EffectiveAmount(current LedgerEntry) decimal.Decimal {
	if u.Amount != nil {
		return *u.Amount
	}
	return current.Amount
}

// =============================================================================
// PAYMENTS - Persisted schema, not consulted by balance math
// =============================================================================

// PaymentStatus is the settlement state recorded against a payment row.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentOverdue  PaymentStatus = "overdue"
	PaymentDisputed PaymentStatus = "disputed"
)

// Payment records a settlement against a customer. The balance and
// settlement reports do not read this table today; the reconciliation
// adapter derives a payment view from debit entries instead.
type Payment struct {
	ID          int64
	CustomerID  int64
	BusinessID  int64
	Amount      decimal.Decimal
	Status      PaymentStatus
	PaidAt      *time.Time
	CreatedAt   time.Time
	CreatedByID int64
}

// PaymentLedgerEntry attributes part of a payment to a specific ledger
// entry. Modeled for future partial-allocation tracking; unused by the
// currently exercised settlement logic.
type PaymentLedgerEntry struct {
	ID            int64
	PaymentID     int64
	LedgerEntryID int64
	Amount        decimal.Decimal
}

// =============================================================================
// PRINCIPALS - Access guard inputs
// =============================================================================

// Role is the coarse role of a user within the system.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleOwner Role = "owner"
	RoleStaff Role = "staff"
)

// StaffRole refines RoleStaff.
type StaffRole string

const (
	StaffSupervisor StaffRole = "supervisor"
	StaffCashier    StaffRole = "cashier"
	StaffSalesman   StaffRole = "salesman"
)

// User is an authenticated principal. Token issuance, password hashing,
// and OTP flows live outside this module; the guard only needs to map a
// presented token to a user and read its role + business scope.
type User struct {
	ID         int64
	Email      string
	Role       Role
	StaffRole  StaffRole
	BusinessID int64
	APIToken   string
	IsActive   bool
}

// CanWriteLedger reports whether the user may create or mutate ledger
// entries and customers: owners always, staff only when acting as
// cashier.
func (u User) CanWriteLedger() bool {
	if u.Role == RoleOwner {
		return true
	}
	return u.Role == RoleStaff && u.StaffRole == StaffCashier
}

// =============================================================================
// ACTIVITY LOG
// =============================================================================

// ActivityLog is an append-only record of who did what. It is the only
// audit surface; there is no entry versioning.
type ActivityLog struct {
	ID         int64
	UserID     int64
	BusinessID int64
	Action     string
	Details    string
	Timestamp  time.Time
}
