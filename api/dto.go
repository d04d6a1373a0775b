/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients

  Amounts travel as JSON strings ("250.00") so clients never round-trip
  them through binary floats. shopspring/decimal marshals that way when
  MarshalJSONWithoutQuotes is left off, which is exactly what we want.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopbook/ledger/ledger"
)

// =============================================================================
// CUSTOMERS
// =============================================================================

// CustomerDTO represents a customer in API responses.
type CustomerDTO struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone_number,omitempty"`
	BusinessID       int64  `json:"business_id"`
	RelationshipType string `json:"relationship_type,omitempty"`
	Notes            string `json:"notes,omitempty"`
	CreatedByID      int64  `json:"created_by_id"`
}

// CreateCustomerRequest is the request to create a customer.
type CreateCustomerRequest struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone_number"`
	RelationshipType string `json:"relationship_type"`
	Notes            string `json:"notes"`
}

// UpdateCustomerRequest is a partial customer update. Absent fields are
// left untouched.
type UpdateCustomerRequest struct {
	Name             *string `json:"name"`
	Email            *string `json:"email"`
	Phone            *string `json:"phone_number"`
	RelationshipType *string `json:"relationship_type"`
	Notes            *string `json:"notes"`
}

func toCustomerDTO(c ledger.Customer) CustomerDTO {
	return CustomerDTO{
		ID:               c.ID,
		Name:             c.Name,
		Email:            c.Email,
		Phone:            c.Phone,
		BusinessID:       c.BusinessID,
		RelationshipType: c.RelationshipType,
		Notes:            c.Notes,
		CreatedByID:      c.CreatedByID,
	}
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

// LedgerEntryDTO represents a ledger entry in API responses.
type LedgerEntryDTO struct {
	ID          int64           `json:"id"`
	CustomerID  int64           `json:"customer_id"`
	BusinessID  int64           `json:"business_id"`
	EntryType   string          `json:"entry_type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	CreatedByID int64           `json:"created_by_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CreateEntryRequest is the request to create a ledger entry.
type CreateEntryRequest struct {
	CustomerID  int64           `json:"customer_id"`
	EntryType   string          `json:"entry_type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url"`
}

// UpdateEntryRequest is a partial entry update. Absent fields keep
// their current values, including during validation.
type UpdateEntryRequest struct {
	EntryType   *string          `json:"entry_type"`
	Amount      *decimal.Decimal `json:"amount"`
	Description *string          `json:"description"`
	ImageURL    *string          `json:"image_url"`
}

func toEntryDTO(e ledger.LedgerEntry) LedgerEntryDTO {
	return LedgerEntryDTO{
		ID:          e.ID,
		CustomerID:  e.CustomerID,
		BusinessID:  e.BusinessID,
		EntryType:   string(e.EntryType),
		Amount:      e.Amount,
		Description: e.Description,
		ImageURL:    e.ImageURL,
		CreatedByID: e.CreatedByID,
		CreatedAt:   e.CreatedAt,
	}
}

func toEntryDTOs(entries []ledger.LedgerEntry) []LedgerEntryDTO {
	out := make([]LedgerEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryDTO(e))
	}
	return out
}

// =============================================================================
// BALANCE
// =============================================================================

// BalanceDTO reports a customer's derived balance.
type BalanceDTO struct {
	CustomerID int64           `json:"customer_id"`
	Balance    decimal.Decimal `json:"balance"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
