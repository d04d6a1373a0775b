/*
handlers.go - HTTP handlers for the ledger backend

PURPOSE:
  Exposes the ledger engine over REST. Handlers parse the request,
  enforce the business-scope capability check, delegate to the engine,
  and shape the response. No balance math lives here.

ENDPOINTS:
  Customers:
    GET    /api/customers                      List business customers
    POST   /api/customers                      Create customer
    GET    /api/customers/{id}                 Get customer
    PUT    /api/customers/{id}                 Partial update
    DELETE /api/customers/{id}                 Delete (entries cascade)
    GET    /api/customers/{id}/ledgers         Customer's ledger entries
    GET    /api/customers/{id}/balance         Derived balance
    GET    /api/customers/{id}/payments-from-ledger  Payment view

  Ledger:
    POST   /api/ledger                         Create entry (validated)
    GET    /api/ledger/{id}                    Get entry
    PUT    /api/ledger/{id}                    Partial update (validated)
    DELETE /api/ledger/{id}                    Delete entry
    GET    /api/businesses/{id}/ledgers        Business-wide entries

  Reports:
    GET    /api/reports/partial-settlements
    GET    /api/reports/outstanding-balances   ?threshold=...
    POST   /api/reports/outstanding-balances/send-reminders
    GET    /api/analytics/payables
    GET    /api/analytics/receivables
    GET    /api/analytics/frequent-customers

  CSV downloads live in statements.go.

ERROR HANDLING:
  Domain errors map to status codes in writeDomainError. The
  insufficient-credit message carries the exact available balance;
  callers display it, so it passes through verbatim.
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/shopbook/ledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      ledger.Store
	Service    *ledger.Service
	Calc       *ledger.Calculator
	Aggregator *ledger.Aggregator
	Analytics  *ledger.Analytics
	Payments   *ledger.ReconciliationAdapter
}

// NewHandler wires a handler over the store and service.
func NewHandler(store ledger.Store, service *ledger.Service) *Handler {
	return &Handler{
		Store:      store,
		Service:    service,
		Calc:       ledger.NewCalculator(store),
		Aggregator: ledger.NewAggregator(store),
		Analytics:  ledger.NewAnalytics(store),
		Payments:   ledger.NewReconciliationAdapter(store),
	}
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns the customers of the caller's business.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	customers, err := h.Store.ListCustomers(r.Context(), p.BusinessID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list customers", err)
		return
	}

	dtos := make([]CustomerDTO, 0, len(customers))
	for _, c := range customers {
		dtos = append(dtos, toCustomerDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCustomer creates a customer under the caller's business.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Customer name is required", nil)
		return
	}

	created, err := h.Service.CreateCustomer(r.Context(), principal(r), ledger.NewCustomer{
		Name:             req.Name,
		Email:            req.Email,
		Phone:            req.Phone,
		RelationshipType: req.RelationshipType,
		Notes:            req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(*created))
}

// GetCustomer returns one customer of the caller's business.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.scopedCustomer(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(*customer))
}

// UpdateCustomer applies a partial customer update.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.scopedCustomer(w, r)
	if !ok {
		return
	}

	var req UpdateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	updated, err := h.Service.UpdateCustomer(r.Context(), principal(r), customer.ID, ledger.CustomerUpdate{
		Name:             req.Name,
		Email:            req.Email,
		Phone:            req.Phone,
		RelationshipType: req.RelationshipType,
		Notes:            req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(*updated))
}

// DeleteCustomer removes a customer and, by cascade, its entries.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.scopedCustomer(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteCustomer(r.Context(), principal(r), customer.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCustomerLedgers returns a customer's ledger entries.
func (h *Handler) ListCustomerLedgers(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.scopedCustomer(w, r)
	if !ok {
		return
	}
	entries, err := h.Store.EntriesByCustomer(r.Context(), customer.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list ledger entries", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// GetCustomerBalance returns the customer's derived balance.
func (h *Handler) GetCustomerBalance(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.scopedCustomer(w, r)
	if !ok {
		return
	}
	balance, err := h.Calc.Balance(r.Context(), customer.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{CustomerID: customer.ID, Balance: balance})
}

// PaymentsFromLedger returns the customer's debit entries viewed as
// settled payments.
func (h *Handler) PaymentsFromLedger(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.scopedCustomer(w, r)
	if !ok {
		return
	}
	payments, err := h.Payments.PaymentsFromLedger(r.Context(), customer.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to derive payments", err)
		return
	}
	if len(payments) == 0 {
		writeError(w, http.StatusNotFound, "No payments found for this customer.", nil)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

// =============================================================================
// LEDGER ENTRY HANDLERS
// =============================================================================

// CreateEntry validates and writes a ledger entry.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entryType, err := ledger.ParseEntryType(req.EntryType)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	p := principal(r)
	customer, err := h.Store.GetCustomer(r.Context(), req.CustomerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load customer", err)
		return
	}
	if customer == nil {
		writeError(w, http.StatusNotFound, "Customer not found.", nil)
		return
	}
	if err := authorizeBusiness(p, customer.BusinessID); err != nil {
		writeDomainError(w, err)
		return
	}

	created, err := h.Service.CreateEntry(r.Context(), p, ledger.NewEntry{
		CustomerID:  req.CustomerID,
		EntryType:   entryType,
		Amount:      req.Amount,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(*created))
}

// GetEntry returns one ledger entry.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.scopedEntry(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*entry))
}

// UpdateEntry applies a validated partial edit to an entry.
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.scopedEntry(w, r)
	if !ok {
		return
	}

	var req UpdateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	upd := ledger.EntryUpdate{
		Amount:      req.Amount,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	}
	if req.EntryType != nil {
		t, err := ledger.ParseEntryType(*req.EntryType)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		upd.EntryType = &t
	}

	updated, err := h.Service.UpdateEntry(r.Context(), principal(r), entry.ID, upd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*updated))
}

// DeleteEntry physically removes an entry.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.scopedEntry(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteEntry(r.Context(), principal(r), entry.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListBusinessLedgers returns every entry of a business.
func (h *Handler) ListBusinessLedgers(w http.ResponseWriter, r *http.Request) {
	businessID, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid business id", err)
		return
	}

	p := principal(r)
	business, err := h.Store.GetBusiness(r.Context(), businessID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load business", err)
		return
	}
	if business == nil {
		writeError(w, http.StatusNotFound, "Business not found.", nil)
		return
	}
	if err := authorizeBusiness(p, business.ID); err != nil {
		writeDomainError(w, err)
		return
	}

	entries, err := h.Store.EntriesByBusiness(r.Context(), business.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list ledger entries", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// PartialSettlements reports customers with a pending (non-zero) balance.
func (h *Handler) PartialSettlements(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	settlements, err := h.Aggregator.PartialSettlements(r.Context(), p.BusinessID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute settlements", err)
		return
	}
	writeJSON(w, http.StatusOK, settlements)
}

// OutstandingBalances reports customers above the reporting threshold.
func (h *Handler) OutstandingBalances(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	threshold, err := thresholdParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid threshold", err)
		return
	}

	balances, err := h.Aggregator.OutstandingBalances(r.Context(), p.BusinessID, threshold)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute outstanding balances", err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

// SendReminders publishes reminder events for outstanding customers.
func (h *Handler) SendReminders(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	threshold, err := thresholdParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid threshold", err)
		return
	}

	report, err := h.Service.SendReminders(r.Context(), p, threshold)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to send reminders", err)
		return
	}
	if len(report.Sent) == 0 && len(report.Failed) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"message": "No outstanding balances found."})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Payables reports per-customer credit totals for the business.
func (h *Handler) Payables(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	report, err := h.Analytics.BusinessPayables(r.Context(), p.BusinessID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute payables", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Receivables reports per-customer debit totals for the business.
func (h *Handler) Receivables(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	report, err := h.Analytics.BusinessReceivables(r.Context(), p.BusinessID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute receivables", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// FrequentCustomers reports customers with more than two entries.
func (h *Handler) FrequentCustomers(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	customers, err := h.Analytics.FrequentCustomers(r.Context(), p.BusinessID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute frequent customers", err)
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

// =============================================================================
// SCOPE HELPERS
// =============================================================================

// scopedCustomer loads the {id} customer and enforces the caller's
// business scope. Writes the error response itself on failure.
func (h *Handler) scopedCustomer(w http.ResponseWriter, r *http.Request) (*ledger.Customer, bool) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid customer id", err)
		return nil, false
	}

	customer, err := h.Store.GetCustomer(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load customer", err)
		return nil, false
	}
	if customer == nil {
		writeError(w, http.StatusNotFound, "Customer not found.", nil)
		return nil, false
	}
	if err := authorizeBusiness(principal(r), customer.BusinessID); err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return customer, true
}

// scopedEntry loads the {id} entry and enforces the caller's business
// scope.
func (h *Handler) scopedEntry(w http.ResponseWriter, r *http.Request) (*ledger.LedgerEntry, bool) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ledger entry id", err)
		return nil, false
	}

	entry, err := h.Store.GetEntry(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load ledger entry", err)
		return nil, false
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "Ledger entry not found.", nil)
		return nil, false
	}
	if err := authorizeBusiness(principal(r), entry.BusinessID); err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return entry, true
}

func idParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func thresholdParam(r *http.Request) (decimal.Decimal, error) {
	raw := r.URL.Query().Get("threshold")
	if raw == "" {
		return ledger.DefaultOutstandingThreshold, nil
	}
	return decimal.NewFromString(raw)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors to HTTP statuses. Credit errors
// keep their exact message text: it carries the available-credit figure
// callers display.
func writeDomainError(w http.ResponseWriter, err error) {
	var ice *ledger.InsufficientCreditError
	switch {
	case errors.Is(err, ledger.ErrNoAvailableCredit):
		writeError(w, http.StatusBadRequest, "Cannot debit: customer has no available credit.", nil)
	case errors.As(err, &ice):
		writeError(w, http.StatusBadRequest, ice.Error(), nil)
	case errors.Is(err, ledger.ErrInvalidEntryType), errors.Is(err, ledger.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, ledger.ErrForbidden):
		writeError(w, http.StatusForbidden, "You do not have permission to access this resource.", nil)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error", err)
	}
}
