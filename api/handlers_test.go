package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopbook/ledger/api"
	"github.com/shopbook/ledger/ledger"
	"github.com/shopbook/ledger/ledger/store"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

type harness struct {
	srv      *httptest.Server
	store    *store.Memory
	owner    ledger.User
	salesman ledger.User
	customer ledger.Customer
}

// newHarness boots a server over the memory store with one business,
// an owner, a read-only salesman, and one customer.
func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemory()

	business, err := s.CreateBusiness(ctx, ledger.Business{Name: "Corner Shop"})
	require.NoError(t, err)

	owner, err := s.CreateUser(ctx, ledger.User{
		Email:      "owner@corner.shop",
		Role:       ledger.RoleOwner,
		BusinessID: business.ID,
		APIToken:   "owner-token",
		IsActive:   true,
	})
	require.NoError(t, err)

	salesman, err := s.CreateUser(ctx, ledger.User{
		Email:      "sales@corner.shop",
		Role:       ledger.RoleStaff,
		StaffRole:  ledger.StaffSalesman,
		BusinessID: business.ID,
		APIToken:   "sales-token",
		IsActive:   true,
	})
	require.NoError(t, err)

	customer, err := s.CreateCustomer(ctx, ledger.Customer{
		Name:       "Asha",
		Email:      "asha@example.com",
		Phone:      "555-0101",
		BusinessID: business.ID,
	})
	require.NoError(t, err)

	service := ledger.NewService(s, nil)
	router := api.NewRouter(api.NewHandler(s, service), s)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &harness{srv: srv, store: s, owner: owner, salesman: salesman, customer: customer}
}

func (h *harness) do(t *testing.T, token, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	var e struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	return e.Error
}

func entryBody(customerID int64, entryType, amount string) map[string]any {
	return map[string]any{
		"customer_id": customerID,
		"entry_type":  entryType,
		"amount":      amount,
	}
}

// =============================================================================
// AUTHENTICATION & AUTHORIZATION
// =============================================================================

func TestAPI_MissingOrBadToken_Unauthorized(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, "", http.MethodGet, "/api/customers", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = h.do(t, "not-a-token", http.MethodGet, "/api/customers", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_HealthNeedsNoToken(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, "", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_SalesmanCannotWriteLedger(t *testing.T) {
	// GIVEN: a staff user with the salesman role
	// WHEN: posting a ledger entry
	// THEN: 403; reads still work

	h := newHarness(t)

	resp := h.do(t, "sales-token", http.MethodPost, "/api/ledger",
		entryBody(h.customer.ID, "credit", "100"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = h.do(t, "sales-token", http.MethodGet, "/api/customers", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_OtherBusinessCustomer_Forbidden(t *testing.T) {
	// GIVEN: a customer belonging to another business
	// WHEN: the owner fetches it by id
	// THEN: 403

	h := newHarness(t)
	ctx := context.Background()
	rival, err := h.store.CreateBusiness(ctx, ledger.Business{Name: "Rival"})
	require.NoError(t, err)
	foreign, err := h.store.CreateCustomer(ctx, ledger.Customer{Name: "Theirs", BusinessID: rival.ID})
	require.NoError(t, err)

	resp := h.do(t, "owner-token", http.MethodGet, fmt.Sprintf("/api/customers/%d", foreign.ID), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// =============================================================================
// LEDGER ENTRY ENDPOINTS
// =============================================================================

func TestAPI_DebitWithoutCredit_ExactMessage(t *testing.T) {
	// GIVEN: a customer with zero balance
	// WHEN: posting a debit
	// THEN: 400 with the zero-credit message

	h := newHarness(t)
	resp := h.do(t, "owner-token", http.MethodPost, "/api/ledger",
		entryBody(h.customer.ID, "debit", "10"))

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Cannot debit: customer has no available credit.", decodeError(t, resp))
}

func TestAPI_DebitOverBalance_ReportsAvailableCredit(t *testing.T) {
	// GIVEN: credit 500, debit 200
	// WHEN: posting a debit of 400
	// THEN: 400 with the available-credit figure in the message

	h := newHarness(t)
	resp := h.do(t, "owner-token", http.MethodPost, "/api/ledger",
		entryBody(h.customer.ID, "credit", "500"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = h.do(t, "owner-token", http.MethodPost, "/api/ledger",
		entryBody(h.customer.ID, "debit", "200"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = h.do(t, "owner-token", http.MethodPost, "/api/ledger",
		entryBody(h.customer.ID, "debit", "400"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Insufficient balance. Available credit: 300", decodeError(t, resp))
}

func TestAPI_BalanceEndpoint(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, "owner-token", http.MethodPost, "/api/ledger",
		entryBody(h.customer.ID, "credit", "250.75"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = h.do(t, "owner-token", http.MethodGet,
		fmt.Sprintf("/api/customers/%d/balance", h.customer.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		CustomerID int64  `json:"customer_id"`
		Balance    string `json:"balance"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, h.customer.ID, body.CustomerID)
	assert.Equal(t, "250.75", body.Balance)
}

func TestAPI_InvalidEntryType_BadRequest(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, "owner-token", http.MethodPost, "/api/ledger",
		entryBody(h.customer.ID, "transfer", "10"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_UpdateEntry_PartialBody(t *testing.T) {
	// GIVEN: a credit of 100
	// WHEN: putting only a new amount
	// THEN: type survives, amount changes

	h := newHarness(t)
	resp := h.do(t, "owner-token", http.MethodPost, "/api/ledger",
		entryBody(h.customer.ID, "credit", "100"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	resp = h.do(t, "owner-token", http.MethodPut,
		fmt.Sprintf("/api/ledger/%d", created.ID), map[string]any{"amount": "60"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated struct {
		EntryType string `json:"entry_type"`
		Amount    string `json:"amount"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, "credit", updated.EntryType)
	assert.Equal(t, "60", updated.Amount)
}

func TestAPI_DeleteEntry(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, "owner-token", http.MethodPost, "/api/ledger",
		entryBody(h.customer.ID, "credit", "100"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	resp = h.do(t, "owner-token", http.MethodDelete,
		fmt.Sprintf("/api/ledger/%d", created.ID), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = h.do(t, "owner-token", http.MethodGet,
		fmt.Sprintf("/api/ledger/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// CUSTOMER ENDPOINTS
// =============================================================================

func TestAPI_CustomerCRUD(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, "owner-token", http.MethodPost, "/api/customers", map[string]any{
		"name":         "Bilal",
		"email":        "bilal@example.com",
		"phone_number": "555-0102",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID    int64  `json:"id"`
		Phone string `json:"phone_number"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "555-0102", created.Phone)

	resp = h.do(t, "owner-token", http.MethodPut,
		fmt.Sprintf("/api/customers/%d", created.ID), map[string]any{"notes": "wholesale"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated struct {
		Notes string `json:"notes"`
		Email string `json:"email"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, "wholesale", updated.Notes)
	assert.Equal(t, "bilal@example.com", updated.Email, "omitted fields untouched")

	resp = h.do(t, "owner-token", http.MethodDelete,
		fmt.Sprintf("/api/customers/%d", created.ID), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = h.do(t, "owner-token", http.MethodGet,
		fmt.Sprintf("/api/customers/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_CreateCustomer_RequiresName(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, "owner-token", http.MethodPost, "/api/customers", map[string]any{
		"email": "anon@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// REPORTS & DOWNLOADS
// =============================================================================

func TestAPI_PaymentsFromLedger_EmptyIs404(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, "owner-token", http.MethodGet,
		fmt.Sprintf("/api/customers/%d/payments-from-ledger", h.customer.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "No payments found for this customer.", decodeError(t, resp))
}

func TestAPI_OutstandingBalances_ThresholdQuery(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, "owner-token", http.MethodPost, "/api/ledger",
		entryBody(h.customer.ID, "credit", "300"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = h.do(t, "owner-token", http.MethodGet,
		"/api/reports/outstanding-balances?threshold=250", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rows []struct {
		CustomerID int64  `json:"customer_id"`
		Balance    string `json:"outstanding_balance"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "300", rows[0].Balance)

	// Default 10000 threshold filters it out.
	resp = h.do(t, "owner-token", http.MethodGet, "/api/reports/outstanding-balances", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
	assert.Empty(t, rows)
}

func TestAPI_PartialSettlementsCSV_Headers(t *testing.T) {
	// GIVEN: one pending customer
	// WHEN: downloading the partial-settlements statement
	// THEN: CSV content type, attachment disposition, header + data row

	h := newHarness(t)
	resp := h.do(t, "owner-token", http.MethodPost, "/api/ledger",
		entryBody(h.customer.ID, "credit", "80"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = h.do(t, "owner-token", http.MethodGet, "/api/download/partial-settlements", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "customer_id,customer_name,balance,status", lines[0])
	assert.Contains(t, lines[1], "pending")
}

func TestAPI_DownloadOutstanding_EmptyIs404(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, "owner-token", http.MethodGet, "/api/download/outstanding-balances", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_SendReminders_NoOutstanding(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, "owner-token", http.MethodPost,
		"/api/reports/outstanding-balances/send-reminders", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "No outstanding balances found.", body["message"])
}
