/*
statements.go - CSV statement downloads

PURPOSE:
  Renders the reporting views as downloadable CSV statements. The rows
  come from the same aggregators the JSON endpoints use, so the two
  surfaces can never disagree.
*/
package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"
)

// =============================================================================
// CSV DOWNLOAD HANDLERS
// =============================================================================

// DownloadPayments streams the customer's ledger-derived payments as CSV.
func (h *Handler) DownloadPayments(w http.ResponseWriter, r *http.Request) {
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

	cw := beginCSV(w, fmt.Sprintf("payments_customer_%d.csv", customer.ID))
	cw.Write([]string{"ledger_entry_id", "customer_id", "amount", "status", "description", "created_at"})
	for _, p := range payments {
		cw.Write([]string{
			fmt.Sprintf("%d", p.LedgerEntryID),
			fmt.Sprintf("%d", p.CustomerID),
			p.Amount.StringFixed(2),
			p.Status,
			p.Description,
			p.CreatedAt.Format(time.RFC3339),
		})
	}
	cw.Flush()
}

// DownloadPartialSettlements streams the partial-settlement report as CSV.
func (h *Handler) DownloadPartialSettlements(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	settlements, err := h.Aggregator.PartialSettlements(r.Context(), p.BusinessID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute settlements", err)
		return
	}
	if len(settlements) == 0 {
		writeError(w, http.StatusNotFound, "No partial settlements found.", nil)
		return
	}

	cw := beginCSV(w, "partial_settlements.csv")
	cw.Write([]string{"customer_id", "customer_name", "balance", "status"})
	for _, s := range settlements {
		cw.Write([]string{
			fmt.Sprintf("%d", s.CustomerID),
			s.CustomerName,
			s.Balance.StringFixed(2),
			s.Status,
		})
	}
	cw.Flush()
}

// DownloadOutstandingBalances streams the outstanding-balance report as CSV.
func (h *Handler) DownloadOutstandingBalances(w http.ResponseWriter, r *http.Request) {
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
	if len(balances) == 0 {
		writeError(w, http.StatusNotFound, "No outstanding balances found.", nil)
		return
	}

	cw := beginCSV(w, "outstanding_balances.csv")
	cw.Write([]string{"customer_id", "customer_name", "email", "contact", "outstanding_balance"})
	for _, b := range balances {
		cw.Write([]string{
			fmt.Sprintf("%d", b.CustomerID),
			b.CustomerName,
			b.Email,
			b.Contact,
			b.OutstandingBalance.StringFixed(2),
		})
	}
	cw.Flush()
}

// beginCSV sets download headers and returns a writer over the response.
func beginCSV(w http.ResponseWriter, filename string) *csv.Writer {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.WriteHeader(http.StatusOK)
	return csv.NewWriter(w)
}
