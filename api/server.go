/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:        Request logging
  2. Recoverer:     Panic recovery (500 instead of crash)
  3. RequestID:     Unique ID per request for tracing
  4. CORS:          Cross-origin requests for frontend
  5. Authenticator: Bearer-token lookup, sets the request principal

ROUTE GROUPS:
  /api/customers/*    Customer management + per-customer views
  /api/ledger/*       Ledger entry lifecycle (write-guarded)
  /api/businesses/*   Business-wide entry listing
  /api/reports/*      Settlement and outstanding-balance reports
  /api/analytics/*    Payables / receivables / frequent customers
  /api/download/*     CSV statements

  /health is the only unauthenticated route.

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token middleware and scope checks
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/shopbook/ledger/ledger"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, store ledger.Store) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes (all authenticated)
	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticator(store))

		// Customer routes
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
			r.Get("/{id}", h.GetCustomer)
			r.Put("/{id}", h.UpdateCustomer)
			r.Delete("/{id}", h.DeleteCustomer)
			r.Get("/{id}/ledgers", h.ListCustomerLedgers)
			r.Get("/{id}/balance", h.GetCustomerBalance)
			r.Get("/{id}/payments-from-ledger", h.PaymentsFromLedger)
		})

		// Ledger entry routes (writes require ledger access)
		r.Route("/ledger", func(r chi.Router) {
			r.Post("/", requireLedgerAccess(h.CreateEntry))
			r.Get("/{id}", h.GetEntry)
			r.Put("/{id}", requireLedgerAccess(h.UpdateEntry))
			r.Delete("/{id}", requireLedgerAccess(h.DeleteEntry))
		})

		// Business routes
		r.Route("/businesses", func(r chi.Router) {
			r.Get("/{id}/ledgers", h.ListBusinessLedgers)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/partial-settlements", h.PartialSettlements)
			r.Get("/outstanding-balances", h.OutstandingBalances)
			r.Post("/outstanding-balances/send-reminders", h.SendReminders)
		})

		// Analytics routes
		r.Route("/analytics", func(r chi.Router) {
			r.Get("/payables", h.Payables)
			r.Get("/receivables", h.Receivables)
			r.Get("/frequent-customers", h.FrequentCustomers)
		})

		// CSV statement downloads
		r.Route("/download", func(r chi.Router) {
			r.Get("/customers/{id}/payments", h.DownloadPayments)
			r.Get("/partial-settlements", h.DownloadPartialSettlements)
			r.Get("/outstanding-balances", h.DownloadOutstandingBalances)
		})
	})

	return r
}
