/*
auth.go - Access guard middleware

PURPOSE:
  Resolves the authenticated principal and its business scope. Token
  issuance, password hashing, and OTP delivery happen outside this
  module; the guard only maps a presented bearer token to a user row
  and answers capability questions about it.

GUARD CONTRACT:
  - No/unknown token                      -> 401
  - Principal may not write the ledger    -> 403 (owner or cashier only)
  - Resource business != principal scope  -> 403

  The capability check is one function, not role branches scattered per
  handler: requireLedgerAccess wraps a handler and the per-resource
  scope check is authorizeBusiness.
*/
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopbook/ledger/ledger"
)

type contextKey string

const principalKey contextKey = "principal"

// Authenticator resolves the Authorization bearer token to a principal
// and stores it on the request context. Requests without a valid token
// are rejected here.
func Authenticator(store ledger.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			user, err := store.GetUserByToken(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to resolve principal", err)
				return
			}
			if user == nil {
				writeError(w, http.StatusUnauthorized, "Missing or invalid token", nil)
				return
			}
			ctx := context.WithValue(r.Context(), principalKey, *user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireLedgerAccess admits owners and cashier staff only.
func requireLedgerAccess(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := principal(r)
		if !p.CanWriteLedger() {
			writeError(w, http.StatusForbidden, "Owner or cashier role required", nil)
			return
		}
		next(w, r)
	}
}

// principal returns the authenticated user placed by Authenticator.
// Routes behind the middleware always have one.
func principal(r *http.Request) ledger.User {
	p, _ := r.Context().Value(principalKey).(ledger.User)
	return p
}

// authorizeBusiness is the capability check from (principal, resource
// scope) to permitted/denied.
func authorizeBusiness(p ledger.User, businessID int64) error {
	if p.BusinessID != businessID {
		return ledger.ErrForbidden
	}
	return nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
