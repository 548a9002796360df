package httpapi

import (
	"errors"
	"net/http"

	"promptly.app/internal/auth"
	"promptly.app/internal/inbox"
)

// handleBrandMe returns the caller's brand together with the state of its
// Instagram connection. Administrators have no brand of their own.
func (a *API) handleBrandMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	brandID, err := auth.Authorize(principal, auth.Requirement{Roles: []auth.Role{auth.RoleBrandUser}})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	brand, err := a.store.GetBrand(r.Context(), brandID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	resp := map[string]any{"brand": brand}
	account, err := a.store.GetAccountByBrand(r.Context(), brandID)
	switch {
	case err == nil:
		resp["instagram_account"] = account
	case errors.Is(err, inbox.ErrNotFound):
		resp["instagram_account"] = nil
	default:
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
