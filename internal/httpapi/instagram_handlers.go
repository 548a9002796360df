package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"promptly.app/internal/audit"
	"promptly.app/internal/auth"
	"promptly.app/internal/ids"
	"promptly.app/internal/inbox"
	"promptly.app/internal/obs"
)

// connectState ties the OAuth round-trip back to the brand and user that
// started it.
type connectState struct {
	BrandID string `json:"brand_id"`
	UserID  string `json:"user_id"`
}

func (a *API) handleConnectURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	brandID, err := auth.Authorize(principal, auth.Requirement{
		BrandID: strings.TrimSpace(r.URL.Query().Get("brand_id")),
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if brandID == "" {
		writeError(w, r, http.StatusBadRequest, "brand_id is required")
		return
	}

	raw, err := json.Marshal(connectState{BrandID: brandID, UserID: principal.UserID})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	state := base64.URLEncoding.EncodeToString(raw)
	writeJSON(w, http.StatusOK, map[string]any{"auth_url": a.ig.AuthCodeURL(state)})
}

// handleAccount returns the caller's connected Instagram account. Admins have
// no brand of their own and therefore no account here.
func (a *API) handleAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	brandID, err := auth.Authorize(principal, auth.Requirement{
		BrandID: strings.TrimSpace(r.URL.Query().Get("brand_id")),
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if brandID == "" {
		writeError(w, r, http.StatusForbidden, "admin users do not have an Instagram account")
		return
	}

	account, err := a.store.GetAccountByBrand(r.Context(), brandID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": account})
}

// handleOAuthCallback finishes the Facebook Login flow. The endpoint is
// public (the browser arrives here from Facebook) and always ends in a
// redirect to the dashboard, with the outcome in query flags.
func (a *API) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	code := r.URL.Query().Get("code")
	stateRaw := r.URL.Query().Get("state")
	if code == "" || stateRaw == "" {
		a.redirectToDashboard(w, r, "missing_code_or_state")
		return
	}
	var state connectState
	decoded, err := base64.URLEncoding.DecodeString(stateRaw)
	if err != nil || json.Unmarshal(decoded, &state) != nil || state.BrandID == "" {
		a.redirectToDashboard(w, r, "invalid_state")
		return
	}

	token, err := a.ig.ExchangeCode(r.Context(), code)
	if err != nil {
		a.logConnectFailure(state.BrandID, "code_exchange_failed", err)
		a.redirectToDashboard(w, r, "code_exchange_failed")
		return
	}

	pages, err := a.ig.Pages(r.Context(), token.AccessToken)
	if err != nil {
		a.logConnectFailure(state.BrandID, "pages_fetch_failed", err)
		a.redirectToDashboard(w, r, "pages_fetch_failed")
		return
	}
	var igUserID, pageID, pageToken string
	for _, page := range pages {
		if page.InstagramBusinessAccount != nil {
			igUserID = page.InstagramBusinessAccount.ID
			pageID = page.ID
			pageToken = page.AccessToken
			break
		}
	}
	if igUserID == "" {
		a.redirectToDashboard(w, r, "no_instagram_account")
		return
	}

	details, err := a.ig.AccountDetails(r.Context(), igUserID, pageToken)
	if err != nil {
		a.logConnectFailure(state.BrandID, "account_details_failed", err)
		a.redirectToDashboard(w, r, "account_details_failed")
		return
	}

	account := inbox.InstagramAccount{
		ID:                ids.New(),
		BrandID:           state.BrandID,
		IGUserID:          igUserID,
		PageID:            pageID,
		Username:          details.Username,
		ProfilePictureURL: details.ProfilePictureURL,
		AccessToken:       pageToken,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		account.TokenExpiresAt = &expiry
	}
	if err := a.store.UpsertAccount(r.Context(), &account); err != nil {
		a.logConnectFailure(state.BrandID, "store_failed", err)
		a.redirectToDashboard(w, r, "store_failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "instagram.connected", map[string]any{
		"brand_id":   state.BrandID,
		"ig_user_id": igUserID,
		"username":   details.Username,
	})
	http.Redirect(w, r, a.opts.FrontendURL+"/settings?instagram_connected=true", http.StatusFound)
}

func (a *API) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	brandID, err := auth.Authorize(principal, auth.Requirement{
		BrandID: strings.TrimSpace(r.URL.Query().Get("brand_id")),
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if brandID == "" {
		writeError(w, r, http.StatusBadRequest, "brand_id is required")
		return
	}

	if err := a.store.SetAccountConnected(r.Context(), brandID, false); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "instagram.disconnected", map[string]any{"brand_id": brandID})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Instagram account disconnected"})
}

func (a *API) redirectToDashboard(w http.ResponseWriter, r *http.Request, errCode string) {
	target := a.opts.FrontendURL + "/settings?instagram_error=" + url.QueryEscape(errCode)
	http.Redirect(w, r, target, http.StatusFound)
}

func (a *API) logConnectFailure(brandID, stage string, err error) {
	obs.LogRequest(map[string]any{
		"ts":       time.Now().UTC().Format(time.RFC3339Nano),
		"level":    "error",
		"msg":      "instagram_connect_failed",
		"brand_id": brandID,
		"stage":    stage,
		"error":    err.Error(),
	})
}
