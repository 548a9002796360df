package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"promptly.app/internal/auth"
	"promptly.app/internal/ids"
	"promptly.app/internal/inbox"
	"promptly.app/internal/obs"
)

type createBrandRequest struct {
	Name        string                  `json:"name"`
	Category    string                  `json:"category"`
	Description string                  `json:"description"`
	User        *createBrandUserRequest `json:"user"`
}

type createBrandUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type updateBrandRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

type brandStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

func (a *API) handleAdminBrandsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.adminListBrands(w, r)
	case http.MethodPost:
		a.adminCreateBrand(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleAdminBrandResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/admin/brands/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if strings.HasSuffix(path, "/status") {
		id := strings.TrimSuffix(strings.TrimSuffix(path, "/status"), "/")
		if id == "" || strings.Contains(id, "/") {
			writeError(w, r, http.StatusNotFound, "brand not found")
			return
		}
		if r.Method != http.MethodPatch {
			methodNotAllowed(w, r, http.MethodPatch)
			return
		}
		a.adminSetBrandStatus(w, r, id)
		return
	}

	if strings.HasSuffix(path, "/instagram/reconnect") {
		id := strings.TrimSuffix(strings.TrimSuffix(path, "/instagram/reconnect"), "/")
		if id == "" || strings.Contains(id, "/") {
			writeError(w, r, http.StatusNotFound, "brand not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.adminReconnectInstagram(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.adminGetBrand(w, r, path)
	case http.MethodPut:
		a.adminUpdateBrand(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) adminListBrands(w http.ResponseWriter, r *http.Request) {
	filter := inbox.ListBrandsFilter{
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
	}
	switch strings.TrimSpace(r.URL.Query().Get("is_active")) {
	case "":
	case "true":
		v := true
		filter.IsActive = &v
	case "false":
		v := false
		filter.IsActive = &v
	default:
		writeError(w, r, http.StatusBadRequest, "is_active must be true or false")
		return
	}

	brands, err := a.store.ListBrands(r.Context(), filter)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"brands": brands})
}

func (a *API) adminCreateBrand(w http.ResponseWriter, r *http.Request) {
	var req createBrandRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}

	brand := inbox.Brand{
		ID:          ids.New(),
		Name:        name,
		Category:    strings.TrimSpace(req.Category),
		Description: strings.TrimSpace(req.Description),
		IsActive:    true,
	}
	if err := a.store.CreateBrand(r.Context(), &brand); err != nil {
		handleDomainError(w, r, err)
		return
	}

	resp := map[string]any{"brand": brand}
	if req.User != nil {
		user, err := a.createBrandUser(w, r, brand.ID, req.User)
		if err != nil {
			return
		}
		resp["user"] = user
	}

	a.recordAdminAction(r, inbox.ActionCreate, brand.ID, map[string]any{"name": brand.Name})
	w.Header().Set("Location", "/api/admin/brands/"+brand.ID)
	writeJSON(w, http.StatusCreated, resp)
}

// createBrandUser provisions the operator account for a freshly created
// brand. It writes its own error response and returns a non-nil error to
// signal the caller to stop.
func (a *API) createBrandUser(w http.ResponseWriter, r *http.Request, brandID string, req *createBrandUserRequest) (*inbox.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "user email and password are required")
		return nil, errors.New("invalid user payload")
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid password")
		return nil, err
	}
	user := inbox.User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         string(auth.RoleBrandUser),
		BrandID:      brandID,
	}
	if err := a.store.CreateUser(r.Context(), &user); err != nil {
		handleDomainError(w, r, err)
		return nil, err
	}
	return &user, nil
}

func (a *API) adminGetBrand(w http.ResponseWriter, r *http.Request, id string) {
	brand, err := a.store.GetBrand(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	resp := map[string]any{"brand": brand}
	account, err := a.store.GetAccountByBrand(r.Context(), id)
	switch {
	case err == nil:
		resp["instagram_account"] = account
	case errors.Is(err, inbox.ErrNotFound):
		resp["instagram_account"] = nil
	default:
		handleDomainError(w, r, err)
		return
	}

	users, err := a.store.ListBrandUsers(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	resp["users"] = users

	stats, err := a.brandCommentStats(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	resp["stats"] = stats

	writeJSON(w, http.StatusOK, resp)
}

// brandCommentStats counts the brand's comments per status via the listing
// queries, which keeps the store surface small.
func (a *API) brandCommentStats(ctx context.Context, brandID string) (map[string]int, error) {
	stats := map[string]int{}
	for key, status := range map[string]string{
		"total_comments":   "",
		"open_comments":    inbox.StatusOpen,
		"replied_comments": inbox.StatusReplied,
	} {
		_, total, err := a.store.ListComments(ctx, inbox.ListCommentsFilter{
			BrandID: brandID,
			Status:  status,
			Limit:   1,
		})
		if err != nil {
			return nil, err
		}
		stats[key] = total
	}
	return stats, nil
}

func (a *API) adminUpdateBrand(w http.ResponseWriter, r *http.Request, id string) {
	var req updateBrandRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}

	brand := inbox.Brand{
		ID:          id,
		Name:        name,
		Category:    strings.TrimSpace(req.Category),
		Description: strings.TrimSpace(req.Description),
	}
	if err := a.store.UpdateBrand(r.Context(), &brand); err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.recordAdminAction(r, inbox.ActionUpdate, brand.ID, map[string]any{"name": brand.Name})
	writeJSON(w, http.StatusOK, map[string]any{"brand": brand})
}

func (a *API) adminSetBrandStatus(w http.ResponseWriter, r *http.Request, id string) {
	var req brandStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.IsActive == nil {
		writeError(w, r, http.StatusBadRequest, "is_active is required")
		return
	}

	if err := a.store.SetBrandActive(r.Context(), id, *req.IsActive); err != nil {
		handleDomainError(w, r, err)
		return
	}

	action := inbox.ActionDisable
	if *req.IsActive {
		action = inbox.ActionEnable
	}
	a.recordAdminAction(r, action, id, nil)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "is_active": *req.IsActive})
}

// adminReconnectInstagram flags the brand's account as disconnected so the
// brand has to run the OAuth flow again with fresh credentials.
func (a *API) adminReconnectInstagram(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := a.store.GetBrand(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	if err := a.store.SetAccountConnected(r.Context(), id, false); err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.recordAdminAction(r, inbox.ActionReconnectInstagram, id, nil)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Instagram reconnection requested"})
}

func (a *API) handleAdminLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 50, 1, 100)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit "+err.Error())
		return
	}
	offset, err := parsePositiveInt(r.URL.Query().Get("offset"), 0, 0, 1<<30)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "offset "+err.Error())
		return
	}

	logs, total, err := a.store.ListActivity(r.Context(), limit, offset)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"logs":       logs,
		"pagination": inbox.Page{Total: total, Limit: limit, Offset: offset},
	})
}

func (a *API) recordAdminAction(r *http.Request, action, targetID string, details map[string]any) {
	payload := ""
	if len(details) > 0 {
		if data, err := json.Marshal(details); err == nil {
			payload = string(data)
		}
	}
	if err := a.recorder.Record(r.Context(), action, inbox.TargetBrand, targetID, payload); err != nil {
		obs.LogRequest(map[string]any{
			"level":  "error",
			"msg":    "activity_log_failed",
			"action": action,
			"error":  err.Error(),
		})
	}
}
