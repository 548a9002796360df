package httpapi

import (
	"net/http"
	"strings"

	"promptly.app/internal/audit"
	"promptly.app/internal/auth"
	"promptly.app/internal/ids"
	"promptly.app/internal/inbox"
	"promptly.app/internal/obs"
)

type listCommentsResponse struct {
	Comments   []inbox.Comment `json:"comments"`
	Pagination inbox.Page      `json:"pagination"`
}

type replyRequest struct {
	Text string `json:"text"`
}

func (a *API) handleCommentsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listComments(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) handleCommentResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/comments/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if strings.HasSuffix(path, "/reply") {
		id := strings.TrimSuffix(strings.TrimSuffix(path, "/reply"), "/")
		if id == "" {
			writeError(w, r, http.StatusNotFound, "comment not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.replyToComment(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getComment(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) listComments(w http.ResponseWriter, r *http.Request) {
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

	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 20, 1, 100)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit "+err.Error())
		return
	}
	offset, err := parsePositiveInt(r.URL.Query().Get("offset"), 0, 0, 1<<30)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "offset "+err.Error())
		return
	}

	filter := inbox.ListCommentsFilter{BrandID: brandID, Limit: limit, Offset: offset}
	switch status := strings.TrimSpace(r.URL.Query().Get("status")); status {
	case "", inbox.StatusOpen, inbox.StatusReplied:
		filter.Status = status
	default:
		writeError(w, r, http.StatusBadRequest, "status must be OPEN or REPLIED")
		return
	}

	comments, total, err := a.store.ListComments(r.Context(), filter)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listCommentsResponse{
		Comments:   comments,
		Pagination: inbox.Page{Total: total, Limit: limit, Offset: offset},
	})
}

func (a *API) getComment(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	brandID, err := auth.Authorize(principal, auth.Requirement{})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	comment, err := a.store.GetComment(r.Context(), brandID, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	replies, err := a.store.ListReplies(r.Context(), comment.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"comment": comment,
		"replies": replies,
	})
}

func (a *API) replyToComment(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	brandID, err := auth.Authorize(principal, auth.Requirement{})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	var req replyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, r, http.StatusBadRequest, "reply text is required")
		return
	}

	comment, err := a.store.GetComment(r.Context(), brandID, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	account, err := a.store.GetAccountByBrand(r.Context(), comment.BrandID)
	if err != nil {
		handleDomainError(w, r, inbox.ErrNotConnected)
		return
	}
	if !account.IsConnected {
		handleDomainError(w, r, inbox.ErrNotConnected)
		return
	}

	// The platform call comes first: nothing is stored unless it succeeds.
	replyID, err := a.ig.PostReply(r.Context(), comment.CommentID, account.AccessToken, text)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	reply := inbox.Reply{
		ID:        ids.New(),
		CommentID: comment.ID,
		BrandID:   comment.BrandID,
		UserID:    principal.UserID,
		ReplyID:   replyID,
		Text:      text,
	}
	if err := a.store.CreateReply(r.Context(), &reply); err != nil {
		handleDomainError(w, r, err)
		return
	}

	obs.RepliesSent.Inc()
	_ = audit.LogEvent(r.Context(), "inbox.reply.sent", map[string]any{
		"comment_id": comment.ID,
		"reply_id":   replyID,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Reply sent successfully",
		"reply_id": replyID,
	})
}

func (a *API) handleSync(w http.ResponseWriter, r *http.Request) {
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

	added, err := a.pipeline.Sync(r.Context(), brandID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "Sync completed",
		"comments_added": added,
	})
}
