package instagram

import (
	"encoding/json"
	"fmt"
	"time"
)

// Media is a post together with the comments the Graph API returned for it.
type Media struct {
	ID       string `json:"id"`
	Comments struct {
		Data []CommentData `json:"data"`
	} `json:"comments"`
}

// CommentData is a comment as the platform reports it. Fields may be absent
// depending on permissions; callers apply defaults.
type CommentData struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Username  string     `json:"username"`
	From      *Author    `json:"from,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	LikeCount int        `json:"like_count"`
}

// Author identifies the account that wrote a comment.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// AccountDetails is the profile of an Instagram business account.
type AccountDetails struct {
	Username          string `json:"username"`
	ProfilePictureURL string `json:"profile_picture_url"`
}

// Page is a managed Facebook page. InstagramBusinessAccount is nil when the
// page has no linked Instagram account.
type Page struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	AccessToken              string `json:"access_token"`
	InstagramBusinessAccount *struct {
		ID string `json:"id"`
	} `json:"instagram_business_account"`
}

// APIError is a non-2xx answer from the Graph API. Body keeps the raw
// upstream payload for logging and for relaying to API clients.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
	Body       string
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Message = envelope.Error.Message
		apiErr.Code = envelope.Error.Code
	}
	return apiErr
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("graph api: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("graph api: status %d", e.StatusCode)
}
