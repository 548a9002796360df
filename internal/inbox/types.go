// Package inbox holds the domain model of the comment inbox: brands, their
// users, connected Instagram accounts, ingested comments and sent replies.
package inbox

import "time"

// Brand is a tenant of the service.
type Brand struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Category    string    `db:"category" json:"category,omitempty"`
	Description string    `db:"description" json:"description,omitempty"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// User is an account that can sign in: an administrator or a brand operator.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         string    `db:"role" json:"role"`
	BrandID      string    `db:"brand_id" json:"brand_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// InstagramAccount is a brand's connected Instagram business account together
// with the access token used to call the platform on its behalf.
type InstagramAccount struct {
	ID                string     `db:"id" json:"id"`
	BrandID           string     `db:"brand_id" json:"brand_id"`
	IGUserID          string     `db:"ig_user_id" json:"ig_user_id"`
	PageID            string     `db:"page_id" json:"page_id,omitempty"`
	Username          string     `db:"username" json:"username"`
	ProfilePictureURL string     `db:"profile_picture_url" json:"profile_picture_url,omitempty"`
	AccessToken       string     `db:"access_token" json:"-"`
	TokenExpiresAt    *time.Time `db:"token_expires_at" json:"token_expires_at,omitempty"`
	IsConnected       bool       `db:"is_connected" json:"is_connected"`
	ConnectedAt       time.Time  `db:"connected_at" json:"connected_at"`
	LastSyncAt        *time.Time `db:"last_sync_at" json:"last_sync_at,omitempty"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// Comment status values. A comment is REPLIED once at least one reply has
// been sent from the dashboard.
const (
	StatusOpen    = "OPEN"
	StatusReplied = "REPLIED"
)

// Comment is a single ingested Instagram comment. CommentID is the platform's
// native id and is unique per row; ingestion relies on that constraint for
// idempotency.
type Comment struct {
	ID        string     `db:"id" json:"id"`
	BrandID   string     `db:"brand_id" json:"brand_id"`
	AccountID string     `db:"account_id" json:"account_id"`
	CommentID string     `db:"comment_id" json:"comment_id"`
	MediaID   string     `db:"media_id" json:"media_id,omitempty"`
	ParentID  string     `db:"parent_comment_id" json:"parent_comment_id,omitempty"`
	Username  string     `db:"username" json:"username"`
	AuthorID  string     `db:"author_id" json:"author_id,omitempty"`
	Text      string     `db:"text" json:"text"`
	Timestamp time.Time  `db:"timestamp" json:"timestamp"`
	LikeCount int        `db:"like_count" json:"like_count"`
	Status    string     `db:"status" json:"status"`
	RepliedAt *time.Time `db:"replied_at" json:"replied_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Reply is a reply sent from the dashboard. ReplyID is the platform's id of
// the created reply comment. RepliedBy carries the sender's full name when
// replies are read back.
type Reply struct {
	ID        string    `db:"id" json:"id"`
	CommentID string    `db:"comment_id" json:"comment_id"`
	BrandID   string    `db:"brand_id" json:"brand_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	ReplyID   string    `db:"reply_id" json:"reply_id"`
	Text      string    `db:"text" json:"text"`
	SentAt    time.Time `db:"sent_at" json:"sent_at"`
	RepliedBy string    `db:"replied_by" json:"replied_by,omitempty"`
}

// Activity log action and target constants. The set is closed; handlers never
// invent new strings.
const (
	ActionCreate             = "CREATE"
	ActionUpdate             = "UPDATE"
	ActionEnable             = "ENABLE"
	ActionDisable            = "DISABLE"
	ActionReconnectInstagram = "RECONNECT_INSTAGRAM"

	TargetBrand = "BRAND"
)

// ActivityLog records an administrative action over a target entity.
type ActivityLog struct {
	ID         string    `db:"id" json:"id"`
	AdminID    string    `db:"admin_id" json:"admin_id"`
	Action     string    `db:"action" json:"action"`
	TargetType string    `db:"target_type" json:"target_type"`
	TargetID   string    `db:"target_id" json:"target_id"`
	Details    string    `db:"details" json:"details,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	AdminEmail string    `db:"admin_email" json:"admin_email,omitempty"`
}

// Page describes offset pagination of a listing response.
type Page struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
