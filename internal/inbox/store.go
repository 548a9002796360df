package inbox

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the requested row does not exist or is outside
	// the caller's scope.
	ErrNotFound = errors.New("inbox: not found")
	// ErrEmailTaken indicates a user with the same email already exists.
	ErrEmailTaken = errors.New("inbox: email already registered")
	// ErrNotConnected indicates the brand has no usable Instagram account.
	ErrNotConnected = errors.New("inbox: instagram account not connected")
)

// ListCommentsFilter narrows a comment listing. BrandID is mandatory:
// comments are never listed across tenants. Status, when set, must be one of
// the Status* constants.
type ListCommentsFilter struct {
	BrandID string
	Status  string
	Limit   int
	Offset  int
}

// ListBrandsFilter narrows an administrative brand listing.
type ListBrandsFilter struct {
	Category string
	IsActive *bool
}

// BrandStore persists tenants.
type BrandStore interface {
	CreateBrand(ctx context.Context, b *Brand) error
	UpdateBrand(ctx context.Context, b *Brand) error
	SetBrandActive(ctx context.Context, id string, active bool) error
	GetBrand(ctx context.Context, id string) (*Brand, error)
	ListBrands(ctx context.Context, f ListBrandsFilter) ([]Brand, error)
}

// UserStore persists sign-in accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	ListBrandUsers(ctx context.Context, brandID string) ([]User, error)
}

// AccountStore persists connected Instagram accounts.
type AccountStore interface {
	// UpsertAccount inserts the account or, when the brand already has one,
	// refreshes its identity and token in place.
	UpsertAccount(ctx context.Context, a *InstagramAccount) error
	GetAccountByBrand(ctx context.Context, brandID string) (*InstagramAccount, error)
	GetAccountByIGUserID(ctx context.Context, igUserID string) (*InstagramAccount, error)
	SetAccountConnected(ctx context.Context, brandID string, connected bool) error
	// TouchLastSync stamps the account after a completed media pull.
	TouchLastSync(ctx context.Context, accountID string) error
}

// CommentStore persists ingested comments.
type CommentStore interface {
	// InsertComment stores the comment unless a row with the same native
	// comment id already exists. It reports whether a row was written.
	InsertComment(ctx context.Context, c *Comment) (bool, error)
	ListComments(ctx context.Context, f ListCommentsFilter) ([]Comment, int, error)
	GetComment(ctx context.Context, brandID, id string) (*Comment, error)
}

// ReplyStore persists sent replies.
type ReplyStore interface {
	// CreateReply stores the reply and marks the parent comment replied in
	// one transaction.
	CreateReply(ctx context.Context, r *Reply) error
	ListReplies(ctx context.Context, commentID string) ([]Reply, error)
}

// ActivityLogStore persists the administrative audit trail.
type ActivityLogStore interface {
	AppendActivity(ctx context.Context, l *ActivityLog) error
	ListActivity(ctx context.Context, limit, offset int) ([]ActivityLog, int, error)
}

// Store is the full persistence surface the HTTP layer is wired against.
type Store interface {
	BrandStore
	UserStore
	AccountStore
	CommentStore
	ReplyStore
	ActivityLogStore
}
