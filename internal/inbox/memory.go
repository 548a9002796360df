package inbox

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMemory is a map-backed Store used by tests and by local runs without a
// database. All methods are safe for concurrent use.
type InMemory struct {
	mu       sync.RWMutex
	brands   map[string]*Brand
	users    map[string]*User
	accounts map[string]*InstagramAccount // keyed by account id
	comments map[string]*Comment          // keyed by row id
	byNative map[string]string            // native comment id -> row id
	replies  map[string][]*Reply          // keyed by comment row id
	activity []*ActivityLog
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		brands:   make(map[string]*Brand),
		users:    make(map[string]*User),
		accounts: make(map[string]*InstagramAccount),
		comments: make(map[string]*Comment),
		byNative: make(map[string]string),
		replies:  make(map[string][]*Reply),
	}
}

var _ Store = (*InMemory)(nil)

func (s *InMemory) CreateBrand(_ context.Context, b *Brand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	cp := *b
	s.brands[b.ID] = &cp
	return nil
}

func (s *InMemory) UpdateBrand(_ context.Context, b *Brand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.brands[b.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Name = b.Name
	cur.Category = b.Category
	cur.Description = b.Description
	cur.UpdatedAt = time.Now().UTC()
	*b = *cur
	return nil
}

func (s *InMemory) SetBrandActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.brands[id]
	if !ok {
		return ErrNotFound
	}
	cur.IsActive = active
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemory) GetBrand(_ context.Context, id string) (*Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.brands[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *cur
	return &cp, nil
}

func (s *InMemory) ListBrands(_ context.Context, f ListBrandsFilter) ([]Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Brand, 0, len(s.brands))
	for _, b := range s.brands {
		if f.Category != "" && b.Category != f.Category {
			continue
		}
		if f.IsActive != nil && b.IsActive != *f.IsActive {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) CreateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(u.Email)
	for _, cur := range s.users {
		if strings.ToLower(cur.Email) == email {
			return ErrEmailTaken
		}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *InMemory) GetUserByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range s.users {
		if strings.ToLower(u.Email) == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemory) GetUser(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *cur
	return &cp, nil
}

func (s *InMemory) ListBrandUsers(_ context.Context, brandID string) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0)
	for _, u := range s.users {
		if u.BrandID == brandID {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) UpsertAccount(_ context.Context, a *InstagramAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, cur := range s.accounts {
		if cur.BrandID == a.BrandID {
			cur.IGUserID = a.IGUserID
			cur.PageID = a.PageID
			cur.Username = a.Username
			cur.ProfilePictureURL = a.ProfilePictureURL
			cur.AccessToken = a.AccessToken
			cur.TokenExpiresAt = a.TokenExpiresAt
			cur.IsConnected = true
			cur.UpdatedAt = now
			*a = *cur
			return nil
		}
	}
	a.IsConnected = true
	if a.ConnectedAt.IsZero() {
		a.ConnectedAt = now
	}
	a.UpdatedAt = now
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *InMemory) GetAccountByBrand(_ context.Context, brandID string) (*InstagramAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.BrandID == brandID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemory) GetAccountByIGUserID(_ context.Context, igUserID string) (*InstagramAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.IGUserID == igUserID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemory) SetAccountConnected(_ context.Context, brandID string, connected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.BrandID == brandID {
			a.IsConnected = connected
			a.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrNotFound
}

func (s *InMemory) TouchLastSync(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	a.LastSyncAt = &now
	a.UpdatedAt = now
	return nil
}

func (s *InMemory) InsertComment(_ context.Context, c *Comment) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byNative[c.CommentID]; exists {
		return false, nil
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Status == "" {
		c.Status = StatusOpen
	}
	cp := *c
	s.comments[c.ID] = &cp
	s.byNative[c.CommentID] = c.ID
	return true, nil
}

func (s *InMemory) ListComments(_ context.Context, f ListCommentsFilter) ([]Comment, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]Comment, 0)
	for _, c := range s.comments {
		if c.BrandID != f.BrandID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		matched = append(matched, *c)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Timestamp.After(matched[j].Timestamp) })
	total := len(matched)
	if f.Offset >= total {
		return []Comment{}, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (s *InMemory) GetComment(_ context.Context, brandID, id string) (*Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.comments[id]
	if !ok {
		return nil, ErrNotFound
	}
	if brandID != "" && cur.BrandID != brandID {
		return nil, ErrNotFound
	}
	cp := *cur
	return &cp, nil
}

func (s *InMemory) CreateReply(_ context.Context, r *Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	comment, ok := s.comments[r.CommentID]
	if !ok {
		return ErrNotFound
	}
	if r.SentAt.IsZero() {
		r.SentAt = time.Now().UTC()
	}
	cp := *r
	s.replies[r.CommentID] = append(s.replies[r.CommentID], &cp)
	comment.Status = StatusReplied
	at := r.SentAt
	comment.RepliedAt = &at
	return nil
}

func (s *InMemory) ListReplies(_ context.Context, commentID string) ([]Reply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Reply, 0, len(s.replies[commentID]))
	for _, r := range s.replies[commentID] {
		cp := *r
		if u, ok := s.users[r.UserID]; ok {
			cp.RepliedBy = u.FullName
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	return out, nil
}

func (s *InMemory) AppendActivity(_ context.Context, l *ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	cp := *l
	s.activity = append(s.activity, &cp)
	return nil
}

func (s *InMemory) ListActivity(_ context.Context, limit, offset int) ([]ActivityLog, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ActivityLog, 0, len(s.activity))
	for _, l := range s.activity {
		cp := *l
		if u, ok := s.users[l.AdminID]; ok {
			cp.AdminEmail = u.Email
		}
		out = append(out, cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if offset >= total {
		return []ActivityLog{}, total, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}
