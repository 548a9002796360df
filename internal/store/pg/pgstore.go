package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"promptly.app/internal/inbox"
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

type Store struct {
	db *sqlx.DB
}

var _ inbox.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection. Used by tests.
func NewWithDB(db *sqlx.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sqlx.DB { return s.db }

// Ping verifies database connectivity for readiness checks.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// --- brands ---

func (s *Store) CreateBrand(ctx context.Context, b *inbox.Brand) error {
	err := s.db.QueryRowxContext(ctx, `
		insert into brands(id, name, category, description, is_active)
		values ($1,$2,$3,$4,$5)
		returning created_at, updated_at
	`, b.ID, b.Name, b.Category, b.Description, b.IsActive).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create brand: %w", err)
	}
	return nil
}

func (s *Store) UpdateBrand(ctx context.Context, b *inbox.Brand) error {
	err := s.db.QueryRowxContext(ctx, `
		update brands
		set name=$2, category=$3, description=$4, updated_at=now()
		where id=$1
		returning is_active, created_at, updated_at
	`, b.ID, b.Name, b.Category, b.Description).Scan(&b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return inbox.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update brand: %w", err)
	}
	return nil
}

func (s *Store) SetBrandActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		update brands set is_active=$2, updated_at=now() where id=$1
	`, id, active)
	if err != nil {
		return fmt.Errorf("set brand active: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return inbox.ErrNotFound
	}
	return nil
}

func (s *Store) GetBrand(ctx context.Context, id string) (*inbox.Brand, error) {
	var b inbox.Brand
	err := s.db.GetContext(ctx, &b, `
		select id, name, category, description, is_active, created_at, updated_at
		from brands where id=$1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inbox.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get brand: %w", err)
	}
	return &b, nil
}

func (s *Store) ListBrands(ctx context.Context, f inbox.ListBrandsFilter) ([]inbox.Brand, error) {
	where := []string{"true"}
	args := []any{}
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category=$%d", len(args)))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		where = append(where, fmt.Sprintf("is_active=$%d", len(args)))
	}
	query := `
		select id, name, category, description, is_active, created_at, updated_at
		from brands where ` + strings.Join(where, " and ") + `
		order by created_at desc`

	brands := []inbox.Brand{}
	if err := s.db.SelectContext(ctx, &brands, query, args...); err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	return brands, nil
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, u *inbox.User) error {
	err := s.db.QueryRowxContext(ctx, `
		insert into users(id, email, password_hash, full_name, role, brand_id)
		values ($1, lower($2), $3, $4, $5, nullif($6,''))
		returning created_at
	`, u.ID, u.Email, u.PasswordHash, u.FullName, u.Role, u.BrandID).Scan(&u.CreatedAt)
	if isUniqueViolation(err) {
		return inbox.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*inbox.User, error) {
	var u inbox.User
	err := s.db.GetContext(ctx, &u, `
		select id, email, password_hash, full_name, role, coalesce(brand_id,'') as brand_id, created_at
		from users where email=lower($1)
	`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inbox.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*inbox.User, error) {
	var u inbox.User
	err := s.db.GetContext(ctx, &u, `
		select id, email, password_hash, full_name, role, coalesce(brand_id,'') as brand_id, created_at
		from users where id=$1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inbox.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *Store) ListBrandUsers(ctx context.Context, brandID string) ([]inbox.User, error) {
	users := []inbox.User{}
	err := s.db.SelectContext(ctx, &users, `
		select id, email, password_hash, full_name, role, coalesce(brand_id,'') as brand_id, created_at
		from users where brand_id=$1
		order by created_at asc
	`, brandID)
	if err != nil {
		return nil, fmt.Errorf("list brand users: %w", err)
	}
	return users, nil
}

// --- instagram accounts ---

func (s *Store) UpsertAccount(ctx context.Context, a *inbox.InstagramAccount) error {
	err := s.db.QueryRowxContext(ctx, `
		insert into instagram_accounts(id, brand_id, ig_user_id, page_id, username, profile_picture_url, access_token, token_expires_at, is_connected)
		values ($1,$2,$3,$4,$5,$6,$7,$8,true)
		on conflict (brand_id) do update set
			ig_user_id=excluded.ig_user_id,
			page_id=excluded.page_id,
			username=excluded.username,
			profile_picture_url=excluded.profile_picture_url,
			access_token=excluded.access_token,
			token_expires_at=excluded.token_expires_at,
			is_connected=true,
			updated_at=now()
		returning id, connected_at, updated_at
	`, a.ID, a.BrandID, a.IGUserID, a.PageID, a.Username, a.ProfilePictureURL, a.AccessToken, a.TokenExpiresAt).
		Scan(&a.ID, &a.ConnectedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	a.IsConnected = true
	return nil
}

func (s *Store) GetAccountByBrand(ctx context.Context, brandID string) (*inbox.InstagramAccount, error) {
	return s.getAccount(ctx, "brand_id", brandID)
}

func (s *Store) GetAccountByIGUserID(ctx context.Context, igUserID string) (*inbox.InstagramAccount, error) {
	return s.getAccount(ctx, "ig_user_id", igUserID)
}

func (s *Store) getAccount(ctx context.Context, column, value string) (*inbox.InstagramAccount, error) {
	var a inbox.InstagramAccount
	err := s.db.GetContext(ctx, &a, `
		select id, brand_id, ig_user_id, coalesce(page_id,'') as page_id, username,
		       coalesce(profile_picture_url,'') as profile_picture_url,
		       access_token, token_expires_at, is_connected, connected_at, last_sync_at, updated_at
		from instagram_accounts where `+column+`=$1
	`, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inbox.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

func (s *Store) SetAccountConnected(ctx context.Context, brandID string, connected bool) error {
	res, err := s.db.ExecContext(ctx, `
		update instagram_accounts set is_connected=$2, updated_at=now() where brand_id=$1
	`, brandID, connected)
	if err != nil {
		return fmt.Errorf("set account connected: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return inbox.ErrNotFound
	}
	return nil
}

func (s *Store) TouchLastSync(ctx context.Context, accountID string) error {
	res, err := s.db.ExecContext(ctx, `
		update instagram_accounts set last_sync_at=now(), updated_at=now() where id=$1
	`, accountID)
	if err != nil {
		return fmt.Errorf("touch last sync: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return inbox.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
