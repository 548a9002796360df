package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"promptly.app/internal/inbox"
)

// InsertComment relies on the unique constraint over the native comment id
// for idempotency: a duplicate simply affects zero rows, no error, no
// read-before-write race.
func (s *Store) InsertComment(ctx context.Context, c *inbox.Comment) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		insert into comments(id, brand_id, account_id, comment_id, media_id, parent_comment_id, username, author_id, text, "timestamp", like_count, status)
		values ($1,$2,$3,$4,nullif($5,''),nullif($6,''),$7,$8,$9,$10,$11,$12)
		on conflict (comment_id) do nothing
	`, c.ID, c.BrandID, c.AccountID, c.CommentID, c.MediaID, c.ParentID, c.Username, c.AuthorID, c.Text, c.Timestamp, c.LikeCount, commentStatus(c))
	if err != nil {
		return false, fmt.Errorf("insert comment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func commentStatus(c *inbox.Comment) string {
	if c.Status == "" {
		return inbox.StatusOpen
	}
	return c.Status
}

func (s *Store) ListComments(ctx context.Context, f inbox.ListCommentsFilter) ([]inbox.Comment, int, error) {
	if f.BrandID == "" {
		return nil, 0, errors.New("list comments: brand id is required")
	}
	where := []string{"brand_id=$1"}
	args := []any{f.BrandID}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	cond := strings.Join(where, " and ")

	var total int
	if err := s.db.GetContext(ctx, &total, `select count(*) from comments where `+cond, args...); err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	query := `
		select id, brand_id, account_id, comment_id, coalesce(media_id,'') as media_id,
		       coalesce(parent_comment_id,'') as parent_comment_id, username,
		       coalesce(author_id,'') as author_id, text,
		       "timestamp", like_count, status, replied_at, created_at
		from comments where ` + cond + fmt.Sprintf(`
		order by "timestamp" desc
		limit $%d offset $%d`, len(args)-1, len(args))

	comments := []inbox.Comment{}
	if err := s.db.SelectContext(ctx, &comments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	return comments, total, nil
}

func (s *Store) GetComment(ctx context.Context, brandID, id string) (*inbox.Comment, error) {
	query := `
		select id, brand_id, account_id, comment_id, coalesce(media_id,'') as media_id,
		       coalesce(parent_comment_id,'') as parent_comment_id, username,
		       coalesce(author_id,'') as author_id, text,
		       "timestamp", like_count, status, replied_at, created_at
		from comments where id=$1`
	args := []any{id}
	if brandID != "" {
		query += " and brand_id=$2"
		args = append(args, brandID)
	}

	var c inbox.Comment
	err := s.db.GetContext(ctx, &c, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inbox.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &c, nil
}

// CreateReply stores the reply and flips the parent comment to replied in one
// transaction, so a crash between the two writes cannot leave them split.
func (s *Store) CreateReply(ctx context.Context, r *inbox.Reply) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.QueryRowxContext(ctx, `
		insert into replies(id, comment_id, brand_id, user_id, reply_id, text)
		values ($1,$2,$3,$4,$5,$6)
		returning sent_at
	`, r.ID, r.CommentID, r.BrandID, r.UserID, r.ReplyID, r.Text).Scan(&r.SentAt); err != nil {
		return fmt.Errorf("insert reply: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		update comments set status=$2, replied_at=$3 where id=$1
	`, r.CommentID, inbox.StatusReplied, r.SentAt)
	if err != nil {
		return fmt.Errorf("mark comment replied: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return inbox.ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) ListReplies(ctx context.Context, commentID string) ([]inbox.Reply, error) {
	replies := []inbox.Reply{}
	err := s.db.SelectContext(ctx, &replies, `
		select r.id, r.comment_id, r.brand_id, r.user_id, r.reply_id, r.text, r.sent_at,
		       coalesce(u.full_name,'') as replied_by
		from replies r
		left join users u on u.id = r.user_id
		where r.comment_id=$1
		order by r.sent_at desc
	`, commentID)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	return replies, nil
}

// --- activity log ---

func (s *Store) AppendActivity(ctx context.Context, l *inbox.ActivityLog) error {
	err := s.db.QueryRowxContext(ctx, `
		insert into activity_logs(id, admin_id, action, target_type, target_id, details)
		values ($1,$2,$3,$4,$5,nullif($6,''))
		returning created_at
	`, l.ID, l.AdminID, l.Action, l.TargetType, l.TargetID, l.Details).Scan(&l.CreatedAt)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

func (s *Store) ListActivity(ctx context.Context, limit, offset int) ([]inbox.ActivityLog, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, `select count(*) from activity_logs`); err != nil {
		return nil, 0, fmt.Errorf("count activity: %w", err)
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	logs := []inbox.ActivityLog{}
	err := s.db.SelectContext(ctx, &logs, `
		select l.id, l.admin_id, l.action, l.target_type, l.target_id,
		       coalesce(l.details,'') as details, l.created_at,
		       coalesce(u.email,'') as admin_email
		from activity_logs l
		left join users u on u.id = l.admin_id
		order by l.created_at desc
		limit $1 offset $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list activity: %w", err)
	}
	return logs, total, nil
}
