// Package ingest turns platform notifications and media sync results into
// stored comments. Both paths converge on the same conflict-tolerant insert,
// so redelivered or overlapping events never produce duplicate rows.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"promptly.app/internal/ids"
	"promptly.app/internal/inbox"
	"promptly.app/internal/instagram"
	"promptly.app/internal/obs"
	"promptly.app/internal/stream"
)

// fallbackUsername is stored when the platform omits the author.
const fallbackUsername = "unknown"

// MediaFetcher reads recent media with comments from the platform.
type MediaFetcher interface {
	RecentMedia(ctx context.Context, igUserID, accessToken string) ([]instagram.Media, error)
}

// Store is the persistence slice the pipeline needs.
type Store interface {
	GetAccountByBrand(ctx context.Context, brandID string) (*inbox.InstagramAccount, error)
	GetAccountByIGUserID(ctx context.Context, igUserID string) (*inbox.InstagramAccount, error)
	InsertComment(ctx context.Context, c *inbox.Comment) (bool, error)
	TouchLastSync(ctx context.Context, accountID string) error
}

// Pipeline ingests comments from webhooks and manual syncs.
type Pipeline struct {
	store   Store
	fetcher MediaFetcher
	events  *stream.Stream
	now     func() time.Time
}

// New constructs a pipeline. events may be nil when no live stream is wired.
func New(store Store, fetcher MediaFetcher, events *stream.Stream) *Pipeline {
	return &Pipeline{store: store, fetcher: fetcher, events: events, now: time.Now}
}

// WebhookPayload is the notification body the platform delivers.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

// WebhookEntry groups changes for one Instagram account.
type WebhookEntry struct {
	ID      string          `json:"id"` // ig user id of the account
	Time    int64           `json:"time"`
	Changes []WebhookChange `json:"changes"`
}

// WebhookChange is a single field change inside an entry.
type WebhookChange struct {
	Field string             `json:"field"`
	Value WebhookChangeValue `json:"value"`
}

// WebhookChangeValue carries the comment data of a "comments" change.
type WebhookChangeValue struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	From struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"from"`
	Media struct {
		ID string `json:"id"`
	} `json:"media"`
	ParentID string `json:"parent_id"`
}

// ProcessWebhook ingests every comment change in the payload. Entries for
// unknown or disconnected accounts are skipped with a log line; the method
// never fails the delivery as a whole, so the platform does not retry a
// payload we have already partially applied.
func (p *Pipeline) ProcessWebhook(ctx context.Context, payload WebhookPayload) {
	for _, entry := range payload.Entry {
		account, err := p.store.GetAccountByIGUserID(ctx, entry.ID)
		if err != nil || !account.IsConnected {
			obs.LogRequest(map[string]any{
				"level":      "warn",
				"msg":        "webhook_entry_skipped",
				"ig_user_id": entry.ID,
				"reason":     skipReason(err),
			})
			continue
		}

		receivedAt := p.now().UTC()
		if entry.Time > 0 {
			receivedAt = time.Unix(entry.Time, 0).UTC()
		}

		for _, change := range entry.Changes {
			if change.Field != "comments" || change.Value.ID == "" {
				continue
			}
			comment := inbox.Comment{
				ID:        ids.New(),
				BrandID:   account.BrandID,
				AccountID: account.ID,
				CommentID: change.Value.ID,
				MediaID:   change.Value.Media.ID,
				ParentID:  change.Value.ParentID,
				Username:  change.Value.From.Username,
				AuthorID:  change.Value.From.ID,
				Text:      change.Value.Text,
				Timestamp: receivedAt,
			}
			if _, err := p.ingest(ctx, &comment, stream.SourceWebhook); err != nil {
				obs.LogRequest(map[string]any{
					"level":      "error",
					"msg":        "webhook_comment_failed",
					"comment_id": change.Value.ID,
					"error":      err.Error(),
				})
			}
		}
	}
}

// Sync pulls recent media for the brand's account and ingests every comment
// found there. It returns the number of newly stored comments.
func (p *Pipeline) Sync(ctx context.Context, brandID string) (int, error) {
	account, err := p.store.GetAccountByBrand(ctx, brandID)
	if err != nil {
		if errors.Is(err, inbox.ErrNotFound) {
			return 0, inbox.ErrNotConnected
		}
		return 0, err
	}
	if !account.IsConnected {
		return 0, inbox.ErrNotConnected
	}

	media, err := p.fetcher.RecentMedia(ctx, account.IGUserID, account.AccessToken)
	if err != nil {
		return 0, fmt.Errorf("fetch media: %w", err)
	}

	added := 0
	for _, m := range media {
		for _, cd := range m.Comments.Data {
			if cd.ID == "" {
				continue
			}
			ts := p.now().UTC()
			if cd.Timestamp != nil {
				ts = cd.Timestamp.UTC()
			}
			comment := inbox.Comment{
				ID:        ids.New(),
				BrandID:   account.BrandID,
				AccountID: account.ID,
				CommentID: cd.ID,
				MediaID:   m.ID,
				Username:  cd.Username,
				Text:      cd.Text,
				Timestamp: ts,
				LikeCount: cd.LikeCount,
			}
			if cd.From != nil {
				comment.AuthorID = cd.From.ID
				if comment.Username == "" {
					comment.Username = cd.From.Username
				}
			}
			inserted, err := p.ingest(ctx, &comment, stream.SourceSync)
			if err != nil {
				return added, err
			}
			if inserted {
				added++
			}
		}
	}
	if err := p.store.TouchLastSync(ctx, account.ID); err != nil {
		return added, fmt.Errorf("touch last sync: %w", err)
	}
	return added, nil
}

// ingest applies defaults, stores the comment and, when a row was actually
// written, bumps metrics and notifies the stream.
func (p *Pipeline) ingest(ctx context.Context, c *inbox.Comment, source string) (bool, error) {
	if c.Username == "" {
		c.Username = fallbackUsername
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = p.now().UTC()
	}
	if c.Status == "" {
		c.Status = inbox.StatusOpen
	}

	inserted, err := p.store.InsertComment(ctx, c)
	if err != nil || !inserted {
		return false, err
	}

	obs.CommentsIngested.WithLabelValues(source).Inc()
	if p.events != nil {
		p.events.Publish(stream.CommentEvent{
			BrandID:    c.BrandID,
			Source:     source,
			Comment:    *c,
			ReceivedAt: p.now().UTC(),
		})
	}
	return true, nil
}

func skipReason(err error) string {
	if err != nil {
		return "account_unknown"
	}
	return "account_disconnected"
}
