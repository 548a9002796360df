package stream

import (
	"context"
	"sync"
	"time"

	"promptly.app/internal/inbox"
)

// Ingestion sources an event can originate from.
const (
	SourceWebhook = "webhook"
	SourceSync    = "sync"
)

// CommentEvent notifies subscribers about a freshly ingested comment.
type CommentEvent struct {
	BrandID    string        `json:"brand_id"`
	Source     string        `json:"source"`
	Comment    inbox.Comment `json:"comment"`
	ReceivedAt time.Time     `json:"received_at"`
}

// Stream fan-outs comment events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan CommentEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan CommentEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive events.
// The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan CommentEvent {
	ch := make(chan CommentEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt CommentEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
