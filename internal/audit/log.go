package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"promptly.app/internal/auth"
	"promptly.app/internal/ids"
	"promptly.app/internal/inbox"
	"promptly.app/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// requestIDFromContext extracts the audit request id from context if present.
func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit log entry enriched with request and user context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if principal, ok := auth.PrincipalFromContext(ctx); ok {
		entry["user_id"] = principal.UserID
		if principal.BrandID != "" {
			entry["brand_id"] = principal.BrandID
		}
	}
	if len(fields) > 0 {
		copyFields := make(map[string]any, len(fields))
		for k, v := range fields {
			copyFields[k] = v
		}
		entry["fields"] = copyFields
	} else {
		entry["fields"] = map[string]any{}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}

// Recorder persists administrative actions as activity log rows and mirrors
// them to the audit log stream.
type Recorder struct {
	store inbox.ActivityLogStore
}

// NewRecorder wraps the given store.
func NewRecorder(store inbox.ActivityLogStore) *Recorder {
	return &Recorder{store: store}
}

// Record stores the action performed by the authenticated administrator. The
// row is written synchronously so the trail never lags the action it records.
func (r *Recorder) Record(ctx context.Context, action, targetType, targetID, details string) error {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return errors.New("audit: no authenticated principal in context")
	}
	entry := inbox.ActivityLog{
		ID:         ids.New(),
		AdminID:    principal.UserID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.store.AppendActivity(ctx, &entry); err != nil {
		return err
	}
	_ = LogEvent(ctx, "admin.action", map[string]any{
		"action":      action,
		"target_type": targetType,
		"target_id":   targetID,
	})
	return nil
}
