// Package audit records every sensitive action as an immutable fact. Writes
// are best-effort: a failed audit insert is reported to operational logging
// and never alters the outcome of the action it describes.
package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"medivault.org/internal/ids"
	"medivault.org/internal/obs"
)

// Action is the closed verb set for audit entries.
type Action string

const (
	ActionCreate       Action = "create"
	ActionRead         Action = "read"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionDownload     Action = "download"
	ActionLogin        Action = "login"
	ActionLogout       Action = "logout"
	ActionAccessDenied Action = "access_denied"
)

// Entry is one append-only audit record. ActorID is empty for unauthenticated
// events such as a failed login. CreatedAt is server-assigned on write.
type Entry struct {
	ID           string         `json:"id"`
	ActorID      string         `json:"actor_id,omitempty"`
	Action       Action         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	Details      map[string]any `json:"details"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ListFilter narrows an audit query. Zero values mean "any".
type ListFilter struct {
	ActorID      string
	Action       Action
	ResourceType string
	From         time.Time
	To           time.Time
	Page         int
	Limit        int
}

// ListResult is one page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Page    int     `json:"page"`
	Limit   int     `json:"limit"`
	Total   int     `json:"total"`
}

// Store persists entries. Append only: nothing in the core updates or deletes
// a written row.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter ListFilter) (ListResult, error)
}

// Recorder wraps a Store with the best-effort write contract.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder constructs a Recorder.
func NewRecorder(store Store) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	return &Recorder{store: store, now: time.Now}, nil
}

// Record appends one entry. Request origin fields are filled from the context
// when the caller did not set them. Errors are swallowed after operational
// logging: availability of the business operation wins over guaranteed audit
// delivery, but every call site attempts the write exactly once.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}
	if entry.Details == nil {
		entry.Details = map[string]any{}
	}
	meta := MetaFromContext(ctx)
	if entry.IPAddress == "" {
		entry.IPAddress = meta.IPAddress
	}
	if entry.UserAgent == "" {
		entry.UserAgent = meta.UserAgent
	}
	if meta.RequestID != "" {
		if _, ok := entry.Details["request_id"]; !ok {
			entry.Details["request_id"] = meta.RequestID
		}
	}

	// Detach from the request context so a cancelled request cannot abort
	// the audit write mid-flight, but keep a bound on the insert itself.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.store.Append(writeCtx, &entry); err != nil {
		obs.LogError("audit write failed", map[string]any{
			"action":        string(entry.Action),
			"resource_type": entry.ResourceType,
			"resource_id":   entry.ResourceID,
			"actor_id":      entry.ActorID,
			"error":         err.Error(),
		})
	}
}

// List queries the trail. Read path only; the write contract above does not
// apply here and store errors propagate to the caller.
func (r *Recorder) List(ctx context.Context, filter ListFilter) (ListResult, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return r.store.List(ctx, filter)
}

// RequestMeta carries caller network origin through the context from the HTTP
// layer to recording call sites.
type RequestMeta struct {
	RequestID string
	IPAddress string
	UserAgent string
}

type metaContextKey struct{}

// WithMeta attaches request metadata to the context.
func WithMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, metaContextKey{}, meta)
}

// MetaFromContext returns the attached request metadata, if any.
func MetaFromContext(ctx context.Context) RequestMeta {
	if ctx == nil {
		return RequestMeta{}
	}
	if v, ok := ctx.Value(metaContextKey{}).(RequestMeta); ok {
		return v
	}
	return RequestMeta{}
}

// ParseAction validates a query-supplied action verb.
func ParseAction(raw string) (Action, bool) {
	action := Action(strings.TrimSpace(strings.ToLower(raw)))
	switch action {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete,
		ActionDownload, ActionLogin, ActionLogout, ActionAccessDenied:
		return action, true
	}
	return "", false
}
