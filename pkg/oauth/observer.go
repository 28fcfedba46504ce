package oauth

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
)

// Lifecycle event types emitted during the OAuth flow
const (
	EventAuthorizeStarted    = "authorize.started"
	EventCallbackSucceeded   = "oauth.callback.succeeded"
	EventCallbackFailed      = "oauth.callback.failed"
	EventCredentialsConsumed = "credentials.consumed"
	EventItemsLoaded         = "items.loaded"
)

// Event is a lifecycle event for an OAuth flow or item fetch
type Event struct {
	Type        string         `json:"type"`
	Integration string         `json:"integration"`
	UserID      string         `json:"user_id,omitempty"`
	OrgID       string         `json:"org_id,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Observer receives lifecycle events. Implementations must not block the
// request path; slow sinks should buffer or drop.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
	OnError(ctx context.Context, event Event, err error)
}

// NopObserver discards all events
type NopObserver struct{}

func (NopObserver) OnEvent(context.Context, Event)        {}
func (NopObserver) OnError(context.Context, Event, error) {}

// LogObserver writes events through the service logger
type LogObserver struct {
	logger ectologger.Logger
}

// NewLogObserver creates an observer backed by the service logger
func NewLogObserver(logger ectologger.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) OnEvent(ctx context.Context, event Event) {
	o.logger.WithContext(ctx).WithFields(eventFields(event)).Infof("Integration event: %s", event.Type)
}

func (o *LogObserver) OnError(ctx context.Context, event Event, err error) {
	o.logger.WithContext(ctx).WithError(err).WithFields(eventFields(event)).Errorf("Integration event failed: %s", event.Type)
}

func eventFields(event Event) map[string]any {
	fields := map[string]any{
		"event_type":  event.Type,
		"integration": event.Integration,
		"user_id":     event.UserID,
		"org_id":      event.OrgID,
	}
	for k, v := range event.Details {
		fields[k] = v
	}
	return fields
}

// MultiObserver fans events out to several observers in order
type MultiObserver []Observer

func (m MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, o := range m {
		o.OnEvent(ctx, event)
	}
}

func (m MultiObserver) OnError(ctx context.Context, event Event, err error) {
	for _, o := range m {
		o.OnError(ctx, event, err)
	}
}
