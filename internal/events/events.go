package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// Channels carrying the archive's domain events.
const (
	ChannelFanworkCreated    = "fanworks.created"
	ChannelReportCreated     = "reports.created"
	ChannelModerationActions = "moderation.actions"
)

// Event is the JSON envelope published to every channel.
type Event struct {
	// Type names what happened, e.g. "fanwork.created" or "user.banned".
	Type string `json:"type"`
	// ActorID is the user who caused the event.
	ActorID int `json:"actor_id,omitempty"`
	// TargetType and TargetID locate what the event acted on.
	TargetType string `json:"target_type,omitempty"`
	TargetID   int    `json:"target_id,omitempty"`
	// Detail carries free-form context such as a moderation reason.
	Detail string `json:"detail,omitempty"`
	// OccurredAt is stamped at publish time.
	OccurredAt time.Time `json:"occurred_at"`
}

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Bus wraps a backend with a stable API. A nil Bus drops every event, which
// is how deployments without a broker run.
type Bus struct {
	backend Backend
}

// New constructs a Bus for the provided backend.
func New(backend Backend) *Bus {
	return &Bus{backend: backend}
}

// Emit publishes a domain event to the named channel. Events are best-effort
// side effects: failures are logged and swallowed so the triggering request
// still succeeds.
func (b *Bus) Emit(ctx context.Context, channel string, event Event) {
	if b == nil || b.backend == nil {
		return
	}
	event.OccurredAt = time.Now()
	data, err := json.Marshal(event)
	if err != nil {
		slog.Warn("failed to encode event", "channel", channel, "type", event.Type, "error", err)
		return
	}
	if _, err := b.backend.Publish(ctx, channel, data, map[string]string{"type": event.Type}); err != nil {
		slog.Warn("failed to publish event", "channel", channel, "type", event.Type, "error", err)
	}
}

// Subscribe consumes messages from the named channel. It fails when the bus
// has no backend, since there is nothing to consume from.
func (b *Bus) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if b == nil || b.backend == nil {
		return errors.New("no events backend configured")
	}
	return b.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (b *Bus) Close() error {
	if b == nil || b.backend == nil {
		return nil
	}
	return b.backend.Close()
}
