// Package events publishes assembly and import lifecycle events over Redis Pub/Sub and
// fans them out to WebSocket subscribers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "caces:events"

// Event types.
const (
	TypeAssemblyCompleted    = "assembly.completed"
	TypeImportSuspended      = "import.suspended"
	TypeImportCompleted      = "import.completed"
	TypeImportCancelled      = "import.cancelled"
	TypeExportAutosaveFailed = "export.autosave_failed"
)

// Event is one lifecycle notification.
type Event struct {
	Type        string          `json:"type"`
	SessionID   int64           `json:"session_id,omitempty"`
	IterationID int64           `json:"iteration_id,omitempty"`
	ImportID    string          `json:"import_id,omitempty"`
	At          time.Time       `json:"at"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// New builds an event stamped now; data is marshalled as the event body.
func New(eventType string, sessionID int64, data interface{}) (Event, error) {
	evt := Event{Type: eventType, SessionID: sessionID, At: time.Now().UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, fmt.Errorf("marshal event data: %w", err)
		}
		evt.Data = raw
	}
	return evt, nil
}

// Publisher delivers events. Implementations must not block on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// RedisPublisher sends events as JSON on a Pub/Sub channel.
type RedisPublisher struct {
	redis   *redis.Client
	channel string
	logger  zerolog.Logger
}

func NewRedisPublisher(client *redis.Client, channel string, logger zerolog.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{
		redis:   client,
		channel: channel,
		logger:  logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.redis.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	p.logger.Debug().Str("type", evt.Type).Int64("session_id", evt.SessionID).Msg("event published")
	return nil
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
