package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	ws "github.com/Val17-ui/CACESmodule-sub000/pkg/http/ws"
)

// Broadcaster listens for published events and forwards them to WebSocket subscribers
// of the "all" topic and of the event's session topic.
type Broadcaster struct {
	redis   *redis.Client
	hub     *ws.Hub
	channel string
	logger  zerolog.Logger
}

// NewBroadcaster creates a Pub/Sub powered event broadcaster.
func NewBroadcaster(client *redis.Client, hub *ws.Hub, channel string, logger zerolog.Logger) *Broadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Broadcaster{
		redis:   client,
		hub:     hub,
		channel: channel,
		logger:  logger.With().Str("component", "event_broadcaster").Logger(),
	}
}

// Run subscribes to the event channel and blocks until the context is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.redis == nil || b.hub == nil {
		return nil
	}

	sub := b.redis.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.forward(msg.Payload)
		}
	}
}

func (b *Broadcaster) forward(payload string) {
	var evt Event
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		b.logger.Warn().Err(err).Msg("failed to decode event payload")
		return
	}

	msg, err := Message(evt)
	if err != nil {
		b.logger.Warn().Err(err).Msg("failed to marshal event WS payload")
		return
	}

	topics := []string{ws.TopicAll}
	if evt.SessionID != 0 {
		topics = append(topics, ws.SessionTopic(evt.SessionID))
	}
	if err := b.hub.Publish(msg, topics...); err != nil {
		b.logger.Warn().Err(err).Str("type", evt.Type).Msg("failed to broadcast event")
	}
}

// Message converts an event into its WebSocket frame.
func Message(evt Event) (ws.Message, error) {
	raw, err := json.Marshal(ws.EventPayload{
		Type:        evt.Type,
		SessionID:   evt.SessionID,
		IterationID: evt.IterationID,
		ImportID:    evt.ImportID,
		At:          evt.At.UTC().Format(time.RFC3339),
		Data:        evt.Data,
	})
	if err != nil {
		return ws.Message{}, err
	}
	return ws.Message{Type: ws.TypeEvent, Payload: raw}, nil
}
