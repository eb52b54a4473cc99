package ws

import (
	"encoding/json"
	"strconv"
)

// MessageType constants for WebSocket protocol.
const (
	// Client -> Server
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"

	// Server -> Client
	TypeSubscribed = "subscribed"
	TypeEvent      = "event"
	TypeError      = "error"
	TypePong       = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// SessionTopic names the topic carrying events for one training session.
func SessionTopic(sessionID int64) string {
	return "session:" + strconv.FormatInt(sessionID, 10)
}

// Client Messages (incoming)

// SubscribePayload selects a session; a zero SessionID means every session.
type SubscribePayload struct {
	SessionID int64 `json:"session_id,omitempty"`
}

// Server Messages (outgoing)

type SubscribedPayload struct {
	Topic string `json:"topic"`
}

type EventPayload struct {
	Type        string          `json:"type"`
	SessionID   int64           `json:"session_id,omitempty"`
	IterationID int64           `json:"iteration_id,omitempty"`
	ImportID    string          `json:"import_id,omitempty"`
	At          string          `json:"at"`
	Data        json.RawMessage `json:"data,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
