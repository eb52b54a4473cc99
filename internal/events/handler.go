package events

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	httperrors "github.com/Val17-ui/CACESmodule-sub000/pkg/http/errors"
	ws "github.com/Val17-ui/CACESmodule-sub000/pkg/http/ws"
)

// Handler serves the /ws/events stream.
type Handler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler creates the event stream handler.
func NewHandler(hub *ws.Hub, upgrader websocket.Upgrader, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:      hub,
		upgrader: upgrader,
		logger:   logger.With().Str("component", "event_stream").Logger(),
	}
}

// ServeHTTP upgrades the connection. The optional session_id query parameter
// subscribes to one session instead of every event.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	topic := ws.TopicAll
	if raw := r.URL.Query().Get("session_id"); raw != "" {
		sessionID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || sessionID <= 0 {
			httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidRequest, "session_id must be a positive integer", "session_id", nil)
			return
		}
		topic = ws.SessionTopic(sessionID)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.HandleConnection(conn, topic)
}

// HandleConnection registers conn under topic and serves it until it closes.
func (h *Handler) HandleConnection(conn *websocket.Conn, topic string) {
	id := uuid.New()
	wsConn := ws.NewConnection(conn, h.logger.With().Str("connection_id", id.String()).Logger())
	h.hub.RegisterConnection(id, wsConn)
	h.hub.Subscribe(topic, id)

	go wsConn.WritePump()
	h.send(id, ws.TypeSubscribed, ws.SubscribedPayload{Topic: topic})

	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(id, msg)
	})

	h.hub.UnregisterConnection(id)
}

func (h *Handler) handleMessage(id uuid.UUID, msg ws.Message) error {
	switch msg.Type {
	case ws.TypeSubscribe, ws.TypeUnsubscribe:
		var req ws.SubscribePayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				return h.sendError(id, httperrors.ErrCodeInvalidPayload, "Invalid subscription payload")
			}
		}
		topic := ws.TopicAll
		if req.SessionID > 0 {
			topic = ws.SessionTopic(req.SessionID)
		}
		if msg.Type == ws.TypeSubscribe {
			h.hub.Subscribe(topic, id)
			return h.send(id, ws.TypeSubscribed, ws.SubscribedPayload{Topic: topic})
		}
		h.hub.Unsubscribe(topic, id)
		return nil
	case ws.TypePing:
		return h.hub.SendTo(id, ws.Message{Type: ws.TypePong, RequestID: msg.RequestID})
	default:
		return h.sendError(id, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (h *Handler) send(id uuid.UUID, msgType string, payload interface{}) error {
	msg := ws.Message{Type: msgType}
	msg.Payload, _ = json.Marshal(payload)
	return h.hub.SendTo(id, msg)
}

func (h *Handler) sendError(id uuid.UUID, code, message string) error {
	return h.send(id, ws.TypeError, ws.ErrorPayload{Code: code, Message: message})
}
