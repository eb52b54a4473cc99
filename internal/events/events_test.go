package events

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ws "github.com/Val17-ui/CACESmodule-sub000/pkg/http/ws"
)

func TestNewEventMarshalsData(t *testing.T) {
	evt, err := New(TypeImportSuspended, 12, map[string]int{"unknown_responders": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(12), evt.SessionID)
	assert.JSONEq(t, `{"unknown_responders":1}`, string(evt.Data))
	assert.False(t, evt.At.IsZero())
}

func TestMessage(t *testing.T) {
	at := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	msg, err := Message(Event{Type: TypeImportCompleted, SessionID: 4, ImportID: "abc", At: at})
	require.NoError(t, err)
	assert.Equal(t, ws.TypeEvent, msg.Type)

	var payload ws.EventPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, TypeImportCompleted, payload.Type)
	assert.Equal(t, "abc", payload.ImportID)
	assert.Equal(t, "2024-03-09T10:00:00Z", payload.At)
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) ws.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg ws.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHandler_SessionSubscription(t *testing.T) {
	hub := ws.NewHub(zerolog.Nop())
	srv := httptest.NewServer(NewHandler(hub, websocket.Upgrader{}, zerolog.Nop()))
	defer srv.Close()

	conn := dial(t, srv, "?session_id=7")
	hello := readMessage(t, conn)
	require.Equal(t, ws.TypeSubscribed, hello.Type)
	var sub ws.SubscribedPayload
	require.NoError(t, json.Unmarshal(hello.Payload, &sub))
	assert.Equal(t, "session:7", sub.Topic)

	b := &Broadcaster{hub: hub, logger: zerolog.Nop()}
	other, _ := json.Marshal(Event{Type: TypeImportCompleted, SessionID: 8, At: time.Now()})
	b.forward(string(other))
	mine, _ := json.Marshal(Event{Type: TypeImportSuspended, SessionID: 7, At: time.Now()})
	b.forward(string(mine))

	msg := readMessage(t, conn)
	require.Equal(t, ws.TypeEvent, msg.Type)
	var payload ws.EventPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, TypeImportSuspended, payload.Type)
	assert.Equal(t, int64(7), payload.SessionID)
}

func TestHandler_PingAndUnknownType(t *testing.T) {
	hub := ws.NewHub(zerolog.Nop())
	srv := httptest.NewServer(NewHandler(hub, websocket.Upgrader{}, zerolog.Nop()))
	defer srv.Close()

	conn := dial(t, srv, "")
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.TypePing, RequestID: "r1"}))
	pong := readMessage(t, conn)
	assert.Equal(t, ws.TypePong, pong.Type)
	assert.Equal(t, "r1", pong.RequestID)

	require.NoError(t, conn.WriteJSON(ws.Message{Type: "shout"}))
	errMsg := readMessage(t, conn)
	assert.Equal(t, ws.TypeError, errMsg.Type)
	var payload ws.ErrorPayload
	require.NoError(t, json.Unmarshal(errMsg.Payload, &payload))
	assert.Equal(t, "unknown_message_type", payload.Code)
}

func TestHandler_RejectsBadSessionID(t *testing.T) {
	hub := ws.NewHub(zerolog.Nop())
	rec := httptest.NewRecorder()
	NewHandler(hub, websocket.Upgrader{}, zerolog.Nop()).ServeHTTP(rec, httptest.NewRequest("GET", "/ws/events?session_id=x", nil))
	assert.Equal(t, 400, rec.Code)
}
