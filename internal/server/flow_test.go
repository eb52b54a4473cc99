package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Val17-ui/CACESmodule-sub000/internal/assembly"
	"github.com/Val17-ui/CACESmodule-sub000/internal/auth"
	"github.com/Val17-ui/CACESmodule-sub000/internal/auth/jwt"
	"github.com/Val17-ui/CACESmodule-sub000/internal/events"
	"github.com/Val17-ui/CACESmodule-sub000/internal/pptx/pptxtest"
	"github.com/Val17-ui/CACESmodule-sub000/internal/reconcile"
	"github.com/Val17-ui/CACESmodule-sub000/internal/server"
	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
	ws "github.com/Val17-ui/CACESmodule-sub000/pkg/http/ws"
)

// mappingStore keeps question mappings in memory for both pipelines.
type mappingStore struct {
	mu        sync.Mutex
	mappings  map[int64][]session.QuestionMapping
	questions map[int64]session.Question
}

func (s *mappingStore) Save(_ context.Context, sessionID int64, mappings []session.QuestionMapping, questions []session.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[sessionID] = mappings
	for _, q := range questions {
		s.questions[q.ID] = q
	}
	return nil
}

func (s *mappingStore) ListMappings(_ context.Context, sessionID int64) ([]session.QuestionMapping, map[int64]session.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mappings[sessionID], s.questions, nil
}

type staticBindings []session.DeviceBinding

func (b staticBindings) ListBindings(context.Context, int64) ([]session.DeviceBinding, error) {
	return b, nil
}

type resultSink struct {
	mu   sync.Mutex
	rows []session.Result
}

func (s *resultSink) UpsertResults(_ context.Context, rows []session.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, rows...)
	return nil
}

// hubPublisher delivers events in-process, standing in for Redis Pub/Sub.
type hubPublisher struct{ hub *ws.Hub }

func (p hubPublisher) Publish(_ context.Context, evt events.Event) error {
	msg, err := events.Message(evt)
	if err != nil {
		return err
	}
	return p.hub.Publish(msg, ws.TopicAll, ws.SessionTopic(evt.SessionID))
}

func TestFlow_GenerateImportResolve(t *testing.T) {
	logger := zerolog.Nop()
	tokens := jwt.NewManager(jwt.TokenConfig{Secret: []byte("flow-secret")})
	token, err := tokens.GenerateToken(jwt.Operator{ID: uuid.New(), Name: "Durand", Role: auth.RoleTrainer})
	require.NoError(t, err)

	hub := ws.NewHub(logger)
	publisher := hubPublisher{hub: hub}
	mappings := &mappingStore{mappings: map[int64][]session.QuestionMapping{}, questions: map[int64]session.Question{}}
	results := &resultSink{}

	assemblySvc := assembly.NewService(assembly.Config{}, assembly.Deps{Mappings: mappings, Publisher: publisher}, logger)
	importSvc := reconcile.NewService(reconcile.ServiceDeps{
		Bindings: staticBindings{
			{ParticipantID: 1, DeviceSerial: "1A2B3C", LastName: "Martin", FirstName: "Anne"},
			{ParticipantID: 2, DeviceSerial: "1A2B3D", LastName: "Bernard", FirstName: "Paul"},
		},
		Mappings:  mappings,
		Results:   results,
		Publisher: publisher,
	}, logger)

	srv := httptest.NewServer(server.NewMux(logger, nil, nil, server.Routes{
		Features: []server.RouteRegistrar{
			assembly.NewHTTPHandler(assemblySvc, 0, logger),
			reconcile.NewHTTPHandler(importSvc, 0, logger),
		},
		Events: events.NewHandler(hub, websocket.Upgrader{}, logger),
		Guard:  auth.Guard(tokens, logger),
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events?session_id=7&token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Equal(t, ws.TypeSubscribed, readEvent(t, conn).Type)

	correct := 1
	packageBody, err := json.Marshal(map[string]interface{}{
		"session": session.Info{ID: 7, Title: "CACES R489", Date: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)},
		"questions": []session.Question{
			{ID: 11, Text: "Distance minimale ?", Options: []string{"1 m", "3 m"}, CorrectIndex: &correct},
			{ID: 12, Text: "Casque obligatoire ?", Options: []string{"Vrai", "Faux"}, CorrectIndex: new(int)},
		},
		"template": pptxtest.Template(t),
	})
	require.NoError(t, err)

	resp := do(t, http.MethodPost, srv.URL+"/v1/packages", "", packageBody)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, http.MethodPost, srv.URL+"/v1/packages", token, packageBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var generated struct {
		QuestionMappings []session.QuestionMapping `json:"question_mappings"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&generated))
	resp.Body.Close()
	require.Len(t, generated.QuestionMappings, 2)
	assert.Equal(t, events.TypeAssemblyCompleted, readEvent(t, conn).Type)

	g1, g2 := generated.QuestionMappings[0].SlideGUID, generated.QuestionMappings[1].SlideGUID
	at := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	log := responseLog([][4]string{
		{"1A2B3C", g1, "2", at.Format(time.RFC3339)},
		{"1A2B3C", g2, "1", at.Add(time.Minute).Format(time.RFC3339)},
		{"FFFF01", g1, "1", at.Format(time.RFC3339)},
		{"FFFF01", g2, "1", at.Add(time.Minute).Format(time.RFC3339)},
	})
	importBody, err := json.Marshal(map[string]interface{}{"session_id": 7, "iteration_id": 70, "data": log})
	require.NoError(t, err)

	resp = do(t, http.MethodPost, srv.URL+"/v1/imports", token, importBody)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var suspended reconcile.ImportResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&suspended))
	resp.Body.Close()
	require.NotNil(t, suspended.Anomalies)
	require.Len(t, suspended.Anomalies.Expected, 1)
	assert.Equal(t, "1A2B3D", suspended.Anomalies.Expected[0].DeviceSerial)
	require.Len(t, suspended.Anomalies.Unknown, 1)
	assert.Equal(t, events.TypeImportSuspended, readEvent(t, conn).Type)

	resolveBody, err := json.Marshal(map[string]interface{}{"directives": []reconcile.Directive{
		{DeviceSerial: "1A2B3D", Action: reconcile.ActionAggregateWithUnknown, SourceSerial: "FFFF01"},
	}})
	require.NoError(t, err)
	resp = do(t, http.MethodPost, srv.URL+"/v1/imports/"+suspended.ImportID+"/resolutions", token, resolveBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var completed reconcile.ImportResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&completed))
	resp.Body.Close()
	assert.Equal(t, reconcile.StatusCompleted, completed.Status)
	assert.Equal(t, events.TypeImportCompleted, readEvent(t, conn).Type)

	require.Len(t, results.rows, 4)
	byParticipant := map[int64]int{}
	for _, r := range results.rows {
		if r.IsCorrect {
			byParticipant[r.ParticipantID]++
		}
	}
	assert.Equal(t, 2, byParticipant[1])
	assert.Equal(t, 1, byParticipant[2])

	resp = do(t, http.MethodGet, srv.URL+"/v1/imports/"+suspended.ImportID, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func do(t *testing.T, method, url, token string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func readEvent(t *testing.T, conn *websocket.Conn) ws.EventPayload {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg ws.Message
	require.NoError(t, conn.ReadJSON(&msg))
	if msg.Type != ws.TypeEvent {
		return ws.EventPayload{Type: msg.Type}
	}
	var payload ws.EventPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	return payload
}

// responseLog renders rows of (device, slide, answer, time) as a session export.
func responseLog(rows [][4]string) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?><ors:Session xmlns:ors="http://www.ombea.com/response/session"><ors:Responses>`)
	for _, r := range rows {
		fmt.Fprintf(&b, `<ors:Response DeviceID=%q QuestionGuid=%q Time=%q><ors:Answer>%s</ors:Answer></ors:Response>`, r[0], r[1], r[3], r[2])
	}
	b.WriteString(`</ors:Responses></ors:Session>`)
	return []byte(b.String())
}
