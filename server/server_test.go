package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Desarso/playground"
	"github.com/Desarso/playground/models"
	"github.com/Desarso/playground/sandbox"
	"github.com/Desarso/playground/sessions"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const buttonReply = `<response><chat_response>Here's a button.</chat_response><playground_data>function App() { return <button>Click me</button>; }</playground_data></response>`

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, gateway models.Gateway) *Server {
	t.Helper()
	logger, _ := test.NewNullLogger()
	p, err := playground.NewWithGateway(playground.NewConfig(), gateway, logger)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return New(p)
}

func replyWith(reply string) models.Gateway {
	return models.GatewayFunc(func(context.Context, models.GenerationRequest) (string, error) {
		return reply, nil
	})
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChat_Stateless(t *testing.T) {
	var got models.GenerationRequest
	s := newTestServer(t, models.GatewayFunc(func(_ context.Context, req models.GenerationRequest) (string, error) {
		got = req
		return buttonReply, nil
	}))

	rec := doJSON(t, s, http.MethodPost, "/api/chat", gin.H{"messages": []models.Turn{
		models.UserTurn("hi"),
		models.AssistantTurn("hello"),
		models.UserTurn("make a button"),
	}})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.Chat_Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Here's a button.", resp.ChatResponse)
	assert.Equal(t, "function App() { return <button>Click me</button>; }", resp.PlaygroundData)
	assert.Empty(t, resp.CDNLinks)

	assert.Equal(t, "make a button", got.LatestUserContent)
	assert.Equal(t, []models.Turn{models.UserTurn("hi"), models.AssistantTurn("hello")}, got.History)
}

func TestChat_StatelessComponentGrammar(t *testing.T) {
	s := newTestServer(t, replyWith(`<chat_response>A chart.</chat_response><component>function App() { return <canvas />; }</component><cdnLinks>https://cdn.jsdelivr.net/npm/chart.js</cdnLinks>`))

	rec := doJSON(t, s, http.MethodPost, "/api/chat", gin.H{"messages": []models.Turn{models.UserTurn("chart")}})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.Chat_Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"https://cdn.jsdelivr.net/npm/chart.js"}, resp.CDNLinks)
}

func TestChat_BadRequests(t *testing.T) {
	s := newTestServer(t, replyWith(buttonReply))

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"messages":`},
		{"empty object", `{}`},
		{"last turn from assistant", `{"messages":[{"role":"assistant","content":"hi"}]}`},
		{"unknown role", `{"messages":[{"role":"system","content":"x"},{"role":"user","content":"hi"}]}`},
		{"message without session", `{"message":"hi"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestChat_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, replyWith(buttonReply))

	for _, method := range []string{
		http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodDelete,
		http.MethodOptions, http.MethodTrace, http.MethodConnect, "PROPFIND",
	} {
		rec := doJSON(t, s, method, "/api/chat", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		assert.Equal(t, "POST", rec.Header().Get("Allow"))
		assert.Equal(t, "Method "+method+" Not Allowed", rec.Body.String())
	}

	rec := doJSON(t, s, http.MethodDelete, "/healthz", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
}

func TestChat_GatewayFailure(t *testing.T) {
	s := newTestServer(t, models.GatewayFunc(func(context.Context, models.GenerationRequest) (string, error) {
		return "", &models.GatewayError{Provider: "anthropic", Status: 500, Body: "secret upstream detail"}
	}))

	rec := doJSON(t, s, http.MethodPost, "/api/chat", gin.H{"messages": []models.Turn{models.UserTurn("hi")}})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"An error occurred while processing your request."}`, rec.Body.String())

	session := s.Playground.Sessions.Create()
	rec = doJSON(t, s, http.MethodPost, "/api/chat?session="+session.ID, gin.H{"message": "hi"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")

	history := session.Transcript()
	require.Len(t, history, 2)
	assert.Equal(t, sessions.ApologyMessage, history[1].Content)
}

func TestChat_Session(t *testing.T) {
	s := newTestServer(t, replyWith(buttonReply))
	session := s.Playground.Sessions.Create()

	rec := doJSON(t, s, http.MethodPost, "/api/chat?session="+session.ID, gin.H{"message": "make a button"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Response   string        `json:"response"`
		Playground sandbox.State `json:"playground"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Here's a button.", resp.Response)
	assert.Contains(t, resp.Playground.Markup, "Click me")
	assert.Empty(t, resp.Playground.RenderError)

	rec = doJSON(t, s, http.MethodGet, "/api/sessions/"+session.ID+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		History []models.TranscriptEntry `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.History, 2)
	assert.Equal(t, models.RoleUser, history.History[0].Role)
	assert.Equal(t, "Here's a button.", history.History[1].Content)
}

func TestChat_UnknownSession(t *testing.T) {
	s := newTestServer(t, replyWith(buttonReply))

	rec := doJSON(t, s, http.MethodPost, "/api/chat?session=missing", gin.H{"message": "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/sessions/missing/playground", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChat_BusySession(t *testing.T) {
	release := make(chan struct{})
	s := newTestServer(t, models.GatewayFunc(func(ctx context.Context, _ models.GenerationRequest) (string, error) {
		<-release
		return buttonReply, nil
	}))
	session := s.Playground.Sessions.Create()

	done := make(chan int)
	go func() {
		done <- doJSON(t, s, http.MethodPost, "/api/chat?session="+session.ID, gin.H{"message": "first"}).Code
	}()
	require.Eventually(t, session.Busy, time.Second, 5*time.Millisecond)

	rec := doJSON(t, s, http.MethodPost, "/api/chat?session="+session.ID, gin.H{"message": "second"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(release)
	assert.Equal(t, http.StatusOK, <-done)
	assert.Len(t, session.Transcript(), 2)
}

func TestPlaygroundRoutes(t *testing.T) {
	s := newTestServer(t, replyWith(buttonReply))
	session := s.Playground.Sessions.Create()
	base := "/api/sessions/" + session.ID

	rec := doJSON(t, s, http.MethodGet, base+"/playground", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var state sandbox.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, sandbox.DefaultSource, state.Source)
	assert.Equal(t, sandbox.ViewPreview, state.ActiveView)

	rec = doJSON(t, s, http.MethodPut, base+"/playground/source", models.EditSourceRequest{Source: "function App() { return <p>edited</p>; }"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Contains(t, state.Markup, "edited")

	rec = doJSON(t, s, http.MethodPut, base+"/playground/source", models.EditSourceRequest{Source: "function App() { return <p>; }"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.NotEmpty(t, state.RenderError)

	rec = doJSON(t, s, http.MethodPut, base+"/playground/view", models.SetViewRequest{View: "code"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, sandbox.ViewSource, state.ActiveView)

	rec = doJSON(t, s, http.MethodPut, base+"/playground/view", models.SetViewRequest{View: "split"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreview(t *testing.T) {
	s := newTestServer(t, replyWith(buttonReply))
	session := s.Playground.Sessions.Create()

	rec := doJSON(t, s, http.MethodGet, "/api/sessions/"+session.ID+"/preview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sandbox allow-scripts", rec.Header().Get("Content-Security-Policy"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Welcome to the Playground!")
	assert.Contains(t, rec.Body.String(), `id="root"`)
}

func TestIndex_CreatesSession(t *testing.T) {
	s := newTestServer(t, replyWith(buttonReply))

	rec := doJSON(t, s, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, s.Playground.Sessions.Len())
	assert.Contains(t, rec.Body.String(), `sandbox="allow-scripts"`)
	assert.Contains(t, rec.Body.String(), "Sending...")
	assert.Contains(t, rec.Body.String(), `addTurn('assistant', "I'm sorry, but I encountered an error. Please try again.")`)
}

func TestCreateSession(t *testing.T) {
	s := newTestServer(t, replyWith(buttonReply))

	rec := doJSON(t, s, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	_, ok := s.Playground.Sessions.Get(resp.ID)
	assert.True(t, ok)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, replyWith(buttonReply))

	rec := doJSON(t, s, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestLiveChannel(t *testing.T) {
	s := newTestServer(t, replyWith(buttonReply))
	session := s.Playground.Sessions.Create()

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + session.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg sessions.LiveMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, sessions.LiveMsgPlayground, msg.Type)

	require.NoError(t, conn.WriteJSON(sessions.LiveMessage{Type: sessions.LiveMsgPing}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, sessions.LiveMsgPong, msg.Type)

	payload, err := json.Marshal(sessions.LiveViewPayload{View: "source"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(sessions.LiveMessage{Type: sessions.LiveMsgSetView, Payload: payload}))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, sessions.LiveMsgPlayground, msg.Type)

	var state sandbox.State
	require.NoError(t, json.Unmarshal(msg.Payload, &state))
	assert.Equal(t, sandbox.ViewSource, state.ActiveView)
}
