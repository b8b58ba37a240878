package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/elariis/portal-chat/internal/broadcast"
	"github.com/elariis/portal-chat/internal/chat"
	"github.com/elariis/portal-chat/internal/config"
	"github.com/elariis/portal-chat/internal/observability"
	"github.com/elariis/portal-chat/internal/protocol"
	"github.com/elariis/portal-chat/internal/provider"
	"github.com/elariis/portal-chat/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.InMemoryStore) {
	t.Helper()
	cfg := config.Config{ContextWindow: 10}
	st := store.NewInMemoryStore()
	metrics := observability.NewMetrics(fmt.Sprintf("test_httpapi_%s_%d", t.Name()[len("Test"):], time.Now().UnixNano()))
	responder := provider.NewResponder(nil, provider.NewFallbackProvider(), metrics)
	hub := broadcast.NewHub(metrics)
	orchestrator := chat.NewOrchestrator(st, responder, hub, metrics, cfg.ContextWindow)

	srv := New(cfg, st, orchestrator, responder, hub, metrics)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, st
}

func doJSON(t *testing.T, method, url string, body any, userID string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	return res
}

func createSession(t *testing.T, ts *httptest.Server, userID string) string {
	t.Helper()
	res := doJSON(t, http.MethodPost, ts.URL+"/v1/chat/sessions", map[string]string{"title": "test"}, userID)
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	var created store.Session
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("missing session id in create response")
	}
	return created.ID
}

func TestSendMessageReturnsExchange(t *testing.T) {
	ts, _ := newTestServer(t)
	sessionID := createSession(t, ts, "user-1")

	res := doJSON(t, http.MethodPost, ts.URL+"/v1/chat/sessions/"+sessionID+"/messages",
		map[string]string{"content": "hello"}, "user-1")
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("send status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var exchange chat.Exchange
	if err := json.NewDecoder(res.Body).Decode(&exchange); err != nil {
		t.Fatalf("decode exchange: %v", err)
	}
	if exchange.UserMessage.Content != "hello" || exchange.UserMessage.Role != store.RoleUser {
		t.Fatalf("user message = %+v", exchange.UserMessage)
	}
	if exchange.AssistantMessage.Role != store.RoleAssistant || exchange.AssistantMessage.Content == "" {
		t.Fatalf("assistant message = %+v", exchange.AssistantMessage)
	}
	if !strings.Contains(exchange.AssistantMessage.Content, "Hello there!") {
		t.Fatalf("expected fallback greeting, got %q", exchange.AssistantMessage.Content)
	}
}

func TestSendMessageValidation(t *testing.T) {
	ts, _ := newTestServer(t)
	sessionID := createSession(t, ts, "user-1")

	t.Run("empty content", func(t *testing.T) {
		res := doJSON(t, http.MethodPost, ts.URL+"/v1/chat/sessions/"+sessionID+"/messages",
			map[string]string{"content": "   "}, "user-1")
		defer res.Body.Close()
		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
		}
	})

	t.Run("foreign session", func(t *testing.T) {
		res := doJSON(t, http.MethodPost, ts.URL+"/v1/chat/sessions/"+sessionID+"/messages",
			map[string]string{"content": "hi"}, "someone-else")
		defer res.Body.Close()
		if res.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
		}
	})

	t.Run("missing identity", func(t *testing.T) {
		res := doJSON(t, http.MethodPost, ts.URL+"/v1/chat/sessions/"+sessionID+"/messages",
			map[string]string{"content": "hi"}, "")
		defer res.Body.Close()
		if res.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
		}
	})
}

func TestEndSessionStopsConversation(t *testing.T) {
	ts, _ := newTestServer(t)
	sessionID := createSession(t, ts, "user-1")

	endRes := doJSON(t, http.MethodPost, ts.URL+"/v1/chat/sessions/"+sessionID+"/end", nil, "user-1")
	defer endRes.Body.Close()
	if endRes.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d, want %d", endRes.StatusCode, http.StatusOK)
	}

	res := doJSON(t, http.MethodPost, ts.URL+"/v1/chat/sessions/"+sessionID+"/messages",
		map[string]string{"content": "hi"}, "user-1")
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("send after end status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestListMessages(t *testing.T) {
	ts, _ := newTestServer(t)
	sessionID := createSession(t, ts, "user-1")

	for _, content := range []string{"first", "second"} {
		res := doJSON(t, http.MethodPost, ts.URL+"/v1/chat/sessions/"+sessionID+"/messages",
			map[string]string{"content": content}, "user-1")
		res.Body.Close()
	}

	res := doJSON(t, http.MethodGet, ts.URL+"/v1/chat/sessions/"+sessionID+"/messages", nil, "user-1")
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var payload struct {
		Messages []store.Message `json:"messages"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(payload.Messages) != 4 {
		t.Fatalf("messages = %d, want 4 (2 exchanges)", len(payload.Messages))
	}
	if payload.Messages[0].Content != "first" {
		t.Fatalf("log should be chronological, got %q first", payload.Messages[0].Content)
	}
}

func TestAIStatusFallbackMode(t *testing.T) {
	ts, _ := newTestServer(t)

	res := doJSON(t, http.MethodGet, ts.URL+"/v1/chat/ai/status", nil, "user-1")
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var report provider.CheckReport
	if err := json.NewDecoder(res.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Status != provider.StatusFallback {
		t.Fatalf("report status = %q, want %q", report.Status, provider.StatusFallback)
	}
}

func TestWebSocketConversation(t *testing.T) {
	ts, _ := newTestServer(t)
	sessionID := createSession(t, ts, "user-1")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") +
		"/v1/chat/ws?session_id=" + sessionID + "&user_id=user-1&user_name=Dana"
	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error = %v (response: %+v)", err, res)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"type": "message", "content": "hello"}); err != nil {
		t.Fatalf("write error = %v", err)
	}

	// Expect typing on/off around the generation, then both persisted
	// messages, in cycle order.
	wantKinds := []string{"typing", "typing", "message", "message"}
	var messages []protocol.MessagePayload
	for i, want := range wantKinds {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var frame struct {
			Type     string                  `json:"type"`
			IsTyping bool                    `json:"is_typing"`
			Message  protocol.MessagePayload `json:"message"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read frame %d error = %v", i, err)
		}
		if frame.Type != want {
			t.Fatalf("frame %d type = %q, want %q", i, frame.Type, want)
		}
		if frame.Type == "message" {
			messages = append(messages, frame.Message)
		}
	}

	if messages[0].Role != store.RoleUser || messages[0].Content != "hello" {
		t.Fatalf("first message event = %+v, want the user utterance", messages[0])
	}
	if messages[1].Role != store.RoleAssistant {
		t.Fatalf("second message event = %+v, want the assistant reply", messages[1])
	}
	if !strings.Contains(messages[1].Content, "Hello Dana!") {
		t.Fatalf("assistant greeting should use the ws-provided name, got %q", messages[1].Content)
	}
}

func TestWebSocketRejectsUnknownSession(t *testing.T) {
	ts, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/ws?session_id=nope&user_id=user-1"
	_, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("dial should fail for an unknown session")
	}
	if res == nil || res.StatusCode != http.StatusNotFound {
		t.Fatalf("handshake status = %+v, want 404", res)
	}
}
