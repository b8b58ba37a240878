package httpapi

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/elariis/portal-chat/internal/chat"
	"github.com/elariis/portal-chat/internal/protocol"
	"github.com/elariis/portal-chat/internal/store"
)

// handleSessionWS runs the persistent channel for one session. The
// connection task only decodes and encodes frames; all conversation logic
// goes through the orchestrator, same as the REST path.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	user := requestUser(r)
	if user.ID == "" {
		respondError(w, http.StatusUnauthorized, "missing_user", "caller identity is required")
		return
	}

	if _, err := s.store.GetActiveSession(r.Context(), sessionID, user.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "session_not_found", err.Error())
			return
		}
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
	s.metrics.ActiveConnections.Inc()
	defer func() {
		s.metrics.ActiveConnections.Dec()
		s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
	}()

	sub := s.hub.Subscribe(sessionID)
	defer sub.Close()

	// Connection-local events (parse errors) share the writer with the
	// session subscription to keep websocket writes single-threaded.
	connOut := make(chan any, 16)
	writerDone := make(chan struct{})
	stop := make(chan struct{})

	go func() {
		defer close(writerDone)
		write := func(event any) bool {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(event); err != nil {
				return false
			}
			if t, ok := protocol.EventTypeOf(event); ok {
				s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
			}
			return true
		}
		for {
			select {
			case <-stop:
				return
			case event, ok := <-sub.C:
				if !ok || !write(event) {
					return
				}
			case event := <-connOut:
				if !write(event) {
					return
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			select {
			case connOut <- protocol.ErrorEvent{
				Type:   protocol.TypeError,
				Code:   "invalid_client_message",
				Detail: err.Error(),
			}:
			default:
			}
			continue
		}
		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}

		switch msg := parsed.(type) {
		case protocol.ClientMessage:
			// Message and typing events reach this client through the hub
			// subscription; only failures are reported directly.
			if _, err := s.orchestrator.Handle(r.Context(), sessionID, user, msg.Content); err != nil {
				code := "storage_unavailable"
				switch {
				case errors.Is(err, chat.ErrEmptyMessage):
					code = "empty_message"
				case errors.Is(err, store.ErrNotFound):
					code = "session_not_found"
				default:
					log.Printf("ws cycle failed for session %s: %v", sessionID, err)
				}
				select {
				case connOut <- protocol.ErrorEvent{Type: protocol.TypeError, Code: code, Detail: err.Error()}:
				default:
				}
			}
		case protocol.ClientTyping:
			s.hub.Publish(sessionID, protocol.TypingEvent{
				Type:     protocol.TypeTyping,
				IsTyping: msg.IsTyping,
				UserID:   user.ID,
			})
		}
	}

	close(stop)
	<-writerDone
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ClientMessage:
		return m.Type, true
	case protocol.ClientTyping:
		return m.Type, true
	default:
		return "", false
	}
}
