package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/elariis/portal-chat/internal/broadcast"
	"github.com/elariis/portal-chat/internal/chat"
	"github.com/elariis/portal-chat/internal/config"
	"github.com/elariis/portal-chat/internal/observability"
	"github.com/elariis/portal-chat/internal/provider"
	"github.com/elariis/portal-chat/internal/store"
)

// Orchestrator is the conversation entrypoint shared by the REST and
// websocket paths.
type Orchestrator interface {
	Handle(ctx context.Context, sessionID string, user store.User, content string) (chat.Exchange, error)
}

type Server struct {
	cfg          config.Config
	store        store.Store
	orchestrator Orchestrator
	responder    *provider.Responder
	hub          *broadcast.Hub
	metrics      *observability.Metrics
	upgrader     websocket.Upgrader
}

func New(cfg config.Config, st store.Store, orchestrator Orchestrator, responder *provider.Responder, hub *broadcast.Hub, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:          cfg,
		store:        st,
		orchestrator: orchestrator,
		responder:    responder,
		hub:          hub,
		metrics:      metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up; other sites must not
				// be able to drive an employee's chat session.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/chat/sessions", s.handleCreateSession)
	r.Get("/v1/chat/sessions", s.handleListSessions)
	r.Get("/v1/chat/sessions/{id}/messages", s.handleListMessages)
	r.Post("/v1/chat/sessions/{id}/messages", s.handleSendMessage)
	r.Post("/v1/chat/sessions/{id}/end", s.handleEndSession)
	r.Get("/v1/chat/ws", s.handleSessionWS)
	r.Get("/v1/chat/ai/status", s.handleAIStatus)

	return r
}

// requestUser extracts the caller identity placed on the request by the
// upstream auth layer. Websocket clients pass the same values as query
// parameters since browsers cannot set headers on upgrade requests.
func requestUser(r *http.Request) store.User {
	user := store.User{
		ID:        strings.TrimSpace(r.Header.Get("X-User-ID")),
		GivenName: strings.TrimSpace(r.Header.Get("X-User-Name")),
	}
	if user.ID == "" {
		user.ID = strings.TrimSpace(r.URL.Query().Get("user_id"))
		user.GivenName = strings.TrimSpace(r.URL.Query().Get("user_name"))
	}
	return user
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"remote_configured": s.responder.RemoteConfigured(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type createSessionRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)
	if user.ID == "" {
		respondError(w, http.StatusUnauthorized, "missing_user", "caller identity is required")
		return
	}

	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sess, err := s.store.CreateSession(r.Context(), user.ID, strings.TrimSpace(req.Title))
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
		return
	}
	s.metrics.SessionEvents.WithLabelValues("created").Inc()
	respondJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)
	if user.ID == "" {
		respondError(w, http.StatusUnauthorized, "missing_user", "caller identity is required")
		return
	}

	sessions, err := s.store.ListSessions(r.Context(), user.ID)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)
	if user.ID == "" {
		respondError(w, http.StatusUnauthorized, "missing_user", "caller identity is required")
		return
	}

	msgs, err := s.store.SessionMessages(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "session_not_found", err.Error())
			return
		}
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)
	if user.ID == "" {
		respondError(w, http.StatusUnauthorized, "missing_user", "caller identity is required")
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "message content is required")
		return
	}

	exchange, err := s.orchestrator.Handle(r.Context(), chi.URLParam(r, "id"), user, req.Content)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		respondError(w, http.StatusBadRequest, "empty_message", err.Error())
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
	case err != nil:
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
	default:
		respondJSON(w, http.StatusOK, exchange)
	}
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)
	if user.ID == "" {
		respondError(w, http.StatusUnauthorized, "missing_user", "caller identity is required")
		return
	}

	sess, err := s.store.EndSession(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "session_not_found", err.Error())
			return
		}
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
		return
	}
	s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleAIStatus(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.ActiveConfig(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.responder.CheckConnection(r.Context(), cfg))
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
