package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is an in-process store for local/dev use and tests. It
// mirrors PostgresStore semantics, including the per-store message sequence.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	messages map[string][]Message
	configs  map[string]ModelConfig
	nextSeq  int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*Session),
		messages: make(map[string][]Message),
		configs:  make(map[string]ModelConfig),
	}
}

func (s *InMemoryStore) CreateSession(_ context.Context, userID, title string) (Session, error) {
	now := time.Now().UTC()
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = &sess
	return sess, nil
}

func (s *InMemoryStore) GetActiveSession(_ context.Context, sessionID, userID string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok || !sess.IsActive || sess.UserID != userID {
		return Session{}, ErrNotFound
	}
	return *sess, nil
}

func (s *InMemoryStore) EndSession(_ context.Context, sessionID, userID string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.UserID != userID {
		return Session{}, ErrNotFound
	}
	sess.IsActive = false
	sess.UpdatedAt = time.Now().UTC()
	return *sess, nil
}

func (s *InMemoryStore) ListSessions(_ context.Context, userID string) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sessions []Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			sessions = append(sessions, *sess)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (s *InMemoryStore) AppendMessage(_ context.Context, sessionID, role, content string, metadata map[string]string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return Message{}, ErrNotFound
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	s.nextSeq++
	now := time.Now().UTC()
	msg := Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Seq:       s.nextSeq,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: now,
	}
	s.messages[sessionID] = append(s.messages[sessionID], msg)
	s.sessions[sessionID].UpdatedAt = now
	return msg, nil
}

func (s *InMemoryStore) RecentMessages(_ context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.messages[sessionID]
	if len(log) == 0 {
		return nil, nil
	}
	if limit > len(log) {
		limit = len(log)
	}

	out := make([]Message, 0, limit)
	for i := len(log) - 1; i >= len(log)-limit; i-- {
		out = append(out, log[i])
	}
	return out, nil
}

func (s *InMemoryStore) SessionMessages(_ context.Context, sessionID, userID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.UserID != userID {
		return nil, ErrNotFound
	}
	out := make([]Message, len(s.messages[sessionID]))
	copy(out, s.messages[sessionID])
	return out, nil
}

func (s *InMemoryStore) ActiveConfig(_ context.Context) (ModelConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		best  ModelConfig
		found bool
	)
	for _, cfg := range s.configs {
		if !cfg.IsActive {
			continue
		}
		if !found || cfg.UpdatedAt.After(best.UpdatedAt) {
			best = cfg
			found = true
		}
	}
	if found {
		return best, nil
	}

	def := DefaultConfig()
	def.UpdatedAt = time.Now().UTC()
	s.configs[def.Name] = def
	return def, nil
}

// PutConfig installs or replaces a configuration row. Configurations are
// administratively managed; this exists for ops tooling and tests.
func (s *InMemoryStore) PutConfig(cfg ModelConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = time.Now().UTC()
	}
	s.configs[cfg.Name] = cfg
}

func (s *InMemoryStore) Close() error { return nil }
