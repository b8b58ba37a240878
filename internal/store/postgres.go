package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists sessions and messages in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_sessions_user_updated ON chat_sessions (user_id, updated_at);`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id TEXT PRIMARY KEY,
			seq BIGSERIAL,
			session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_session_seq ON chat_messages (session_id, seq);`,
		`CREATE TABLE IF NOT EXISTS ai_configurations (
			name TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			temperature DOUBLE PRECISION NOT NULL,
			max_tokens INTEGER NOT NULL,
			system_prompt TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, userID, title string) (Session, error) {
	sess := Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		Title:    title,
		IsActive: true,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO chat_sessions (id, user_id, title) VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		sess.ID, sess.UserID, sess.Title,
	).Scan(&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) GetActiveSession(ctx context.Context, sessionID, userID string) (Session, error) {
	var sess Session
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, title, is_active, created_at, updated_at
		 FROM chat_sessions WHERE id=$1 AND user_id=$2 AND is_active`,
		sessionID, userID,
	).Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.IsActive, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) EndSession(ctx context.Context, sessionID, userID string) (Session, error) {
	var sess Session
	err := s.pool.QueryRow(ctx,
		`UPDATE chat_sessions SET is_active=FALSE, updated_at=now()
		 WHERE id=$1 AND user_id=$2
		 RETURNING id, user_id, title, is_active, created_at, updated_at`,
		sessionID, userID,
	).Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.IsActive, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("end session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, userID string) ([]Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, title, is_active, created_at, updated_at
		 FROM chat_sessions WHERE user_id=$1 ORDER BY updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.IsActive, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return sessions, nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, sessionID, role, content string, metadata map[string]string) (Message, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return Message{}, fmt.Errorf("encode metadata: %w", err)
	}

	msg := Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, metadata)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING seq, created_at`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, metaJSON,
	).Scan(&msg.Seq, &msg.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}

	// Keep the session's updated_at fresh so listings sort by recency.
	if _, err := s.pool.Exec(ctx,
		`UPDATE chat_sessions SET updated_at=now() WHERE id=$1`, sessionID); err != nil {
		return Message{}, fmt.Errorf("touch session: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, seq, session_id, role, content, metadata, created_at
		 FROM chat_messages WHERE session_id=$1 ORDER BY seq DESC LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows, limit)
}

func (s *PostgresStore) SessionMessages(ctx context.Context, sessionID, userID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT m.id, m.seq, m.session_id, m.role, m.content, m.metadata, m.created_at
		 FROM chat_messages m
		 JOIN chat_sessions s ON s.id = m.session_id
		 WHERE m.session_id=$1 AND s.user_id=$2
		 ORDER BY m.seq ASC`,
		sessionID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query session messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows, 0)
}

func scanMessages(rows pgx.Rows, sizeHint int) ([]Message, error) {
	msgs := make([]Message, 0, sizeHint)
	for rows.Next() {
		var (
			msg      Message
			metaJSON []byte
		)
		if err := rows.Scan(&msg.ID, &msg.Seq, &msg.SessionID, &msg.Role, &msg.Content, &metaJSON, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		if err := json.Unmarshal(metaJSON, &msg.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return msgs, nil
}

func (s *PostgresStore) ActiveConfig(ctx context.Context) (ModelConfig, error) {
	cfg, err := s.queryActiveConfig(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return ModelConfig{}, fmt.Errorf("get active config: %w", err)
	}

	def := DefaultConfig()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO ai_configurations (name, model, temperature, max_tokens, system_prompt, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (name) DO NOTHING`,
		def.Name, def.Model, def.Temperature, def.MaxTokens, def.SystemPrompt, def.IsActive,
	)
	if err != nil {
		return ModelConfig{}, fmt.Errorf("persist default config: %w", err)
	}

	cfg, err = s.queryActiveConfig(ctx)
	if err != nil {
		return ModelConfig{}, fmt.Errorf("get active config: %w", err)
	}
	return cfg, nil
}

func (s *PostgresStore) queryActiveConfig(ctx context.Context) (ModelConfig, error) {
	var cfg ModelConfig
	// Most recently updated wins when several rows are marked active.
	err := s.pool.QueryRow(ctx,
		`SELECT name, model, temperature, max_tokens, system_prompt, is_active, updated_at
		 FROM ai_configurations WHERE is_active
		 ORDER BY updated_at DESC LIMIT 1`,
	).Scan(&cfg.Name, &cfg.Model, &cfg.Temperature, &cfg.MaxTokens, &cfg.SystemPrompt, &cfg.IsActive, &cfg.UpdatedAt)
	if err != nil {
		return ModelConfig{}, err
	}
	return cfg, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
