package store

import (
	"context"
	"errors"
	"time"
)

// Message roles as persisted in the conversation log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ErrNotFound is returned when a session does not exist, is no longer
// active, or belongs to a different user.
var ErrNotFound = errors.New("chat session not found")

// Session is one bounded conversation between a user and the assistant.
type Session struct {
	ID        string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single turn in a session's append-only log. Seq is assigned
// by the store and is the canonical total order within a session.
type Message struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Seq       int64             `json:"-"`
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// ModelConfig holds the administratively managed generation settings.
type ModelConfig struct {
	Name         string    `json:"name"`
	Model        string    `json:"model"`
	Temperature  float64   `json:"temperature"`
	MaxTokens    int       `json:"max_tokens"`
	SystemPrompt string    `json:"system_prompt"`
	IsActive     bool      `json:"is_active"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// User identifies the requesting employee. Authentication happens upstream;
// the backend only needs the identity and an optional given name for
// greeting interpolation.
type User struct {
	ID        string
	GivenName string
}

// Store persists sessions and their ordered messages.
type Store interface {
	CreateSession(ctx context.Context, userID, title string) (Session, error)
	// GetActiveSession returns the session only when it is active and owned
	// by userID; otherwise ErrNotFound.
	GetActiveSession(ctx context.Context, sessionID, userID string) (Session, error)
	EndSession(ctx context.Context, sessionID, userID string) (Session, error)
	ListSessions(ctx context.Context, userID string) ([]Session, error)

	// AppendMessage performs one atomic insert with a store-assigned id,
	// sequence number and timestamp.
	AppendMessage(ctx context.Context, sessionID, role, content string, metadata map[string]string) (Message, error)
	// RecentMessages returns up to limit messages, newest first.
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error)
	// SessionMessages returns the full log in chronological order, only for
	// the owning user.
	SessionMessages(ctx context.Context, sessionID, userID string) ([]Message, error)

	// ActiveConfig returns the active model configuration, creating and
	// persisting DefaultConfig when none exists. When several rows are
	// active the most recently updated one wins.
	ActiveConfig(ctx context.Context) (ModelConfig, error)

	Close() error
}

// DefaultConfig is synthesized on first read when no configuration row
// exists, so behavior is stable from then on.
func DefaultConfig() ModelConfig {
	return ModelConfig{
		Name:         "default",
		Model:        "gpt-3.5-turbo",
		Temperature:  0.7,
		MaxTokens:    1000,
		SystemPrompt: defaultSystemPrompt,
		IsActive:     true,
	}
}

const defaultSystemPrompt = `You are a helpful AI assistant for the Elariis Portal, a corporate employee management system.

Your role is to assist employees with:
- HR-related questions (benefits, payroll, leave requests, policies)
- IT support (technical issues, password resets, software problems)
- Employee portal navigation and features
- General workplace information and procedures

Always be professional, helpful, and concise. If you cannot answer a specific question, direct users to the appropriate department or portal section. Remember that you're representing the company, so maintain a professional tone while being friendly and approachable.`
