package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MessageType identifies websocket payload variants. Inbound and outbound
// frames share the "message" and "typing" names, mirroring the frontend
// contract.
type MessageType string

const (
	TypeMessage MessageType = "message"
	TypeTyping  MessageType = "typing"
	TypeError   MessageType = "error"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientMessage submits a new utterance for the session.
type ClientMessage struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
}

// ClientTyping relays the sender's typing state to other subscribers.
type ClientTyping struct {
	Type     MessageType `json:"type"`
	IsTyping bool        `json:"is_typing"`
}

// MessagePayload is the wire shape of one persisted message.
type MessagePayload struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageEvent announces a persisted message to session subscribers.
type MessageEvent struct {
	Type    MessageType    `json:"type"`
	Message MessagePayload `json:"message"`
}

// TypingEvent toggles the assistant (or a peer user) typing indicator.
type TypingEvent struct {
	Type     MessageType `json:"type"`
	IsTyping bool        `json:"is_typing"`
	UserID   string      `json:"user_id,omitempty"`
}

// ErrorEvent reports a per-connection failure to the client.
type ErrorEvent struct {
	Type   MessageType `json:"type"`
	Code   string      `json:"code"`
	Detail string      `json:"detail"`
}

// ParseClientMessage decodes and validates an inbound frame.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeMessage:
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Content == "" {
			return nil, errors.New("message content is required")
		}
		return msg, nil
	case TypeTyping:
		var msg ClientTyping
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, env.Type)
	}
}

// EventTypeOf reports the wire type of an outbound event for metrics.
func EventTypeOf(v any) (MessageType, bool) {
	switch m := v.(type) {
	case MessageEvent:
		return m.Type, true
	case TypingEvent:
		return m.Type, true
	case ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
