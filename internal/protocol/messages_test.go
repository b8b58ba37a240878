package protocol

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseClientMessage(t *testing.T) {
	parsed, err := ParseClientMessage([]byte(`{"type":"message","content":"hello"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	msg, ok := parsed.(ClientMessage)
	if !ok {
		t.Fatalf("parsed = %T, want ClientMessage", parsed)
	}
	if msg.Content != "hello" {
		t.Fatalf("content = %q, want hello", msg.Content)
	}
}

func TestParseClientTyping(t *testing.T) {
	parsed, err := ParseClientMessage([]byte(`{"type":"typing","is_typing":true}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	msg, ok := parsed.(ClientTyping)
	if !ok {
		t.Fatalf("parsed = %T, want ClientTyping", parsed)
	}
	if !msg.IsTyping {
		t.Fatalf("is_typing = false, want true")
	}
}

func TestParseClientMessageRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{{`},
		{"unknown type", `{"type":"audio_chunk"}`},
		{"message without content", `{"type":"message"}`},
		{"empty content", `{"type":"message","content":""}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseClientMessage([]byte(tc.raw)); err == nil {
				t.Fatalf("ParseClientMessage(%q) should fail", tc.raw)
			}
		})
	}

	_, err := ParseClientMessage([]byte(`{"type":"audio_chunk"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("unknown type error = %v, want ErrUnsupportedType", err)
	}
}

func TestMessageEventWireShape(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	raw, err := json.Marshal(MessageEvent{
		Type: TypeMessage,
		Message: MessagePayload{
			ID:        "m1",
			Role:      "assistant",
			Content:   "hi",
			Timestamp: ts,
		},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != "message" {
		t.Fatalf("type = %v, want message", decoded["type"])
	}
	inner, ok := decoded["message"].(map[string]any)
	if !ok {
		t.Fatalf("missing message object: %v", decoded)
	}
	for _, key := range []string{"id", "role", "content", "timestamp"} {
		if _, ok := inner[key]; !ok {
			t.Fatalf("message payload missing %q: %v", key, inner)
		}
	}
}

func TestTypingEventOmitsEmptyUser(t *testing.T) {
	raw, err := json.Marshal(TypingEvent{Type: TypeTyping, IsTyping: true})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded["user_id"]; ok {
		t.Fatalf("user_id should be omitted when empty: %v", decoded)
	}
}
