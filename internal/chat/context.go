package chat

import (
	"context"
	"fmt"

	"github.com/elariis/portal-chat/internal/provider"
	"github.com/elariis/portal-chat/internal/store"
)

// DefaultContextWindow bounds how many stored turns are replayed to the
// model. The cap limits provider payload size; older turns stay in storage
// and are simply not sent.
const DefaultContextWindow = 10

// PromptContext is the bounded, ordered prompt for one model call plus the
// configuration it was built against, so a cycle uses one consistent config.
type PromptContext struct {
	Turns  []provider.Turn
	Config store.ModelConfig
}

// BuildContext assembles [system prompt] + last window stored turns in
// chronological order + the new utterance. Read-only; fails only when the
// store cannot be read.
func BuildContext(ctx context.Context, st store.Store, sessionID, utterance string, window int) (PromptContext, error) {
	if window <= 0 {
		window = DefaultContextWindow
	}

	cfg, err := st.ActiveConfig(ctx)
	if err != nil {
		return PromptContext{}, fmt.Errorf("load model config: %w", err)
	}

	recent, err := st.RecentMessages(ctx, sessionID, window)
	if err != nil {
		return PromptContext{}, fmt.Errorf("load recent messages: %w", err)
	}

	turns := make([]provider.Turn, 0, len(recent)+2)
	turns = append(turns, provider.Turn{Role: store.RoleSystem, Content: cfg.SystemPrompt})

	// RecentMessages returns newest first; walk backwards to restore
	// chronological order. Stored system messages are not replayed.
	for i := len(recent) - 1; i >= 0; i-- {
		msg := recent[i]
		if msg.Role != store.RoleUser && msg.Role != store.RoleAssistant {
			continue
		}
		turns = append(turns, provider.Turn{Role: msg.Role, Content: msg.Content})
	}

	turns = append(turns, provider.Turn{Role: store.RoleUser, Content: utterance})
	return PromptContext{Turns: turns, Config: cfg}, nil
}
