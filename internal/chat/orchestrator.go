package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/elariis/portal-chat/internal/observability"
	"github.com/elariis/portal-chat/internal/protocol"
	"github.com/elariis/portal-chat/internal/provider"
	"github.com/elariis/portal-chat/internal/store"
)

// ErrEmptyMessage rejects an utterance with no content before any write.
var ErrEmptyMessage = errors.New("message content is required")

// Publisher fans an event out to all subscribers of a session topic.
// Delivery is best-effort with no acknowledgment.
type Publisher interface {
	Publish(topic string, event any)
}

// Exchange is the user/assistant message pair produced by one cycle.
type Exchange struct {
	UserMessage      store.Message `json:"user_message"`
	AssistantMessage store.Message `json:"assistant_message"`
}

// Orchestrator drives one conversation cycle: validate, persist the user
// message, build context, obtain a reply, persist the assistant message,
// then notify subscribers. Both the REST path and the websocket path call
// Handle so persistence semantics cannot diverge by transport.
type Orchestrator struct {
	store     store.Store
	responder *provider.Responder
	publisher Publisher
	metrics   *observability.Metrics
	window    int
	locks     *sessionLocks
}

func NewOrchestrator(st store.Store, responder *provider.Responder, publisher Publisher, metrics *observability.Metrics, contextWindow int) *Orchestrator {
	if contextWindow <= 0 {
		contextWindow = DefaultContextWindow
	}
	return &Orchestrator{
		store:     st,
		responder: responder,
		publisher: publisher,
		metrics:   metrics,
		window:    contextWindow,
		locks:     newSessionLocks(),
	}
}

// Handle runs one cycle for the session. Writes are strictly ordered: user
// message, then provider invocation, then assistant message, then message
// events. Two cycles for the same session never interleave.
func (o *Orchestrator) Handle(ctx context.Context, sessionID string, user store.User, content string) (Exchange, error) {
	started := time.Now()

	if strings.TrimSpace(content) == "" {
		o.observeCycle("rejected", started)
		return Exchange{}, ErrEmptyMessage
	}

	e := o.locks.lock(sessionID)
	defer o.locks.unlock(sessionID, e)

	sess, err := o.store.GetActiveSession(ctx, sessionID, user.ID)
	if err != nil {
		o.observeCycle("rejected", started)
		if errors.Is(err, store.ErrNotFound) {
			return Exchange{}, err
		}
		return Exchange{}, fmt.Errorf("read session: %w", err)
	}

	userMsg, err := o.store.AppendMessage(ctx, sess.ID, store.RoleUser, content, nil)
	if err != nil {
		o.observeCycle("storage_error", started)
		return Exchange{}, fmt.Errorf("persist user message: %w", err)
	}

	reply := o.generate(ctx, sess, user, content)

	assistantMsg, err := o.store.AppendMessage(ctx, sess.ID, store.RoleAssistant, reply.Text, replyMetadata(reply))
	if err != nil {
		// The user message is already durable; a partial log is valid.
		o.observeCycle("storage_error", started)
		return Exchange{}, fmt.Errorf("persist assistant message: %w", err)
	}

	o.publishMessage(sess.ID, userMsg)
	o.publishMessage(sess.ID, assistantMsg)

	o.observeCycle("done", started)
	return Exchange{UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}

// generate obtains a reply, bracketing the provider invocation with typing
// events. It never fails: storage trouble while building context degrades to
// the generic error template so the turn still gets an answer.
func (o *Orchestrator) generate(ctx context.Context, sess store.Session, user store.User, content string) provider.Reply {
	prompt, err := BuildContext(ctx, o.store, sess.ID, content, o.window)
	if err != nil {
		log.Printf("context build failed for session %s: %v", sess.ID, err)
		return provider.Reply{Text: provider.TextGenericError, Source: provider.SourceCanned}
	}

	o.publish(sess.ID, protocol.TypingEvent{Type: protocol.TypeTyping, IsTyping: true})
	reply := o.responder.Reply(ctx, prompt.Turns, prompt.Config, content, user)
	o.publish(sess.ID, protocol.TypingEvent{Type: protocol.TypeTyping, IsTyping: false})
	return reply
}

func (o *Orchestrator) publishMessage(sessionID string, msg store.Message) {
	o.publish(sessionID, protocol.MessageEvent{
		Type: protocol.TypeMessage,
		Message: protocol.MessagePayload{
			ID:        msg.ID,
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.CreatedAt,
		},
	})
}

func (o *Orchestrator) publish(sessionID string, event any) {
	if o.publisher != nil {
		o.publisher.Publish(sessionID, event)
	}
}

func (o *Orchestrator) observeCycle(result string, started time.Time) {
	if o.metrics != nil {
		o.metrics.ObserveCycle(result, time.Since(started))
	}
}

func replyMetadata(reply provider.Reply) map[string]string {
	meta := map[string]string{"source": reply.Source}
	if reply.Category != "" {
		meta["category"] = string(reply.Category)
	}
	if reply.Kind != "" {
		meta["error_kind"] = string(reply.Kind)
	}
	return meta
}
