package provider

import (
	"context"
	"errors"
	"log"

	"github.com/elariis/portal-chat/internal/observability"
	"github.com/elariis/portal-chat/internal/store"
)

// Canned texts for remote failure modes that do not demote to the rule
// provider. Fixed strings so clients and tests can rely on them.
const (
	TextHighDemand  = "I'm experiencing very high demand right now. Please try again in a moment."
	TextRephrase    = "I'm sorry, I couldn't process that request. Could you try rephrasing your question?"
	TextUnreachable = "The assistant service is temporarily unreachable. Please try again shortly."

	// TextGenericError covers unrecoverable local failures (e.g. storage
	// unavailable while building context); the turn still gets an answer.
	TextGenericError = "I'm sorry, but I'm having trouble processing your request right now. Please try again in a moment, or contact IT support if the issue persists."
)

// Reply sources recorded in assistant message metadata.
const (
	SourceOpenAI   = "openai"
	SourceFallback = "fallback"
	SourceCanned   = "canned"
)

// Reply is a generated assistant reply plus how it was produced.
type Reply struct {
	Text string
	// Source is one of SourceOpenAI, SourceFallback, SourceCanned.
	Source string
	// Category is set when the rule provider produced the text.
	Category Category
	// Kind is set when a remote failure selected a canned text or demotion.
	Kind Kind
}

// Responder selects between the remote and rule providers once per cycle and
// applies the demotion policy: the caller always receives a usable reply.
type Responder struct {
	remote   *RemoteProvider
	fallback *FallbackProvider
	metrics  *observability.Metrics
}

func NewResponder(remote *RemoteProvider, fallback *FallbackProvider, metrics *observability.Metrics) *Responder {
	if fallback == nil {
		fallback = NewFallbackProvider()
	}
	return &Responder{remote: remote, fallback: fallback, metrics: metrics}
}

// RemoteConfigured reports whether a remote model backend is available.
func (r *Responder) RemoteConfigured() bool { return r.remote != nil }

// Reply generates a reply for the built turns. utterance and user are the raw
// inputs, needed when a failure demotes to the rule provider. Never fails.
func (r *Responder) Reply(ctx context.Context, turns []Turn, cfg store.ModelConfig, utterance string, user store.User) Reply {
	if r.remote == nil {
		text, category := r.fallback.Generate(utterance, user)
		r.observe(SourceFallback, "no_credentials")
		return Reply{Text: text, Source: SourceFallback, Category: category}
	}

	text, err := r.remote.Complete(ctx, turns, cfg)
	if err == nil {
		r.observe(SourceOpenAI, "ok")
		return Reply{Text: text, Source: SourceOpenAI}
	}

	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		remoteErr = &RemoteError{Kind: KindOther, Err: err}
	}
	log.Printf("remote completion failed (%s): %v", remoteErr.Kind, remoteErr.Err)
	r.observe(SourceOpenAI, string(remoteErr.Kind))

	switch remoteErr.Kind {
	case KindRateLimited:
		return Reply{Text: TextHighDemand, Source: SourceCanned, Kind: KindRateLimited}
	case KindInvalidRequest:
		return Reply{Text: TextRephrase, Source: SourceCanned, Kind: KindInvalidRequest}
	case KindConnectionFailed:
		return Reply{Text: TextUnreachable, Source: SourceCanned, Kind: KindConnectionFailed}
	default:
		// Auth failures and anything unclassified demote to the rule
		// provider on the raw utterance.
		fbText, category := r.fallback.Generate(utterance, user)
		r.observe(SourceFallback, string(remoteErr.Kind))
		return Reply{Text: fbText, Source: SourceFallback, Category: category, Kind: remoteErr.Kind}
	}
}

func (r *Responder) observe(provider, outcome string) {
	if r.metrics != nil {
		r.metrics.ProviderRequests.WithLabelValues(provider, outcome).Inc()
	}
}
