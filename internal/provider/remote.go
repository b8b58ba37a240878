package provider

import (
	"context"
	"errors"
	"strings"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/elariis/portal-chat/internal/store"
)

// Turn is one role-tagged piece of conversational content sent to the model.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// completionClient is the slice of the OpenAI client the remote provider
// needs. Tests substitute a fake to simulate provider failure modes.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest, opts ...openai.ChatCompletionRequestOption) (openai.ChatCompletionResponse, error)
}

// RemoteProvider calls an OpenAI-compatible chat completion endpoint.
type RemoteProvider struct {
	client  completionClient
	baseURL string
}

// NewRemoteProvider returns nil when no API key is configured; the caller
// then runs in fallback-only mode.
func NewRemoteProvider(apiKey, baseURL string) *RemoteProvider {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = baseURL
	}
	return &RemoteProvider{
		client:  openai.NewClientWithConfig(cfg),
		baseURL: cfg.BaseURL,
	}
}

// Complete sends the built turns to the configured model. Failures come back
// as *RemoteError with a classified Kind.
func (p *RemoteProvider) Complete(ctx context.Context, turns []Turn, cfg store.ModelConfig) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		var role string
		switch t.Role {
		case store.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case store.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		default:
			role = openai.ChatMessageRoleUser
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}

	temperature := float32(cfg.Temperature)
	req := openai.ChatCompletionRequest{
		Model:       cfg.Model,
		Messages:    msgs,
		Temperature: &temperature,
	}
	if cfg.MaxTokens > 0 {
		req.MaxTokens = cfg.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", &RemoteError{Kind: Classify(err), Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &RemoteError{Kind: KindOther, Err: errors.New("empty completion response")}
	}
	return resp.Choices[0].Message.Content, nil
}

// BaseURL reports the endpoint the provider targets, for diagnostics.
func (p *RemoteProvider) BaseURL() string {
	if p == nil {
		return ""
	}
	return p.baseURL
}
