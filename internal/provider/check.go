package provider

import (
	"context"
	"time"

	"github.com/elariis/portal-chat/internal/store"
)

// Check statuses for the operational self-check.
const (
	StatusSuccess  = "success"
	StatusFallback = "fallback"
	StatusError    = "error"
)

// CheckReport describes the outcome of a connectivity self-check with enough
// detail for operators to diagnose configuration problems.
type CheckReport struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Model    string `json:"model,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// CheckConnection attempts one minimal round trip against the remote model.
// Not part of the hot path; used by the aicheck CLI and the status endpoint.
func (r *Responder) CheckConnection(ctx context.Context, cfg store.ModelConfig) CheckReport {
	report := CheckReport{Service: "openai", Model: cfg.Model}

	if r.remote == nil {
		report.Status = StatusFallback
		report.Message = "no API credentials configured; rule-based replies are in use"
		return report
	}
	report.Endpoint = r.remote.BaseURL()

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	probe := cfg
	probe.MaxTokens = 5
	_, err := r.remote.Complete(ctx, []Turn{{Role: store.RoleUser, Content: "ping"}}, probe)
	if err != nil {
		report.Status = StatusError
		report.Error = err.Error()
		return report
	}

	report.Status = StatusSuccess
	return report
}
