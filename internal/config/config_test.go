package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.ContextWindow != 10 {
		t.Fatalf("ContextWindow = %d, want 10", cfg.ContextWindow)
	}
	if cfg.MetricsNamespace != "portalchat" {
		t.Fatalf("MetricsNamespace = %q", cfg.MetricsNamespace)
	}
	if cfg.ShutdownTimeout != 15*time.Second {
		t.Fatalf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
	if cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin should default to false")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_BIND_ADDR", ":9999")
	t.Setenv("CHAT_CONTEXT_WINDOW", "25")
	t.Setenv("APP_SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "true")
	t.Setenv("OPENAI_API_KEY", "  sk-test  ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9999" {
		t.Fatalf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.ContextWindow != 25 {
		t.Fatalf("ContextWindow = %d", cfg.ContextWindow)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Fatalf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
	if !cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin should be true")
	}
	if cfg.OpenAIAPIKey != "sk-test" {
		t.Fatalf("OpenAIAPIKey = %q, want trimmed value", cfg.OpenAIAPIKey)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{"CHAT_CONTEXT_WINDOW", "zero"},
		{"CHAT_CONTEXT_WINDOW", "0"},
		{"CHAT_CONTEXT_WINDOW", "-3"},
		{"APP_SHUTDOWN_TIMEOUT", "soon"},
		{"APP_SHUTDOWN_TIMEOUT", "10ms"},
		{"APP_ALLOW_ANY_ORIGIN", "maybe"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() should fail for %s=%s", tc.key, tc.value)
			}
		})
	}
}
