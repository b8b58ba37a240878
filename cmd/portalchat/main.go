package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/elariis/portal-chat/internal/broadcast"
	"github.com/elariis/portal-chat/internal/chat"
	"github.com/elariis/portal-chat/internal/config"
	"github.com/elariis/portal-chat/internal/httpapi"
	"github.com/elariis/portal-chat/internal/observability"
	"github.com/elariis/portal-chat/internal/provider"
	"github.com/elariis/portal-chat/internal/store"
)

func main() {
	// A local .env is a dev convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	conversationStore, err := store.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer conversationStore.Close()
	if cfg.DatabaseURL == "" {
		log.Printf("DATABASE_URL not set; using in-memory store")
	}

	remote := provider.NewRemoteProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	if remote == nil {
		log.Printf("OPENAI_API_KEY not set; rule-based replies only")
	}
	responder := provider.NewResponder(remote, provider.NewFallbackProvider(), metrics)

	hub := broadcast.NewHub(metrics)
	orchestrator := chat.NewOrchestrator(conversationStore, responder, hub, metrics, cfg.ContextWindow)

	api := httpapi.New(cfg, conversationStore, orchestrator, responder, hub, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
