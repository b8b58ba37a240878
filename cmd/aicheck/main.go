// Command aicheck verifies AI service connectivity for operators: it loads
// the service configuration, performs one minimal round trip against the
// remote model, and reports a tri-state outcome.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/elariis/portal-chat/internal/config"
	"github.com/elariis/portal-chat/internal/provider"
	"github.com/elariis/portal-chat/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	conversationStore, err := store.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer conversationStore.Close()

	modelCfg, err := conversationStore.ActiveConfig(ctx)
	if err != nil {
		log.Fatalf("load model config failed: %v", err)
	}

	remote := provider.NewRemoteProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	responder := provider.NewResponder(remote, provider.NewFallbackProvider(), nil)

	fmt.Println("Testing AI service connection...")
	report := responder.CheckConnection(ctx, modelCfg)

	fmt.Printf("Status:  %s\n", report.Status)
	fmt.Printf("Service: %s\n", report.Service)
	if report.Model != "" {
		fmt.Printf("Model:   %s\n", report.Model)
	}
	if report.Endpoint != "" {
		fmt.Printf("Endpoint: %s\n", report.Endpoint)
	}

	switch report.Status {
	case provider.StatusSuccess:
		fmt.Println("AI service connection successful.")
	case provider.StatusFallback:
		fmt.Printf("Using fallback responses: %s\n", report.Message)
	default:
		fmt.Printf("AI service connection failed: %s\n", report.Error)
		os.Exit(1)
	}
}
