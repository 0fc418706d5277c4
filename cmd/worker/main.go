// The worker binary leases jobs from the queue and executes them one at a
// time. Scale horizontally by running more worker processes.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/filingpulse/filingpulse/internal/application/pipeline"
	"github.com/filingpulse/filingpulse/internal/application/worker"
	"github.com/filingpulse/filingpulse/internal/config"
	"github.com/filingpulse/filingpulse/internal/domain"
	"github.com/filingpulse/filingpulse/internal/infrastructure/edgar"
	"github.com/filingpulse/filingpulse/internal/infrastructure/extract"
	"github.com/filingpulse/filingpulse/internal/infrastructure/llm"
	"github.com/filingpulse/filingpulse/internal/infrastructure/persistence/postgres"
	"github.com/filingpulse/filingpulse/pkg/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg config.Worker
	if err := config.Load(&cfg); err != nil {
		return err
	}

	obs, err := observability.Init(ctx, cfg.Observability.ServiceName+"-worker", cfg.Observability.Enabled)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	slog.SetDefault(obs.Logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			slog.Error("observability shutdown failed", "error", err)
		}
	}()

	store, err := postgres.NewStoreWithConfig(ctx, postgres.DBConfig{
		DSN:             cfg.DB.URL,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	}, domain.SystemClock{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	edgarClient := edgar.NewClient(cfg.Edgar.Contact, edgar.WithRateLimit(cfg.Edgar.RateLimit))
	extractor := extract.New(edgarClient)
	llmClient := llm.NewAnthropicClient(cfg.LLM.APIKey,
		llm.WithModel(cfg.LLM.Model),
		llm.WithMaxTokens(cfg.LLM.MaxTokens))
	tracker := pipeline.NewTracker(store, domain.SystemClock{})

	handlers := worker.NewHandlers(store, tracker, edgarClient, extractor, llmClient, store,
		cfg.LLM.Timeout(), nil)
	registry, err := handlers.Registry()
	if err != nil {
		return fmt.Errorf("failed to build handler registry: %w", err)
	}

	workerCfg := worker.DefaultConfig()
	workerCfg.PollInterval = cfg.PollInterval()
	workerCfg.StaleThreshold = cfg.StaleThreshold()
	workerCfg.StaleCheckInterval = cfg.StaleCheckInterval()

	w := worker.New(store, registry, workerCfg, nil)
	return w.Run(ctx)
}
