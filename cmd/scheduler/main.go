// The scheduler binary discovers new filings on EDGAR, enqueues pipeline
// jobs, and evaluates alert predicates. Run exactly one instance.
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
	"github.com/filingpulse/filingpulse/internal/application/scheduler"
	"github.com/filingpulse/filingpulse/internal/config"
	"github.com/filingpulse/filingpulse/internal/domain"
	"github.com/filingpulse/filingpulse/internal/infrastructure/edgar"
	"github.com/filingpulse/filingpulse/internal/infrastructure/persistence/postgres"
	"github.com/filingpulse/filingpulse/pkg/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "scheduler: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg config.Scheduler
	if err := config.Load(&cfg); err != nil {
		return err
	}

	obs, err := observability.Init(ctx, cfg.Observability.ServiceName+"-scheduler", cfg.Observability.Enabled)
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
	tracker := pipeline.NewTracker(store, domain.SystemClock{})

	schedCfg := scheduler.Config{
		PollInterval:      cfg.PollInterval(),
		Forms:             cfg.EnabledForms,
		LookbackDays:      cfg.FilingLookbackDays,
		BulkIngestEnabled: cfg.BulkIngestEnabled,
		BulkBatchSize:     cfg.BulkIngestBatchSize,
		Alerts: scheduler.AlertConfig{
			ConsecutiveFailureThreshold: cfg.AlertConsecutiveFailureThreshold,
			StaleRunThreshold:           cfg.AlertStaleRunThreshold(),
			WebhookURL:                  cfg.AlertWebhookURL,
			WebhookTimeout:              cfg.AlertWebhookTimeout(),
		},
	}

	alerter := scheduler.NewAlerter(schedCfg.Alerts, tracker, nil)
	sched := scheduler.New(schedCfg, edgarClient, store, store, alerter, nil)

	return sched.Run(ctx)
}
