// The server binary exposes the admin API: job submission and inspection,
// pipeline runs, manual pipeline triggers, and generated content.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/filingpulse/filingpulse/internal/application/pipeline"
	"github.com/filingpulse/filingpulse/internal/config"
	"github.com/filingpulse/filingpulse/internal/domain"
	httpserver "github.com/filingpulse/filingpulse/internal/infrastructure/http"
	"github.com/filingpulse/filingpulse/internal/infrastructure/http/handler"
	"github.com/filingpulse/filingpulse/internal/infrastructure/persistence/postgres"
	"github.com/filingpulse/filingpulse/pkg/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg config.Server
	if err := config.Load(&cfg); err != nil {
		return err
	}

	obs, err := observability.Init(ctx, cfg.Observability.ServiceName+"-server", cfg.Observability.Enabled)
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

	tracker := pipeline.NewTracker(store, domain.SystemClock{})
	api := handler.NewAdminHandler(store, tracker, store)

	server := httpserver.NewAPIServer(api.Routes(), httpserver.ServerConfig{
		Host: cfg.Host,
		Port: cfg.Port,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return <-errCh
}
