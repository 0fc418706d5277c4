package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/filingpulse/filingpulse/internal/domain"
)

// Config configures one worker process.
type Config struct {
	WorkerID           string        // Unique worker identifier (hostname-pid)
	PollInterval       time.Duration // Sleep between claim attempts (default: 2s)
	StaleThreshold     time.Duration // Age after which an in_progress job is stale (default: 10min)
	StaleCheckInterval time.Duration // Time between stale sweeps (default: 1min)
}

// DefaultConfig returns the default worker configuration with a
// hostname-pid identity, stable within the process and unique across a
// cluster with overwhelming probability.
func DefaultConfig() Config {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return Config{
		WorkerID:           fmt.Sprintf("%s-%d", host, os.Getpid()),
		PollInterval:       2 * time.Second,
		StaleThreshold:     10 * time.Minute,
		StaleCheckInterval: time.Minute,
	}
}

// Worker leases jobs from the queue and dispatches them to registered
// handlers, one at a time. Concurrency is horizontal: scale by adding worker
// processes, never by threading inside one.
type Worker struct {
	queue     Queue
	registry  *Registry
	cfg       Config
	clock     domain.Clock
	lastSweep time.Time
}

// New creates a worker. A nil clock defaults to the system clock.
func New(queue Queue, registry *Registry, cfg Config, clock domain.Clock) *Worker {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = 10 * time.Minute
	}
	if cfg.StaleCheckInterval <= 0 {
		cfg.StaleCheckInterval = time.Minute
	}
	return &Worker{
		queue:    queue,
		registry: registry,
		cfg:      cfg,
		clock:    clock,
	}
}

// Run polls until ctx is cancelled. On shutdown the worker finishes reporting
// the outcome of any in-flight job before returning.
func (w *Worker) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "worker started",
		"worker_id", w.cfg.WorkerID,
		"poll_interval", w.cfg.PollInterval,
		"registered_types", w.registry.Types())

	for {
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "worker stopped", "worker_id", w.cfg.WorkerID)
			return nil
		}

		w.maybeSweepStale(ctx)

		processed, err := w.ProcessOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			slog.ErrorContext(ctx, "claim failed", "worker_id", w.cfg.WorkerID, "error", err)
			sleepCtx(ctx, w.cfg.PollInterval)
			continue
		}
		if !processed {
			sleepCtx(ctx, w.cfg.PollInterval)
		}
	}
}

// ProcessOnce claims and executes at most one job. It returns false when the
// queue was empty, and an error only for claim failures; handler outcomes are
// always absorbed into the job row.
func (w *Worker) ProcessOnce(ctx context.Context) (bool, error) {
	job, err := w.queue.ClaimNextPending(ctx, w.cfg.WorkerID)
	if err != nil {
		return false, fmt.Errorf("claim next pending: %w", err)
	}
	if job == nil {
		return false, nil
	}

	slog.InfoContext(ctx, "claimed job",
		"job_id", job.ID,
		"job_type", job.Type,
		"priority", job.Priority,
		"retry_count", job.RetryCount,
		"worker_id", w.cfg.WorkerID)

	w.dispatch(ctx, job)
	return true, nil
}

// dispatch routes a claimed job to its handler and records the outcome.
// Outcome reporting uses a non-cancellable context so an in-flight
// complete/fail still lands during shutdown.
func (w *Worker) dispatch(ctx context.Context, job *domain.Job) {
	reportCtx := context.WithoutCancel(ctx)

	handler, ok := w.registry.Get(job.Type)
	if !ok {
		// Missing handler is a configuration defect, not a transient
		// condition: terminal-fail with no retries.
		msg := fmt.Sprintf("No handler registered for %s", job.Type)
		slog.ErrorContext(ctx, "no handler registered", "job_id", job.ID, "job_type", job.Type)
		if _, err := w.queue.FailJobTerminal(reportCtx, job.ID, msg); err != nil {
			slog.ErrorContext(ctx, "failed to terminal-fail job", "job_id", job.ID, "error", err)
		}
		return
	}

	result, err := w.execute(ctx, handler, job)
	if err != nil {
		w.reportFailure(ctx, reportCtx, job, err)
		return
	}

	updated, err := w.queue.CompleteJob(reportCtx, job.ID, result)
	if err != nil {
		slog.ErrorContext(ctx, "failed to complete job", "job_id", job.ID, "error", err)
		return
	}
	slog.InfoContext(ctx, "job completed",
		"job_id", job.ID,
		"job_type", job.Type,
		"duration_seconds", floatOrZero(updated.DurationSeconds))
}

// execute runs the handler with panic recovery. A panic becomes a normal
// handler failure so the retry policy applies.
func (w *Worker) execute(ctx context.Context, handler Handler, job *domain.Job) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r, StackTrace: string(debug.Stack())}
		}
	}()
	return handler(ctx, job)
}

func (w *Worker) reportFailure(ctx, reportCtx context.Context, job *domain.Job, handlerErr error) {
	msg := handlerErr.Error()
	if IsShutdown(handlerErr) {
		msg = ShutdownFailureMessage
	}
	var panicErr PanicError
	if errors.As(handlerErr, &panicErr) {
		slog.ErrorContext(ctx, "job panicked",
			"job_id", job.ID,
			"panic_value", panicErr.Value,
			"stack_trace", panicErr.StackTrace)
	}

	updated, err := w.queue.FailJob(reportCtx, job.ID, msg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to record job failure", "job_id", job.ID, "error", err)
		return
	}
	if updated.Status == domain.JobStatusPending {
		slog.WarnContext(ctx, "job scheduled for retry",
			"job_id", job.ID,
			"retry_count", updated.RetryCount,
			"max_retries", updated.MaxRetries,
			"error", msg)
	} else {
		slog.ErrorContext(ctx, "job exhausted retries",
			"job_id", job.ID,
			"retry_count", updated.RetryCount,
			"error", msg)
	}
}

// maybeSweepStale reclaims stale leases once per StaleCheckInterval.
func (w *Worker) maybeSweepStale(ctx context.Context) {
	now := w.clock.Now()
	if !w.lastSweep.IsZero() && now.Sub(w.lastSweep) < w.cfg.StaleCheckInterval {
		return
	}
	w.lastSweep = now

	swept, err := w.queue.SweepStale(ctx, w.cfg.StaleThreshold)
	if err != nil {
		slog.ErrorContext(ctx, "stale sweep failed", "worker_id", w.cfg.WorkerID, "error", err)
		return
	}
	if len(swept) > 0 {
		slog.WarnContext(ctx, "reclaimed stale jobs",
			"count", len(swept),
			"threshold", w.cfg.StaleThreshold,
			"worker_id", w.cfg.WorkerID)
	}
}

func floatOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// sleepCtx sleeps for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
