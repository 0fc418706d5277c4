package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/filingpulse/filingpulse/internal/application/worker"
	"github.com/filingpulse/filingpulse/internal/domain"
)

// Default tick loop settings.
const (
	DefaultPollInterval  = 6 * time.Hour
	DefaultLookbackDays  = 30
	DefaultBulkBatchSize = 50
	DefaultFilingCount   = 20

	// maxSleepChunk bounds how long a shutdown signal can go unnoticed
	// between ticks.
	maxSleepChunk = 5 * time.Second
)

// EdgarClient is the filing discovery surface the scheduler polls.
type EdgarClient interface {
	GetRecentFilings(ctx context.Context, ticker, form string, count int) ([]domain.FilingRef, error)
	GetCurrentFilings(ctx context.Context, form string) ([]domain.FilingRef, error)
}

// CompanyStore reads tracked companies and their ingested filings.
type CompanyStore interface {
	ListTrackedCompanies(ctx context.Context) ([]*domain.Company, error)
	KnownAccessionNumbers(ctx context.Context, companyID, form string) (map[string]struct{}, error)
	AllKnownAccessionNumbers(ctx context.Context) (map[string]struct{}, error)
}

// JobEnqueuer inserts discovered work into the queue.
type JobEnqueuer interface {
	InsertJob(ctx context.Context, spec domain.JobSpec) (*domain.Job, error)
}

// Config configures the scheduler process.
type Config struct {
	PollInterval      time.Duration // Time between ticks (default: 6h)
	Forms             []string      // Forms to poll per tracked company (default: 10-K, 10-Q)
	LookbackDays      int           // Ignore filings older than this (default: 30)
	BulkIngestEnabled bool          // Also poll the global current-filings feed
	BulkBatchSize     int           // Filings per bulk_ingest job (default: 50)
	Alerts            AlertConfig
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval:  DefaultPollInterval,
		Forms:         []string{"10-K", "10-Q"},
		LookbackDays:  DefaultLookbackDays,
		BulkBatchSize: DefaultBulkBatchSize,
		Alerts:        DefaultAlertConfig(),
	}
}

// Scheduler periodically discovers new filings, enqueues pipeline jobs, and
// evaluates alert predicates. Single process, one tick at a time.
type Scheduler struct {
	cfg     Config
	edgar   EdgarClient
	store   CompanyStore
	queue   JobEnqueuer
	alerter *Alerter
	clock   domain.Clock
}

// New creates a scheduler. A nil clock defaults to the system clock.
func New(cfg Config, edgar EdgarClient, store CompanyStore, queue JobEnqueuer, alerter *Alerter, clock domain.Clock) *Scheduler {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if len(cfg.Forms) == 0 {
		cfg.Forms = []string{"10-K", "10-Q"}
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = DefaultLookbackDays
	}
	if cfg.BulkBatchSize <= 0 {
		cfg.BulkBatchSize = DefaultBulkBatchSize
	}
	return &Scheduler{
		cfg:     cfg,
		edgar:   edgar,
		store:   store,
		queue:   queue,
		alerter: alerter,
		clock:   clock,
	}
}

// Run ticks until ctx is cancelled. A tick in progress finishes before the
// scheduler returns.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "scheduler started",
		"poll_interval", s.cfg.PollInterval,
		"forms", s.cfg.Forms,
		"lookback_days", s.cfg.LookbackDays,
		"bulk_ingest_enabled", s.cfg.BulkIngestEnabled)

	for {
		if err := s.Tick(ctx); err != nil {
			slog.ErrorContext(ctx, "scheduler tick failed", "error", err)
		}

		if !s.sleep(ctx, s.cfg.PollInterval) {
			slog.InfoContext(ctx, "scheduler stopped")
			return nil
		}
	}
}

// Tick runs one full discovery-and-alert cycle.
func (s *Scheduler) Tick(ctx context.Context) error {
	enqueued, err := s.pollTrackedCompanies(ctx)
	if err != nil {
		return fmt.Errorf("poll tracked companies: %w", err)
	}

	if s.cfg.BulkIngestEnabled {
		if err := s.bulkDiscovery(ctx); err != nil {
			slog.ErrorContext(ctx, "bulk discovery failed", "error", err)
		}
	}

	if s.alerter != nil {
		s.alerter.Evaluate(ctx)
	}

	slog.InfoContext(ctx, "scheduler tick finished", "pipelines_enqueued", enqueued)
	return nil
}

// pollTrackedCompanies enqueues at most one full_pipeline job per tracked
// company that has new filings within the lookback window. Per-ticker errors
// are logged and swallowed so one bad ticker never starves the rest.
func (s *Scheduler) pollTrackedCompanies(ctx context.Context) (int, error) {
	companies, err := s.store.ListTrackedCompanies(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.clock.Now().AddDate(0, 0, -s.cfg.LookbackDays)
	enqueued := 0

	for _, company := range companies {
		if ctx.Err() != nil {
			return enqueued, ctx.Err()
		}

		hasNew, err := s.hasNewFilings(ctx, company, cutoff)
		if err != nil {
			slog.WarnContext(ctx, "company poll failed",
				"ticker", company.Ticker, "error", err)
			continue
		}
		if !hasNew {
			continue
		}

		spec, err := domain.NewJobSpec(domain.JobTypeFullPipeline, worker.FullPipelineParams{
			Ticker:  company.Ticker,
			Forms:   s.cfg.Forms,
			Trigger: string(domain.RunTriggerScheduled),
		})
		if err != nil {
			return enqueued, err
		}
		spec.Priority = domain.PriorityNormal

		job, err := s.queue.InsertJob(ctx, spec)
		if err != nil {
			slog.WarnContext(ctx, "enqueue pipeline failed",
				"ticker", company.Ticker, "error", err)
			continue
		}
		enqueued++
		slog.InfoContext(ctx, "enqueued scheduled pipeline",
			"ticker", company.Ticker, "job_id", job.ID)
	}
	return enqueued, nil
}

// hasNewFilings reports whether any filing of the configured forms, within
// the lookback window, is not yet in the database for this company.
func (s *Scheduler) hasNewFilings(ctx context.Context, company *domain.Company, cutoff time.Time) (bool, error) {
	for _, form := range s.cfg.Forms {
		refs, err := s.edgar.GetRecentFilings(ctx, company.Ticker, form, DefaultFilingCount)
		if err != nil {
			return false, fmt.Errorf("fetch %s filings: %w", form, err)
		}

		known, err := s.store.KnownAccessionNumbers(ctx, company.ID, form)
		if err != nil {
			return false, fmt.Errorf("list known accessions: %w", err)
		}

		for _, ref := range refs {
			if ref.FilingDate.Before(cutoff) {
				continue
			}
			if _, ok := known[ref.AccessionNumber]; !ok {
				return true, nil
			}
		}
	}
	return false, nil
}

// bulkDiscovery polls the global current-filings feed and batches unknown
// filings into bulk_ingest jobs at low priority.
func (s *Scheduler) bulkDiscovery(ctx context.Context) error {
	known, err := s.store.AllKnownAccessionNumbers(ctx)
	if err != nil {
		return fmt.Errorf("list all known accessions: %w", err)
	}

	var fresh []domain.FilingRef
	for _, form := range s.cfg.Forms {
		refs, err := s.edgar.GetCurrentFilings(ctx, form)
		if err != nil {
			slog.WarnContext(ctx, "current filings feed failed", "form", form, "error", err)
			continue
		}
		for _, ref := range refs {
			if _, ok := known[ref.AccessionNumber]; ok {
				continue
			}
			known[ref.AccessionNumber] = struct{}{}
			fresh = append(fresh, ref)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	batches := 0
	for start := 0; start < len(fresh); start += s.cfg.BulkBatchSize {
		end := min(start+s.cfg.BulkBatchSize, len(fresh))

		spec, err := domain.NewJobSpec(domain.JobTypeBulkIngest, worker.BulkIngestParams{
			Filings: fresh[start:end],
		})
		if err != nil {
			return err
		}
		spec.Priority = domain.PriorityLow

		if _, err := s.queue.InsertJob(ctx, spec); err != nil {
			return fmt.Errorf("enqueue bulk ingest batch: %w", err)
		}
		batches++
	}

	slog.InfoContext(ctx, "bulk discovery enqueued",
		"filings", len(fresh), "batches", batches)
	return nil
}

// sleep waits for d in bounded chunks, returning false once ctx is cancelled.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		chunk := min(remaining, maxSleepChunk)
		timer := time.NewTimer(chunk)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}
