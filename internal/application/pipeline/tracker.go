package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/filingpulse/filingpulse/internal/domain"
	"github.com/google/uuid"
)

// DefaultFailureWindow is how many recent runs the consecutive-failure
// counter inspects.
const DefaultFailureWindow = 10

// Tracker aggregates the jobs of one high-level request into a single
// observable pipeline run with partial-failure semantics.
type Tracker struct {
	repo  Repository
	clock domain.Clock
}

// NewTracker creates a run tracker. A nil clock defaults to the system clock.
func NewTracker(repo Repository, clock domain.Clock) *Tracker {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Tracker{repo: repo, clock: clock}
}

// CreateRun records a new pending run for a company.
func (t *Tracker) CreateRun(ctx context.Context, companyID string, forms []string, trigger domain.RunTrigger, metadata map[string]any) (*domain.PipelineRun, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}

	run := &domain.PipelineRun{
		ID:        id.String(),
		CompanyID: companyID,
		Trigger:   trigger,
		Status:    domain.RunStatusPending,
		Forms:     forms,
		Metadata:  metadata,
		CreatedAt: t.clock.Now(),
	}
	if err := t.repo.InsertRun(ctx, run); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// StartRun transitions a run to running.
func (t *Tracker) StartRun(ctx context.Context, id string) (*domain.PipelineRun, error) {
	return t.repo.MarkRunRunning(ctx, id, t.clock.Now())
}

// CompleteRun finalizes a run whose jobs all reported an outcome: partial
// when any failed, completed otherwise. Counters are written exactly once.
func (t *Tracker) CompleteRun(ctx context.Context, id string, jobsCreated, jobsCompleted, jobsFailed int) (*domain.PipelineRun, error) {
	status := domain.ClassifyRun(jobsFailed)
	return t.repo.FinishRun(ctx, id, status, jobsCreated, jobsCompleted, jobsFailed, nil, t.clock.Now())
}

// FailRun finalizes a run as failed unconditionally, recording the top-level
// error.
func (t *Tracker) FailRun(ctx context.Context, id, errMsg string, jobsCreated, jobsCompleted, jobsFailed int) (*domain.PipelineRun, error) {
	return t.repo.FinishRun(ctx, id, domain.RunStatusFailed, jobsCreated, jobsCompleted, jobsFailed, &errMsg, t.clock.Now())
}

// GetRun returns one run.
func (t *Tracker) GetRun(ctx context.Context, id string) (*domain.PipelineRun, error) {
	return t.repo.GetRun(ctx, id)
}

// ListRuns returns recent runs, newest first.
func (t *Tracker) ListRuns(ctx context.Context, limit, offset int) ([]*domain.PipelineRun, error) {
	return t.repo.ListRuns(ctx, limit, offset)
}

// LatestRuns returns the most recent started run per company.
func (t *Tracker) LatestRuns(ctx context.Context) ([]*domain.PipelineRun, error) {
	return t.repo.LatestRunPerCompany(ctx)
}

// CountConsecutiveFailures returns the number of leading failed/partial runs
// in the company's history, newest first, within the given window. A
// successful run resets the count. window <= 0 uses DefaultFailureWindow.
func (t *Tracker) CountConsecutiveFailures(ctx context.Context, companyID string, window int) (int, error) {
	if window <= 0 {
		window = DefaultFailureWindow
	}
	runs, err := t.repo.ListRunsForCompany(ctx, companyID, window)
	if err != nil {
		return 0, fmt.Errorf("list runs for company %s: %w", companyID, err)
	}
	return domain.CountLeadingFailures(runs), nil
}

// StaleRuns returns runs still marked running whose started_at is older than
// threshold. Read-time predicate; nothing is stored.
func (t *Tracker) StaleRuns(ctx context.Context, threshold time.Duration) ([]*domain.PipelineRun, error) {
	cutoff := t.clock.Now().Add(-threshold)
	return t.repo.ListRunningStartedBefore(ctx, cutoff)
}
