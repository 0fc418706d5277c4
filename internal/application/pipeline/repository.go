package pipeline

import (
	"context"
	"time"

	"github.com/filingpulse/filingpulse/internal/domain"
)

// Repository defines storage operations for pipeline runs.
type Repository interface {
	// InsertRun persists a new run in pending state.
	InsertRun(ctx context.Context, run *domain.PipelineRun) error

	// GetRun returns a run by id, or domain.ErrRunNotFound.
	GetRun(ctx context.Context, id string) (*domain.PipelineRun, error)

	// MarkRunRunning transitions a pending run to running with the given
	// start time. Returns domain.ErrRunAlreadyTerminal for finalized runs.
	MarkRunRunning(ctx context.Context, id string, startedAt time.Time) (*domain.PipelineRun, error)

	// FinishRun applies the terminal transition: status, counters, optional
	// error, and completion time are written together, once.
	FinishRun(ctx context.Context, id string, status domain.RunStatus, jobsCreated, jobsCompleted, jobsFailed int, errMsg *string, completedAt time.Time) (*domain.PipelineRun, error)

	// LatestRunPerCompany returns the most recent started run per company,
	// most recent first.
	LatestRunPerCompany(ctx context.Context) ([]*domain.PipelineRun, error)

	// ListRunsForCompany returns up to limit runs for a company, newest
	// started first.
	ListRunsForCompany(ctx context.Context, companyID string, limit int) ([]*domain.PipelineRun, error)

	// ListRunningStartedBefore returns runs still in running whose
	// started_at is before cutoff.
	ListRunningStartedBefore(ctx context.Context, cutoff time.Time) ([]*domain.PipelineRun, error)

	// ListRuns returns recent runs across all companies, newest first.
	ListRuns(ctx context.Context, limit, offset int) ([]*domain.PipelineRun, error)
}
