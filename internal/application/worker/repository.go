package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/filingpulse/filingpulse/internal/domain"
)

// Queue is the durable job queue surface the worker depends on.
// All methods are safe for concurrent use by multiple worker processes.
// Claiming is atomic: two concurrent ClaimNextPending calls never return the
// same job.
type Queue interface {
	// InsertJob validates the spec and persists a new pending job.
	InsertJob(ctx context.Context, spec domain.JobSpec) (*domain.Job, error)

	// GetJob returns a job by id, or domain.ErrJobNotFound.
	GetJob(ctx context.Context, id string) (*domain.Job, error)

	// ListJobs returns jobs matching the filter, newest first.
	ListJobs(ctx context.Context, filter domain.JobFilter, limit, offset int) ([]*domain.Job, error)

	// ClaimNextPending atomically leases the next pending job, ordered by
	// (priority, created_at). Returns nil when no job is available.
	ClaimNextPending(ctx context.Context, workerID string) (*domain.Job, error)

	// CompleteJob marks a leased job completed and stores the result verbatim.
	CompleteJob(ctx context.Context, id string, result json.RawMessage) (*domain.Job, error)

	// FailJob records the error and applies the retry policy: the job
	// re-enters pending with its insertion time preserved while budget
	// remains, otherwise it is terminally failed.
	FailJob(ctx context.Context, id, errMsg string) (*domain.Job, error)

	// FailJobTerminal fails a job without consuming retries. Used for
	// configuration defects such as a missing handler.
	FailJobTerminal(ctx context.Context, id, errMsg string) (*domain.Job, error)

	// CancelPendingJob cancels a job only if it is still pending.
	// Returns domain.ErrJobNotCancellable otherwise.
	CancelPendingJob(ctx context.Context, id string) (*domain.Job, error)

	// SweepStale fails every in_progress job not updated within threshold,
	// using the normal retry policy with a distinguished stale error.
	// Returns the jobs transitioned.
	SweepStale(ctx context.Context, threshold time.Duration) ([]*domain.Job, error)
}
