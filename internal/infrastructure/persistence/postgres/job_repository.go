package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/filingpulse/filingpulse/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// jobColumns is the select list every job query shares. Duration is derived,
// never stored.
const jobColumns = `
	id, type, params, priority, status, worker_id, retry_count, max_retries,
	result, error, created_at, updated_at, started_at, completed_at,
	EXTRACT(EPOCH FROM (completed_at - started_at))::float8`

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	err := row.Scan(
		&job.ID,
		&job.Type,
		&job.Params,
		&job.Priority,
		&job.Status,
		&job.WorkerID,
		&job.RetryCount,
		&job.MaxRetries,
		&job.Result,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.StartedAt,
		&job.CompletedAt,
		&job.DurationSeconds,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// InsertJob validates the spec and persists a new pending job.
func (s *Store) InsertJob(ctx context.Context, spec domain.JobSpec) (*domain.Job, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate job ID: %w", err)
	}
	now := s.clock.Now()

	params := spec.Params
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO jobs (id, type, params, priority, status, retry_count, max_retries, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'pending', 0, $5, $6, $6)
		RETURNING`+jobColumns,
		id.String(), spec.Type, params, spec.Priority, spec.MaxRetries, now)

	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}
	return job, nil
}

// GetJob returns a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: job %s", domain.ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs matching the filter, newest first.
func (s *Store) ListJobs(ctx context.Context, filter domain.JobFilter, limit, offset int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT`+jobColumns+`
		FROM jobs
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR type = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		string(filter.Status), string(filter.Type), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ClaimNextPending atomically leases the next pending job ordered by
// (priority, created_at). SKIP LOCKED guarantees two concurrent claims never
// return the same job; the losing claimer simply sees the next row or none.
func (s *Store) ClaimNextPending(ctx context.Context, workerID string) (*domain.Job, error) {
	now := s.clock.Now()

	row := s.pool.QueryRow(ctx, `
		WITH next AS (
			SELECT id FROM jobs
			WHERE status = 'pending'
			ORDER BY priority, created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE jobs SET
			status = 'in_progress',
			worker_id = $1,
			started_at = $2,
			updated_at = $2
		FROM next
		WHERE jobs.id = next.id
		RETURNING`+jobColumns,
		workerID, now)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // queue empty
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return job, nil
}

// CompleteJob marks a leased job completed and stores the result verbatim.
func (s *Store) CompleteJob(ctx context.Context, id string, result json.RawMessage) (*domain.Job, error) {
	now := s.clock.Now()

	row := s.pool.QueryRow(ctx, `
		UPDATE jobs SET
			status = 'completed',
			result = $2,
			error = NULL,
			completed_at = $3,
			updated_at = $3
		WHERE id = $1 AND status = 'in_progress'
		RETURNING`+jobColumns,
		id, result, now)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyMissedUpdate(ctx, id)
		}
		return nil, fmt.Errorf("failed to complete job: %w", err)
	}
	return job, nil
}

// FailJob records the error and applies the retry policy: while budget
// remains the job re-enters pending with its insertion time preserved,
// otherwise it is terminally failed.
func (s *Store) FailJob(ctx context.Context, id, errMsg string) (*domain.Job, error) {
	now := s.clock.Now()

	row := s.pool.QueryRow(ctx, `
		UPDATE jobs SET
			status       = CASE WHEN retry_count < max_retries THEN 'pending' ELSE 'failed' END,
			retry_count  = CASE WHEN retry_count < max_retries THEN retry_count + 1 ELSE retry_count END,
			worker_id    = NULL,
			started_at   = CASE WHEN retry_count < max_retries THEN NULL ELSE started_at END,
			completed_at = CASE WHEN retry_count < max_retries THEN NULL ELSE $3 END,
			error        = $2,
			updated_at   = $3
		WHERE id = $1 AND status = 'in_progress'
		RETURNING`+jobColumns,
		id, errMsg, now)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyMissedUpdate(ctx, id)
		}
		return nil, fmt.Errorf("failed to fail job: %w", err)
	}
	return job, nil
}

// FailJobTerminal fails a job without consuming retries. Used for
// configuration defects such as a missing handler.
func (s *Store) FailJobTerminal(ctx context.Context, id, errMsg string) (*domain.Job, error) {
	now := s.clock.Now()

	row := s.pool.QueryRow(ctx, `
		UPDATE jobs SET
			status = 'failed',
			worker_id = NULL,
			error = $2,
			completed_at = $3,
			updated_at = $3
		WHERE id = $1 AND status = 'in_progress'
		RETURNING`+jobColumns,
		id, errMsg, now)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyMissedUpdate(ctx, id)
		}
		return nil, fmt.Errorf("failed to terminal-fail job: %w", err)
	}
	return job, nil
}

// CancelPendingJob cancels a job only while it is still pending. In-flight and
// terminal jobs are never cancelled out from under a worker.
func (s *Store) CancelPendingJob(ctx context.Context, id string) (*domain.Job, error) {
	now := s.clock.Now()

	row := s.pool.QueryRow(ctx, `
		UPDATE jobs SET
			status = 'cancelled',
			completed_at = $2,
			updated_at = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING`+jobColumns,
		id, now)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := s.GetJob(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, fmt.Errorf("%w: job %s is not pending", domain.ErrJobNotCancellable, id)
		}
		return nil, fmt.Errorf("failed to cancel job: %w", err)
	}
	return job, nil
}

// SweepStale applies the normal retry policy to every in_progress job whose
// last update is older than threshold, with a distinguished stale error.
// Returns the jobs transitioned.
func (s *Store) SweepStale(ctx context.Context, threshold time.Duration) ([]*domain.Job, error) {
	now := s.clock.Now()
	cutoff := now.Add(-threshold)
	staleMsg := fmt.Sprintf("Stale: no update for %ds", int(threshold.Seconds()))

	rows, err := s.pool.Query(ctx, `
		UPDATE jobs SET
			status       = CASE WHEN retry_count < max_retries THEN 'pending' ELSE 'failed' END,
			retry_count  = CASE WHEN retry_count < max_retries THEN retry_count + 1 ELSE retry_count END,
			worker_id    = NULL,
			started_at   = CASE WHEN retry_count < max_retries THEN NULL ELSE started_at END,
			completed_at = CASE WHEN retry_count < max_retries THEN NULL ELSE $2 END,
			error        = $1,
			updated_at   = $2
		WHERE status = 'in_progress' AND updated_at < $3
		RETURNING`+jobColumns,
		staleMsg, now, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to sweep stale jobs: %w", err)
	}
	defer rows.Close()

	var swept []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan swept job: %w", err)
		}
		swept = append(swept, job)
	}
	return swept, rows.Err()
}

// classifyMissedUpdate distinguishes "job gone" from "lease lost" after an
// in_progress-guarded UPDATE matched no rows.
func (s *Store) classifyMissedUpdate(ctx context.Context, id string) error {
	if _, err := s.GetJob(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s is no longer in progress", domain.ErrJobOwnershipLost, id)
}
