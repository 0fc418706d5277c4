package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/filingpulse/filingpulse/internal/domain"
	"github.com/jackc/pgx/v5"
)

const runColumns = `
	id, company_id, trigger, status, forms, jobs_created, jobs_completed,
	jobs_failed, error, metadata, created_at, started_at, completed_at`

func scanRun(row pgx.Row) (*domain.PipelineRun, error) {
	var run domain.PipelineRun
	var metadata []byte
	err := row.Scan(
		&run.ID,
		&run.CompanyID,
		&run.Trigger,
		&run.Status,
		&run.Forms,
		&run.JobsCreated,
		&run.JobsCompleted,
		&run.JobsFailed,
		&run.Error,
		&metadata,
		&run.CreatedAt,
		&run.StartedAt,
		&run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &run.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode run metadata: %w", err)
		}
	}
	return &run, nil
}

// InsertRun persists a new run in pending state.
func (s *Store) InsertRun(ctx context.Context, run *domain.PipelineRun) error {
	metadata, err := json.Marshal(run.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode run metadata: %w", err)
	}
	forms := run.Forms
	if forms == nil {
		forms = []string{}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO pipeline_runs (id, company_id, trigger, status, forms, metadata, created_at)
		VALUES ($1, $2, $3, 'pending', $4, $5, $6)`,
		run.ID, run.CompanyID, run.Trigger, forms, metadata, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// GetRun returns a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*domain.PipelineRun, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+runColumns+` FROM pipeline_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: run %s", domain.ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// MarkRunRunning transitions a pending run to running.
func (s *Store) MarkRunRunning(ctx context.Context, id string, startedAt time.Time) (*domain.PipelineRun, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE pipeline_runs SET
			status = 'running',
			started_at = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING`+runColumns,
		id, startedAt)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyMissedRunUpdate(ctx, id)
		}
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return run, nil
}

// FinishRun applies the terminal transition. Counters are written here and
// only here; a run that is already terminal is never overwritten.
func (s *Store) FinishRun(ctx context.Context, id string, status domain.RunStatus, jobsCreated, jobsCompleted, jobsFailed int, errMsg *string, completedAt time.Time) (*domain.PipelineRun, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("cannot finish run %s with non-terminal status %q", id, status)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE pipeline_runs SET
			status = $2,
			jobs_created = $3,
			jobs_completed = $4,
			jobs_failed = $5,
			error = $6,
			completed_at = $7
		WHERE id = $1 AND status IN ('pending', 'running')
		RETURNING`+runColumns,
		id, status, jobsCreated, jobsCompleted, jobsFailed, errMsg, completedAt)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyMissedRunUpdate(ctx, id)
		}
		return nil, fmt.Errorf("failed to finish run: %w", err)
	}
	return run, nil
}

// LatestRunPerCompany returns the most recent started run per company,
// newest first. Runs that never started are excluded so a pending run cannot
// mask a company's last real outcome.
func (s *Store) LatestRunPerCompany(ctx context.Context) ([]*domain.PipelineRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT * FROM (
			SELECT DISTINCT ON (company_id)`+runColumns+`
			FROM pipeline_runs
			WHERE started_at IS NOT NULL
			ORDER BY company_id, started_at DESC
		) latest
		ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest runs: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// ListRunsForCompany returns up to limit runs for a company, newest first.
func (s *Store) ListRunsForCompany(ctx context.Context, companyID string, limit int) ([]*domain.PipelineRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT`+runColumns+`
		FROM pipeline_runs
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs for company: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// ListRunningStartedBefore returns runs still running whose started_at is
// before cutoff. Feeds the stale-run alert.
func (s *Store) ListRunningStartedBefore(ctx context.Context, cutoff time.Time) ([]*domain.PipelineRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+runColumns+`
		FROM pipeline_runs
		WHERE status = 'running' AND started_at < $1
		ORDER BY started_at`,
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list running runs: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// ListRuns returns recent runs across all companies, newest first.
func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]*domain.PipelineRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT`+runColumns+`
		FROM pipeline_runs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

func collectRuns(rows pgx.Rows) ([]*domain.PipelineRun, error) {
	var runs []*domain.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) classifyMissedRunUpdate(ctx context.Context, id string) error {
	if _, err := s.GetRun(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: run %s", domain.ErrRunAlreadyTerminal, id)
}
