package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/filingpulse/filingpulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	insertRun                func(ctx context.Context, run *domain.PipelineRun) error
	getRun                   func(ctx context.Context, id string) (*domain.PipelineRun, error)
	markRunRunning           func(ctx context.Context, id string, startedAt time.Time) (*domain.PipelineRun, error)
	finishRun                func(ctx context.Context, id string, status domain.RunStatus, created, completed, failed int, errMsg *string, completedAt time.Time) (*domain.PipelineRun, error)
	latestRunPerCompany      func(ctx context.Context) ([]*domain.PipelineRun, error)
	listRunsForCompany       func(ctx context.Context, companyID string, limit int) ([]*domain.PipelineRun, error)
	listRunningStartedBefore func(ctx context.Context, cutoff time.Time) ([]*domain.PipelineRun, error)
	listRuns                 func(ctx context.Context, limit, offset int) ([]*domain.PipelineRun, error)
}

func (f *fakeRepo) InsertRun(ctx context.Context, run *domain.PipelineRun) error {
	return f.insertRun(ctx, run)
}

func (f *fakeRepo) GetRun(ctx context.Context, id string) (*domain.PipelineRun, error) {
	return f.getRun(ctx, id)
}

func (f *fakeRepo) MarkRunRunning(ctx context.Context, id string, startedAt time.Time) (*domain.PipelineRun, error) {
	return f.markRunRunning(ctx, id, startedAt)
}

func (f *fakeRepo) FinishRun(ctx context.Context, id string, status domain.RunStatus, created, completed, failed int, errMsg *string, completedAt time.Time) (*domain.PipelineRun, error) {
	return f.finishRun(ctx, id, status, created, completed, failed, errMsg, completedAt)
}

func (f *fakeRepo) LatestRunPerCompany(ctx context.Context) ([]*domain.PipelineRun, error) {
	return f.latestRunPerCompany(ctx)
}

func (f *fakeRepo) ListRunsForCompany(ctx context.Context, companyID string, limit int) ([]*domain.PipelineRun, error) {
	return f.listRunsForCompany(ctx, companyID, limit)
}

func (f *fakeRepo) ListRunningStartedBefore(ctx context.Context, cutoff time.Time) ([]*domain.PipelineRun, error) {
	return f.listRunningStartedBefore(ctx, cutoff)
}

func (f *fakeRepo) ListRuns(ctx context.Context, limit, offset int) ([]*domain.PipelineRun, error) {
	return f.listRuns(ctx, limit, offset)
}

func TestCreateRunDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var inserted *domain.PipelineRun
	repo := &fakeRepo{
		insertRun: func(_ context.Context, run *domain.PipelineRun) error {
			inserted = run
			return nil
		},
	}
	tracker := NewTracker(repo, domain.FixedClock{Time: now})

	run, err := tracker.CreateRun(context.Background(), "company-1", []string{"10-K"}, domain.RunTriggerScheduled, map[string]any{"ticker": "AAPL"})
	require.NoError(t, err)
	require.NotNil(t, inserted)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "company-1", run.CompanyID)
	assert.Equal(t, domain.RunStatusPending, run.Status)
	assert.Equal(t, domain.RunTriggerScheduled, run.Trigger)
	assert.Equal(t, []string{"10-K"}, run.Forms)
	assert.Equal(t, now, run.CreatedAt)
	assert.Nil(t, run.StartedAt)
	assert.Nil(t, run.CompletedAt)
}

func TestCompleteRunClassification(t *testing.T) {
	tests := []struct {
		name       string
		jobsFailed int
		want       domain.RunStatus
	}{
		{name: "all succeeded", jobsFailed: 0, want: domain.RunStatusCompleted},
		{name: "one failed", jobsFailed: 1, want: domain.RunStatusPartial},
		{name: "many failed", jobsFailed: 4, want: domain.RunStatusPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotStatus domain.RunStatus
			repo := &fakeRepo{
				finishRun: func(_ context.Context, id string, status domain.RunStatus, created, completed, failed int, errMsg *string, _ time.Time) (*domain.PipelineRun, error) {
					gotStatus = status
					assert.Nil(t, errMsg)
					return &domain.PipelineRun{ID: id, Status: status, JobsCreated: created, JobsCompleted: completed, JobsFailed: failed}, nil
				},
			}
			tracker := NewTracker(repo, nil)

			run, err := tracker.CompleteRun(context.Background(), "run-1", 5, 5-tt.jobsFailed, tt.jobsFailed)
			require.NoError(t, err)
			assert.Equal(t, tt.want, gotStatus)
			assert.Equal(t, tt.want, run.Status)
		})
	}
}

func TestFailRunRecordsError(t *testing.T) {
	repo := &fakeRepo{
		finishRun: func(_ context.Context, id string, status domain.RunStatus, _, _, _ int, errMsg *string, _ time.Time) (*domain.PipelineRun, error) {
			assert.Equal(t, domain.RunStatusFailed, status)
			require.NotNil(t, errMsg)
			assert.Equal(t, "edgar unreachable", *errMsg)
			return &domain.PipelineRun{ID: id, Status: status, Error: errMsg}, nil
		},
	}
	tracker := NewTracker(repo, nil)

	run, err := tracker.FailRun(context.Background(), "run-1", "edgar unreachable", 4, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
}

func TestCountConsecutiveFailures(t *testing.T) {
	failed := domain.RunStatusFailed
	partial := domain.RunStatusPartial
	completed := domain.RunStatusCompleted

	history := func(statuses ...domain.RunStatus) []*domain.PipelineRun {
		runs := make([]*domain.PipelineRun, len(statuses))
		for i, s := range statuses {
			runs[i] = &domain.PipelineRun{Status: s}
		}
		return runs
	}

	tests := []struct {
		name string
		runs []*domain.PipelineRun
		want int
	}{
		{name: "no runs", runs: nil, want: 0},
		{name: "latest succeeded", runs: history(completed, failed, failed), want: 0},
		{name: "streak of three", runs: history(failed, partial, failed, completed, failed), want: 3},
		{name: "partial counts as failure", runs: history(partial, partial), want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit int
			repo := &fakeRepo{
				listRunsForCompany: func(_ context.Context, companyID string, limit int) ([]*domain.PipelineRun, error) {
					assert.Equal(t, "company-1", companyID)
					gotLimit = limit
					return tt.runs, nil
				},
			}
			tracker := NewTracker(repo, nil)

			count, err := tracker.CountConsecutiveFailures(context.Background(), "company-1", 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, count)
			assert.Equal(t, DefaultFailureWindow, gotLimit)
		})
	}
}

func TestStaleRunsCutoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		listRunningStartedBefore: func(_ context.Context, cutoff time.Time) ([]*domain.PipelineRun, error) {
			assert.Equal(t, now.Add(-2*time.Hour), cutoff)
			return []*domain.PipelineRun{{ID: "run-1", Status: domain.RunStatusRunning}}, nil
		},
	}
	tracker := NewTracker(repo, domain.FixedClock{Time: now})

	stale, err := tracker.StaleRuns(context.Background(), 2*time.Hour)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "run-1", stale[0].ID)
}
