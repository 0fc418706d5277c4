package scheduler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/filingpulse/filingpulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunHistory struct {
	latestRuns               func(ctx context.Context) ([]*domain.PipelineRun, error)
	countConsecutiveFailures func(ctx context.Context, companyID string, window int) (int, error)
	staleRuns                func(ctx context.Context, threshold time.Duration) ([]*domain.PipelineRun, error)
}

func (f *fakeRunHistory) LatestRuns(ctx context.Context) ([]*domain.PipelineRun, error) {
	return f.latestRuns(ctx)
}

func (f *fakeRunHistory) CountConsecutiveFailures(ctx context.Context, companyID string, window int) (int, error) {
	return f.countConsecutiveFailures(ctx, companyID, window)
}

func (f *fakeRunHistory) StaleRuns(ctx context.Context, threshold time.Duration) ([]*domain.PipelineRun, error) {
	return f.staleRuns(ctx, threshold)
}

func emptyHistory() *fakeRunHistory {
	return &fakeRunHistory{
		latestRuns: func(context.Context) ([]*domain.PipelineRun, error) { return nil, nil },
		staleRuns: func(context.Context, time.Duration) ([]*domain.PipelineRun, error) {
			return nil, nil
		},
	}
}

func TestEvaluateDispatchesWebhook(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	staleStart := now.Add(-3 * time.Hour)

	var received AlertPayload
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	history := &fakeRunHistory{
		latestRuns: func(context.Context) ([]*domain.PipelineRun, error) {
			return []*domain.PipelineRun{
				{ID: "run-fail", CompanyID: "c-1", Status: domain.RunStatusFailed},
				{ID: "run-ok", CompanyID: "c-2", Status: domain.RunStatusCompleted},
			}, nil
		},
		countConsecutiveFailures: func(_ context.Context, companyID string, _ int) (int, error) {
			require.Equal(t, "c-1", companyID)
			return 4, nil
		},
		staleRuns: func(_ context.Context, threshold time.Duration) ([]*domain.PipelineRun, error) {
			assert.Equal(t, DefaultStaleRunThreshold, threshold)
			return []*domain.PipelineRun{
				{ID: "run-stale", CompanyID: "c-3", Status: domain.RunStatusRunning, StartedAt: &staleStart},
			}, nil
		},
	}

	cfg := DefaultAlertConfig()
	cfg.WebhookURL = srv.URL
	alerter := NewAlerter(cfg, history, domain.FixedClock{Time: now})
	alerter.Evaluate(context.Background())

	require.Equal(t, 1, calls)
	require.Len(t, received.FailureAlerts, 1)
	assert.Equal(t, "c-1", received.FailureAlerts[0].CompanyID)
	assert.Equal(t, 4, received.FailureAlerts[0].ConsecutiveFailures)
	assert.Equal(t, "run-fail", received.FailureAlerts[0].LatestRunID)

	require.Len(t, received.StaleAlerts, 1)
	assert.Equal(t, "run-stale", received.StaleAlerts[0].RunID)
	assert.InDelta(t, 3.0, received.StaleAlerts[0].RunningHours, 0.01)
}

func TestEvaluateBelowThresholdSendsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("webhook must not be called")
	}))
	defer srv.Close()

	history := &fakeRunHistory{
		latestRuns: func(context.Context) ([]*domain.PipelineRun, error) {
			return []*domain.PipelineRun{
				{ID: "run-1", CompanyID: "c-1", Status: domain.RunStatusPartial},
			}, nil
		},
		countConsecutiveFailures: func(context.Context, string, int) (int, error) {
			return 2, nil
		},
		staleRuns: func(context.Context, time.Duration) ([]*domain.PipelineRun, error) {
			return nil, nil
		},
	}

	cfg := DefaultAlertConfig()
	cfg.WebhookURL = srv.URL
	alerter := NewAlerter(cfg, history, nil)
	alerter.Evaluate(context.Background())
}

func TestEvaluateWithoutWebhookURL(t *testing.T) {
	staleStart := time.Now().Add(-5 * time.Hour)
	history := emptyHistory()
	history.staleRuns = func(context.Context, time.Duration) ([]*domain.PipelineRun, error) {
		return []*domain.PipelineRun{
			{ID: "run-1", CompanyID: "c-1", Status: domain.RunStatusRunning, StartedAt: &staleStart},
		}, nil
	}

	alerter := NewAlerter(DefaultAlertConfig(), history, nil)
	// Alerts fire but no URL is configured; must not panic or block.
	alerter.Evaluate(context.Background())
}

func TestWebhookFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	staleStart := time.Now().Add(-5 * time.Hour)
	history := emptyHistory()
	history.staleRuns = func(context.Context, time.Duration) ([]*domain.PipelineRun, error) {
		return []*domain.PipelineRun{
			{ID: "run-1", CompanyID: "c-1", Status: domain.RunStatusRunning, StartedAt: &staleStart},
		}, nil
	}

	cfg := DefaultAlertConfig()
	cfg.WebhookURL = srv.URL
	alerter := NewAlerter(cfg, history, nil)
	alerter.Evaluate(context.Background())
}

func TestWebhookHost(t *testing.T) {
	assert.Equal(t, "hooks.example.com", webhookHost("https://hooks.example.com/path?token=secret"))
	assert.Equal(t, "invalid-url", webhookHost("://nope"))
}
