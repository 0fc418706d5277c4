package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/filingpulse/filingpulse/internal/application/worker"
	"github.com/filingpulse/filingpulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEdgar struct {
	getRecentFilings  func(ctx context.Context, ticker, form string, count int) ([]domain.FilingRef, error)
	getCurrentFilings func(ctx context.Context, form string) ([]domain.FilingRef, error)
}

func (f *fakeEdgar) GetRecentFilings(ctx context.Context, ticker, form string, count int) ([]domain.FilingRef, error) {
	return f.getRecentFilings(ctx, ticker, form, count)
}

func (f *fakeEdgar) GetCurrentFilings(ctx context.Context, form string) ([]domain.FilingRef, error) {
	return f.getCurrentFilings(ctx, form)
}

type fakeStore struct {
	listTrackedCompanies     func(ctx context.Context) ([]*domain.Company, error)
	knownAccessionNumbers    func(ctx context.Context, companyID, form string) (map[string]struct{}, error)
	allKnownAccessionNumbers func(ctx context.Context) (map[string]struct{}, error)
}

func (f *fakeStore) ListTrackedCompanies(ctx context.Context) ([]*domain.Company, error) {
	return f.listTrackedCompanies(ctx)
}

func (f *fakeStore) KnownAccessionNumbers(ctx context.Context, companyID, form string) (map[string]struct{}, error) {
	return f.knownAccessionNumbers(ctx, companyID, form)
}

func (f *fakeStore) AllKnownAccessionNumbers(ctx context.Context) (map[string]struct{}, error) {
	return f.allKnownAccessionNumbers(ctx)
}

type fakeQueue struct {
	inserted []domain.JobSpec
	fail     bool
}

func (f *fakeQueue) InsertJob(_ context.Context, spec domain.JobSpec) (*domain.Job, error) {
	if f.fail {
		return nil, errors.New("queue unavailable")
	}
	f.inserted = append(f.inserted, spec)
	return &domain.Job{ID: "job-1", Type: spec.Type, Priority: spec.Priority}, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Forms = []string{"10-K"}
	return cfg
}

func TestTickEnqueuesOneJobPerCompanyWithNewFilings(t *testing.T) {
	now := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	companies := []*domain.Company{
		{ID: "c-aapl", Ticker: "AAPL"},
		{ID: "c-msft", Ticker: "MSFT"},
		{ID: "c-orcl", Ticker: "ORCL"},
	}

	edgar := &fakeEdgar{
		getRecentFilings: func(_ context.Context, ticker, form string, _ int) ([]domain.FilingRef, error) {
			switch ticker {
			case "AAPL":
				// Two new filings must still produce exactly one job.
				return []domain.FilingRef{
					{AccessionNumber: "acc-aapl-1", Form: form, FilingDate: now.AddDate(0, 0, -2)},
					{AccessionNumber: "acc-aapl-2", Form: form, FilingDate: now.AddDate(0, 0, -5)},
				}, nil
			case "MSFT":
				// Already ingested.
				return []domain.FilingRef{
					{AccessionNumber: "acc-msft-1", Form: form, FilingDate: now.AddDate(0, 0, -3)},
				}, nil
			default:
				// Outside the lookback window.
				return []domain.FilingRef{
					{AccessionNumber: "acc-orcl-1", Form: form, FilingDate: now.AddDate(0, 0, -90)},
				}, nil
			}
		},
	}
	store := &fakeStore{
		listTrackedCompanies: func(context.Context) ([]*domain.Company, error) {
			return companies, nil
		},
		knownAccessionNumbers: func(_ context.Context, companyID, _ string) (map[string]struct{}, error) {
			if companyID == "c-msft" {
				return map[string]struct{}{"acc-msft-1": {}}, nil
			}
			return map[string]struct{}{}, nil
		},
	}
	queue := &fakeQueue{}

	sched := New(testConfig(), edgar, store, queue, nil, domain.FixedClock{Time: now})
	require.NoError(t, sched.Tick(context.Background()))

	require.Len(t, queue.inserted, 1)
	spec := queue.inserted[0]
	assert.Equal(t, domain.JobTypeFullPipeline, spec.Type)
	assert.Equal(t, domain.PriorityNormal, spec.Priority)

	var params worker.FullPipelineParams
	require.NoError(t, json.Unmarshal(spec.Params, &params))
	assert.Equal(t, "AAPL", params.Ticker)
	assert.Equal(t, []string{"10-K"}, params.Forms)
	assert.Equal(t, string(domain.RunTriggerScheduled), params.Trigger)
}

func TestTickSwallowsPerTickerErrors(t *testing.T) {
	now := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	edgar := &fakeEdgar{
		getRecentFilings: func(_ context.Context, ticker, form string, _ int) ([]domain.FilingRef, error) {
			if ticker == "BAD" {
				return nil, errors.New("edgar 503")
			}
			return []domain.FilingRef{
				{AccessionNumber: "acc-1", Form: form, FilingDate: now.AddDate(0, 0, -1)},
			}, nil
		},
	}
	store := &fakeStore{
		listTrackedCompanies: func(context.Context) ([]*domain.Company, error) {
			return []*domain.Company{
				{ID: "c-bad", Ticker: "BAD"},
				{ID: "c-good", Ticker: "GOOD"},
			}, nil
		},
		knownAccessionNumbers: func(context.Context, string, string) (map[string]struct{}, error) {
			return map[string]struct{}{}, nil
		},
	}
	queue := &fakeQueue{}

	sched := New(testConfig(), edgar, store, queue, nil, domain.FixedClock{Time: now})
	require.NoError(t, sched.Tick(context.Background()))

	require.Len(t, queue.inserted, 1)
	var params worker.FullPipelineParams
	require.NoError(t, json.Unmarshal(queue.inserted[0].Params, &params))
	assert.Equal(t, "GOOD", params.Ticker)
}

func TestBulkDiscoveryBatching(t *testing.T) {
	now := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)

	// 120 unknown filings with a batch size of 50 must yield 50+50+20.
	var feed []domain.FilingRef
	for i := 0; i < 120; i++ {
		feed = append(feed, domain.FilingRef{
			AccessionNumber: fmt.Sprintf("acc-%03d", i),
			Form:            "10-K",
			FilingDate:      now,
		})
	}

	edgar := &fakeEdgar{
		getRecentFilings: func(context.Context, string, string, int) ([]domain.FilingRef, error) {
			return nil, nil
		},
		getCurrentFilings: func(_ context.Context, form string) ([]domain.FilingRef, error) {
			return feed, nil
		},
	}
	store := &fakeStore{
		listTrackedCompanies: func(context.Context) ([]*domain.Company, error) {
			return nil, nil
		},
		allKnownAccessionNumbers: func(context.Context) (map[string]struct{}, error) {
			return map[string]struct{}{}, nil
		},
	}
	queue := &fakeQueue{}

	cfg := testConfig()
	cfg.BulkIngestEnabled = true
	sched := New(cfg, edgar, store, queue, nil, domain.FixedClock{Time: now})
	require.NoError(t, sched.Tick(context.Background()))

	require.Len(t, queue.inserted, 3)
	sizes := make([]int, 0, 3)
	for _, spec := range queue.inserted {
		assert.Equal(t, domain.JobTypeBulkIngest, spec.Type)
		assert.Equal(t, domain.PriorityLow, spec.Priority)
		var params worker.BulkIngestParams
		require.NoError(t, json.Unmarshal(spec.Params, &params))
		sizes = append(sizes, len(params.Filings))
	}
	assert.Equal(t, []int{50, 50, 20}, sizes)
}

func TestBulkDiscoverySkipsKnownAccessions(t *testing.T) {
	now := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	edgar := &fakeEdgar{
		getRecentFilings: func(context.Context, string, string, int) ([]domain.FilingRef, error) {
			return nil, nil
		},
		getCurrentFilings: func(context.Context, string) ([]domain.FilingRef, error) {
			return []domain.FilingRef{
				{AccessionNumber: "known-1", Form: "10-K"},
				{AccessionNumber: "new-1", Form: "10-K"},
			}, nil
		},
	}
	store := &fakeStore{
		listTrackedCompanies: func(context.Context) ([]*domain.Company, error) {
			return nil, nil
		},
		allKnownAccessionNumbers: func(context.Context) (map[string]struct{}, error) {
			return map[string]struct{}{"known-1": {}}, nil
		},
	}
	queue := &fakeQueue{}

	cfg := testConfig()
	cfg.BulkIngestEnabled = true
	sched := New(cfg, edgar, store, queue, nil, domain.FixedClock{Time: now})
	require.NoError(t, sched.Tick(context.Background()))

	require.Len(t, queue.inserted, 1)
	var params worker.BulkIngestParams
	require.NoError(t, json.Unmarshal(queue.inserted[0].Params, &params))
	require.Len(t, params.Filings, 1)
	assert.Equal(t, "new-1", params.Filings[0].AccessionNumber)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	edgar := &fakeEdgar{
		getRecentFilings: func(context.Context, string, string, int) ([]domain.FilingRef, error) {
			return nil, nil
		},
	}
	store := &fakeStore{
		listTrackedCompanies: func(context.Context) ([]*domain.Company, error) {
			return nil, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	sched := New(testConfig(), edgar, store, &fakeQueue{}, nil, nil)

	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}
