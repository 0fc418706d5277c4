package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/filingpulse/filingpulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	insertJob        func(ctx context.Context, spec domain.JobSpec) (*domain.Job, error)
	getJob           func(ctx context.Context, id string) (*domain.Job, error)
	listJobs         func(ctx context.Context, filter domain.JobFilter, limit, offset int) ([]*domain.Job, error)
	claimNextPending func(ctx context.Context, workerID string) (*domain.Job, error)
	completeJob      func(ctx context.Context, id string, result json.RawMessage) (*domain.Job, error)
	failJob          func(ctx context.Context, id, errMsg string) (*domain.Job, error)
	failJobTerminal  func(ctx context.Context, id, errMsg string) (*domain.Job, error)
	cancelPendingJob func(ctx context.Context, id string) (*domain.Job, error)
	sweepStale       func(ctx context.Context, threshold time.Duration) ([]*domain.Job, error)
}

func (f *fakeQueue) InsertJob(ctx context.Context, spec domain.JobSpec) (*domain.Job, error) {
	return f.insertJob(ctx, spec)
}

func (f *fakeQueue) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	return f.getJob(ctx, id)
}

func (f *fakeQueue) ListJobs(ctx context.Context, filter domain.JobFilter, limit, offset int) ([]*domain.Job, error) {
	return f.listJobs(ctx, filter, limit, offset)
}

func (f *fakeQueue) ClaimNextPending(ctx context.Context, workerID string) (*domain.Job, error) {
	return f.claimNextPending(ctx, workerID)
}

func (f *fakeQueue) CompleteJob(ctx context.Context, id string, result json.RawMessage) (*domain.Job, error) {
	return f.completeJob(ctx, id, result)
}

func (f *fakeQueue) FailJob(ctx context.Context, id, errMsg string) (*domain.Job, error) {
	return f.failJob(ctx, id, errMsg)
}

func (f *fakeQueue) FailJobTerminal(ctx context.Context, id, errMsg string) (*domain.Job, error) {
	return f.failJobTerminal(ctx, id, errMsg)
}

func (f *fakeQueue) CancelPendingJob(ctx context.Context, id string) (*domain.Job, error) {
	return f.cancelPendingJob(ctx, id)
}

func (f *fakeQueue) SweepStale(ctx context.Context, threshold time.Duration) ([]*domain.Job, error) {
	return f.sweepStale(ctx, threshold)
}

func testJob(jobType domain.JobType) *domain.Job {
	return &domain.Job{
		ID:         "job-1",
		Type:       jobType,
		Params:     json.RawMessage(`{"message":"hello"}`),
		Priority:   domain.PriorityNormal,
		Status:     domain.JobStatusInProgress,
		MaxRetries: domain.DefaultMaxRetries,
	}
}

func mustRegistry(t *testing.T, handlers map[domain.JobType]Handler) *Registry {
	t.Helper()
	registry, err := NewRegistry(handlers)
	require.NoError(t, err)
	return registry
}

func TestProcessOnceCompletesJob(t *testing.T) {
	var completed json.RawMessage
	queue := &fakeQueue{
		claimNextPending: func(_ context.Context, workerID string) (*domain.Job, error) {
			assert.Equal(t, "worker-test", workerID)
			return testJob(domain.JobTypeTest), nil
		},
		completeJob: func(_ context.Context, id string, result json.RawMessage) (*domain.Job, error) {
			assert.Equal(t, "job-1", id)
			completed = result
			return &domain.Job{ID: id, Status: domain.JobStatusCompleted, Result: result}, nil
		},
	}
	registry := mustRegistry(t, map[domain.JobType]Handler{
		domain.JobTypeTest: func(_ context.Context, job *domain.Job) (json.RawMessage, error) {
			return job.Params, nil
		},
	})
	w := New(queue, registry, Config{WorkerID: "worker-test"}, nil)
	w.lastSweep = time.Now()

	processed, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.JSONEq(t, `{"message":"hello"}`, string(completed))
}

func TestProcessOnceEmptyQueue(t *testing.T) {
	queue := &fakeQueue{
		claimNextPending: func(context.Context, string) (*domain.Job, error) {
			return nil, nil
		},
	}
	registry := mustRegistry(t, nil)
	w := New(queue, registry, Config{WorkerID: "worker-test"}, nil)

	processed, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestProcessOnceClaimError(t *testing.T) {
	queue := &fakeQueue{
		claimNextPending: func(context.Context, string) (*domain.Job, error) {
			return nil, domain.ErrStorageUnavailable
		},
	}
	registry := mustRegistry(t, nil)
	w := New(queue, registry, Config{WorkerID: "worker-test"}, nil)

	processed, err := w.ProcessOnce(context.Background())
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.False(t, processed)
}

func TestMissingHandlerFailsTerminally(t *testing.T) {
	var terminalMsg string
	failJobCalled := false
	queue := &fakeQueue{
		claimNextPending: func(context.Context, string) (*domain.Job, error) {
			return testJob(domain.JobTypeBulkIngest), nil
		},
		failJob: func(_ context.Context, id, errMsg string) (*domain.Job, error) {
			failJobCalled = true
			return &domain.Job{ID: id}, nil
		},
		failJobTerminal: func(_ context.Context, id, errMsg string) (*domain.Job, error) {
			terminalMsg = errMsg
			return &domain.Job{ID: id, Status: domain.JobStatusFailed}, nil
		},
	}
	registry := mustRegistry(t, map[domain.JobType]Handler{
		domain.JobTypeTest: func(context.Context, *domain.Job) (json.RawMessage, error) {
			return nil, nil
		},
	})
	w := New(queue, registry, Config{WorkerID: "worker-test"}, nil)
	w.lastSweep = time.Now()

	processed, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, "No handler registered for bulk_ingest", terminalMsg)
	assert.False(t, failJobCalled, "missing handler must not consume the retry budget")
}

func TestHandlerErrorAppliesRetryPolicy(t *testing.T) {
	var failedMsg string
	queue := &fakeQueue{
		claimNextPending: func(context.Context, string) (*domain.Job, error) {
			return testJob(domain.JobTypeTest), nil
		},
		failJob: func(_ context.Context, id, errMsg string) (*domain.Job, error) {
			failedMsg = errMsg
			return &domain.Job{ID: id, Status: domain.JobStatusPending, RetryCount: 1, MaxRetries: 3}, nil
		},
	}
	registry := mustRegistry(t, map[domain.JobType]Handler{
		domain.JobTypeTest: func(context.Context, *domain.Job) (json.RawMessage, error) {
			return nil, errors.New("edgar returned 503")
		},
	})
	w := New(queue, registry, Config{WorkerID: "worker-test"}, nil)
	w.lastSweep = time.Now()

	processed, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, "edgar returned 503", failedMsg)
}

func TestPanicBecomesFailure(t *testing.T) {
	var failedMsg string
	queue := &fakeQueue{
		claimNextPending: func(context.Context, string) (*domain.Job, error) {
			return testJob(domain.JobTypeTest), nil
		},
		failJob: func(_ context.Context, id, errMsg string) (*domain.Job, error) {
			failedMsg = errMsg
			return &domain.Job{ID: id, Status: domain.JobStatusFailed, RetryCount: 3, MaxRetries: 3}, nil
		},
	}
	registry := mustRegistry(t, map[domain.JobType]Handler{
		domain.JobTypeTest: func(context.Context, *domain.Job) (json.RawMessage, error) {
			panic("nil section map")
		},
	})
	w := New(queue, registry, Config{WorkerID: "worker-test"}, nil)
	w.lastSweep = time.Now()

	processed, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, "panic: nil section map", failedMsg)
}

func TestShutdownErrorRequeuesWithFixedMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "explicit shutdown error", err: ShutdownError{}},
		{name: "context cancellation", err: context.Canceled},
		{name: "wrapped cancellation", err: errors.Join(errors.New("llm call"), context.Canceled)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var failedMsg string
			queue := &fakeQueue{
				claimNextPending: func(context.Context, string) (*domain.Job, error) {
					return testJob(domain.JobTypeTest), nil
				},
				failJob: func(_ context.Context, id, errMsg string) (*domain.Job, error) {
					failedMsg = errMsg
					return &domain.Job{ID: id, Status: domain.JobStatusPending, RetryCount: 1, MaxRetries: 3}, nil
				},
			}
			registry := mustRegistry(t, map[domain.JobType]Handler{
				domain.JobTypeTest: func(context.Context, *domain.Job) (json.RawMessage, error) {
					return nil, tt.err
				},
			})
			w := New(queue, registry, Config{WorkerID: "worker-test"}, nil)
			w.lastSweep = time.Now()

			_, err := w.ProcessOnce(context.Background())
			require.NoError(t, err)
			assert.Equal(t, ShutdownFailureMessage, failedMsg)
		})
	}
}

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time { return c.now }

func TestMaybeSweepStaleHonorsInterval(t *testing.T) {
	sweeps := 0
	queue := &fakeQueue{
		sweepStale: func(_ context.Context, threshold time.Duration) ([]*domain.Job, error) {
			sweeps++
			assert.Equal(t, 10*time.Minute, threshold)
			return nil, nil
		},
	}
	clock := &stepClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	registry := mustRegistry(t, nil)
	w := New(queue, registry, Config{
		WorkerID:           "worker-test",
		StaleThreshold:     10 * time.Minute,
		StaleCheckInterval: time.Minute,
	}, clock)

	w.maybeSweepStale(context.Background())
	assert.Equal(t, 1, sweeps, "first pass sweeps immediately")

	clock.now = clock.now.Add(30 * time.Second)
	w.maybeSweepStale(context.Background())
	assert.Equal(t, 1, sweeps, "within the interval nothing happens")

	clock.now = clock.now.Add(31 * time.Second)
	w.maybeSweepStale(context.Background())
	assert.Equal(t, 2, sweeps, "interval elapsed, sweep again")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	queue := &fakeQueue{
		claimNextPending: func(context.Context, string) (*domain.Job, error) {
			return nil, nil
		},
		sweepStale: func(context.Context, time.Duration) ([]*domain.Job, error) {
			return nil, nil
		},
	}
	registry := mustRegistry(t, nil)
	w := New(queue, registry, Config{WorkerID: "worker-test", PollInterval: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}
