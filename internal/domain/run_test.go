package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRun(t *testing.T) {
	assert.Equal(t, RunStatusCompleted, ClassifyRun(0))
	assert.Equal(t, RunStatusPartial, ClassifyRun(1))
	assert.Equal(t, RunStatusPartial, ClassifyRun(5))
}

func TestCountLeadingFailures(t *testing.T) {
	runs := func(statuses ...RunStatus) []*PipelineRun {
		out := make([]*PipelineRun, 0, len(statuses))
		for _, s := range statuses {
			out = append(out, &PipelineRun{Status: s})
		}
		return out
	}

	tests := []struct {
		name string
		runs []*PipelineRun
		want int
	}{
		{"empty history", nil, 0},
		{"single failure", runs(RunStatusFailed), 1},
		{"partial counts as failure", runs(RunStatusPartial, RunStatusFailed), 2},
		{"success resets", runs(RunStatusFailed, RunStatusCompleted, RunStatusFailed), 1},
		{"leading success", runs(RunStatusCompleted, RunStatusFailed, RunStatusFailed), 0},
		{"running stops the streak", runs(RunStatusFailed, RunStatusRunning, RunStatusFailed), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountLeadingFailures(tt.runs))
		})
	}
}

func TestSuspectedStale(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	threshold := 2 * time.Hour

	old := now.Add(-3 * time.Hour)
	fresh := now.Add(-30 * time.Minute)

	running := &PipelineRun{Status: RunStatusRunning, StartedAt: &old}
	assert.True(t, running.SuspectedStale(now, threshold))

	recent := &PipelineRun{Status: RunStatusRunning, StartedAt: &fresh}
	assert.False(t, recent.SuspectedStale(now, threshold))

	completed := &PipelineRun{Status: RunStatusCompleted, StartedAt: &old}
	assert.False(t, completed.SuspectedStale(now, threshold))

	neverStarted := &PipelineRun{Status: RunStatusRunning}
	assert.False(t, neverStarted.SuspectedStale(now, threshold))
}
