package domain

import "time"

// RunTrigger records what initiated a pipeline run.
type RunTrigger string

const (
	RunTriggerManual    RunTrigger = "manual"
	RunTriggerScheduled RunTrigger = "scheduled"
)

// RunStatus is the lifecycle state of a pipeline run.
// Transitions: pending -> running -> {completed | partial | failed}.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusPartial   RunStatus = "partial"
)

// Terminal reports whether the run has been finalized.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusPartial
}

// Failure reports whether the status counts toward consecutive-failure alerts.
func (s RunStatus) Failure() bool {
	return s == RunStatusFailed || s == RunStatusPartial
}

// PipelineRun tracks the set of jobs produced to satisfy one high-level
// request for one company. Counters are set only at the terminal transition.
type PipelineRun struct {
	ID            string
	CompanyID     string
	Trigger       RunTrigger
	Status        RunStatus
	Forms         []string
	JobsCreated   int
	JobsCompleted int
	JobsFailed    int
	Error         *string
	Metadata      map[string]any
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// SuspectedStale reports whether a running run has been started longer ago
// than threshold. This is a read-time predicate, never a stored state.
func (r *PipelineRun) SuspectedStale(now time.Time, threshold time.Duration) bool {
	if r.Status != RunStatusRunning || r.StartedAt == nil {
		return false
	}
	return now.Sub(*r.StartedAt) > threshold
}

// ClassifyRun returns the terminal status for a run whose jobs all reported
// an outcome: partial whenever any job failed, completed otherwise.
func ClassifyRun(jobsFailed int) RunStatus {
	if jobsFailed > 0 {
		return RunStatusPartial
	}
	return RunStatusCompleted
}

// CountLeadingFailures counts the leading failed/partial runs in a history
// ordered newest first, stopping at the first run with any other status.
func CountLeadingFailures(runs []*PipelineRun) int {
	count := 0
	for _, run := range runs {
		if !run.Status.Failure() {
			break
		}
		count++
	}
	return count
}
