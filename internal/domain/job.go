package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobType selects the handler that executes a job.
// The set is closed: workers terminally fail jobs with unknown types.
type JobType string

const (
	JobTypeCompanyIngestion     JobType = "company_ingestion"
	JobTypeFilingIngestion      JobType = "filing_ingestion"
	JobTypeContentGeneration    JobType = "content_generation"
	JobTypeIngestPipeline       JobType = "ingest_pipeline"
	JobTypeFullPipeline         JobType = "full_pipeline"
	JobTypeBulkIngest           JobType = "bulk_ingest"
	JobTypeCompanyGroupPipeline JobType = "company_group_pipeline"
	JobTypeTest                 JobType = "test"
)

// KnownJobTypes lists every registered job type in a stable order.
func KnownJobTypes() []JobType {
	return []JobType{
		JobTypeCompanyIngestion,
		JobTypeFilingIngestion,
		JobTypeContentGeneration,
		JobTypeIngestPipeline,
		JobTypeFullPipeline,
		JobTypeBulkIngest,
		JobTypeCompanyGroupPipeline,
		JobTypeTest,
	}
}

// Valid reports whether t is one of the known job types.
func (t JobType) Valid() bool {
	for _, known := range KnownJobTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// JobStatus is the lifecycle state of a job.
// Transitions: pending -> in_progress -> {completed | failed | pending (retry) | cancelled}.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status is final. Terminal jobs are immutable
// except for administrative purge.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Priority orders pending jobs at claim time. Lower is more urgent.
type Priority int

const (
	PriorityCritical Priority = 0
	PriorityHigh     Priority = 1
	PriorityNormal   Priority = 2
	PriorityLow      Priority = 3
	PriorityBacklog  Priority = 4
)

// DefaultMaxRetries is the retry budget applied when a spec does not set one.
const DefaultMaxRetries = 3

// Job is a unit of deferred work stored in the queue.
// Params and Result are opaque to the queue; handlers own their schemas.
type Job struct {
	ID              string
	Type            JobType
	Params          json.RawMessage
	Priority        Priority
	Status          JobStatus
	WorkerID        *string
	RetryCount      int
	MaxRetries      int
	Result          json.RawMessage
	Error           *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	DurationSeconds *float64
}

// JobSpec describes a job to insert. Zero Priority means PriorityCritical, so
// callers that want the default should use NewJobSpec.
type JobSpec struct {
	Type       JobType
	Params     json.RawMessage
	Priority   Priority
	MaxRetries int
}

// NewJobSpec builds a spec with default priority and retry budget. Params are
// marshalled from the handler-owned payload type.
func NewJobSpec(jobType JobType, params any) (JobSpec, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return JobSpec{}, fmt.Errorf("marshal job params: %w", err)
	}
	return JobSpec{
		Type:       jobType,
		Params:     raw,
		Priority:   PriorityNormal,
		MaxRetries: DefaultMaxRetries,
	}, nil
}

// Validate checks the spec against the closed job type set and the priority
// range. The queue rejects invalid specs before touching storage.
func (s JobSpec) Validate() error {
	if !s.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownJobType, s.Type)
	}
	if s.Priority < PriorityCritical || s.Priority > PriorityBacklog {
		return fmt.Errorf("invalid priority %d: must be between %d and %d", s.Priority, PriorityCritical, PriorityBacklog)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("invalid max retries %d: must be >= 0", s.MaxRetries)
	}
	return nil
}

// JobFilter narrows ListJobs results. Zero values match everything.
type JobFilter struct {
	Status JobStatus
	Type   JobType
}
