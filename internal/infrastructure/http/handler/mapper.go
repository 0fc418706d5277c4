package handler

import (
	"encoding/json"
	"time"

	"github.com/filingpulse/filingpulse/internal/domain"
)

type jobDTO struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Params          json.RawMessage `json:"params,omitempty"`
	Priority        int             `json:"priority"`
	Status          string          `json:"status"`
	WorkerID        *string         `json:"worker_id,omitempty"`
	RetryCount      int             `json:"retry_count"`
	MaxRetries      int             `json:"max_retries"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           *string         `json:"error,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	DurationSeconds *float64        `json:"duration_seconds,omitempty"`
}

func jobToDTO(job *domain.Job) jobDTO {
	return jobDTO{
		ID:              job.ID,
		Type:            string(job.Type),
		Params:          job.Params,
		Priority:        int(job.Priority),
		Status:          string(job.Status),
		WorkerID:        job.WorkerID,
		RetryCount:      job.RetryCount,
		MaxRetries:      job.MaxRetries,
		Result:          job.Result,
		Error:           job.Error,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
		StartedAt:       job.StartedAt,
		CompletedAt:     job.CompletedAt,
		DurationSeconds: job.DurationSeconds,
	}
}

type runDTO struct {
	ID            string         `json:"id"`
	CompanyID     string         `json:"company_id"`
	Trigger       string         `json:"trigger"`
	Status        string         `json:"status"`
	Forms         []string       `json:"forms"`
	JobsCreated   int            `json:"jobs_created"`
	JobsCompleted int            `json:"jobs_completed"`
	JobsFailed    int            `json:"jobs_failed"`
	Error         *string        `json:"error,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

func runToDTO(run *domain.PipelineRun) runDTO {
	return runDTO{
		ID:            run.ID,
		CompanyID:     run.CompanyID,
		Trigger:       string(run.Trigger),
		Status:        string(run.Status),
		Forms:         run.Forms,
		JobsCreated:   run.JobsCreated,
		JobsCompleted: run.JobsCompleted,
		JobsFailed:    run.JobsFailed,
		Error:         run.Error,
		Metadata:      run.Metadata,
		CreatedAt:     run.CreatedAt,
		StartedAt:     run.StartedAt,
		CompletedAt:   run.CompletedAt,
	}
}

func runsToDTO(runs []*domain.PipelineRun) []runDTO {
	dtos := make([]runDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, runToDTO(run))
	}
	return dtos
}

type contentDTO struct {
	ID           string    `json:"id"`
	ContentType  string    `json:"content_type"`
	ContentHash  string    `json:"content_hash"`
	Text         string    `json:"text"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	StopReason   string    `json:"stop_reason"`
	CreatedAt    time.Time `json:"created_at"`
}

func contentsToDTO(contents []*domain.GeneratedContent) []contentDTO {
	dtos := make([]contentDTO, 0, len(contents))
	for _, c := range contents {
		dtos = append(dtos, contentDTO{
			ID:           c.ID,
			ContentType:  c.ContentType,
			ContentHash:  c.ContentHash,
			Text:         c.Text,
			Model:        c.Model,
			InputTokens:  c.InputTokens,
			OutputTokens: c.OutputTokens,
			StopReason:   c.StopReason,
			CreatedAt:    c.CreatedAt,
		})
	}
	return dtos
}
