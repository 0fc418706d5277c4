package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/filingpulse/filingpulse/internal/domain"
)

// HandleIngestPipeline runs company and filing ingestion as one compound
// step.
func (h *Handlers) HandleIngestPipeline(ctx context.Context, job *domain.Job) (json.RawMessage, error) {
	params, err := decodeParams[IngestPipelineParams](job)
	if err != nil {
		return nil, err
	}

	company, err := h.ensureCompany(ctx, params.Ticker)
	if err != nil {
		return nil, err
	}

	ingested, failed, err := h.ingestFilings(ctx, company, params.Forms, params.Count)
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]any{
		"ticker":         company.Ticker,
		"filings_new":    ingested,
		"filings_failed": failed,
	})
}

// HandleFullPipeline executes ingest plus every summarization stage for one
// company under a pipeline run. Stage failures are counted into the run
// rather than aborting it; the run finalizes as completed or partial, or
// failed when nothing succeeded.
func (h *Handlers) HandleFullPipeline(ctx context.Context, job *domain.Job) (json.RawMessage, error) {
	params, err := decodeParams[FullPipelineParams](job)
	if err != nil {
		return nil, err
	}

	trigger := domain.RunTrigger(params.Trigger)
	if trigger != domain.RunTriggerScheduled {
		trigger = domain.RunTriggerManual
	}

	company, err := h.ensureCompany(ctx, params.Ticker)
	if err != nil {
		return nil, err
	}

	run, err := h.runs.CreateRun(ctx, company.ID, params.Forms, trigger, map[string]any{
		"ticker": params.Ticker,
		"job_id": job.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("create pipeline run: %w", err)
	}
	if _, err := h.runs.StartRun(ctx, run.ID); err != nil {
		return nil, fmt.Errorf("start pipeline run: %w", err)
	}

	// Stage 1: filings. Stages 2..n: one generation per content type.
	stages := 1 + len(ContentTypes())
	completed := 0
	failed := 0
	var lastErr error

	if _, _, stageErr := h.ingestFilings(ctx, company, params.Forms, 0); stageErr != nil {
		if IsShutdown(stageErr) {
			return nil, h.abandonRun(ctx, run.ID, stageErr, stages, completed, failed)
		}
		failed++
		lastErr = stageErr
		slog.WarnContext(ctx, "pipeline ingest stage failed",
			"run_id", run.ID, "ticker", params.Ticker, "error", stageErr)
	} else {
		completed++
	}

	for _, contentType := range ContentTypes() {
		stageErr := h.runGenerationStage(ctx, params.Ticker, contentType, params.Forms)
		if stageErr != nil {
			if IsShutdown(stageErr) {
				return nil, h.abandonRun(ctx, run.ID, stageErr, stages, completed, failed)
			}
			failed++
			lastErr = stageErr
			slog.WarnContext(ctx, "pipeline generation stage failed",
				"run_id", run.ID,
				"ticker", params.Ticker,
				"content_type", contentType,
				"error", stageErr)
			continue
		}
		completed++
	}

	if completed == 0 {
		if _, err := h.runs.FailRun(ctx, run.ID, lastErr.Error(), stages, completed, failed); err != nil {
			return nil, fmt.Errorf("fail pipeline run: %w", err)
		}
		return nil, fmt.Errorf("all %d pipeline stages failed: %w", stages, lastErr)
	}

	finished, err := h.runs.CompleteRun(ctx, run.ID, stages, completed, failed)
	if err != nil {
		return nil, fmt.Errorf("complete pipeline run: %w", err)
	}

	return json.Marshal(map[string]any{
		"run_id":         finished.ID,
		"run_status":     finished.Status,
		"jobs_created":   stages,
		"jobs_completed": completed,
		"jobs_failed":    failed,
	})
}

// abandonRun records a shutdown interruption on the run and propagates the
// shutdown error so the job re-queues.
func (h *Handlers) abandonRun(ctx context.Context, runID string, cause error, created, completed, failed int) error {
	reportCtx := context.WithoutCancel(ctx)
	if _, err := h.runs.FailRun(reportCtx, runID, ShutdownFailureMessage, created, completed, failed); err != nil {
		slog.ErrorContext(ctx, "failed to mark interrupted run", "run_id", runID, "error", err)
	}
	return cause
}

// runGenerationStage executes one content generation inline, reusing the
// content_generation handler through a synthetic job payload.
func (h *Handlers) runGenerationStage(ctx context.Context, ticker, contentType string, forms []string) error {
	raw, err := json.Marshal(ContentGenerationParams{Ticker: ticker, ContentType: contentType, Forms: forms})
	if err != nil {
		return err
	}
	stage := &domain.Job{
		ID:     fmt.Sprintf("inline-%s-%s", contentType, ticker),
		Type:   domain.JobTypeContentGeneration,
		Params: raw,
	}
	_, err = h.HandleContentGeneration(ctx, stage)
	return err
}

// HandleCompanyGroupPipeline fans a group analysis out into one full_pipeline
// job per ticker at the parent job's priority.
func (h *Handlers) HandleCompanyGroupPipeline(ctx context.Context, job *domain.Job) (json.RawMessage, error) {
	params, err := decodeParams[CompanyGroupPipelineParams](job)
	if err != nil {
		return nil, err
	}
	if len(params.Tickers) == 0 {
		return nil, fmt.Errorf("group %q has no tickers", params.Group)
	}

	created := 0
	for _, ticker := range params.Tickers {
		spec, err := domain.NewJobSpec(domain.JobTypeFullPipeline, FullPipelineParams{
			Ticker:  ticker,
			Forms:   params.Forms,
			Trigger: string(domain.RunTriggerManual),
		})
		if err != nil {
			return nil, err
		}
		spec.Priority = job.Priority

		if _, err := h.queue.InsertJob(ctx, spec); err != nil {
			return nil, fmt.Errorf("enqueue full pipeline for %s: %w", ticker, err)
		}
		created++
	}

	slog.InfoContext(ctx, "company group fan-out",
		"group", params.Group,
		"jobs_created", created)

	return json.Marshal(map[string]any{
		"group":        params.Group,
		"jobs_created": created,
	})
}
