package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/filingpulse/filingpulse/internal/domain"
	"github.com/filingpulse/filingpulse/internal/infrastructure/http/response"
)

// JobQueue is the queue surface the API exposes.
type JobQueue interface {
	InsertJob(ctx context.Context, spec domain.JobSpec) (*domain.Job, error)
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	ListJobs(ctx context.Context, filter domain.JobFilter, limit, offset int) ([]*domain.Job, error)
	CancelPendingJob(ctx context.Context, id string) (*domain.Job, error)
}

// RunReader is the pipeline-run surface the API exposes.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*domain.PipelineRun, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*domain.PipelineRun, error)
	LatestRuns(ctx context.Context) ([]*domain.PipelineRun, error)
}

// ContentReader serves generated content and ratings.
type ContentReader interface {
	CompanyByTicker(ctx context.Context, ticker string) (*domain.Company, error)
	ListGeneratedContent(ctx context.Context, companyID, contentType string, limit int) ([]*domain.GeneratedContent, error)
	InsertRating(ctx context.Context, rating *domain.Rating) (*domain.Rating, error)
}

// AdminHandler adapts HTTP requests to queue, run, and content operations.
type AdminHandler struct {
	queue   JobQueue
	runs    RunReader
	content ContentReader
}

// NewAdminHandler creates the API handler.
func NewAdminHandler(queue JobQueue, runs RunReader, content ContentReader) *AdminHandler {
	return &AdminHandler{queue: queue, runs: runs, content: content}
}

// Routes mounts every API route on a fresh router.
func (h *AdminHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/jobs", h.createJob)
	r.Get("/jobs", h.listJobs)
	r.Get("/jobs/{id}", h.getJob)
	r.Post("/jobs/{id}/cancel", h.cancelJob)

	r.Get("/runs", h.listRuns)
	r.Get("/runs/latest", h.latestRuns)
	r.Get("/runs/{id}", h.getRun)

	r.Post("/pipelines", h.triggerPipeline)

	r.Get("/content/{ticker}", h.listContent)
	r.Post("/content/{contentID}/ratings", h.rateContent)

	return r
}

// writeError maps domain sentinels to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrRunNotFound),
		errors.Is(err, domain.ErrCompanyNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrJobNotCancellable),
		errors.Is(err, domain.ErrRunAlreadyTerminal):
		response.Error(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, domain.ErrUnknownJobType):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}
