package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/filingpulse/filingpulse/internal/domain"
	"github.com/filingpulse/filingpulse/internal/infrastructure/http/response"
)

type createJobRequest struct {
	Type       string          `json:"type"`
	Params     json.RawMessage `json:"params"`
	Priority   *int            `json:"priority,omitempty"`
	MaxRetries *int            `json:"max_retries,omitempty"`
}

func (h *AdminHandler) createJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}

	spec := domain.JobSpec{
		Type:       domain.JobType(req.Type),
		Params:     req.Params,
		Priority:   domain.PriorityNormal,
		MaxRetries: domain.DefaultMaxRetries,
	}
	if req.Priority != nil {
		spec.Priority = domain.Priority(*req.Priority)
	}
	if req.MaxRetries != nil {
		spec.MaxRetries = *req.MaxRetries
	}
	if err := spec.Validate(); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	job, err := h.queue.InsertJob(r.Context(), spec)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, jobToDTO(job))
}

func (h *AdminHandler) listJobs(w http.ResponseWriter, r *http.Request) {
	filter := domain.JobFilter{
		Status: domain.JobStatus(r.URL.Query().Get("status")),
		Type:   domain.JobType(r.URL.Query().Get("type")),
	}
	limit, offset := pagination(r)

	jobs, err := h.queue.ListJobs(r.Context(), filter, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	dtos := make([]jobDTO, 0, len(jobs))
	for _, job := range jobs {
		dtos = append(dtos, jobToDTO(job))
	}
	response.OK(w, map[string]any{"jobs": dtos})
}

func (h *AdminHandler) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.queue.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, jobToDTO(job))
}

func (h *AdminHandler) cancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.queue.CancelPendingJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, jobToDTO(job))
}

// pagination reads limit/offset query parameters with sane bounds.
func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
