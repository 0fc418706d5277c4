package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/filingpulse/filingpulse/internal/application/worker"
	"github.com/filingpulse/filingpulse/internal/domain"
	"github.com/filingpulse/filingpulse/internal/infrastructure/http/response"
)

func (h *AdminHandler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	runs, err := h.runs.ListRuns(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, map[string]any{"runs": runsToDTO(runs)})
}

func (h *AdminHandler) latestRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runs.LatestRuns(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, map[string]any{"runs": runsToDTO(runs)})
}

func (h *AdminHandler) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, runToDTO(run))
}

type triggerPipelineRequest struct {
	Ticker   string   `json:"ticker"`
	Forms    []string `json:"forms,omitempty"`
	Priority *int     `json:"priority,omitempty"`
}

// triggerPipeline enqueues a manual full_pipeline job for one company.
func (h *AdminHandler) triggerPipeline(w http.ResponseWriter, r *http.Request) {
	var req triggerPipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Ticker) == "" {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "ticker is required")
		return
	}
	forms := req.Forms
	if len(forms) == 0 {
		forms = []string{"10-K", "10-Q"}
	}

	spec, err := domain.NewJobSpec(domain.JobTypeFullPipeline, worker.FullPipelineParams{
		Ticker:  strings.ToUpper(strings.TrimSpace(req.Ticker)),
		Forms:   forms,
		Trigger: string(domain.RunTriggerManual),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Priority != nil {
		spec.Priority = domain.Priority(*req.Priority)
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

func (h *AdminHandler) listContent(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	company, err := h.content.CompanyByTicker(r.Context(), ticker)
	if err != nil {
		writeError(w, err)
		return
	}

	limit, _ := pagination(r)
	contents, err := h.content.ListGeneratedContent(r.Context(), company.ID, r.URL.Query().Get("type"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, map[string]any{
		"ticker":  company.Ticker,
		"content": contentsToDTO(contents),
	})
}

type rateContentRequest struct {
	Score   int    `json:"score"`
	Comment string `json:"comment,omitempty"`
}

func (h *AdminHandler) rateContent(w http.ResponseWriter, r *http.Request) {
	var req rateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}
	if req.Score < 1 || req.Score > 5 {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "score must be between 1 and 5")
		return
	}

	rating, err := h.content.InsertRating(r.Context(), &domain.Rating{
		ContentID: chi.URLParam(r, "contentID"),
		Score:     req.Score,
		Comment:   req.Comment,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, map[string]any{
		"id":         rating.ID,
		"content_id": rating.ContentID,
		"score":      rating.Score,
		"comment":    rating.Comment,
		"created_at": rating.CreatedAt,
	})
}
