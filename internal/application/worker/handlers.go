package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/filingpulse/filingpulse/internal/domain"
)

// DefaultFilingCount bounds how many recent filings an ingestion fetches per
// form when the job params leave it unset.
const DefaultFilingCount = 10

// Handlers bundles the collaborators every job handler needs and exposes the
// full registry for the closed job type set.
type Handlers struct {
	queue      Queue
	runs       RunTracker
	edgar      EdgarClient
	extractor  DocumentExtractor
	llm        LLMClient
	store      ContentStore
	clock      domain.Clock
	llmTimeout time.Duration
}

// NewHandlers wires the handler set. A nil clock defaults to the system
// clock; a zero llmTimeout defaults to 10 minutes.
func NewHandlers(queue Queue, runs RunTracker, edgar EdgarClient, extractor DocumentExtractor, llm LLMClient, store ContentStore, llmTimeout time.Duration, clock domain.Clock) *Handlers {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if llmTimeout <= 0 {
		llmTimeout = 10 * time.Minute
	}
	return &Handlers{
		queue:      queue,
		runs:       runs,
		edgar:      edgar,
		extractor:  extractor,
		llm:        llm,
		store:      store,
		clock:      clock,
		llmTimeout: llmTimeout,
	}
}

// Registry returns the frozen handler registry covering every job type.
func (h *Handlers) Registry() (*Registry, error) {
	return NewRegistry(map[domain.JobType]Handler{
		domain.JobTypeCompanyIngestion:     h.HandleCompanyIngestion,
		domain.JobTypeFilingIngestion:      h.HandleFilingIngestion,
		domain.JobTypeContentGeneration:    h.HandleContentGeneration,
		domain.JobTypeIngestPipeline:       h.HandleIngestPipeline,
		domain.JobTypeFullPipeline:         h.HandleFullPipeline,
		domain.JobTypeBulkIngest:           h.HandleBulkIngest,
		domain.JobTypeCompanyGroupPipeline: h.HandleCompanyGroupPipeline,
		domain.JobTypeTest:                 HandleTest,
	})
}

// HandleTest echoes the job params. Used by integration tests to exercise the
// queue end to end without touching external services.
func HandleTest(ctx context.Context, job *domain.Job) (json.RawMessage, error) {
	var params map[string]any
	if len(job.Params) > 0 {
		if err := json.Unmarshal(job.Params, &params); err != nil {
			return nil, err
		}
	}
	return json.Marshal(map[string]any{"echo": params, "status": "ok"})
}
