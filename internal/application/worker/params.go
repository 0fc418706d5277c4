package worker

import (
	"encoding/json"
	"fmt"

	"github.com/filingpulse/filingpulse/internal/domain"
)

// Handler-owned payload schemas. The queue stores params as opaque JSON; each
// handler decodes the variant it owns.

// CompanyIngestionParams drives the company_ingestion handler.
type CompanyIngestionParams struct {
	Ticker string `json:"ticker"`
}

// FilingIngestionParams drives the filing_ingestion handler.
type FilingIngestionParams struct {
	Ticker string   `json:"ticker"`
	Forms  []string `json:"forms"`
	Count  int      `json:"count,omitempty"`
}

// ContentGenerationParams drives the content_generation handler.
type ContentGenerationParams struct {
	Ticker      string   `json:"ticker"`
	ContentType string   `json:"content_type"`
	Forms       []string `json:"forms"`
}

// IngestPipelineParams drives the ingest_pipeline handler.
type IngestPipelineParams struct {
	Ticker string   `json:"ticker"`
	Forms  []string `json:"forms"`
	Count  int      `json:"count,omitempty"`
}

// FullPipelineParams drives the full_pipeline handler.
type FullPipelineParams struct {
	Ticker  string   `json:"ticker"`
	Forms   []string `json:"forms"`
	Trigger string   `json:"trigger,omitempty"`
}

// BulkIngestParams drives the bulk_ingest handler: one batch of filings
// discovered on the global feed.
type BulkIngestParams struct {
	Filings []domain.FilingRef `json:"filings"`
}

// CompanyGroupPipelineParams drives the company_group_pipeline handler.
type CompanyGroupPipelineParams struct {
	Group   string   `json:"group"`
	Tickers []string `json:"tickers"`
	Forms   []string `json:"forms"`
}

func decodeParams[T any](job *domain.Job) (T, error) {
	var params T
	if len(job.Params) == 0 {
		return params, fmt.Errorf("job %s has no params", job.ID)
	}
	if err := json.Unmarshal(job.Params, &params); err != nil {
		return params, fmt.Errorf("decode %s params: %w", job.Type, err)
	}
	return params, nil
}
