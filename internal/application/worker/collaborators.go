package worker

import (
	"context"
	"time"

	"github.com/filingpulse/filingpulse/internal/domain"
)

// EdgarClient fetches filing metadata from SEC EDGAR.
type EdgarClient interface {
	// CompanyByTicker resolves a ticker to company metadata, or
	// domain.ErrCompanyNotFound.
	CompanyByTicker(ctx context.Context, ticker string) (*domain.Company, error)

	// GetRecentFilings returns up to count recent filings of one form for a
	// ticker, newest first.
	GetRecentFilings(ctx context.Context, ticker, form string, count int) ([]domain.FilingRef, error)

	// GetCurrentFilings returns the global current-filings feed for a form.
	GetCurrentFilings(ctx context.Context, form string) ([]domain.FilingRef, error)

	// GetFilingsByDate returns filings of a form within [from, to].
	GetFilingsByDate(ctx context.Context, form string, from, to time.Time) ([]domain.FilingRef, error)
}

// DocumentExtractor derives named sections from a filing's primary document.
type DocumentExtractor interface {
	// GetSections returns the requested section kinds, or every known kind
	// when kinds is empty. Missing sections are absent from the map.
	GetSections(ctx context.Context, filing domain.FilingRef, kinds []domain.SectionKind) (map[domain.SectionKind]string, error)
}

// LLMClient generates text from a prompt pair. Implementations must honor
// context cancellation so the retry helper's cooperative shutdown works.
type LLMClient interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (*domain.Generation, error)
}

// ContentStore is the narrow read/write surface over the domain tables.
// Upserts use natural keys: CIK for companies, accession number for filings,
// content hash for generated content.
type ContentStore interface {
	UpsertCompany(ctx context.Context, company *domain.Company) (*domain.Company, error)
	CompanyByTicker(ctx context.Context, ticker string) (*domain.Company, error)
	UpsertFiling(ctx context.Context, filing *domain.Filing) (*domain.Filing, error)
	KnownAccessionNumbers(ctx context.Context, companyID, form string) (map[string]struct{}, error)
	UpsertDocument(ctx context.Context, doc *domain.Document) error
	ListDocuments(ctx context.Context, companyID string, forms []string, kinds []domain.SectionKind) ([]*domain.Document, error)
	UpsertGeneratedContent(ctx context.Context, content *domain.GeneratedContent) error
}

// RunTracker aggregates job outcomes into pipeline run state.
type RunTracker interface {
	CreateRun(ctx context.Context, companyID string, forms []string, trigger domain.RunTrigger, metadata map[string]any) (*domain.PipelineRun, error)
	StartRun(ctx context.Context, id string) (*domain.PipelineRun, error)
	CompleteRun(ctx context.Context, id string, jobsCreated, jobsCompleted, jobsFailed int) (*domain.PipelineRun, error)
	FailRun(ctx context.Context, id, errMsg string, jobsCreated, jobsCompleted, jobsFailed int) (*domain.PipelineRun, error)
}
