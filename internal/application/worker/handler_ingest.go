package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/filingpulse/filingpulse/internal/domain"
)

// HandleCompanyIngestion fetches company metadata from EDGAR and upserts it.
// Idempotent: the upsert is keyed by CIK.
func (h *Handlers) HandleCompanyIngestion(ctx context.Context, job *domain.Job) (json.RawMessage, error) {
	params, err := decodeParams[CompanyIngestionParams](job)
	if err != nil {
		return nil, err
	}

	company, err := h.ensureCompany(ctx, params.Ticker)
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]any{
		"ticker": company.Ticker,
		"cik":    company.CIK,
		"name":   company.Name,
	})
}

// HandleFilingIngestion fetches recent filings for one company and extracts
// their sections into documents. Already-known accession numbers are skipped.
func (h *Handlers) HandleFilingIngestion(ctx context.Context, job *domain.Job) (json.RawMessage, error) {
	params, err := decodeParams[FilingIngestionParams](job)
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
		"ticker":          company.Ticker,
		"filings_new":     ingested,
		"filings_failed":  failed,
		"forms_requested": params.Forms,
	})
}

// HandleBulkIngest ingests a batch of filings discovered on the global feed.
// Per-filing failures are recorded but do not abort the batch.
func (h *Handlers) HandleBulkIngest(ctx context.Context, job *domain.Job) (json.RawMessage, error) {
	params, err := decodeParams[BulkIngestParams](job)
	if err != nil {
		return nil, err
	}

	ingested := 0
	failed := 0
	for _, ref := range params.Filings {
		if ctx.Err() != nil {
			return nil, ShutdownError{}
		}
		if err := h.ingestOneFiling(ctx, ref); err != nil {
			failed++
			slog.WarnContext(ctx, "bulk ingest filing failed",
				"accession_number", ref.AccessionNumber,
				"form", ref.Form,
				"error", err)
			continue
		}
		ingested++
	}

	if ingested == 0 && failed > 0 {
		return nil, fmt.Errorf("bulk ingest: all %d filings failed", failed)
	}

	return json.Marshal(map[string]any{
		"filings_ingested": ingested,
		"filings_failed":   failed,
	})
}

// ensureCompany resolves a ticker to a stored company row, fetching metadata
// from EDGAR when the company is not yet known.
func (h *Handlers) ensureCompany(ctx context.Context, ticker string) (*domain.Company, error) {
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}

	company, err := h.edgar.CompanyByTicker(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("resolve company %q: %w", ticker, err)
	}
	company.Tracked = true

	stored, err := h.store.UpsertCompany(ctx, company)
	if err != nil {
		return nil, fmt.Errorf("upsert company %q: %w", ticker, err)
	}
	return stored, nil
}

// ingestFilings fetches and stores recent filings for each form. Returns the
// number of newly ingested filings and the number that failed extraction.
func (h *Handlers) ingestFilings(ctx context.Context, company *domain.Company, forms []string, count int) (ingested, failed int, err error) {
	if count <= 0 {
		count = DefaultFilingCount
	}

	for _, form := range forms {
		refs, err := h.edgar.GetRecentFilings(ctx, company.Ticker, form, count)
		if err != nil {
			return ingested, failed, fmt.Errorf("fetch %s filings for %s: %w", form, company.Ticker, err)
		}

		known, err := h.store.KnownAccessionNumbers(ctx, company.ID, form)
		if err != nil {
			return ingested, failed, fmt.Errorf("list known accessions: %w", err)
		}

		for _, ref := range refs {
			if _, ok := known[ref.AccessionNumber]; ok {
				continue
			}
			if ctx.Err() != nil {
				return ingested, failed, ShutdownError{}
			}
			if err := h.storeFilingDocuments(ctx, company, ref); err != nil {
				failed++
				slog.WarnContext(ctx, "filing extraction failed",
					"ticker", company.Ticker,
					"accession_number", ref.AccessionNumber,
					"error", err)
				continue
			}
			ingested++
		}
	}
	return ingested, failed, nil
}

// ingestOneFiling stores a filing found on the global feed, creating a
// minimal untracked company row when the CIK is new.
func (h *Handlers) ingestOneFiling(ctx context.Context, ref domain.FilingRef) error {
	company, err := h.store.UpsertCompany(ctx, &domain.Company{
		CIK:  ref.CIK,
		Name: ref.CompanyName,
	})
	if err != nil {
		return fmt.Errorf("upsert company cik=%s: %w", ref.CIK, err)
	}
	return h.storeFilingDocuments(ctx, company, ref)
}

// storeFilingDocuments upserts the filing row and one document per extracted
// section.
func (h *Handlers) storeFilingDocuments(ctx context.Context, company *domain.Company, ref domain.FilingRef) error {
	filing, err := h.store.UpsertFiling(ctx, &domain.Filing{
		CompanyID:       company.ID,
		AccessionNumber: ref.AccessionNumber,
		Form:            ref.Form,
		FilingDate:      ref.FilingDate,
	})
	if err != nil {
		return fmt.Errorf("upsert filing %s: %w", ref.AccessionNumber, err)
	}

	sections, err := h.extractor.GetSections(ctx, ref, nil)
	if err != nil {
		return fmt.Errorf("extract sections: %w", err)
	}

	for kind, text := range sections {
		if text == "" {
			continue
		}
		doc := &domain.Document{
			FilingID:  filing.ID,
			CompanyID: company.ID,
			Section:   kind,
			Text:      text,
		}
		if err := h.store.UpsertDocument(ctx, doc); err != nil {
			return fmt.Errorf("upsert %s document: %w", kind, err)
		}
	}
	return nil
}
