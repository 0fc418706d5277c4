package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/filingpulse/filingpulse/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const companyColumns = `id, cik, ticker, name, exchange, tracked, created_at, updated_at`

func scanCompany(row pgx.Row) (*domain.Company, error) {
	var c domain.Company
	err := row.Scan(&c.ID, &c.CIK, &c.Ticker, &c.Name, &c.Exchange, &c.Tracked, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertCompany inserts or updates a company keyed by CIK. Empty incoming
// fields never clobber stored values, and tracked only ever flips on.
func (s *Store) UpsertCompany(ctx context.Context, company *domain.Company) (*domain.Company, error) {
	if company.CIK == "" {
		return nil, fmt.Errorf("company CIK is required")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate company ID: %w", err)
	}
	now := s.clock.Now()

	row := s.pool.QueryRow(ctx, `
		INSERT INTO companies (id, cik, ticker, name, exchange, tracked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (cik) DO UPDATE SET
			ticker   = COALESCE(NULLIF(EXCLUDED.ticker, ''), companies.ticker),
			name     = COALESCE(NULLIF(EXCLUDED.name, ''), companies.name),
			exchange = COALESCE(NULLIF(EXCLUDED.exchange, ''), companies.exchange),
			tracked  = companies.tracked OR EXCLUDED.tracked,
			updated_at = EXCLUDED.updated_at
		RETURNING `+companyColumns,
		id.String(), company.CIK, strings.ToUpper(company.Ticker), company.Name, company.Exchange, company.Tracked, now)

	stored, err := scanCompany(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert company: %w", err)
	}
	return stored, nil
}

// CompanyByTicker returns a stored company by ticker symbol.
func (s *Store) CompanyByTicker(ctx context.Context, ticker string) (*domain.Company, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE ticker = $1`,
		strings.ToUpper(ticker))

	company, err := scanCompany(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: ticker %s", domain.ErrCompanyNotFound, ticker)
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return company, nil
}

// ListTrackedCompanies returns every company the scheduler polls.
func (s *Store) ListTrackedCompanies(ctx context.Context) ([]*domain.Company, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE tracked ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked companies: %w", err)
	}
	defer rows.Close()

	var companies []*domain.Company
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, company)
	}
	return companies, rows.Err()
}

// UpsertFiling inserts a filing keyed by accession number; an existing row is
// returned unchanged.
func (s *Store) UpsertFiling(ctx context.Context, filing *domain.Filing) (*domain.Filing, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate filing ID: %w", err)
	}
	now := s.clock.Now()

	row := s.pool.QueryRow(ctx, `
		INSERT INTO filings (id, company_id, accession_number, form, filing_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (accession_number) DO UPDATE SET form = EXCLUDED.form
		RETURNING id, company_id, accession_number, form, filing_date, created_at`,
		id.String(), filing.CompanyID, filing.AccessionNumber, filing.Form, filing.FilingDate, now)

	var stored domain.Filing
	err = row.Scan(&stored.ID, &stored.CompanyID, &stored.AccessionNumber, &stored.Form, &stored.FilingDate, &stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert filing: %w", err)
	}
	return &stored, nil
}

// KnownAccessionNumbers returns the accession numbers already ingested for a
// company and form.
func (s *Store) KnownAccessionNumbers(ctx context.Context, companyID, form string) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT accession_number FROM filings WHERE company_id = $1 AND form = $2`,
		companyID, form)
	if err != nil {
		return nil, fmt.Errorf("failed to list known accessions: %w", err)
	}
	defer rows.Close()
	return collectAccessions(rows)
}

// AllKnownAccessionNumbers returns every ingested accession number. Used by
// bulk discovery to diff the global feed.
func (s *Store) AllKnownAccessionNumbers(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT accession_number FROM filings`)
	if err != nil {
		return nil, fmt.Errorf("failed to list all known accessions: %w", err)
	}
	defer rows.Close()
	return collectAccessions(rows)
}

func collectAccessions(rows pgx.Rows) (map[string]struct{}, error) {
	known := make(map[string]struct{})
	for rows.Next() {
		var accession string
		if err := rows.Scan(&accession); err != nil {
			return nil, fmt.Errorf("failed to scan accession number: %w", err)
		}
		known[accession] = struct{}{}
	}
	return known, rows.Err()
}

// UpsertDocument stores an extracted section, replacing any previous
// extraction of the same section for the same filing.
func (s *Store) UpsertDocument(ctx context.Context, doc *domain.Document) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate document ID: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (id, filing_id, company_id, section, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (filing_id, section) DO UPDATE SET text = EXCLUDED.text`,
		id.String(), doc.FilingID, doc.CompanyID, doc.Section, doc.Text, s.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// ListDocuments returns stored sections for a company, newest filings first.
// Empty forms or kinds match everything.
func (s *Store) ListDocuments(ctx context.Context, companyID string, forms []string, kinds []domain.SectionKind) ([]*domain.Document, error) {
	sections := make([]string, len(kinds))
	for i, kind := range kinds {
		sections[i] = string(kind)
	}
	if forms == nil {
		forms = []string{}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT d.id, d.filing_id, d.company_id, d.section, d.text, d.created_at
		FROM documents d
		JOIN filings f ON f.id = d.filing_id
		WHERE d.company_id = $1
		  AND (cardinality($2::text[]) = 0 OR f.form = ANY($2))
		  AND (cardinality($3::text[]) = 0 OR d.section = ANY($3))
		ORDER BY f.filing_date DESC, d.section`,
		companyID, forms, sections)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		var doc domain.Document
		if err := rows.Scan(&doc.ID, &doc.FilingID, &doc.CompanyID, &doc.Section, &doc.Text, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// UpsertGeneratedContent stores LLM output keyed by content hash; regenerating
// identical output is a no-op.
func (s *Store) UpsertGeneratedContent(ctx context.Context, content *domain.GeneratedContent) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate content ID: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO generated_content
			(id, company_id, content_type, content_hash, text, model, input_tokens, output_tokens, duration_ms, stop_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (content_hash) DO NOTHING`,
		id.String(), content.CompanyID, content.ContentType, content.ContentHash, content.Text,
		content.Model, content.InputTokens, content.OutputTokens, content.Duration.Milliseconds(),
		content.StopReason, s.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert generated content: %w", err)
	}
	return nil
}

// ListGeneratedContent returns stored content for a company, newest first.
// Empty contentType matches every type.
func (s *Store) ListGeneratedContent(ctx context.Context, companyID, contentType string, limit int) ([]*domain.GeneratedContent, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, company_id, content_type, content_hash, text, model,
		       input_tokens, output_tokens, duration_ms, stop_reason, created_at
		FROM generated_content
		WHERE company_id = $1
		  AND ($2 = '' OR content_type = $2)
		ORDER BY created_at DESC
		LIMIT $3`,
		companyID, contentType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list generated content: %w", err)
	}
	defer rows.Close()

	var contents []*domain.GeneratedContent
	for rows.Next() {
		var c domain.GeneratedContent
		var durationMs int64
		err := rows.Scan(&c.ID, &c.CompanyID, &c.ContentType, &c.ContentHash, &c.Text, &c.Model,
			&c.InputTokens, &c.OutputTokens, &durationMs, &c.StopReason, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generated content: %w", err)
		}
		c.Duration = time.Duration(durationMs) * time.Millisecond
		contents = append(contents, &c)
	}
	return contents, rows.Err()
}

// InsertRating attaches a user rating to generated content.
func (s *Store) InsertRating(ctx context.Context, rating *domain.Rating) (*domain.Rating, error) {
	if rating.Score < 1 || rating.Score > 5 {
		return nil, fmt.Errorf("rating score %d out of range 1..5", rating.Score)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate rating ID: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO ratings (id, content_id, score, comment, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, content_id, score, comment, created_at`,
		id.String(), rating.ContentID, rating.Score, rating.Comment, s.clock.Now())

	var stored domain.Rating
	if err := row.Scan(&stored.ID, &stored.ContentID, &stored.Score, &stored.Comment, &stored.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert rating: %w", err)
	}
	return &stored, nil
}
