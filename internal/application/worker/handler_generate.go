package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/filingpulse/filingpulse/internal/domain"
)

// Content types the generation handler knows how to prompt for.
const (
	ContentTypeExecutiveSummary = "executive_summary"
	ContentTypeRiskSummary      = "risk_summary"
	ContentTypeFinancialSummary = "financial_summary"
)

// maxSectionChars bounds how much of one section goes into the prompt.
const maxSectionChars = 24000

// systemPrompts maps content type to the LLM system prompt, and section
// selection to the document kinds that feed the user prompt.
var generationProfiles = map[string]struct {
	systemPrompt string
	sections     []domain.SectionKind
}{
	ContentTypeExecutiveSummary: {
		systemPrompt: "You are a financial analyst. Summarize the company's business, strategy, and recent developments from the provided SEC filing excerpts. Be factual and concise; do not speculate beyond the text.",
		sections:     []domain.SectionKind{domain.SectionBusinessDescription, domain.SectionManagementDiscussion},
	},
	ContentTypeRiskSummary: {
		systemPrompt: "You are a financial analyst. Extract and rank the most material risks disclosed in the provided SEC filing excerpts. Group related risks and keep each item to one sentence.",
		sections:     []domain.SectionKind{domain.SectionRiskFactors, domain.SectionLegalProceedings, domain.SectionMarketRisk},
	},
	ContentTypeFinancialSummary: {
		systemPrompt: "You are a financial analyst. Summarize the company's financial performance and condition from the provided SEC filing excerpts, citing figures where the text provides them.",
		sections:     []domain.SectionKind{domain.SectionManagementDiscussion, domain.SectionFinancialStatements},
	},
}

// ContentTypes lists the supported generation content types in a stable order.
func ContentTypes() []string {
	return []string{ContentTypeExecutiveSummary, ContentTypeRiskSummary, ContentTypeFinancialSummary}
}

// HandleContentGeneration assembles a prompt from stored filing sections,
// invokes the LLM through the bounded retry helper, and upserts the output
// keyed by content hash.
func (h *Handlers) HandleContentGeneration(ctx context.Context, job *domain.Job) (json.RawMessage, error) {
	params, err := decodeParams[ContentGenerationParams](job)
	if err != nil {
		return nil, err
	}

	profile, ok := generationProfiles[params.ContentType]
	if !ok {
		return nil, fmt.Errorf("unsupported content type %q", params.ContentType)
	}

	company, err := h.store.CompanyByTicker(ctx, params.Ticker)
	if err != nil {
		return nil, fmt.Errorf("lookup company %q: %w", params.Ticker, err)
	}

	docs, err := h.store.ListDocuments(ctx, company.ID, params.Forms, profile.sections)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no stored sections for %s (%v); run filing ingestion first", params.Ticker, params.Forms)
	}

	userPrompt := buildUserPrompt(company, docs)

	var gen *domain.Generation
	err = CallWithRetry(ctx, h.llmTimeout, func(ctx context.Context) error {
		g, genErr := h.llm.Generate(ctx, profile.systemPrompt, userPrompt)
		if genErr != nil {
			return genErr
		}
		gen = g
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("generate %s for %s: %w", params.ContentType, params.Ticker, err)
	}

	content := &domain.GeneratedContent{
		CompanyID:    company.ID,
		ContentType:  params.ContentType,
		ContentHash:  contentHash(company.ID, params.ContentType, gen.Text),
		Text:         gen.Text,
		Model:        gen.Model,
		InputTokens:  gen.InputTokens,
		OutputTokens: gen.OutputTokens,
		Duration:     gen.Duration,
		StopReason:   gen.StopReason,
	}
	if err := h.store.UpsertGeneratedContent(ctx, content); err != nil {
		return nil, fmt.Errorf("store generated content: %w", err)
	}

	return json.Marshal(map[string]any{
		"ticker":        params.Ticker,
		"content_type":  params.ContentType,
		"content_hash":  content.ContentHash,
		"model":         gen.Model,
		"input_tokens":  gen.InputTokens,
		"output_tokens": gen.OutputTokens,
		"stop_reason":   gen.StopReason,
	})
}

func buildUserPrompt(company *domain.Company, docs []*domain.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s (%s)\n\n", company.Name, company.Ticker)
	for _, doc := range docs {
		text := doc.Text
		if len(text) > maxSectionChars {
			text = text[:maxSectionChars]
		}
		fmt.Fprintf(&b, "== %s ==\n%s\n\n", doc.Section, text)
	}
	return b.String()
}

func contentHash(companyID, contentType, text string) string {
	sum := sha256.Sum256([]byte(companyID + "\x00" + contentType + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
