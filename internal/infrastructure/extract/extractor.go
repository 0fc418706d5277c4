package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/filingpulse/filingpulse/internal/domain"
)

// DocumentFetcher retrieves the primary document of a filing.
type DocumentFetcher interface {
	GetDocument(ctx context.Context, ref domain.FilingRef) (string, error)
}

// Extractor derives named sections from EDGAR filing documents by locating
// the standard "Item N" headings in the document text.
type Extractor struct {
	fetcher DocumentFetcher
}

// New creates an extractor over a document fetcher.
func New(fetcher DocumentFetcher) *Extractor {
	return &Extractor{fetcher: fetcher}
}

// itemMaps assign item numbers to section kinds per form. 10-Q items are
// numbered per part; the flattened sequence below matches how they appear in
// the document.
var itemMap10K = map[string]domain.SectionKind{
	"1":  domain.SectionBusinessDescription,
	"1A": domain.SectionRiskFactors,
	"2":  domain.SectionProperties,
	"3":  domain.SectionLegalProceedings,
	"7":  domain.SectionManagementDiscussion,
	"7A": domain.SectionMarketRisk,
	"8":  domain.SectionFinancialStatements,
	"9A": domain.SectionControlsProcedures,
}

var itemMap10Q = map[string]domain.SectionKind{
	"1":  domain.SectionFinancialStatements,
	"1A": domain.SectionRiskFactors,
	"2":  domain.SectionManagementDiscussion,
	"3":  domain.SectionMarketRisk,
	"4":  domain.SectionControlsProcedures,
}

// itemRe matches an item heading at the start of a line of extracted text.
var itemRe = regexp.MustCompile(`(?im)^\s*item\s+(\d{1,2}A?)[\.\:\s]`)

// minSectionChars filters out table-of-contents hits, which repeat every item
// heading with almost no text between them.
const minSectionChars = 200

// GetSections fetches the filing document and returns the requested section
// kinds, or every known kind when kinds is empty. Sections the document does
// not contain are absent from the map.
func (e *Extractor) GetSections(ctx context.Context, ref domain.FilingRef, kinds []domain.SectionKind) (map[domain.SectionKind]string, error) {
	html, err := e.fetcher.GetDocument(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("fetch filing document: %w", err)
	}

	text, err := documentText(html)
	if err != nil {
		return nil, err
	}

	items := itemMapForForm(ref.Form)
	sections := splitByItems(text, items)

	if len(kinds) == 0 {
		return sections, nil
	}
	filtered := make(map[domain.SectionKind]string, len(kinds))
	for _, kind := range kinds {
		if body, ok := sections[kind]; ok {
			filtered[kind] = body
		}
	}
	return filtered, nil
}

func itemMapForForm(form string) map[string]domain.SectionKind {
	if strings.HasPrefix(form, "10-Q") {
		return itemMap10Q
	}
	return itemMap10K
}

// documentText renders the filing HTML to plain text with line breaks at
// block boundaries so item headings land at line starts.
func documentText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse filing document: %w", err)
	}
	doc.Find("script, style").Remove()

	var b strings.Builder
	doc.Find("p, div, td, th, li, h1, h2, h3, h4, span, font").Each(func(_ int, sel *goquery.Selection) {
		// Only leaf-ish nodes: taking text from containers would duplicate
		// every nested block.
		if sel.Children().Filter("p, div, li, table").Length() > 0 {
			return
		}
		line := strings.TrimSpace(sel.Text())
		if line == "" {
			return
		}
		b.WriteString(line)
		b.WriteByte('\n')
	})

	text := b.String()
	if text == "" {
		// Plain-text filings have no block elements at all.
		text = doc.Text()
	}
	return text, nil
}

// splitByItems segments the text at item headings and maps segments to
// section kinds. When a heading repeats (table of contents, part II reuse of
// item numbers) the longest segment wins.
func splitByItems(text string, items map[string]domain.SectionKind) map[domain.SectionKind]string {
	matches := itemRe.FindAllStringSubmatchIndex(text, -1)
	sections := make(map[domain.SectionKind]string)

	for i, match := range matches {
		item := strings.ToUpper(text[match[2]:match[3]])
		kind, ok := items[item]
		if !ok {
			continue
		}

		start := match[1]
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		body := strings.TrimSpace(text[start:end])
		if len(body) < minSectionChars {
			continue
		}
		if existing, ok := sections[kind]; ok && len(existing) >= len(body) {
			continue
		}
		sections[kind] = body
	}
	return sections
}
