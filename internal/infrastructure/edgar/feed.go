package edgar

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/filingpulse/filingpulse/internal/domain"
)

// atomFeed models the current-filings Atom document.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	ID      string `xml:"id"`
	Updated string `xml:"updated"`
}

// Entry titles look like "10-K - Apple Inc. (0000320193) (Filer)".
var titleRe = regexp.MustCompile(`^(\S+)\s+-\s+(.+?)\s+\((\d{10})\)`)

// Entry ids carry the accession number:
// "urn:tag:sec.gov,2008:accession-number=0000320193-24-000123".
const accessionIDPrefix = "accession-number="

func parseCurrentFeed(body []byte, form string) ([]domain.FilingRef, error) {
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse current filings feed: %w", err)
	}

	var refs []domain.FilingRef
	for _, entry := range feed.Entries {
		match := titleRe.FindStringSubmatch(entry.Title)
		if match == nil || match[1] != form {
			continue
		}

		idx := strings.Index(entry.ID, accessionIDPrefix)
		if idx < 0 {
			continue
		}
		accession := entry.ID[idx+len(accessionIDPrefix):]

		filed, err := time.Parse(time.RFC3339, entry.Updated)
		if err != nil {
			continue
		}

		refs = append(refs, domain.FilingRef{
			AccessionNumber: accession,
			FilingDate:      filed.UTC(),
			Form:            form,
			CIK:             match[3],
			CompanyName:     match[2],
		})
	}
	return refs, nil
}
