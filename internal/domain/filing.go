package domain

import "time"

// FilingRef identifies one SEC EDGAR filing as returned by the EDGAR client.
type FilingRef struct {
	AccessionNumber string    `json:"accession_number"`
	FilingDate      time.Time `json:"filing_date"`
	Form            string    `json:"form"`
	CIK             string    `json:"cik"`
	CompanyName     string    `json:"company_name"`
	PrimaryDocument string    `json:"primary_document,omitempty"`
}

// Company is tracked company metadata keyed by CIK.
type Company struct {
	ID        string
	CIK       string
	Ticker    string
	Name      string
	Exchange  string
	Tracked   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filing is a stored filing row, upserted by accession number.
type Filing struct {
	ID              string
	CompanyID       string
	AccessionNumber string
	Form            string
	FilingDate      time.Time
	CreatedAt       time.Time
}

// SectionKind names a section extracted from a filing document.
type SectionKind string

const (
	SectionBusinessDescription  SectionKind = "business_description"
	SectionRiskFactors          SectionKind = "risk_factors"
	SectionManagementDiscussion SectionKind = "management_discussion"
	SectionLegalProceedings     SectionKind = "legal_proceedings"
	SectionProperties           SectionKind = "properties"
	SectionMarketRisk           SectionKind = "market_risk"
	SectionFinancialStatements  SectionKind = "financial_statements"
	SectionControlsProcedures   SectionKind = "controls_procedures"
)

// KnownSectionKinds lists every extractable section in document order.
func KnownSectionKinds() []SectionKind {
	return []SectionKind{
		SectionBusinessDescription,
		SectionRiskFactors,
		SectionProperties,
		SectionLegalProceedings,
		SectionManagementDiscussion,
		SectionMarketRisk,
		SectionFinancialStatements,
		SectionControlsProcedures,
	}
}

// Document is an extracted section of a filing.
type Document struct {
	ID        string
	FilingID  string
	CompanyID string
	Section   SectionKind
	Text      string
	CreatedAt time.Time
}

// GeneratedContent is LLM output stored with provenance, upserted by content
// hash so regenerating identical output is a no-op.
type GeneratedContent struct {
	ID           string
	CompanyID    string
	ContentType  string
	ContentHash  string
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
	StopReason   string
	CreatedAt    time.Time
}

// Generation is the raw result of one LLM call.
type Generation struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
	StopReason   string
}

// Rating is a user rating attached to generated content.
type Rating struct {
	ID        string
	ContentID string
	Score     int
	Comment   string
	CreatedAt time.Time
}
