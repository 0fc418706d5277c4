package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/filingpulse/filingpulse/internal/domain"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL serves filing archives and the company ticker index.
	DefaultBaseURL = "https://www.sec.gov"

	// DefaultDataBaseURL serves the structured submissions API.
	DefaultDataBaseURL = "https://data.sec.gov"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the SEC fair-access ceiling (requests per second).
	DefaultRateLimit = 10

	dateLayout = "2006-01-02"
)

// Client talks to SEC EDGAR. Every request carries the mandatory User-Agent
// contact string and passes through a shared rate limiter.
type Client struct {
	baseURL     string
	dataBaseURL string
	userAgent   string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom archive base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithDataBaseURL sets a custom submissions API base URL.
func WithDataBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.dataBaseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewClient creates an EDGAR client. The contact string identifies the caller
// to the SEC per their fair-access policy, e.g. "FilingPulse admin@example.com".
func NewClient(contact string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		dataBaseURL: DefaultDataBaseURL,
		userAgent:   contact,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs a rate-limited GET and returns the response body.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("edgar returned %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, url string, result any) error {
	body, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode edgar response: %w", err)
	}
	return nil
}

// tickerEntry is one row of the company_tickers.json index.
type tickerEntry struct {
	CIK    int    `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// CompanyByTicker resolves a ticker through the company ticker index.
func (c *Client) CompanyByTicker(ctx context.Context, ticker string) (*domain.Company, error) {
	var index map[string]tickerEntry
	if err := c.getJSON(ctx, c.baseURL+"/files/company_tickers.json", &index); err != nil {
		return nil, fmt.Errorf("fetch ticker index: %w", err)
	}

	want := strings.ToUpper(strings.TrimSpace(ticker))
	for _, entry := range index {
		if strings.ToUpper(entry.Ticker) == want {
			return &domain.Company{
				CIK:    padCIK(entry.CIK),
				Ticker: strings.ToUpper(entry.Ticker),
				Name:   entry.Title,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: ticker %s", domain.ErrCompanyNotFound, ticker)
}

// submissionsResponse is the slice of data.sec.gov submissions we read.
// Recent filings arrive as parallel arrays indexed together.
type submissionsResponse struct {
	CIK     string `json:"cik"`
	Name    string `json:"name"`
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// GetRecentFilings returns up to count recent filings of one form for a
// ticker, newest first.
func (c *Client) GetRecentFilings(ctx context.Context, ticker, form string, count int) ([]domain.FilingRef, error) {
	company, err := c.CompanyByTicker(ctx, ticker)
	if err != nil {
		return nil, err
	}

	var subs submissionsResponse
	url := fmt.Sprintf("%s/submissions/CIK%s.json", c.dataBaseURL, company.CIK)
	if err := c.getJSON(ctx, url, &subs); err != nil {
		return nil, fmt.Errorf("fetch submissions for %s: %w", ticker, err)
	}

	recent := subs.Filings.Recent
	var refs []domain.FilingRef
	for i := range recent.AccessionNumber {
		if recent.Form[i] != form {
			continue
		}
		filed, err := time.Parse(dateLayout, recent.FilingDate[i])
		if err != nil {
			continue
		}
		refs = append(refs, domain.FilingRef{
			AccessionNumber: recent.AccessionNumber[i],
			FilingDate:      filed,
			Form:            form,
			CIK:             company.CIK,
			CompanyName:     subs.Name,
			PrimaryDocument: recent.PrimaryDocument[i],
		})
		if count > 0 && len(refs) >= count {
			break
		}
	}
	return refs, nil
}

// GetCurrentFilings returns the global current-filings Atom feed for a form.
func (c *Client) GetCurrentFilings(ctx context.Context, form string) ([]domain.FilingRef, error) {
	url := fmt.Sprintf(
		"%s/cgi-bin/browse-edgar?action=getcurrent&type=%s&owner=include&count=100&output=atom",
		c.baseURL, form)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch current filings feed: %w", err)
	}
	return parseCurrentFeed(body, form)
}

// searchResponse is the EDGAR full-text search envelope.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string `json:"_id"`
			Source struct {
				CIKs         []string `json:"ciks"`
				DisplayNames []string `json:"display_names"`
				FileDate     string   `json:"file_date"`
				RootForms    []string `json:"root_forms"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// GetFilingsByDate returns filings of a form filed within [from, to] via the
// full-text search API.
func (c *Client) GetFilingsByDate(ctx context.Context, form string, from, to time.Time) ([]domain.FilingRef, error) {
	url := fmt.Sprintf(
		"https://efts.sec.gov/LATEST/search-index?q=%%22%%22&forms=%s&startdt=%s&enddt=%s",
		form, from.Format(dateLayout), to.Format(dateLayout))

	var resp searchResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("filing search: %w", err)
	}

	var refs []domain.FilingRef
	for _, hit := range resp.Hits.Hits {
		// _id is "<accession>:<primary document>".
		accession, primary, _ := strings.Cut(hit.ID, ":")
		filed, err := time.Parse(dateLayout, hit.Source.FileDate)
		if err != nil {
			continue
		}
		ref := domain.FilingRef{
			AccessionNumber: accession,
			FilingDate:      filed,
			Form:            form,
			PrimaryDocument: primary,
		}
		if len(hit.Source.CIKs) > 0 {
			ref.CIK = padCIKString(hit.Source.CIKs[0])
		}
		if len(hit.Source.DisplayNames) > 0 {
			ref.CompanyName = hit.Source.DisplayNames[0]
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// GetDocument fetches the primary document of a filing from the archives.
func (c *Client) GetDocument(ctx context.Context, ref domain.FilingRef) (string, error) {
	if ref.PrimaryDocument == "" {
		return "", fmt.Errorf("filing %s has no primary document", ref.AccessionNumber)
	}

	cik := strings.TrimLeft(ref.CIK, "0")
	accession := strings.ReplaceAll(ref.AccessionNumber, "-", "")
	url := fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s", c.baseURL, cik, accession, ref.PrimaryDocument)

	body, err := c.get(ctx, url)
	if err != nil {
		return "", fmt.Errorf("fetch document %s: %w", ref.PrimaryDocument, err)
	}
	return string(body), nil
}

// padCIK zero-pads a numeric CIK to the 10 digits the submissions API expects.
func padCIK(cik int) string {
	return fmt.Sprintf("%010d", cik)
}

func padCIKString(cik string) string {
	n, err := strconv.Atoi(cik)
	if err != nil {
		return cik
	}
	return padCIK(n)
}
