// Package edgar is the SEC EDGAR enrichment client: cache-first fetching of
// entity submissions and XBRL company facts, rate limited and retried with a
// classified error taxonomy. Every failure is folded into the returned
// EnrichmentResult so callers never see a panic or an uncaught fault.
package edgar

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mscan/enrich/internal/cache"
	"github.com/mscan/enrich/internal/resolver"
)

// DefaultBaseURL is the SEC data API host.
const DefaultBaseURL = "https://data.sec.gov"

const (
	submissionsPath  = "/submissions/CIK%s.json"
	companyFactsPath = "/api/xbrl/companyfacts/CIK%s.json"
)

// DefaultTimeout bounds each individual network request. Exceeding it is a
// retryable server fault.
const DefaultTimeout = 30 * time.Second

// rateLimitSignaler is implemented by the adaptive limiter. Plain limiters
// that don't implement it simply never get the slowdown signal.
type rateLimitSignaler interface {
	RecordRateLimitHit()
}

// Client fetches and caches EDGAR data for resolved CIKs.
type Client struct {
	cache     *cache.Store
	limiter   resolver.TokenAcquirer
	resolver  *resolver.Resolver
	client    *http.Client
	userAgent string
	baseURL   string
	retry     RetryPolicy
	log       zerolog.Logger
}

// callStats accumulates per-enrichment telemetry. One instance per call so
// concurrent enrichments never share counters.
type callStats struct {
	requests  int
	cacheHits int
	retries   int
}

// NewClient validates the configuration and builds a client. The SEC
// requires a User-Agent identifying the caller with a contact email;
// a missing or malformed one is a fatal configuration error, caught here
// rather than on the first request.
func NewClient(store *cache.Store, limiter resolver.TokenAcquirer, res *resolver.Resolver, userAgent string, log zerolog.Logger) (*Client, error) {
	if userAgent == "" {
		return nil, &ConfigError{Reason: "User-Agent is required by SEC fair access rules"}
	}
	if !strings.Contains(userAgent, "@") {
		return nil, &ConfigError{Reason: `User-Agent must include a contact email, e.g. "Acme Corp admin@acme.com"`}
	}

	return &Client{
		cache:     store,
		limiter:   limiter,
		resolver:  res,
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: userAgent,
		baseURL:   DefaultBaseURL,
		retry:     DefaultRetryPolicy(),
		log:       log.With().Str("component", "edgar").Logger(),
	}, nil
}

// SetBaseURL overrides the API host, used by tests.
func (c *Client) SetBaseURL(url string) { c.baseURL = url }

// SetRetryPolicy overrides the retry policy.
func (c *Client) SetRetryPolicy(p RetryPolicy) { c.retry = p }

// SetTimeout overrides the per-request timeout.
func (c *Client) SetTimeout(d time.Duration) { c.client.Timeout = d }

// EnrichByTicker resolves a ticker and enriches the company behind it.
func (c *Client) EnrichByTicker(ticker string) *EnrichmentResult {
	start := time.Now()

	cik, err := c.resolver.ByTicker(ticker)
	if err != nil {
		return c.failure(err, &callStats{}, start)
	}

	result := c.EnrichByCIK(cik)
	if result.Profile != nil && result.Profile.Ticker == "" {
		result.Profile.Ticker = strings.ToUpper(strings.TrimSpace(ticker))
	}
	result.Duration = time.Since(start)
	return result
}

// EnrichByName resolves a company name (fuzzy) and enriches the best match.
// An ambiguous name surfaces the candidate list in the result so the caller
// can disambiguate and retry with a ticker or CIK.
func (c *Client) EnrichByName(name string) *EnrichmentResult {
	start := time.Now()

	match, err := c.resolver.Resolve(name)
	if err != nil {
		return c.failure(err, &callStats{}, start)
	}

	result := c.EnrichByCIK(match.CIK)
	if result.Profile != nil && result.Profile.Ticker == "" {
		result.Profile.Ticker = match.Ticker
	}
	result.Duration = time.Since(start)
	return result
}

// EnrichByCIK fetches entity metadata and company facts for a CIK.
// Metadata is mandatory; facts are best-effort, and their absence is a
// partial success surfaced as missing fields rather than a failure.
func (c *Client) EnrichByCIK(cik string) *EnrichmentResult {
	start := time.Now()
	st := &callStats{}
	cik = resolver.PadCIK(cik)

	c.log.Debug().Str("cik", cik).Msg("Enriching company")

	entity, filings, err := c.getSubmissions(cik, st)
	if err != nil {
		return c.failure(err, st, start)
	}

	profile := &CompanyProfile{
		CIK:     cik,
		Entity:  entity,
		Filings: filings,
	}
	if len(entity.Tickers) > 0 {
		profile.Ticker = entity.Tickers[0]
	} else {
		// Some registrants file without tickers; the index still knows them
		profile.Ticker = c.resolver.Ticker(cik)
	}
	if entity.EntityName == "" {
		entity.EntityName = c.resolver.CompanyName(cik)
	}

	metrics, err := c.getCompanyFacts(cik, st)
	if err != nil {
		c.log.Warn().Str("cik", cik).Err(err).Msg("Company facts unavailable, returning partial profile")
	} else {
		profile.Financials = metrics
	}

	c.log.Info().
		Str("cik", cik).
		Str("ticker", profile.Ticker).
		Int("requests", st.requests).
		Int("cache_hits", st.cacheHits).
		Msg("Enrichment completed")

	return &EnrichmentResult{
		Success:      true,
		Profile:      profile,
		RequestsMade: st.requests,
		CacheHits:    st.cacheHits,
		Retries:      st.retries,
		Duration:     time.Since(start),
	}
}

// getSubmissions fetches and parses the submissions endpoint for a CIK.
func (c *Client) getSubmissions(cik string, st *callStats) (*EntityMetadata, *FilingsMetadata, error) {
	url := c.baseURL + fmt.Sprintf(submissionsPath, cik)
	key := "submissions:" + cik

	raw, err := c.fetchJSON(key, cache.TierEntityMetadata, url, st, true)
	if err != nil {
		return nil, nil, err
	}

	var doc submissionsDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse submissions for CIK %s: %w", cik, err)
	}

	entity := &EntityMetadata{
		CIK:                  cik,
		EntityName:           doc.Name,
		EntityType:           doc.EntityType,
		SICCode:              doc.SIC,
		SICDescription:       doc.SICDescription,
		Tickers:              doc.Tickers,
		Exchanges:            doc.Exchanges,
		EIN:                  doc.EIN,
		FiscalYearEnd:        doc.FiscalYearEnd,
		StateOfIncorporation: doc.StateOfIncorporation,
		Phone:                doc.Phone,
	}

	return entity, parseFilings(doc), nil
}

// getCompanyFacts fetches the XBRL facts endpoint and extracts metrics.
func (c *Client) getCompanyFacts(cik string, st *callStats) (*FinancialMetrics, error) {
	url := c.baseURL + fmt.Sprintf(companyFactsPath, cik)
	key := "facts:" + cik

	raw, err := c.fetchJSON(key, cache.TierCompanyFacts, url, st, false)
	if err != nil {
		return nil, err
	}

	return ExtractMetrics(raw)
}

// fetchJSON serves a payload cache-first, falling back to a rate-limited,
// retried network fetch. Successful fetches are cached under the tier.
func (c *Client) fetchJSON(key string, tier cache.Tier, url string, st *callStats, indexable bool) ([]byte, error) {
	if raw, ok := c.cache.Get(key); ok {
		st.cacheHits++
		return raw, nil
	}

	var body []byte
	retries, err := c.retry.Do(func() error {
		c.limiter.Acquire(true)
		st.requests++

		b, reqErr := c.doRequest(url)
		if reqErr != nil {
			return reqErr
		}
		body = b
		return nil
	})
	st.retries += retries
	if err != nil {
		return nil, err
	}

	opts := c.cacheOptions(body, indexable)
	if err := c.cache.Set(key, json.RawMessage(body), tier, opts); err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("Failed to cache payload")
	}

	return body, nil
}

// cacheOptions extracts the ticker and company name from a submissions
// payload so the cache row is findable by ticker (delisted support).
func (c *Client) cacheOptions(body []byte, indexable bool) *cache.SetOptions {
	if !indexable {
		return nil
	}

	var doc struct {
		Name    string   `json:"name"`
		Tickers []string `json:"tickers"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil
	}

	opts := &cache.SetOptions{CompanyName: doc.Name}
	if len(doc.Tickers) > 0 {
		opts.Ticker = doc.Tickers[0]
	}
	return opts
}

// doRequest performs one HTTP attempt and classifies the outcome.
func (c *Client) doRequest(url string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// Transport failures and timeouts are transient faults
		return nil, &ServerError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &ServerError{URL: url, Err: err}
		}
		return body, nil

	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		c.log.Warn().Int("status", resp.StatusCode).Str("url", url).Msg("Rate limited by upstream")
		if s, ok := c.limiter.(rateLimitSignaler); ok {
			s.RecordRateLimitHit()
		}
		return nil, &RateLimitError{StatusCode: resp.StatusCode, URL: url}

	case resp.StatusCode == http.StatusNotFound:
		return nil, &NotFoundError{URL: url}

	default:
		return nil, &ServerError{StatusCode: resp.StatusCode, URL: url}
	}
}

// failure builds the structured failure result.
func (c *Client) failure(err error, st *callStats, start time.Time) *EnrichmentResult {
	result := &EnrichmentResult{
		Success:      false,
		Error:        err.Error(),
		ErrorKind:    errorKind(err),
		RequestsMade: st.requests,
		CacheHits:    st.cacheHits,
		Retries:      st.retries,
		Duration:     time.Since(start),
		Err:          err,
	}

	var ambiguous *resolver.AmbiguousError
	if errors.As(err, &ambiguous) {
		result.Candidates = ambiguous.Candidates
	}

	c.log.Warn().Str("kind", result.ErrorKind).Err(err).Msg("Enrichment failed")
	return result
}

// submissionsDocument is the wire shape of the SEC submissions endpoint.
type submissionsDocument struct {
	Name                 string   `json:"name"`
	EntityType           string   `json:"entityType"`
	SIC                  string   `json:"sic"`
	SICDescription       string   `json:"sicDescription"`
	Tickers              []string `json:"tickers"`
	Exchanges            []string `json:"exchanges"`
	EIN                  string   `json:"ein"`
	FiscalYearEnd        string   `json:"fiscalYearEnd"`
	StateOfIncorporation string   `json:"stateOfIncorporation"`
	Phone                string   `json:"phone"`
	Filings              struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// parseFilings summarizes the recent filings list: the newest 20 entries,
// form-type counts over the whole window, and the most recent filing date.
func parseFilings(doc submissionsDocument) *FilingsMetadata {
	recent := doc.Filings.Recent

	meta := &FilingsMetadata{}

	limit := len(recent.Form)
	if limit > 20 {
		limit = 20
	}
	for i := 0; i < limit; i++ {
		filing := Filing{FormType: recent.Form[i]}
		if i < len(recent.AccessionNumber) {
			filing.AccessionNumber = recent.AccessionNumber[i]
		}
		if i < len(recent.FilingDate) {
			filing.FilingDate = recent.FilingDate[i]
		}
		if i < len(recent.PrimaryDocument) {
			filing.PrimaryDocument = recent.PrimaryDocument[i]
		}
		meta.RecentFilings = append(meta.RecentFilings, filing)
	}

	for _, form := range recent.Form {
		switch form {
		case "10-K":
			meta.Count10K++
		case "10-Q":
			meta.Count10Q++
		case "8-K":
			meta.Count8K++
		}
	}

	if len(recent.FilingDate) > 0 {
		meta.LastFilingDate = recent.FilingDate[0]
	}

	return meta
}
