package edgar

import (
	"errors"
	"time"

	"github.com/mscan/enrich/internal/resolver"
)

// EntityMetadata is the company-level information parsed from the SEC
// submissions endpoint.
type EntityMetadata struct {
	CIK                  string   `json:"cik"`
	EntityName           string   `json:"entity_name"`
	EntityType           string   `json:"entity_type,omitempty"`
	SICCode              string   `json:"sic_code,omitempty"`
	SICDescription       string   `json:"sic_description,omitempty"`
	Tickers              []string `json:"tickers,omitempty"`
	Exchanges            []string `json:"exchanges,omitempty"`
	EIN                  string   `json:"ein,omitempty"`
	FiscalYearEnd        string   `json:"fiscal_year_end,omitempty"`
	StateOfIncorporation string   `json:"state_of_incorporation,omitempty"`
	Phone                string   `json:"phone,omitempty"`
}

// Filing is one entry from the recent filings list.
type Filing struct {
	AccessionNumber string `json:"accession_number"`
	FilingDate      string `json:"filing_date"`
	FormType        string `json:"form_type"`
	PrimaryDocument string `json:"primary_document,omitempty"`
}

// FilingsMetadata summarizes a company's recent filing activity.
type FilingsMetadata struct {
	RecentFilings  []Filing `json:"recent_filings"`
	Count10K       int      `json:"count_10k"`
	Count10Q       int      `json:"count_10q"`
	Count8K        int      `json:"count_8k"`
	LastFilingDate string   `json:"last_filing_date,omitempty"`
}

// FinancialMetrics holds the key figures extracted from XBRL company facts.
// All fields are pointers because the upstream source reports them
// inconsistently across tag variants; absence is distinct from zero.
type FinancialMetrics struct {
	RevenueUSD        *float64 `json:"revenue_usd,omitempty"`
	NetIncomeUSD      *float64 `json:"net_income_usd,omitempty"`
	TotalAssetsUSD    *float64 `json:"total_assets_usd,omitempty"`
	EmployeeCount     *int64   `json:"employee_count,omitempty"`
	MarketingSpendUSD *float64 `json:"marketing_spend_usd,omitempty"`
	RDSpendUSD        *float64 `json:"rd_spend_usd,omitempty"`
	RevenueGrowthYoY  *float64 `json:"revenue_growth_yoy,omitempty"`
	FiscalYear        string   `json:"fiscal_year,omitempty"`
	PeriodEnd         string   `json:"period_end,omitempty"`
}

// CompanyProfile is the combined record produced by one enrichment.
type CompanyProfile struct {
	CIK        string            `json:"cik"`
	Ticker     string            `json:"ticker,omitempty"`
	Entity     *EntityMetadata   `json:"entity,omitempty"`
	Filings    *FilingsMetadata  `json:"filings,omitempty"`
	Financials *FinancialMetrics `json:"financials,omitempty"`
}

// EnrichmentResult is the sole value returned across the engine boundary.
// Every failure path is folded into it so batch callers can keep going;
// partial data (metadata without financials) is a success.
type EnrichmentResult struct {
	Success      bool            `json:"success"`
	Profile      *CompanyProfile `json:"profile,omitempty"`
	Error        string          `json:"error,omitempty"`
	ErrorKind    string          `json:"error_kind,omitempty"`
	RequestsMade int             `json:"requests_made"`
	CacheHits    int             `json:"cache_hits"`
	Retries      int             `json:"retries"`
	Duration     time.Duration   `json:"duration"`

	// Candidates is populated when name resolution was ambiguous, so the
	// caller can pick one and retry with a ticker or CIK.
	Candidates []resolver.Match `json:"candidates,omitempty"`

	// Err keeps the structured error for in-process callers; the string
	// fields above are what crosses the JSON boundary.
	Err error `json:"-"`
}

// errorKind maps a structured error onto its wire label.
func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case isKind[*ConfigError](err):
		return "configuration"
	case isKind[*NotFoundError](err):
		return "not_found"
	case isKind[*RetryExhaustedError](err):
		return "retry_exhausted"
	case isKind[*RateLimitError](err):
		return "rate_limited"
	case isKind[*ServerError](err):
		return "server_error"
	case isKind[*resolver.AmbiguousError](err):
		return "ambiguous"
	case errors.Is(err, resolver.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
