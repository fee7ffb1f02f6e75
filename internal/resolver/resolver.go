// Package resolver maps ticker symbols and free-text company names to SEC
// CIK numbers. The full ticker index is fetched wholesale from the SEC,
// cached under its own tier, and held behind an atomically swapped snapshot
// so readers never observe a half-built index.
package resolver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/mscan/enrich/internal/cache"
)

// TickerIndexURL is the SEC's bulk ticker-to-CIK mapping document.
const TickerIndexURL = "https://www.sec.gov/files/company_tickers.json"

// indexCacheKey is the distinguished cache key for the index snapshot.
const indexCacheKey = "__ticker_mapping__"

// MinMatchScore is the minimum fuzzy similarity for a name candidate.
const MinMatchScore = 0.6

// Ambiguity rule: a best match below clearWinnerScore whose lead over the
// runner-up is smaller than ambiguityGap is not a clear winner.
const (
	clearWinnerScore = 0.95
	ambiguityGap     = 0.1
)

// TokenAcquirer grants permission to hit the network. Satisfied by both
// ratelimit.Limiter and ratelimit.AdaptiveLimiter.
type TokenAcquirer interface {
	Acquire(blocking bool) bool
}

// Match is a resolution candidate. Produced transiently, never persisted.
type Match struct {
	CIK         string  `json:"cik"`
	Ticker      string  `json:"ticker,omitempty"`
	CompanyName string  `json:"company_name"`
	Score       float64 `json:"score"`
	MatchType   string  `json:"match_type"` // ticker, exact, fuzzy, ticker_prefix, name_prefix
}

// ErrNotFound indicates an identifier that cannot be resolved.
var ErrNotFound = errors.New("identifier not found")

// ErrEmptyIdentifier indicates a blank ticker or name.
var ErrEmptyIdentifier = errors.New("empty identifier")

// AmbiguousError carries the candidate list when a name search has several
// plausible matches and no clear winner, so the caller can disambiguate.
type AmbiguousError struct {
	Identifier string
	Candidates []Match
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("identifier %q is ambiguous (%d candidates)", e.Identifier, len(e.Candidates))
}

// nameEntry is one indexed company in a snapshot.
type nameEntry struct {
	cik        string
	name       string
	normalized string
}

// snapshot is one immutable generation of the ticker index. A refresh builds
// a complete replacement off to the side and publishes it with one atomic
// pointer swap.
type snapshot struct {
	tickerToCIK map[string]string
	cikToTicker map[string]string
	names       map[string]string // cik -> display name
	entries     []nameEntry       // one per CIK, for fuzzy search
	fetchedAt   time.Time
}

// indexDocument is the cache serialization of a snapshot.
type indexDocument struct {
	TickerToCIK  map[string]string `json:"ticker_to_cik"`
	CompanyNames map[string]string `json:"company_names"`
	FetchedAt    time.Time         `json:"fetched_at"`
}

// Stats describes the loaded index.
type Stats struct {
	Loaded         bool      `json:"loaded"`
	TotalTickers   int       `json:"total_tickers"`
	TotalCompanies int       `json:"total_companies"`
	FetchedAt      time.Time `json:"fetched_at,omitempty"`
}

// Resolver resolves tickers and company names to CIKs.
type Resolver struct {
	cache     *cache.Store
	limiter   TokenAcquirer
	client    *http.Client
	userAgent string
	indexURL  string
	minScore  float64
	log       zerolog.Logger

	snap atomic.Pointer[snapshot]
}

// New creates a resolver. The index is loaded lazily on first lookup.
func New(store *cache.Store, limiter TokenAcquirer, userAgent string, log zerolog.Logger) *Resolver {
	return &Resolver{
		cache:     store,
		limiter:   limiter,
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: userAgent,
		indexURL:  TickerIndexURL,
		minScore:  MinMatchScore,
		log:       log.With().Str("component", "resolver").Logger(),
	}
}

// SetIndexURL overrides the index source, used by tests.
func (r *Resolver) SetIndexURL(url string) {
	r.indexURL = url
}

// SetTimeout overrides the index fetch timeout.
func (r *Resolver) SetTimeout(d time.Duration) {
	r.client.Timeout = d
}

// PadCIK zero-pads a CIK to the canonical 10 digits.
func PadCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}

// ByTicker resolves a ticker symbol to a CIK. Case-insensitive exact lookup
// against the index; falls back to the cache for delisted tickers that have
// dropped out of the live index but whose cached entries are still valid.
func (r *Resolver) ByTicker(ticker string) (string, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return "", ErrEmptyIdentifier
	}

	snap, err := r.load(false)
	if err != nil {
		return "", err
	}

	if cik, ok := snap.tickerToCIK[ticker]; ok {
		return cik, nil
	}

	// Delisted: the cache is authoritative until its own TTL expires
	if raw, ok := r.cache.GetByTicker(ticker); ok {
		var payload struct {
			CIK string `json:"cik"`
		}
		if err := json.Unmarshal(raw, &payload); err == nil && payload.CIK != "" {
			r.log.Debug().Str("ticker", ticker).Msg("Resolved delisted ticker from cache")
			return PadCIK(payload.CIK), nil
		}
	}

	return "", fmt.Errorf("ticker %s: %w", ticker, ErrNotFound)
}

// ByName searches companies by name with fuzzy matching. Results are sorted
// best score first, ties broken by shorter normalized name (the more
// specific match beats its superstrings). Candidates below the minimum
// score are filtered out; a nonsense query yields an empty list.
func (r *Resolver) ByName(name string, limit int) ([]Match, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyIdentifier
	}
	if limit <= 0 {
		limit = 5
	}

	snap, err := r.load(false)
	if err != nil {
		return nil, err
	}

	normalized := NormalizeName(name)
	if normalized == "" {
		return []Match{}, nil
	}

	type scored struct {
		entry nameEntry
		score float64
	}

	var candidates []scored
	for _, entry := range snap.entries {
		score := Similarity(normalized, entry.normalized)
		if score >= r.minScore {
			candidates = append(candidates, scored{entry: entry, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return len(candidates[i].entry.normalized) < len(candidates[j].entry.normalized)
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		matchType := "fuzzy"
		if c.score == 1.0 {
			matchType = "exact"
		}
		matches = append(matches, Match{
			CIK:         c.entry.cik,
			Ticker:      snap.cikToTicker[c.entry.cik],
			CompanyName: c.entry.name,
			Score:       c.score,
			MatchType:   matchType,
		})
	}

	r.log.Debug().Str("name", name).Int("matches", len(matches)).Msg("Name search completed")
	return matches, nil
}

// Resolve maps an identifier (ticker or company name) to a single match.
// Exact ticker lookup wins; otherwise the name search must produce a clear
// winner or an AmbiguousError carries the candidates back to the caller.
func (r *Resolver) Resolve(identifier string) (Match, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Match{}, ErrEmptyIdentifier
	}

	if cik, err := r.ByTicker(identifier); err == nil {
		snap := r.snap.Load()
		return Match{
			CIK:         cik,
			Ticker:      strings.ToUpper(identifier),
			CompanyName: snap.names[cik],
			Score:       1.0,
			MatchType:   "ticker",
		}, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Match{}, err
	}

	matches, err := r.ByName(identifier, 5)
	if err != nil {
		return Match{}, err
	}
	if len(matches) == 0 {
		return Match{}, fmt.Errorf("identifier %q: %w", identifier, ErrNotFound)
	}

	best := matches[0]
	if best.Score >= clearWinnerScore {
		return best, nil
	}
	if len(matches) == 1 || best.Score-matches[1].Score >= ambiguityGap {
		return best, nil
	}

	return Match{}, &AmbiguousError{Identifier: identifier, Candidates: matches}
}

// PrefixSearch finds companies by ticker or name prefix, for autocomplete.
func (r *Resolver) PrefixSearch(prefix string, limit int) ([]Match, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil, ErrEmptyIdentifier
	}
	if limit <= 0 {
		limit = 10
	}

	snap, err := r.load(false)
	if err != nil {
		return nil, err
	}

	var matches []Match
	seen := make(map[string]bool)

	// Deterministic order for map iteration
	tickers := make([]string, 0, len(snap.tickerToCIK))
	for ticker := range snap.tickerToCIK {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	for _, ticker := range tickers {
		if !strings.HasPrefix(ticker, prefix) {
			continue
		}
		cik := snap.tickerToCIK[ticker]
		if seen[cik] {
			continue
		}
		seen[cik] = true
		matches = append(matches, Match{
			CIK:         cik,
			Ticker:      ticker,
			CompanyName: snap.names[cik],
			Score:       1.0,
			MatchType:   "ticker_prefix",
		})
		if len(matches) >= limit {
			return matches, nil
		}
	}

	for _, entry := range snap.entries {
		if seen[entry.cik] {
			continue
		}
		if !strings.HasPrefix(strings.ToUpper(entry.name), prefix) {
			continue
		}
		seen[entry.cik] = true
		matches = append(matches, Match{
			CIK:         entry.cik,
			Ticker:      snap.cikToTicker[entry.cik],
			CompanyName: entry.name,
			Score:       0.9,
			MatchType:   "name_prefix",
		})
		if len(matches) >= limit {
			break
		}
	}

	return matches, nil
}

// CompanyName returns the indexed display name for a CIK, if known.
func (r *Resolver) CompanyName(cik string) string {
	snap, err := r.load(false)
	if err != nil {
		return ""
	}
	return snap.names[PadCIK(cik)]
}

// Ticker returns the indexed ticker for a CIK, if known.
func (r *Resolver) Ticker(cik string) string {
	snap, err := r.load(false)
	if err != nil {
		return ""
	}
	return snap.cikToTicker[PadCIK(cik)]
}

// ForceRefresh discards the current snapshot and fetches a fresh index.
func (r *Resolver) ForceRefresh() error {
	_, err := r.load(true)
	return err
}

// GetStats returns index statistics.
func (r *Resolver) GetStats() Stats {
	snap := r.snap.Load()
	if snap == nil {
		return Stats{}
	}
	return Stats{
		Loaded:         true,
		TotalTickers:   len(snap.tickerToCIK),
		TotalCompanies: len(snap.names),
		FetchedAt:      snap.fetchedAt,
	}
}

// load returns the current snapshot, building one from cache or network if
// needed. Concurrent callers may race to build; the duplicate fetch is
// bounded by the rate limiter and last write wins on the pointer swap.
func (r *Resolver) load(force bool) (*snapshot, error) {
	if !force {
		if snap := r.snap.Load(); snap != nil {
			return snap, nil
		}

		if raw, ok := r.cache.Get(indexCacheKey); ok {
			var doc indexDocument
			if err := json.Unmarshal(raw, &doc); err == nil && len(doc.TickerToCIK) > 0 {
				snap := buildSnapshot(doc)
				r.snap.Store(snap)
				r.log.Info().Int("tickers", len(snap.tickerToCIK)).Msg("Loaded ticker index from cache")
				return snap, nil
			}
			r.log.Warn().Msg("Cached ticker index is unreadable, refetching")
		}
	}

	doc, err := r.fetchIndex()
	if err != nil {
		return nil, err
	}

	snap := buildSnapshot(doc)
	r.snap.Store(snap)

	if err := r.cache.Set(indexCacheKey, doc, cache.TierTickerMapping, nil); err != nil {
		r.log.Error().Err(err).Msg("Failed to cache ticker index")
	}

	r.log.Info().Int("tickers", len(snap.tickerToCIK)).Msg("Loaded ticker index from SEC")
	return snap, nil
}

// fetchIndex downloads the SEC's bulk ticker mapping through the limiter.
func (r *Resolver) fetchIndex() (indexDocument, error) {
	r.limiter.Acquire(true)

	req, err := http.NewRequest(http.MethodGet, r.indexURL, nil)
	if err != nil {
		return indexDocument{}, fmt.Errorf("failed to create index request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return indexDocument{}, fmt.Errorf("failed to fetch ticker index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return indexDocument{}, fmt.Errorf("ticker index fetch returned status %d: %s", resp.StatusCode, string(body))
	}

	// The SEC document is keyed by row number:
	// {"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."}, ...}
	var raw map[string]struct {
		CIK    int64  `json:"cik_str"`
		Ticker string `json:"ticker"`
		Title  string `json:"title"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return indexDocument{}, fmt.Errorf("failed to parse ticker index: %w", err)
	}

	doc := indexDocument{
		TickerToCIK:  make(map[string]string, len(raw)),
		CompanyNames: make(map[string]string, len(raw)),
		FetchedAt:    time.Now().UTC(),
	}
	for _, entry := range raw {
		if entry.Ticker == "" {
			continue
		}
		cik := PadCIK(fmt.Sprintf("%d", entry.CIK))
		doc.TickerToCIK[strings.ToUpper(entry.Ticker)] = cik
		if _, ok := doc.CompanyNames[cik]; !ok {
			doc.CompanyNames[cik] = entry.Title
		}
	}

	return doc, nil
}

// buildSnapshot constructs the immutable lookup structures from a document.
// Entries are de-duplicated by CIK so multiple share classes of one company
// never produce duplicate name candidates.
func buildSnapshot(doc indexDocument) *snapshot {
	snap := &snapshot{
		tickerToCIK: make(map[string]string, len(doc.TickerToCIK)),
		cikToTicker: make(map[string]string, len(doc.CompanyNames)),
		names:       make(map[string]string, len(doc.CompanyNames)),
		entries:     make([]nameEntry, 0, len(doc.CompanyNames)),
		fetchedAt:   doc.FetchedAt,
	}

	tickers := make([]string, 0, len(doc.TickerToCIK))
	for ticker := range doc.TickerToCIK {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	for _, ticker := range tickers {
		cik := doc.TickerToCIK[ticker]
		snap.tickerToCIK[ticker] = cik
		// First ticker in sorted order wins as the primary symbol
		if _, ok := snap.cikToTicker[cik]; !ok {
			snap.cikToTicker[cik] = ticker
		}
	}

	ciks := make([]string, 0, len(doc.CompanyNames))
	for cik := range doc.CompanyNames {
		ciks = append(ciks, cik)
	}
	sort.Strings(ciks)

	for _, cik := range ciks {
		name := doc.CompanyNames[cik]
		snap.names[cik] = name
		snap.entries = append(snap.entries, nameEntry{
			cik:        cik,
			name:       name,
			normalized: NormalizeName(name),
		})
	}

	return snap
}
