package cache

import "time"

// Tier is a named category of cached data with its own expiration duration.
// The caller picks the tier per logical data type; it is never inferred from
// the key.
type Tier string

const (
	// TierEntityMetadata - company submissions metadata (name, SIC, exchanges)
	TierEntityMetadata Tier = "entity_metadata"
	// TierFinancials - extracted financial metrics
	TierFinancials Tier = "financials"
	// TierFilingsList - recent filings listings (time-sensitive)
	TierFilingsList Tier = "filings_list"
	// TierTickerMapping - the wholesale ticker-to-CIK index snapshot
	TierTickerMapping Tier = "ticker_mapping"
	// TierCompanyFacts - raw XBRL company facts payloads
	TierCompanyFacts Tier = "company_facts"
)

// defaultTTL maps each tier to its expiration duration. Data-driven so a
// tier change is a table edit, not a code branch.
var defaultTTL = map[Tier]time.Duration{
	TierEntityMetadata: 7 * 24 * time.Hour,
	TierFinancials:     30 * 24 * time.Hour,
	TierFilingsList:    24 * time.Hour,
	TierTickerMapping:  7 * 24 * time.Hour,
	TierCompanyFacts:   30 * 24 * time.Hour,
}

// fallbackTTL is used for unknown tiers so a bad caller degrades to a short
// cache rather than an immortal entry.
const fallbackTTL = 24 * time.Hour

// TTL returns the expiration duration for a tier.
func (t Tier) TTL() time.Duration {
	if ttl, ok := defaultTTL[t]; ok {
		return ttl
	}
	return fallbackTTL
}

// AllTiers lists every known tier, used by stats reporting.
var AllTiers = []Tier{
	TierEntityMetadata,
	TierFinancials,
	TierFilingsList,
	TierTickerMapping,
	TierCompanyFacts,
}
