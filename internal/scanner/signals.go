// Package scanner defines the website technology signal types the engine
// consumes as opaque external input. Scanning itself (browser automation,
// vendor detection) happens outside this system; callers attach the
// detected signals to an enrichment and the scorer references them.
package scanner

// TechSignal is one detected marketing technology on a company's website.
type TechSignal struct {
	Vendor   string `json:"vendor"`
	Category string `json:"category"`
}

// Categories referenced by the scorer's gap rules.
const (
	CategoryAnalytics   = "Analytics"
	CategoryCDP         = "CDP"
	CategorySocialMedia = "Social Media"
)

// CategorySet collapses signals into the set of present categories.
func CategorySet(signals []TechSignal) map[string]bool {
	set := make(map[string]bool, len(signals))
	for _, s := range signals {
		if s.Category != "" {
			set[s.Category] = true
		}
	}
	return set
}
