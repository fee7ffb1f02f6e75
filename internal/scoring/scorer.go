// Package scoring turns an enriched company profile into a bounded
// qualification score with insights and recommendations. Pure and
// deterministic: no I/O, no clock, no hidden state, so cached profiles can
// be re-scored without re-fetching.
package scoring

import (
	"github.com/mscan/enrich/internal/edgar"
	"github.com/mscan/enrich/internal/scanner"
)

// MaxScore caps the qualification score.
const MaxScore = 100

// Band maxima. The four bands sum to exactly MaxScore.
const (
	maxRevenuePoints   = 40
	maxEmployeePoints  = 25
	maxMarketingPoints = 20
	maxRDPoints        = 15
)

// Confidence thresholds over data completeness.
const (
	highConfidenceThreshold   = 0.9
	mediumConfidenceThreshold = 0.6
)

// ScoredProfile is the scorer's output: the profile plus the derived
// qualification signals. Recomputed on demand, never persisted.
type ScoredProfile struct {
	Profile          *edgar.CompanyProfile `json:"profile,omitempty"`
	Score            int                   `json:"score"`
	Insights         []string              `json:"insights"`
	Recommendations  []string              `json:"recommendations"`
	DataCompleteness float64               `json:"data_completeness"`
	Confidence       string                `json:"confidence"`
}

// Scorer scores company profiles. Stateless; the zero value is ready to use.
type Scorer struct{}

// NewScorer creates a scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score derives the full qualification signal set for a profile. Signals
// are the externally supplied technology scan results and may be nil.
func (s *Scorer) Score(profile *edgar.CompanyProfile, signals []scanner.TechSignal) ScoredProfile {
	completeness := dataCompleteness(profile)

	return ScoredProfile{
		Profile:          profile,
		Score:            s.qualificationScore(profile, signals),
		Insights:         buildInsights(profile, signals),
		Recommendations:  buildRecommendations(profile, signals),
		DataCompleteness: completeness,
		Confidence:       confidenceLabel(completeness),
	}
}

// qualificationScore sums the four independent bands and clamps to
// [0, MaxScore]. Missing inputs contribute zero to their band. Without any
// financial data the score falls back to tech-stack sophistication alone.
func (s *Scorer) qualificationScore(profile *edgar.CompanyProfile, signals []scanner.TechSignal) int {
	fin := financials(profile)
	if fin == nil {
		score := len(signals) * 5
		if score > maxRevenuePoints {
			score = maxRevenuePoints
		}
		return score
	}

	score := 0
	if fin.RevenueUSD != nil {
		score += revenuePoints(*fin.RevenueUSD)
	}
	if fin.EmployeeCount != nil {
		score += employeePoints(*fin.EmployeeCount)
	}
	if ratio, ok := spendRatio(fin.MarketingSpendUSD, fin.RevenueUSD); ok {
		score += marketingPoints(ratio)
	}
	if ratio, ok := spendRatio(fin.RDSpendUSD, fin.RevenueUSD); ok {
		score += rdPoints(ratio)
	}

	if score > MaxScore {
		score = MaxScore
	}
	if score < 0 {
		score = 0
	}
	return score
}

// revenuePoints is a monotonically non-decreasing step function over annual
// revenue, capped at maxRevenuePoints.
func revenuePoints(revenue float64) int {
	switch {
	case revenue >= 1_000_000_000_000:
		return 40
	case revenue >= 100_000_000_000:
		return 38
	case revenue >= 10_000_000_000:
		return 35
	case revenue >= 1_000_000_000:
		return 30
	case revenue >= 500_000_000:
		return 25
	case revenue >= 100_000_000:
		return 20
	case revenue >= 10_000_000:
		return 15
	case revenue >= 1_000_000:
		return 10
	default:
		return 0
	}
}

// employeePoints is a monotonically non-decreasing step function over
// headcount, capped at maxEmployeePoints.
func employeePoints(count int64) int {
	switch {
	case count >= 100_000:
		return 25
	case count >= 10_000:
		return 20
	case count >= 1_000:
		return 15
	case count >= 100:
		return 10
	default:
		return 0
	}
}

// marketingPoints rewards a healthy marketing budget: full points inside
// the 5-20% of revenue target range, partial credit for thin or outsized
// spend. Deliberately not monotonic.
func marketingPoints(ratio float64) int {
	switch {
	case ratio >= 0.05 && ratio <= 0.20:
		return 20
	case ratio >= 0.02:
		return 10
	default:
		return 0
	}
}

// rdPoints applies the same target-range shape to R&D spend, capped at
// maxRDPoints.
func rdPoints(ratio float64) int {
	switch {
	case ratio >= 0.05 && ratio <= 0.20:
		return 15
	case ratio >= 0.02:
		return 8
	default:
		return 0
	}
}

// spendRatio returns spend as a fraction of revenue when both are present
// and revenue is positive.
func spendRatio(spend, revenue *float64) (float64, bool) {
	if spend == nil || revenue == nil || *revenue <= 0 {
		return 0, false
	}
	return *spend / *revenue, true
}

// dataCompleteness is the fraction of tracked optional fields that are
// populated: the seven financial metrics plus industry, exchange, and
// fiscal year end.
func dataCompleteness(profile *edgar.CompanyProfile) float64 {
	const trackedFields = 10

	if profile == nil {
		return 0
	}

	filled := 0
	if fin := profile.Financials; fin != nil {
		if fin.RevenueUSD != nil {
			filled++
		}
		if fin.NetIncomeUSD != nil {
			filled++
		}
		if fin.TotalAssetsUSD != nil {
			filled++
		}
		if fin.EmployeeCount != nil {
			filled++
		}
		if fin.MarketingSpendUSD != nil {
			filled++
		}
		if fin.RDSpendUSD != nil {
			filled++
		}
		if fin.RevenueGrowthYoY != nil {
			filled++
		}
	}
	if entity := profile.Entity; entity != nil {
		if entity.SICDescription != "" {
			filled++
		}
		if len(entity.Exchanges) > 0 {
			filled++
		}
		if entity.FiscalYearEnd != "" {
			filled++
		}
	}

	return float64(filled) / trackedFields
}

// confidenceLabel is a step function of completeness.
func confidenceLabel(completeness float64) string {
	switch {
	case completeness >= highConfidenceThreshold:
		return "high"
	case completeness >= mediumConfidenceThreshold:
		return "medium"
	default:
		return "low"
	}
}

// financials unwraps the nested metrics, nil-safe.
func financials(profile *edgar.CompanyProfile) *edgar.FinancialMetrics {
	if profile == nil {
		return nil
	}
	return profile.Financials
}
