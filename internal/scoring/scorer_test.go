package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscan/enrich/internal/edgar"
	"github.com/mscan/enrich/internal/scanner"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int64) *int64     { return &v }

// fullProfile is a large public company with every tracked field populated.
func fullProfile() *edgar.CompanyProfile {
	return &edgar.CompanyProfile{
		CIK:    "0000320193",
		Ticker: "AAPL",
		Entity: &edgar.EntityMetadata{
			CIK:            "0000320193",
			EntityName:     "Apple Inc.",
			SICDescription: "Electronic Computers",
			Exchanges:      []string{"Nasdaq"},
			FiscalYearEnd:  "0927",
		},
		Financials: &edgar.FinancialMetrics{
			RevenueUSD:        fptr(1_200_000_000_000),
			NetIncomeUSD:      fptr(95_000_000_000),
			TotalAssetsUSD:    fptr(360_000_000_000),
			EmployeeCount:     iptr(150_000),
			MarketingSpendUSD: fptr(120_000_000_000), // 10% of revenue
			RDSpendUSD:        fptr(96_000_000_000),  // 8% of revenue
			RevenueGrowthYoY:  fptr(7.5),
		},
	}
}

func TestMaxScoreScenario(t *testing.T) {
	scored := NewScorer().Score(fullProfile(), nil)

	// 40 revenue + 25 employees + 20 marketing + 15 R&D
	assert.Equal(t, 100, scored.Score)
	assert.Equal(t, 1.0, scored.DataCompleteness)
	assert.Equal(t, "high", scored.Confidence)
}

func TestScoreClampedToHundred(t *testing.T) {
	scored := NewScorer().Score(fullProfile(), nil)
	assert.LessOrEqual(t, scored.Score, MaxScore)
	assert.GreaterOrEqual(t, scored.Score, 0)
}

func TestRevenueBandMonotonic(t *testing.T) {
	s := NewScorer()
	revenues := []float64{
		500_000, 1_000_000, 5_000_000, 10_000_000, 100_000_000,
		500_000_000, 1_000_000_000, 10_000_000_000, 100_000_000_000, 1_000_000_000_000,
	}

	prev := -1
	for _, revenue := range revenues {
		profile := fullProfile()
		profile.Financials.RevenueUSD = fptr(revenue)
		// Hold spend constant relative to revenue so only the revenue band moves
		profile.Financials.MarketingSpendUSD = fptr(revenue * 0.10)
		profile.Financials.RDSpendUSD = fptr(revenue * 0.08)

		score := s.Score(profile, nil).Score
		assert.GreaterOrEqual(t, score, prev, "revenue %v must not lower the score", revenue)
		prev = score
	}
}

func TestRevenueBandDistinguishesTrillionScale(t *testing.T) {
	assert.Equal(t, 40, revenuePoints(1_000_000_000_000))
	assert.Equal(t, 38, revenuePoints(100_000_000_000))
	assert.Equal(t, 35, revenuePoints(10_000_000_000))
}

func TestMissingInputsContributeZero(t *testing.T) {
	profile := &edgar.CompanyProfile{
		Entity:     &edgar.EntityMetadata{EntityName: "Mystery Co"},
		Financials: &edgar.FinancialMetrics{},
	}

	scored := NewScorer().Score(profile, nil)
	assert.Equal(t, 0, scored.Score)
	assert.Equal(t, "low", scored.Confidence)
}

func TestTechStackFallbackWithoutFinancials(t *testing.T) {
	s := NewScorer()
	profile := &edgar.CompanyProfile{Entity: &edgar.EntityMetadata{EntityName: "Private Co"}}

	signals := []scanner.TechSignal{
		{Vendor: "GA", Category: scanner.CategoryAnalytics},
		{Vendor: "Segment", Category: scanner.CategoryCDP},
		{Vendor: "Meta", Category: scanner.CategorySocialMedia},
	}
	assert.Equal(t, 15, s.Score(profile, signals).Score)

	// Capped at the revenue band maximum
	many := make([]scanner.TechSignal, 12)
	assert.Equal(t, 40, s.Score(profile, many).Score)
}

func TestMarketingBandRewardsTargetRange(t *testing.T) {
	s := NewScorer()

	base := func(ratio float64) int {
		profile := fullProfile()
		profile.Financials.MarketingSpendUSD = fptr(*profile.Financials.RevenueUSD * ratio)
		return s.Score(profile, nil).Score
	}

	inRange := base(0.10)
	thin := base(0.01)
	outsized := base(0.40)

	assert.Greater(t, inRange, thin)
	assert.Greater(t, inRange, outsized, "implausibly high spend must not earn full points")
}

func TestScoringIsDeterministic(t *testing.T) {
	s := NewScorer()
	signals := []scanner.TechSignal{{Vendor: "GA", Category: scanner.CategoryAnalytics}}

	first := s.Score(fullProfile(), signals)
	second := s.Score(fullProfile(), signals)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Insights, second.Insights)
	assert.Equal(t, first.Recommendations, second.Recommendations)
	assert.Equal(t, first.DataCompleteness, second.DataCompleteness)
	assert.Equal(t, first.Confidence, second.Confidence)
}

func TestInsightsPriorityOrder(t *testing.T) {
	scored := NewScorer().Score(fullProfile(), nil)

	require.NotEmpty(t, scored.Insights)
	assert.Contains(t, scored.Insights[0], "Fortune 100")
	assert.Contains(t, scored.Insights, "Operates in Electronic Computers sector")
	assert.Contains(t, scored.Insights, "Publicly traded on Nasdaq")
	assert.Contains(t, scored.Insights, "Minimal martech stack detected - greenfield opportunity")
}

func TestInsightsWithoutFinancials(t *testing.T) {
	scored := NewScorer().Score(&edgar.CompanyProfile{}, nil)
	assert.Equal(t, []string{"No financial data available - company may be private"}, scored.Insights)
}

func TestRecommendationsTechGaps(t *testing.T) {
	s := NewScorer()

	scored := s.Score(fullProfile(), nil)
	assert.Contains(t, scored.Recommendations, "No analytics platform detected - high priority opportunity")
	assert.Contains(t, scored.Recommendations, "Enterprise company without CDP - data unification opportunity")

	covered := []scanner.TechSignal{
		{Vendor: "GA", Category: scanner.CategoryAnalytics},
		{Vendor: "Segment", Category: scanner.CategoryCDP},
		{Vendor: "Meta", Category: scanner.CategorySocialMedia},
	}
	scored = s.Score(fullProfile(), covered)
	assert.NotContains(t, scored.Recommendations, "No analytics platform detected - high priority opportunity")
	assert.NotContains(t, scored.Recommendations, "Enterprise company without CDP - data unification opportunity")
}

func TestRecommendationsSizeRules(t *testing.T) {
	s := NewScorer()

	small := fullProfile()
	small.Financials.RevenueUSD = fptr(50_000_000)
	scored := s.Score(small, nil)
	assert.Contains(t, scored.Recommendations, "Growth-focused value proposition")

	scored = s.Score(fullProfile(), nil)
	assert.Contains(t, scored.Recommendations, "Enterprise-grade solutions appropriate")
}

func TestConfidenceThresholds(t *testing.T) {
	assert.Equal(t, "high", confidenceLabel(0.95))
	assert.Equal(t, "high", confidenceLabel(0.9))
	assert.Equal(t, "medium", confidenceLabel(0.6))
	assert.Equal(t, "medium", confidenceLabel(0.89))
	assert.Equal(t, "low", confidenceLabel(0.59))
	assert.Equal(t, "low", confidenceLabel(0))
}

func TestDataCompletenessPartial(t *testing.T) {
	profile := &edgar.CompanyProfile{
		Entity: &edgar.EntityMetadata{
			EntityName:     "Partial Co",
			SICDescription: "Software",
			Exchanges:      []string{"NYSE"},
			FiscalYearEnd:  "1231",
		},
		Financials: &edgar.FinancialMetrics{
			RevenueUSD:    fptr(1_000_000_000),
			EmployeeCount: iptr(5_000),
			NetIncomeUSD:  fptr(100_000_000),
		},
	}

	// 3 entity + 3 financial fields of the 10 tracked
	scored := NewScorer().Score(profile, nil)
	assert.InDelta(t, 0.6, scored.DataCompleteness, 0.001)
	assert.Equal(t, "medium", scored.Confidence)
}
