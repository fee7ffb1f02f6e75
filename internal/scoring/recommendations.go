package scoring

import (
	"strings"

	"github.com/mscan/enrich/internal/edgar"
	"github.com/mscan/enrich/internal/scanner"
)

// buildRecommendations emits actionable next steps in fixed priority
// order: company size, spend ratios, technology gaps, industry vertical.
func buildRecommendations(profile *edgar.CompanyProfile, signals []scanner.TechSignal) []string {
	fin := financials(profile)
	if fin == nil {
		return []string{
			"Focus on digital marketing stack audit",
			"Consider data enrichment for private company intelligence",
		}
	}

	var recs []string

	if fin.RevenueUSD != nil {
		switch revenue := *fin.RevenueUSD; {
		case revenue >= 10_000_000_000:
			recs = append(recs,
				"Enterprise-grade solutions appropriate",
				"Multi-stakeholder sales approach recommended")
		case revenue >= 1_000_000_000:
			recs = append(recs,
				"Mid-market/enterprise hybrid approach",
				"Emphasize scalability and ROI")
		default:
			recs = append(recs,
				"Growth-focused value proposition",
				"Emphasize quick time-to-value")
		}
	}

	if ratio, ok := spendRatio(fin.MarketingSpendUSD, fin.RevenueUSD); ok {
		if ratio < 0.05 {
			recs = append(recs, "Under-invested in marketing - opportunity for budget expansion")
		} else if ratio > 0.15 {
			recs = append(recs, "Heavy marketing spend - emphasize efficiency and optimization")
		}
	}

	if ratio, ok := spendRatio(fin.RDSpendUSD, fin.RevenueUSD); ok && ratio > 0.15 {
		recs = append(recs, "Innovation-focused company - emphasize cutting-edge solutions")
	}

	categories := scanner.CategorySet(signals)
	if !categories[scanner.CategoryAnalytics] {
		recs = append(recs, "No analytics platform detected - high priority opportunity")
	}
	if !categories[scanner.CategoryCDP] && fin.RevenueUSD != nil && *fin.RevenueUSD > 1_000_000_000 {
		recs = append(recs, "Enterprise company without CDP - data unification opportunity")
	}
	if !categories[scanner.CategorySocialMedia] {
		recs = append(recs, "No social media tracking - consider social listening tools")
	}

	if entity := profile.Entity; entity != nil && entity.SICDescription != "" {
		sic := strings.ToLower(entity.SICDescription)
		if strings.Contains(sic, "retail") || strings.Contains(sic, "electronic") {
			recs = append(recs, "Retail focus - emphasize customer journey optimization")
		}
		if strings.Contains(sic, "software") || strings.Contains(sic, "computer") {
			recs = append(recs, "Tech company - technical buyers, emphasize integration")
		}
		if strings.Contains(sic, "health") || strings.Contains(sic, "pharma") {
			recs = append(recs, "Healthcare vertical - emphasize compliance and privacy")
		}
	}

	return recs
}
