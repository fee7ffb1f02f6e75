package scoring

import (
	"fmt"

	"github.com/mscan/enrich/internal/edgar"
	"github.com/mscan/enrich/internal/scanner"
)

// buildInsights emits one fixed-template string per matched rule, in fixed
// priority order: size, growth, headcount, spend ratios, industry,
// exchange, tech stack.
func buildInsights(profile *edgar.CompanyProfile, signals []scanner.TechSignal) []string {
	fin := financials(profile)
	if fin == nil {
		return []string{"No financial data available - company may be private"}
	}

	var insights []string

	if fin.RevenueUSD != nil {
		revenue := *fin.RevenueUSD
		revenueB := revenue / 1_000_000_000
		switch {
		case revenueB >= 100:
			insights = append(insights, fmt.Sprintf("Fortune 100 company with $%.0fB revenue", revenueB))
		case revenueB >= 10:
			insights = append(insights, fmt.Sprintf("Large enterprise with $%.1fB revenue", revenueB))
		case revenueB >= 1:
			insights = append(insights, fmt.Sprintf("Mid-market company with $%.1fB revenue", revenueB))
		default:
			insights = append(insights, fmt.Sprintf("Growth company with $%.0fM revenue", revenue/1_000_000))
		}
	}

	if fin.RevenueGrowthYoY != nil {
		growth := *fin.RevenueGrowthYoY
		switch {
		case growth > 20:
			insights = append(insights, fmt.Sprintf("High growth: %.1f%% YoY revenue growth", growth))
		case growth > 10:
			insights = append(insights, fmt.Sprintf("Strong growth: %.1f%% YoY revenue growth", growth))
		case growth < -10:
			insights = append(insights, fmt.Sprintf("Declining revenue: %.1f%% YoY", growth))
		}
	}

	if fin.EmployeeCount != nil {
		count := *fin.EmployeeCount
		switch {
		case count >= 100_000:
			insights = append(insights, fmt.Sprintf("Major employer with %d employees", count))
		case count >= 10_000:
			insights = append(insights, fmt.Sprintf("Large organization with %d employees", count))
		case count >= 1_000:
			insights = append(insights, fmt.Sprintf("Growing team: %d employees", count))
		}
	}

	if ratio, ok := spendRatio(fin.MarketingSpendUSD, fin.RevenueUSD); ok {
		insights = append(insights, fmt.Sprintf("Invests $%.0fM annually in marketing (%.1f%% of revenue)",
			*fin.MarketingSpendUSD/1_000_000, ratio*100))
	}

	if ratio, ok := spendRatio(fin.RDSpendUSD, fin.RevenueUSD); ok {
		rdM := *fin.RDSpendUSD / 1_000_000
		switch {
		case ratio >= 0.10:
			insights = append(insights, fmt.Sprintf("Heavy R&D investment: $%.0fM (%.1f%% of revenue)", rdM, ratio*100))
		case ratio >= 0.05:
			insights = append(insights, fmt.Sprintf("Moderate R&D spend: $%.0fM (%.1f%% of revenue)", rdM, ratio*100))
		}
	}

	if entity := profile.Entity; entity != nil {
		if entity.SICDescription != "" {
			insights = append(insights, fmt.Sprintf("Operates in %s sector", entity.SICDescription))
		}
		if len(entity.Exchanges) > 0 {
			insights = append(insights, fmt.Sprintf("Publicly traded on %s", entity.Exchanges[0]))
		}
	}

	switch count := len(signals); {
	case count == 0:
		insights = append(insights, "Minimal martech stack detected - greenfield opportunity")
	case count <= 3:
		insights = append(insights, fmt.Sprintf("Basic martech stack (%d vendors) - room for expansion", count))
	case count >= 10:
		insights = append(insights, fmt.Sprintf("Sophisticated martech stack (%d vendors) - mature operation", count))
	}

	return insights
}
