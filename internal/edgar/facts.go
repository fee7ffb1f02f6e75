package edgar

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Synonymous XBRL tags for each concept. Issuers report under different tag
// variants, so extraction walks the list in order and takes the first tag
// that has annual data.
var (
	revenueTags = []string{
		"Revenues",
		"RevenueFromContractWithCustomerExcludingAssessedTax",
		"SalesRevenueNet",
		"TotalRevenues",
	}
	marketingTags = []string{
		"SellingGeneralAndAdministrativeExpense",
		"SellingAndMarketingExpense",
	}
	netIncomeTags = []string{"NetIncomeLoss"}
	assetsTags    = []string{"Assets"}
	rdTags        = []string{"ResearchAndDevelopmentExpense"}
)

// employeeTag lives in the dei namespace and, oddly, under the "shares"
// unit in the upstream data.
const employeeTag = "EntityNumberOfEmployees"

type factValue struct {
	Val  float64 `json:"val"`
	FY   int     `json:"fy"`
	FP   string  `json:"fp"`
	End  string  `json:"end"`
	Form string  `json:"form"`
}

type factConcept struct {
	Units map[string][]factValue `json:"units"`
}

type factsDocument struct {
	EntityName string                            `json:"entityName"`
	Facts      map[string]map[string]factConcept `json:"facts"`
}

// ExtractMetrics pulls the key financial figures out of a raw company-facts
// payload. Annual (FY) values only, latest period end wins, and year-over-year
// growth is computed when at least two annual revenue values exist.
func ExtractMetrics(raw []byte) (*FinancialMetrics, error) {
	var doc factsDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse company facts: %w", err)
	}

	usGAAP := doc.Facts["us-gaap"]
	dei := doc.Facts["dei"]

	metrics := &FinancialMetrics{}

	if latest, history, ok := latestAnnual(usGAAP, revenueTags, "USD"); ok {
		metrics.RevenueUSD = ptr(latest.Val)
		metrics.FiscalYear = fmt.Sprintf("%d", latest.FY)
		metrics.PeriodEnd = latest.End

		if len(history) >= 2 && history[1].Val > 0 {
			growth := (history[0].Val - history[1].Val) / history[1].Val * 100
			metrics.RevenueGrowthYoY = ptr(round2(growth))
		}
	}

	if latest, _, ok := latestAnnual(usGAAP, netIncomeTags, "USD"); ok {
		metrics.NetIncomeUSD = ptr(latest.Val)
	}
	if latest, _, ok := latestAnnual(usGAAP, assetsTags, "USD"); ok {
		metrics.TotalAssetsUSD = ptr(latest.Val)
	}
	if latest, _, ok := latestAnnual(usGAAP, marketingTags, "USD"); ok {
		metrics.MarketingSpendUSD = ptr(latest.Val)
	}
	if latest, _, ok := latestAnnual(usGAAP, rdTags, "USD"); ok {
		metrics.RDSpendUSD = ptr(latest.Val)
	}

	if concept, ok := dei[employeeTag]; ok {
		if values := concept.Units["shares"]; len(values) > 0 {
			latest := values[0]
			for _, v := range values[1:] {
				if v.End > latest.End {
					latest = v
				}
			}
			count := int64(latest.Val)
			metrics.EmployeeCount = &count
		}
	}

	return metrics, nil
}

// latestAnnual finds the first tag with annual values and returns the most
// recent one plus the full annual history sorted newest first. Interim
// quarterly values are ignored.
func latestAnnual(concepts map[string]factConcept, tags []string, unit string) (factValue, []factValue, bool) {
	for _, tag := range tags {
		concept, ok := concepts[tag]
		if !ok {
			continue
		}

		var annual []factValue
		for _, v := range concept.Units[unit] {
			if v.FP == "FY" {
				annual = append(annual, v)
			}
		}
		if len(annual) == 0 {
			continue
		}

		sort.Slice(annual, func(i, j int) bool {
			return annual[i].End > annual[j].End
		})
		return annual[0], annual, true
	}
	return factValue{}, nil, false
}

func ptr(v float64) *float64 { return &v }

func round2(v float64) float64 {
	return float64(int64(v*100+0.5*sign(v))) / 100
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
