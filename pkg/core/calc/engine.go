// Package calc derives the per-year summaries: actual realized return versus
// the officially deemed return, the indicative refund, and per-category
// completeness. Purely deterministic; runs after merge normalization.
package calc

import (
	"fmt"

	"github.com/shopspring/decimal"

	"fiscal_blueprint/pkg/core/policy"
	"fiscal_blueprint/pkg/models"
)

// Engine computes year summaries.
type Engine struct {
	pol *policy.Policy
}

// NewEngine creates a calculation engine.
func NewEngine(pol *policy.Policy) *Engine {
	if pol == nil {
		pol = policy.Default()
	}
	return &Engine{pol: pol}
}

// Summarize recomputes every year summary from scratch. Only years present
// in the authority data get a summary; without authority data there is no
// deemed return to compare against.
func (e *Engine) Summarize(bp *models.Blueprint) map[int]models.YearSummary {
	out := make(map[int]models.YearSummary, len(bp.Authority))
	for year, authority := range bp.Authority {
		out[year] = e.summarizeYear(bp, year, authority)
	}
	return out
}

func (e *Engine) summarizeYear(bp *models.Blueprint, year int, authority models.TaxAuthorityYearData) models.YearSummary {
	summary := models.YearSummary{
		Year:         year,
		DeemedReturn: authority.DeemedReturn,
		Completeness: make(map[models.AssetCategory]bool, len(models.AssetCategories)),
	}

	var br models.ReturnBreakdown
	for _, rec := range bp.Bank {
		if yd, ok := rec.Years[year]; ok {
			br.BankInterest += yd.Income
		}
	}
	for _, rec := range bp.Investments {
		if yd, ok := rec.Years[year]; ok {
			br.InvestmentIncome += yd.Income
			br.RealizedGains += yd.RealizedGain
		}
	}
	for _, rec := range bp.RealEstate {
		if yd, ok := rec.Years[year]; ok {
			br.RentalNet += (yd.Income - yd.Costs) * ownershipScale(rec.OwnershipPct)
		}
	}
	for _, rec := range bp.Other {
		if yd, ok := rec.Years[year]; ok {
			br.OtherIncome += (yd.Income + yd.RealizedGain) * ownershipScale(rec.OwnershipPct)
		}
	}
	for _, d := range bp.Debts {
		if yd, ok := d.Years[year]; ok {
			br.DebtInterest += yd.InterestPaid
		}
	}
	br.Total = roundCents(br.BankInterest + br.InvestmentIncome + br.RealizedGains +
		br.RentalNet + br.OtherIncome - br.DebtInterest)

	summary.ActualReturn = br
	summary.Difference = roundCents(br.Total - authority.DeemedReturn)
	summary.IndicativeRefund = e.refund(summary.Difference, authority, year)

	e.assessCompleteness(bp, year, &summary)
	return summary
}

// refund estimates the tax impact of the actual return falling short of the
// deemed return, capped at the tax actually assessed.
func (e *Engine) refund(difference float64, authority models.TaxAuthorityYearData, year int) float64 {
	if difference >= 0 {
		return 0
	}
	rate := decimal.NewFromFloat(e.pol.ParamsFor(year).TaxRatePct).Div(decimal.NewFromInt(100))
	refund := decimal.NewFromFloat(-difference).Mul(rate).Round(2)
	assessed := decimal.NewFromFloat(authority.AssessedTax)
	if assessed.IsPositive() && refund.GreaterThan(assessed) {
		refund = assessed
	}
	f, _ := refund.Float64()
	return f
}

// assessCompleteness flags categories with assets present in a year but no
// income data at all: that is almost always a missing annual statement, not
// a genuinely zero return, so it becomes a "missing item" instead of a
// silent zero. Real estate is exempt (an unrented property legitimately has
// no income).
func (e *Engine) assessCompleteness(bp *models.Blueprint, year int, summary *models.YearSummary) {
	summary.Complete = true
	for _, cat := range models.AssetCategories {
		recs := recordsInYear(bp.Assets(cat), year)
		if len(recs) == 0 {
			summary.Completeness[cat] = true
			continue
		}
		if cat == models.CategoryRealEstate {
			summary.Completeness[cat] = true
			continue
		}
		var income float64
		for _, rec := range recs {
			yd := rec.Years[year]
			income += yd.Income + yd.RealizedGain
		}
		if income == 0 {
			summary.Completeness[cat] = false
			summary.Complete = false
			summary.MissingItems = append(summary.MissingItems, missingItemFor(cat, year))
			continue
		}
		summary.Completeness[cat] = true
	}
}

func missingItemFor(cat models.AssetCategory, year int) string {
	switch cat {
	case models.CategoryBank:
		return fmt.Sprintf("need annual bank statement with interest received for year %d", year)
	case models.CategoryInvestment:
		return fmt.Sprintf("need annual investment statement with dividends and results for year %d", year)
	default:
		return fmt.Sprintf("need income details for %s assets for year %d", cat, year)
	}
}

func recordsInYear(recs []models.AssetRecord, year int) []models.AssetRecord {
	var out []models.AssetRecord
	for _, rec := range recs {
		if _, ok := rec.Years[year]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// ownershipScale implements the household-total rule: 50% and 100% signal a
// household or partner split that must not reduce the reported total, since
// authority totals are household-level. Any other percentage is genuine
// external co-ownership and scales proportionally.
func ownershipScale(pct float64) float64 {
	if pct <= 0 || pct == 50 || pct == 100 {
		return 1
	}
	return pct / 100
}

// TotalAssetsJan1 sums the opening balances of all asset collections for one
// year, applying the ownership-scaling rule to real-estate and other assets.
// This is the figure validated against the authority's gross total.
func TotalAssetsJan1(bp *models.Blueprint, year int) float64 {
	var total float64
	for _, rec := range bp.Bank {
		if yd, ok := rec.Years[year]; ok {
			total += yd.BalanceJan1
		}
	}
	for _, rec := range bp.Investments {
		if yd, ok := rec.Years[year]; ok {
			total += yd.BalanceJan1
		}
	}
	for _, rec := range bp.RealEstate {
		if yd, ok := rec.Years[year]; ok {
			total += yd.BalanceJan1 * ownershipScale(rec.OwnershipPct)
		}
	}
	for _, rec := range bp.Other {
		if yd, ok := rec.Years[year]; ok {
			total += yd.BalanceJan1 * ownershipScale(rec.OwnershipPct)
		}
	}
	return roundCents(total)
}

// TotalDebtsJan1 sums debt opening balances for one year.
func TotalDebtsJan1(bp *models.Blueprint, year int) float64 {
	var total float64
	for _, d := range bp.Debts {
		if yd, ok := d.Years[year]; ok {
			total += yd.BalanceJan1
		}
	}
	return roundCents(total)
}

func roundCents(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
