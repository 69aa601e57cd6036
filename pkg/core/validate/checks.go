// Package validate runs the deterministic consistency checks, the targeted
// reconciliation repair pass and the advisory anomaly scan over a normalized
// blueprint.
package validate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"fiscal_blueprint/pkg/core/calc"
	"fiscal_blueprint/pkg/core/policy"
	"fiscal_blueprint/pkg/models"
)

// Validator evaluates the deterministic rules. No oracle calls here; every
// check runs every time.
type Validator struct {
	pol *policy.Policy
}

// NewValidator creates a validator.
func NewValidator(pol *policy.Policy) *Validator {
	if pol == nil {
		pol = policy.Default()
	}
	return &Validator{pol: pol}
}

// Run evaluates all checks against the blueprint and the extractors' notes.
func (v *Validator) Run(bp *models.Blueprint, notes []models.ExtractionNotes) []models.ValidationCheck {
	var checks []models.ValidationCheck

	years := bp.Years()
	sort.Ints(years)

	for _, year := range years {
		authority := bp.Authority[year]
		checks = append(checks, v.assetTotalCheck(bp, year, authority))
		checks = append(checks, v.assessedTaxCheck(year, authority))
		if authority.Provisional {
			checks = append(checks, models.ValidationCheck{
				Type:     models.CheckAssessmentStatus,
				Passed:   false,
				Severity: models.SeverityInfo,
				Message:  fmt.Sprintf("year %d rests on a provisional assessment; a claim needs the final assessment", year),
				Details:  &models.CheckDetails{Year: year, Remediation: "request or wait for the final assessment"},
			})
		}
	}

	checks = append(checks, v.categoryCountChecks(bp, notes)...)
	checks = append(checks, v.plausibilityChecks(bp)...)
	checks = append(checks, v.exclusionRuleChecks(bp)...)
	checks = append(checks, v.ownershipConsistencyChecks(bp)...)

	return checks
}

// assetTotalCheck compares extracted opening balances against the authority's
// gross total. The tolerance band is the larger of a fixed absolute amount
// and a percentage of the authority total; severity escalates with the
// relative gap.
func (v *Validator) assetTotalCheck(bp *models.Blueprint, year int, authority models.TaxAuthorityYearData) models.ValidationCheck {
	actual := calc.TotalAssetsJan1(bp, year)
	expected := authority.GrossAssets

	check := models.ValidationCheck{
		Type:    models.CheckAssetTotal,
		Details: &models.CheckDetails{Year: year, Expected: expected, Actual: actual},
	}

	if expected == 0 {
		check.Passed = true
		check.Severity = models.SeverityInfo
		check.Message = fmt.Sprintf("year %d has no authority asset total to compare against", year)
		return check
	}

	diff := actual - expected
	check.Details.Difference = diff
	absDiff := math.Abs(diff)
	relPct := absDiff / expected * 100
	tolerance := math.Max(v.pol.Tolerance.AssetTotalAbs, expected*v.pol.Tolerance.AssetTotalPct/100)

	switch {
	case absDiff <= tolerance:
		check.Passed = true
		check.Severity = models.SeverityInfo
		check.Message = fmt.Sprintf("year %d asset total %.2f matches authority total %.2f within tolerance", year, actual, expected)
	case relPct < v.pol.Tolerance.AssetErrorPct:
		check.Passed = false
		check.Severity = models.SeverityWarning
		check.Message = fmt.Sprintf("year %d asset total %.2f deviates %.1f%% from authority total %.2f", year, actual, relPct, expected)
		check.Details.Remediation = "review category extractions for missed or duplicated assets"
	default:
		check.Passed = false
		check.Severity = models.SeverityError
		check.Message = fmt.Sprintf("year %d asset total %.2f deviates %.1f%% from authority total %.2f", year, actual, relPct, expected)
		check.Details.Remediation = "extraction is likely missing whole assets; reconciliation required"
	}
	return check
}

func (v *Validator) assessedTaxCheck(year int, authority models.TaxAuthorityYearData) models.ValidationCheck {
	if authority.AssessedTax > 0 {
		return models.ValidationCheck{
			Type:     models.CheckAssessedTax,
			Passed:   true,
			Severity: models.SeverityInfo,
			Message:  fmt.Sprintf("year %d has an assessed tax figure", year),
			Details:  &models.CheckDetails{Year: year, Actual: authority.AssessedTax},
		}
	}
	return models.ValidationCheck{
		Type:     models.CheckAssessedTax,
		Passed:   false,
		Severity: models.SeverityWarning,
		Message:  fmt.Sprintf("year %d has no assessed tax figure; refund cannot be capped", year),
		Details:  &models.CheckDetails{Year: year, Remediation: "supply the assessment document for this year"},
	}
}

// categoryCountChecks compares per-category record counts against the
// checklist, folding in the extractors' own notes.
func (v *Validator) categoryCountChecks(bp *models.Blueprint, notes []models.ExtractionNotes) []models.ValidationCheck {
	var checks []models.ValidationCheck
	for _, cat := range models.AssetCategories {
		expected := bp.Checklist.Expected(cat)
		if expected == 0 {
			continue
		}
		found := len(bp.Assets(cat))
		check := models.ValidationCheck{
			Type:    models.CheckCategoryCount,
			Details: &models.CheckDetails{Expected: float64(expected), Actual: float64(found)},
		}
		if found >= expected {
			check.Passed = true
			check.Severity = models.SeverityInfo
			check.Message = fmt.Sprintf("%s: found %d of %d declared items", cat, found, expected)
		} else {
			check.Passed = false
			check.Severity = models.SeverityWarning
			check.Message = fmt.Sprintf("%s: found only %d of %d declared items", cat, found, expected)
			check.Details.Remediation = "declared items are missing from the extraction"
		}
		checks = append(checks, check)
	}

	for _, n := range notes {
		if n.ErrorMessage != "" {
			checks = append(checks, models.ValidationCheck{
				Type:     models.CheckCategoryCount,
				Passed:   false,
				Severity: models.SeverityWarning,
				Message:  fmt.Sprintf("%s extractor: %s", n.Category, n.ErrorMessage),
			})
		}
	}
	return checks
}

// plausibilityChecks flags interest implausibly large relative to principal.
func (v *Validator) plausibilityChecks(bp *models.Blueprint) []models.ValidationCheck {
	var checks []models.ValidationCheck
	for _, rec := range bp.Bank {
		for year, yd := range rec.Years {
			if yd.BalanceJan1 <= 0 || yd.Income <= 0 {
				continue
			}
			if yd.Income > yd.BalanceJan1*v.pol.Tolerance.InterestVsBal {
				checks = append(checks, models.ValidationCheck{
					Type:     models.CheckPlausibility,
					Passed:   false,
					Severity: models.SeverityWarning,
					Message: fmt.Sprintf("%q year %d: interest %.2f is implausible against balance %.2f",
						rec.Description, year, yd.Income, yd.BalanceJan1),
					Details: &models.CheckDetails{Year: year, Actual: yd.Income,
						Remediation: "interest may be misread or the balance may be missing"},
				})
			}
		}
	}
	return checks
}

// exclusionRuleChecks re-asserts the merge exclusions as checks: defense in
// depth against a normalization miss.
func (v *Validator) exclusionRuleChecks(bp *models.Blueprint) []models.ValidationCheck {
	var checks []models.ValidationCheck
	leak := func(kind, description string) {
		checks = append(checks, models.ValidationCheck{
			Type:     models.CheckExclusionRules,
			Passed:   false,
			Severity: models.SeverityError,
			Message:  fmt.Sprintf("%s item %q survived normalization and must be excluded", kind, description),
			Details:  &models.CheckDetails{Remediation: "rerun normalization or extend the exclusion vocabulary"},
		})
	}

	for _, rec := range bp.AllAssets() {
		if containsAny(rec.Description, v.pol.PensionAnnuity) {
			leak("pension/annuity", rec.Description)
		}
	}
	for _, rec := range bp.RealEstate {
		if containsAny(rec.Description, v.pol.PrimaryHome) || containsAny(rec.Address, v.pol.PrimaryHome) {
			leak("primary-residence", rec.Description)
		}
	}
	for _, d := range bp.Debts {
		if containsAny(d.Description, v.pol.StudyLoan) || containsAny(d.Lender, v.pol.StudyLoan) ||
			containsAny(d.DebtType, v.pol.StudyLoan) {
			leak("study-loan", d.Description)
		}
	}

	if len(checks) == 0 {
		checks = append(checks, models.ValidationCheck{
			Type:     models.CheckExclusionRules,
			Passed:   true,
			Severity: models.SeverityInfo,
			Message:  "no excluded asset or debt types present",
		})
	}
	return checks
}

// ownershipConsistencyChecks verifies records referring to the same account
// agree on the ownership percentage.
func (v *Validator) ownershipConsistencyChecks(bp *models.Blueprint) []models.ValidationCheck {
	var checks []models.ValidationCheck
	byAccount := make(map[string][]models.AssetRecord)
	for _, rec := range bp.AllAssets() {
		if rec.AccountMasked == "" {
			continue
		}
		byAccount[rec.AccountMasked] = append(byAccount[rec.AccountMasked], rec)
	}

	var accounts []string
	for acct := range byAccount {
		accounts = append(accounts, acct)
	}
	sort.Strings(accounts)

	for _, acct := range accounts {
		recs := byAccount[acct]
		if len(recs) < 2 {
			continue
		}
		first := recs[0].OwnershipPct
		for _, rec := range recs[1:] {
			if rec.OwnershipPct != first {
				checks = append(checks, models.ValidationCheck{
					Type:     models.CheckOwnershipPct,
					Passed:   false,
					Severity: models.SeverityWarning,
					Message: fmt.Sprintf("account %s has conflicting ownership percentages (%.0f vs %.0f)",
						acct, first, rec.OwnershipPct),
				})
				break
			}
		}
	}
	return checks
}

// NeedsReconciliation reports whether the repair pass should run: the asset
// total is off beyond tolerance, or declared items are missing.
func NeedsReconciliation(checks []models.ValidationCheck) bool {
	for _, c := range checks {
		if c.Passed {
			continue
		}
		if c.Type == models.CheckAssetTotal || c.Type == models.CheckCategoryCount {
			return true
		}
	}
	return false
}

func containsAny(text string, vocab policy.Vocabulary) bool {
	norm := models.NormalizeDescription(text)
	if norm == "" {
		return false
	}
	for _, kw := range vocab {
		kwNorm := models.NormalizeDescription(kw)
		if kwNorm != "" && strings.Contains(norm, kwNorm) {
			return true
		}
	}
	return false
}
