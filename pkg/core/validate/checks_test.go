package validate

import (
	"testing"

	"fiscal_blueprint/pkg/models"
)

func blueprintWithAssetTotal(authorityTotal, extractedTotal float64) *models.Blueprint {
	bp := models.NewBlueprint("d", 1)
	bp.Authority[2023] = models.TaxAuthorityYearData{
		Year:        2023,
		GrossAssets: authorityTotal,
		AssessedTax: 1000,
	}
	bp.Bank = []models.AssetRecord{{
		ID: "b1", Category: models.CategoryBank,
		Years: map[int]models.YearlyAssetData{2023: {BalanceJan1: extractedTotal, Income: 100}},
	}}
	return bp
}

func findCheck(checks []models.ValidationCheck, ct models.CheckType) *models.ValidationCheck {
	for i := range checks {
		if checks[i].Type == ct {
			return &checks[i]
		}
	}
	return nil
}

func TestAssetTotalWithinTolerancePasses(t *testing.T) {
	bp := blueprintWithAssetTotal(100000, 100800)
	checks := NewValidator(nil).Run(bp, nil)

	c := findCheck(checks, models.CheckAssetTotal)
	if c == nil || !c.Passed {
		t.Fatalf("gap below the absolute tolerance should pass: %+v", c)
	}
}

func TestAssetTotalSmallGapIsWarning(t *testing.T) {
	// 6 percent off: beyond tolerance, below the error band.
	bp := blueprintWithAssetTotal(100000, 94000)
	checks := NewValidator(nil).Run(bp, nil)

	c := findCheck(checks, models.CheckAssetTotal)
	if c == nil || c.Passed {
		t.Fatal("6% gap must fail the check")
	}
	if c.Severity != models.SeverityWarning {
		t.Errorf("severity = %s, want warning", c.Severity)
	}
}

func TestAssetTotalLargeGapIsError(t *testing.T) {
	// 30 percent off: a whole asset is likely missing.
	bp := blueprintWithAssetTotal(100000, 70000)
	checks := NewValidator(nil).Run(bp, nil)

	c := findCheck(checks, models.CheckAssetTotal)
	if c == nil || c.Passed {
		t.Fatal("30% gap must fail the check")
	}
	if c.Severity != models.SeverityError {
		t.Errorf("severity = %s, want error", c.Severity)
	}
}

func TestAssetTotalNoAuthorityFigure(t *testing.T) {
	bp := blueprintWithAssetTotal(0, 50000)
	checks := NewValidator(nil).Run(bp, nil)

	c := findCheck(checks, models.CheckAssetTotal)
	if c == nil || !c.Passed {
		t.Errorf("missing authority total cannot fail the check: %+v", c)
	}
}

func TestCategoryCountShortfallWarns(t *testing.T) {
	bp := blueprintWithAssetTotal(100000, 100000)
	bp.Checklist[models.CategoryBank] = models.ChecklistCategory{ExpectedCount: 3}

	checks := NewValidator(nil).Run(bp, nil)
	c := findCheck(checks, models.CheckCategoryCount)
	if c == nil || c.Passed {
		t.Fatal("1 of 3 declared accounts must fail the count check")
	}
	if c.Severity != models.SeverityWarning {
		t.Errorf("severity = %s, want warning", c.Severity)
	}
}

func TestPlausibilityFlagsExcessInterest(t *testing.T) {
	bp := models.NewBlueprint("d", 1)
	bp.Authority[2023] = models.TaxAuthorityYearData{Year: 2023, GrossAssets: 10000, AssessedTax: 100}
	bp.Bank = []models.AssetRecord{{
		ID: "b1", Category: models.CategoryBank, Description: "Spaarrekening",
		Years: map[int]models.YearlyAssetData{2023: {BalanceJan1: 10000, Income: 2500}},
	}}

	checks := NewValidator(nil).Run(bp, nil)
	if c := findCheck(checks, models.CheckPlausibility); c == nil || c.Passed {
		t.Error("25% interest on principal must be flagged")
	}
}

func TestExclusionLeakIsError(t *testing.T) {
	bp := blueprintWithAssetTotal(100000, 100000)
	bp.Other = []models.AssetRecord{{
		ID: "p1", Category: models.CategoryOther, Description: "Lijfrente polis",
		Years: map[int]models.YearlyAssetData{2023: {BalanceJan1: 1}},
	}}

	checks := NewValidator(nil).Run(bp, nil)
	c := findCheck(checks, models.CheckExclusionRules)
	if c == nil || c.Passed {
		t.Fatal("pension product in the blueprint must fail the exclusion check")
	}
	if c.Severity != models.SeverityError {
		t.Errorf("severity = %s, want error", c.Severity)
	}
}

func TestOwnershipConflictWarns(t *testing.T) {
	bp := blueprintWithAssetTotal(100000, 100000)
	bp.Investments = []models.AssetRecord{
		{ID: "i1", Category: models.CategoryInvestment, AccountMasked: "****1234", OwnershipPct: 100,
			Years: map[int]models.YearlyAssetData{2023: {BalanceJan1: 1, Income: 1}}},
		{ID: "i2", Category: models.CategoryInvestment, AccountMasked: "****1234", OwnershipPct: 50,
			Years: map[int]models.YearlyAssetData{2023: {BalanceJan1: 1, Income: 1}}},
	}

	checks := NewValidator(nil).Run(bp, nil)
	if c := findCheck(checks, models.CheckOwnershipPct); c == nil || c.Passed {
		t.Error("conflicting ownership percentages on one account must warn")
	}
}

func TestProvisionalAssessmentFlagged(t *testing.T) {
	bp := models.NewBlueprint("d", 1)
	bp.Authority[2024] = models.TaxAuthorityYearData{Year: 2024, GrossAssets: 0, Provisional: true}

	checks := NewValidator(nil).Run(bp, nil)
	if c := findCheck(checks, models.CheckAssessmentStatus); c == nil || c.Passed {
		t.Error("provisional assessment must be flagged")
	}
}

func TestNeedsReconciliation(t *testing.T) {
	failedTotal := []models.ValidationCheck{{Type: models.CheckAssetTotal, Passed: false}}
	if !NeedsReconciliation(failedTotal) {
		t.Error("failed asset total should trigger reconciliation")
	}

	failedAnomaly := []models.ValidationCheck{{Type: models.CheckAnomaly, Passed: false}}
	if NeedsReconciliation(failedAnomaly) {
		t.Error("anomaly findings alone must not trigger reconciliation")
	}

	allPassed := []models.ValidationCheck{{Type: models.CheckAssetTotal, Passed: true}}
	if NeedsReconciliation(allPassed) {
		t.Error("passed checks must not trigger reconciliation")
	}
}
