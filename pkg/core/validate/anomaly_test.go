package validate

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"fiscal_blueprint/pkg/models"
)

func TestAnomalyScanAppendsFindings(t *testing.T) {
	bp := models.NewBlueprint("d", 1)
	bp.Authority[2023] = models.TaxAuthorityYearData{Year: 2023, GrossAssets: 100000}

	oracle := &fakeOracle{reply: `{
		"findings": [
			{"severity": "warning", "message": "interest out of proportion to balance", "year": 2023},
			{"severity": "bogus", "message": "unknown severity downgrades to info"}
		]
	}`}
	checks := NewAnomalyScanner(oracle).Scan(context.Background(), bp, "client sold a property in 2023")

	if len(checks) != 2 {
		t.Fatalf("checks = %+v", checks)
	}
	if checks[0].Type != models.CheckAnomaly || checks[0].Severity != models.SeverityWarning {
		t.Errorf("first finding = %+v", checks[0])
	}
	if checks[0].Details == nil || checks[0].Details.Year != 2023 {
		t.Errorf("year missing: %+v", checks[0].Details)
	}
	if checks[1].Severity != models.SeverityInfo {
		t.Errorf("unknown severity should map to info, got %s", checks[1].Severity)
	}
	if !strings.Contains(oracle.prompts[0], "client sold a property") {
		t.Error("client context must reach the prompt")
	}
}

func TestAnomalyScanSwallowsOracleFailure(t *testing.T) {
	bp := models.NewBlueprint("d", 1)
	oracle := &fakeOracle{err: fmt.Errorf("oracle down")}

	if checks := NewAnomalyScanner(oracle).Scan(context.Background(), bp, ""); checks != nil {
		t.Errorf("advisory pass must not produce checks on failure: %+v", checks)
	}
}

func TestRenderSummaryIsCondensed(t *testing.T) {
	bp := models.NewBlueprint("dossier-9", 2)
	bp.Entity.Taxpayer.Name = "J. de Vries"
	bp.Authority[2023] = models.TaxAuthorityYearData{
		Year: 2023, GrossAssets: 120000, DeemedReturn: 5500, AssessedTax: 1760,
	}
	bp.Bank = []models.AssetRecord{{
		ID: "b1", Category: models.CategoryBank, Description: "Spaarrekening", Owner: models.OwnerTaxpayer,
		OwnershipPct: 100,
		Years:        map[int]models.YearlyAssetData{2023: {BalanceJan1: 120000, Income: 900}},
	}}

	out := RenderSummary(bp)
	for _, want := range []string{"dossier-9", "J. de Vries", "120000.00", "Spaarrekening"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSummaryFlagsYearsWithoutOfficialFigures(t *testing.T) {
	bp := models.NewBlueprint("dossier-10", 1)
	bp.Authority[2023] = models.TaxAuthorityYearData{Year: 2023, GrossAssets: 90000}
	bp.Bank = []models.AssetRecord{{
		ID: "b1", Category: models.CategoryBank, Description: "Spaarrekening",
		Years: map[int]models.YearlyAssetData{2022: {BalanceJan1: 80000}, 2023: {BalanceJan1: 90000}},
	}}

	out := RenderSummary(bp)
	if !strings.Contains(out, "2022: holdings present but no official figures extracted") {
		t.Errorf("record-only year must be flagged, got:\n%s", out)
	}
	if strings.Contains(out, "2022 (final)") {
		t.Errorf("record-only year must not render fabricated authority figures:\n%s", out)
	}
}
