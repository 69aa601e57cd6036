package merge

import (
	"reflect"
	"testing"

	"fiscal_blueprint/pkg/models"
)

func yearData(balance, income float64) map[int]models.YearlyAssetData {
	return map[int]models.YearlyAssetData{2023: {BalanceJan1: balance, Income: income}}
}

func TestReclassifyNegativeRevolvingCredit(t *testing.T) {
	bp := models.NewBlueprint("d", 1)
	bp.Bank = []models.AssetRecord{
		{ID: "cc", Category: models.CategoryBank, Description: "Visa creditcard", Institution: "ICS",
			Years: yearData(-850, 0)},
		{ID: "sp", Category: models.CategoryBank, Description: "Spaarrekening", Years: yearData(10000, 80)},
	}

	out, log := NewEngine(nil).Normalize(bp)

	if len(out.Bank) != 1 || out.Bank[0].ID != "sp" {
		t.Fatalf("bank = %+v", out.Bank)
	}
	if len(out.Debts) != 1 {
		t.Fatalf("debts = %+v", out.Debts)
	}
	debt := out.Debts[0]
	if debt.DebtType != "revolving_credit" || debt.Lender != "ICS" {
		t.Errorf("debt = %+v", debt)
	}
	if debt.Years[2023].BalanceJan1 != 850 {
		t.Errorf("debt balance should be absolute, got %v", debt.Years[2023].BalanceJan1)
	}
	if len(log) != 1 {
		t.Errorf("log = %v", log)
	}
}

func TestPositiveCreditcardStaysAsset(t *testing.T) {
	bp := models.NewBlueprint("d", 1)
	bp.Bank = []models.AssetRecord{
		{ID: "cc", Category: models.CategoryBank, Description: "creditcard rekening", Years: yearData(150, 0)},
	}

	out, _ := NewEngine(nil).Normalize(bp)

	if len(out.Bank) != 1 || len(out.Debts) != 0 {
		t.Errorf("positive-balance creditcard must stay an asset: bank=%d debts=%d", len(out.Bank), len(out.Debts))
	}
}

func TestDedupKeepsInvestmentOverBank(t *testing.T) {
	bp := models.NewBlueprint("d", 1)
	bp.Bank = []models.AssetRecord{
		{ID: "b1", Category: models.CategoryBank, Description: "Meesman beleggingsrekening", Years: yearData(25000, 0)},
	}
	bp.Investments = []models.AssetRecord{
		{ID: "i1", Category: models.CategoryInvestment, Description: "Meesman Beleggingsrekening", Years: yearData(25001, 300)},
	}

	out, log := NewEngine(nil).Normalize(bp)

	if len(out.Bank) != 0 {
		t.Errorf("bank copy should be dropped: %+v", out.Bank)
	}
	if len(out.Investments) != 1 || out.Investments[0].ID != "i1" {
		t.Errorf("investment copy should survive: %+v", out.Investments)
	}
	if len(log) != 1 {
		t.Errorf("log = %v", log)
	}
}

func TestDedupRelocatesSurvivorToBestCategory(t *testing.T) {
	// Both copies sit outside the keyword-derived best category; the survivor
	// must move there.
	bp := models.NewBlueprint("d", 1)
	bp.Bank = []models.AssetRecord{
		{ID: "b1", Category: models.CategoryBank, Description: "Effecten depot", Years: yearData(40000, 0)},
	}
	bp.Other = []models.AssetRecord{
		{ID: "o1", Category: models.CategoryOther, Description: "effecten depot", Years: yearData(40000, 0)},
	}

	out, _ := NewEngine(nil).Normalize(bp)

	if len(out.Investments) != 1 {
		t.Fatalf("survivor should be relocated to investments: %+v", out)
	}
	if out.Investments[0].Category != models.CategoryInvestment {
		t.Errorf("relocated record keeps stale category %s", out.Investments[0].Category)
	}
	if len(out.Bank) != 0 || len(out.Other) != 0 {
		t.Errorf("old copies remain: bank=%d other=%d", len(out.Bank), len(out.Other))
	}
}

func TestDedupRequiresMatchingBalance(t *testing.T) {
	bp := models.NewBlueprint("d", 1)
	bp.Bank = []models.AssetRecord{
		{ID: "b1", Category: models.CategoryBank, Description: "Flexibel sparen", Years: yearData(10000, 0)},
	}
	bp.Other = []models.AssetRecord{
		{ID: "o1", Category: models.CategoryOther, Description: "flexibel sparen", Years: yearData(4000, 0)},
	}

	out, _ := NewEngine(nil).Normalize(bp)

	if len(out.Bank)+len(out.Other) != 2 {
		t.Errorf("same name but different balances are distinct holdings: bank=%d other=%d",
			len(out.Bank), len(out.Other))
	}
}

func TestPensionExclusion(t *testing.T) {
	bp := models.NewBlueprint("d", 1)
	bp.Other = []models.AssetRecord{
		{ID: "p1", Category: models.CategoryOther, Description: "Lijfrente banksparen", Years: yearData(60000, 0)},
		{ID: "o1", Category: models.CategoryOther, Description: "Vordering op BV", Years: yearData(20000, 0)},
	}

	out, log := NewEngine(nil).Normalize(bp)

	if len(out.Other) != 1 || out.Other[0].ID != "o1" {
		t.Errorf("pension product must be excluded: %+v", out.Other)
	}
	if len(log) != 1 {
		t.Errorf("log = %v", log)
	}
}

func TestStudyLoanExclusion(t *testing.T) {
	bp := models.NewBlueprint("d", 1)
	bp.Debts = []models.DebtRecord{
		{ID: "s1", Description: "Studieschuld", Lender: "DUO",
			Years: map[int]models.YearlyDebtData{2023: {BalanceJan1: 18000}}},
		{ID: "m1", Description: "Hypotheek vakantiewoning", Lender: "Rabobank",
			Years: map[int]models.YearlyDebtData{2023: {BalanceJan1: 150000}}},
	}

	out, _ := NewEngine(nil).Normalize(bp)

	if len(out.Debts) != 1 || out.Debts[0].ID != "m1" {
		t.Errorf("study loan must be excluded: %+v", out.Debts)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	bp := models.NewBlueprint("d", 1)
	bp.Bank = []models.AssetRecord{
		{ID: "cc", Category: models.CategoryBank, Description: "doorlopend krediet", Years: yearData(-2000, 0)},
		{ID: "b1", Category: models.CategoryBank, Description: "Meesman indexfonds", Years: yearData(30000, 0)},
	}
	bp.Investments = []models.AssetRecord{
		{ID: "i1", Category: models.CategoryInvestment, Description: "meesman indexfonds", Years: yearData(30000, 250)},
	}
	bp.Other = []models.AssetRecord{
		{ID: "p1", Category: models.CategoryOther, Description: "pensioen polis", Years: yearData(50000, 0)},
	}

	e := NewEngine(nil)
	once, log1 := e.Normalize(bp)
	if len(log1) == 0 {
		t.Fatal("first pass should log removals")
	}
	twice, log2 := e.Normalize(once)

	if len(log2) != 0 {
		t.Errorf("second pass must be a no-op, logged: %v", log2)
	}
	if !reflect.DeepEqual(once.AllAssets(), twice.AllAssets()) {
		t.Error("asset collections changed on second pass")
	}
	if !reflect.DeepEqual(once.Debts, twice.Debts) {
		t.Error("debt collection changed on second pass")
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	bp := models.NewBlueprint("d", 1)
	bp.Other = []models.AssetRecord{
		{ID: "p1", Category: models.CategoryOther, Description: "pensioen polis", Years: yearData(50000, 0)},
	}

	_, _ = NewEngine(nil).Normalize(bp)

	if len(bp.Other) != 1 {
		t.Error("input blueprint must not be mutated")
	}
}
