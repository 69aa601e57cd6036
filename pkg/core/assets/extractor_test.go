package assets

import (
	"context"
	"strings"
	"testing"

	"fiscal_blueprint/pkg/core/llm"
	"fiscal_blueprint/pkg/models"
)

// scriptedOracle returns its replies in order and records every prompt.
type scriptedOracle struct {
	replies []string
	prompts []string
}

func (s *scriptedOracle) Invoke(ctx context.Context, prompt string, cfg llm.CallConfig, attachments ...llm.Attachment) (string, error) {
	s.prompts = append(s.prompts, prompt)
	idx := len(s.prompts) - 1
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	return s.replies[idx], nil
}

var testDocs = []models.PreparedDocument{{
	RawDocument:   models.RawDocument{ID: "d1", Filename: "jaaroverzicht.pdf"},
	Text:          "Jaaroverzicht 2023",
	HasUsableText: true,
}}

func TestExtractConvertsRecords(t *testing.T) {
	oracle := &scriptedOracle{replies: []string{`{
		"records": [{
			"kind": "asset",
			"description": "ASN Spaarrekening",
			"institution": "ASN Bank",
			"account": "NL12ASNB0123456789",
			"owner": "taxpayer",
			"ownership_pct": 0,
			"years": {"2023": {"balance_jan1": 15000, "balance_dec31": 15200, "income": 120}}
		}]
	}`}}
	e := NewCategoryExtractor(oracle, nil, models.CategoryBank)

	result := e.Extract(context.Background(), testDocs, models.Checklist{}, nil)

	if len(result.Records) != 1 {
		t.Fatalf("got %d records", len(result.Records))
	}
	rec := result.Records[0]
	if rec.Category != models.CategoryBank {
		t.Errorf("category = %s", rec.Category)
	}
	if rec.OwnershipPct != 100 {
		t.Errorf("zero ownership should default to 100, got %v", rec.OwnershipPct)
	}
	if !strings.HasSuffix(rec.AccountMasked, "6789") || strings.Contains(rec.AccountMasked, "NL12") {
		t.Errorf("account must be masked, got %q", rec.AccountMasked)
	}
	if yd := rec.Years[2023]; yd.BalanceJan1 != 15000 || yd.Income != 120 {
		t.Errorf("year data = %+v", yd)
	}
	if result.Notes.Found != 1 {
		t.Errorf("notes.Found = %d", result.Notes.Found)
	}
	if len(rec.SourceDocIDs) != 1 || rec.SourceDocIDs[0] != "d1" {
		t.Errorf("record must trace to the consumed documents, got %v", rec.SourceDocIDs)
	}
}

func TestExtractEnforcesExclusionContext(t *testing.T) {
	oracle := &scriptedOracle{replies: []string{`{
		"records": [
			{"kind": "asset", "description": "ASN Spaarrekening 1234", "years": {"2023": {"balance_jan1": 5000}}},
			{"kind": "asset", "description": "DEGIRO depot", "years": {"2023": {"balance_jan1": 9000}}}
		]
	}`}}
	e := NewCategoryExtractor(oracle, nil, models.CategoryInvestment)

	exclusions := &models.ExclusionContext{}
	exclusions.AddAsset(models.AssetRecord{Description: "ASN Spaarrekening 1234"})

	result := e.Extract(context.Background(), testDocs, models.Checklist{}, exclusions)

	if len(result.Records) != 1 {
		t.Fatalf("got %d records, want the excluded one dropped", len(result.Records))
	}
	if result.Records[0].Description != "DEGIRO depot" {
		t.Errorf("survivor = %q", result.Records[0].Description)
	}
	// The prompt itself must carry the exclusion list as well.
	if !strings.Contains(oracle.prompts[0], "ASN Spaarrekening 1234") {
		t.Error("exclusion list missing from the prompt")
	}
}

func TestBankExtractRetriesWithVision(t *testing.T) {
	oracle := &scriptedOracle{replies: []string{
		`{"records": []}`,
		`{"records": [{"kind": "asset", "description": "ING Betaalrekening", "years": {"2023": {"balance_jan1": 800}}}]}`,
	}}
	e := NewCategoryExtractor(oracle, nil, models.CategoryBank)
	checklist := models.Checklist{
		models.CategoryBank: {ExpectedCount: 2, Descriptions: []string{"ING Betaalrekening", "ING Spaarrekening"}},
	}

	result := e.Extract(context.Background(), testDocs, checklist, nil)

	if len(oracle.prompts) != 2 {
		t.Fatalf("want a retry call, got %d calls", len(oracle.prompts))
	}
	if !result.Notes.VisionRetry {
		t.Error("VisionRetry should be recorded")
	}
	if len(result.Records) != 1 {
		t.Errorf("retry result not used: %d records", len(result.Records))
	}
}

func TestBankExtractFailsAfterTwoEmptyAttempts(t *testing.T) {
	oracle := &scriptedOracle{replies: []string{`{"records": []}`}}
	e := NewCategoryExtractor(oracle, nil, models.CategoryBank)
	checklist := models.Checklist{models.CategoryBank: {ExpectedCount: 1}}

	result := e.Extract(context.Background(), testDocs, checklist, nil)

	if result.Notes.ErrorMessage == "" {
		t.Error("two empty attempts should record an error")
	}
	if len(result.Records) != 0 {
		t.Errorf("got %d records", len(result.Records))
	}
}

func TestExtractRoutesDebtsFromOtherCategory(t *testing.T) {
	oracle := &scriptedOracle{replies: []string{`{
		"records": [
			{"kind": "debt", "description": "Persoonlijke lening", "lender": "Santander", "debt_type": "consumer",
			 "years": {"2023": {"balance_jan1": 12000, "interest_paid": 540}}},
			{"kind": "asset", "description": "Vordering op BV", "years": {"2023": {"balance_jan1": 20000}}}
		]
	}`}}
	e := NewCategoryExtractor(oracle, nil, models.CategoryOther)

	result := e.Extract(context.Background(), testDocs, models.Checklist{}, nil)

	if len(result.Debts) != 1 || len(result.Records) != 1 {
		t.Fatalf("debts=%d records=%d", len(result.Debts), len(result.Records))
	}
	debt := result.Debts[0]
	if debt.Lender != "Santander" || debt.DebtType != "consumer" {
		t.Errorf("debt = %+v", debt)
	}
	if debt.Years[2023].InterestPaid != 540 {
		t.Errorf("interest = %v", debt.Years[2023].InterestPaid)
	}
	if len(debt.SourceDocIDs) != 1 || debt.SourceDocIDs[0] != "d1" {
		t.Errorf("debt must trace to the consumed documents, got %v", debt.SourceDocIDs)
	}
}

func TestSequentialStrategyFeedsExclusionsForward(t *testing.T) {
	// The bank pass finds one account; the later passes all return that same
	// description, which the accumulated exclusion context must drop.
	dup := `{"records": [{"kind": "asset", "description": "ASN Spaarrekening 1234", "years": {"2023": {"balance_jan1": 5000}}}]}`
	oracle := &scriptedOracle{replies: []string{dup, dup, dup, dup}}

	s := NewStrategy(oracle, nil, true)
	result := s.Extract(context.Background(), testDocs, models.Checklist{})

	total := 0
	for _, recs := range result.ByCategory {
		total += len(recs)
	}
	if total != 1 {
		t.Errorf("duplicate must be extracted once, got %d records", total)
	}
	if len(result.ByCategory[models.CategoryBank]) != 1 {
		t.Errorf("the first (bank) pass should own the record")
	}
}
