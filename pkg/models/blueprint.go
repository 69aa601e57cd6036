// Package models defines the Blueprint aggregate: the versioned structured
// output of one extraction pipeline run over a tax dossier.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AssetCategory identifies one of the reportable asset collections.
type AssetCategory string

const (
	CategoryBank       AssetCategory = "bank"
	CategoryInvestment AssetCategory = "investment"
	CategoryRealEstate AssetCategory = "real_estate"
	CategoryOther      AssetCategory = "other"
	CategoryDebt       AssetCategory = "debt"
)

// AssetCategories lists the four asset collections in extraction priority order.
var AssetCategories = []AssetCategory{CategoryBank, CategoryInvestment, CategoryRealEstate, CategoryOther}

// OwnerRef identifies which member of the fiscal entity holds a record.
type OwnerRef string

const (
	OwnerTaxpayer OwnerRef = "taxpayer"
	OwnerPartner  OwnerRef = "partner"
	OwnerJoint    OwnerRef = "joint"
)

// EntityMember is one person in the fiscal entity.
type EntityMember struct {
	Name          string  `json:"name"`
	MaskedTaxID   string  `json:"masked_tax_id,omitempty"`
	BirthYear     int     `json:"birth_year,omitempty"`
	AllocationPct float64 `json:"allocation_pct"` // share of the joint taxable base, 0-100
}

// FiscalEntity is the taxpayer plus optional fiscal partner.
// Invariant after normalization: with a partner present, the two
// AllocationPct values sum to exactly 100.
type FiscalEntity struct {
	Taxpayer        EntityMember  `json:"taxpayer"`
	Partner         *EntityMember `json:"partner,omitempty"`
	CorrectionNotes []string      `json:"correction_notes,omitempty"`
}

// HasPartner reports whether the entity files with a fiscal partner.
func (e *FiscalEntity) HasPartner() bool { return e.Partner != nil }

// YearlyAssetData holds the per-tax-year figures of one asset record.
// BalanceJan1 is the reference-date value the authority taxes on.
type YearlyAssetData struct {
	BalanceJan1  float64 `json:"balance_jan1"`
	BalanceDec31 float64 `json:"balance_dec31,omitempty"`
	Income       float64 `json:"income,omitempty"`        // interest, dividends, rent received
	RealizedGain float64 `json:"realized_gain,omitempty"` // investment sales result
	Costs        float64 `json:"costs,omitempty"`         // deductible costs (e.g. property maintenance)
}

// AssetRecord is one extracted asset in any of the four collections.
type AssetRecord struct {
	ID            string                  `json:"id"`
	Category      AssetCategory           `json:"category"`
	Owner         OwnerRef                `json:"owner"`
	Description   string                  `json:"description"`
	Institution   string                  `json:"institution,omitempty"`
	AccountMasked string                  `json:"account_masked,omitempty"`
	Address       string                  `json:"address,omitempty"` // real estate only
	OwnershipPct  float64                 `json:"ownership_pct"`     // household-relative, not the partner split
	Years         map[int]YearlyAssetData `json:"years"`
	SourceDocIDs  []string                `json:"source_doc_ids,omitempty"`
	AddedBy       string                  `json:"added_by,omitempty"` // extractor stage or "reconciler"
}

// YearlyDebtData holds the per-tax-year figures of one debt record.
type YearlyDebtData struct {
	BalanceJan1  float64 `json:"balance_jan1"`
	InterestPaid float64 `json:"interest_paid,omitempty"`
}

// DebtRecord mirrors the asset shape for liabilities.
type DebtRecord struct {
	ID            string                 `json:"id"`
	Owner         OwnerRef               `json:"owner"`
	Description   string                 `json:"description"`
	Lender        string                 `json:"lender,omitempty"`
	DebtType      string                 `json:"debt_type,omitempty"` // e.g. "mortgage", "consumer", "study_loan"
	LinkedAssetID string                 `json:"linked_asset_id,omitempty"`
	Years         map[int]YearlyDebtData `json:"years"`
	SourceDocIDs  []string               `json:"source_doc_ids,omitempty"`
}

// PersonAllocation is one member's share of the joint taxable base in one year.
type PersonAllocation struct {
	Member      OwnerRef `json:"member"`
	Pct         float64  `json:"pct"`
	TaxableBase float64  `json:"taxable_base,omitempty"`
}

// TaxAuthorityYearData holds the officially reported totals for one tax year.
type TaxAuthorityYearData struct {
	Year         int                `json:"year"`
	GrossAssets  float64            `json:"gross_assets"`
	GrossDebts   float64            `json:"gross_debts"`
	Exemption    float64            `json:"exemption"`
	TaxableBase  float64            `json:"taxable_base"`
	DeemedReturn float64            `json:"deemed_return"`
	AssessedTax  float64            `json:"assessed_tax"`
	Provisional  bool               `json:"provisional"` // provisional vs final assessment
	Allocations  []PersonAllocation `json:"allocations,omitempty"`
	Notes        []string           `json:"notes,omitempty"`
}

// ReturnBreakdown decomposes the actually realized return of one year.
type ReturnBreakdown struct {
	BankInterest     float64 `json:"bank_interest"`
	InvestmentIncome float64 `json:"investment_income"` // dividends
	RealizedGains    float64 `json:"realized_gains"`
	RentalNet        float64 `json:"rental_net"` // rent received minus costs
	OtherIncome      float64 `json:"other_income"`
	DebtInterest     float64 `json:"debt_interest"` // subtracted from the total
	Total            float64 `json:"total"`
}

// YearSummary is derived per run, never extracted.
type YearSummary struct {
	Year             int                    `json:"year"`
	ActualReturn     ReturnBreakdown        `json:"actual_return"`
	DeemedReturn     float64                `json:"deemed_return"`
	Difference       float64                `json:"difference"` // actual minus deemed, signed
	IndicativeRefund float64                `json:"indicative_refund"`
	Complete         bool                   `json:"complete"`
	Completeness     map[AssetCategory]bool `json:"completeness"`
	MissingItems     []string               `json:"missing_items,omitempty"`
}

// Blueprint is the root aggregate produced by one pipeline run.
// It is treated as immutable once the run that built it completes;
// a rerun produces the next version.
type Blueprint struct {
	ID          string                       `json:"id"`
	DossierID   string                       `json:"dossier_id"`
	Version     int                          `json:"version"`
	CreatedAt   time.Time                    `json:"created_at"`
	Documents   []SourceDocumentEntry        `json:"documents"`
	Entity      FiscalEntity                 `json:"entity"`
	Bank        []AssetRecord                `json:"bank_accounts"`
	Investments []AssetRecord                `json:"investments"`
	RealEstate  []AssetRecord                `json:"real_estate"`
	Other       []AssetRecord                `json:"other_assets"`
	Debts       []DebtRecord                 `json:"debts"`
	Authority   map[int]TaxAuthorityYearData `json:"authority_data"`
	Checklist   Checklist                    `json:"checklist"`
	Summaries   map[int]YearSummary          `json:"summaries"`
	Checks      []ValidationCheck            `json:"checks,omitempty"`
	Flags       []string                     `json:"flags,omitempty"`
}

// NewBlueprint creates an empty blueprint for a dossier at the given version.
func NewBlueprint(dossierID string, version int) *Blueprint {
	return &Blueprint{
		ID:        uuid.NewString(),
		DossierID: dossierID,
		Version:   version,
		CreatedAt: time.Now().UTC(),
		Authority: make(map[int]TaxAuthorityYearData),
		Checklist: make(Checklist),
		Summaries: make(map[int]YearSummary),
	}
}

// Assets returns the contents of one asset collection.
func (b *Blueprint) Assets(cat AssetCategory) []AssetRecord {
	switch cat {
	case CategoryBank:
		return b.Bank
	case CategoryInvestment:
		return b.Investments
	case CategoryRealEstate:
		return b.RealEstate
	case CategoryOther:
		return b.Other
	}
	return nil
}

// SetAssets replaces one asset collection.
func (b *Blueprint) SetAssets(cat AssetCategory, recs []AssetRecord) {
	switch cat {
	case CategoryBank:
		b.Bank = recs
	case CategoryInvestment:
		b.Investments = recs
	case CategoryRealEstate:
		b.RealEstate = recs
	case CategoryOther:
		b.Other = recs
	}
}

// AllAssets returns every asset record across the four collections.
func (b *Blueprint) AllAssets() []AssetRecord {
	out := make([]AssetRecord, 0, len(b.Bank)+len(b.Investments)+len(b.RealEstate)+len(b.Other))
	out = append(out, b.Bank...)
	out = append(out, b.Investments...)
	out = append(out, b.RealEstate...)
	out = append(out, b.Other...)
	return out
}

// Years returns the set of tax years present anywhere in the blueprint:
// authority data, asset records and debts.
func (b *Blueprint) Years() []int {
	seen := make(map[int]bool, len(b.Authority))
	for y := range b.Authority {
		seen[y] = true
	}
	for _, rec := range b.AllAssets() {
		for y := range rec.Years {
			seen[y] = true
		}
	}
	for _, d := range b.Debts {
		for y := range d.Years {
			seen[y] = true
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	return years
}

// NormalizeDescription lowercases, strips punctuation and collapses
// whitespace so descriptions from independent extraction passes compare.
func NormalizeDescription(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var sb strings.Builder
	lastSpace := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

// MaskIdentifier keeps only the last four characters of an account or
// national identifier. Anything shorter is masked entirely.
func MaskIdentifier(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
