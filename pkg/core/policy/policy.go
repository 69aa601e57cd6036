// Package policy centralizes the business parameters the pipeline applies
// mechanically: tolerance bands, per-year tax figures, dedup priority and the
// keyword vocabularies behind the exclusion and reclassification rules.
// Defaults are compiled in; a YAML file can override any of them.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YearParams holds the authority figures that vary per tax year.
type YearParams struct {
	TaxRatePct   float64 `yaml:"tax_rate_pct"`    // box-3 rate applied to the deemed return
	ExemptionPP  float64 `yaml:"exemption_pp"`    // tax-free allowance per person
	FilingJoint2 float64 `yaml:"exemption_joint"` // allowance for fiscal partners combined
}

// Tolerances controls the deterministic validation bands.
type Tolerances struct {
	AssetTotalAbs   float64 `yaml:"asset_total_abs"`  // absolute gap always tolerated
	AssetTotalPct   float64 `yaml:"asset_total_pct"`  // relative gap tolerated (pass)
	AssetErrorPct   float64 `yaml:"asset_error_pct"`  // relative gap above which severity is error
	BalanceMatch    float64 `yaml:"balance_match"`    // dedup: year balances equal within this amount
	InterestVsBal   float64 `yaml:"interest_vs_bal"`  // plausibility: max interest as fraction of principal
	ReconcilePrefix int     `yaml:"reconcile_prefix"` // min normalized-description prefix for non-overwrite
}

// Vocabulary is one keyword set driving a rule predicate.
type Vocabulary []string

// Policy is the full parameter set for one pipeline run.
type Policy struct {
	Years     map[int]YearParams `yaml:"years"`
	Tolerance Tolerances         `yaml:"tolerances"`

	// DedupPriority decides which category survives a duplicate group.
	// Earlier wins. Configurable pending domain confirmation of the order.
	DedupPriority []string `yaml:"dedup_priority"`

	// Keyword vocabularies, matched against normalized descriptions.
	RevolvingCredit Vocabulary `yaml:"revolving_credit"`
	PensionAnnuity  Vocabulary `yaml:"pension_annuity"`
	StudyLoan       Vocabulary `yaml:"study_loan"`
	InvestmentWords Vocabulary `yaml:"investment_words"`
	BankWords       Vocabulary `yaml:"bank_words"`
	PrimaryHome     Vocabulary `yaml:"primary_home"`

	// Preparer and scheduling knobs.
	MinCharsPerPage   float64 `yaml:"min_chars_per_page"`
	MinTotalChars     int     `yaml:"min_total_chars"`
	ClassifyBatchSize int     `yaml:"classify_batch_size"`
}

// Default returns the compiled-in parameter set for recent tax years.
func Default() *Policy {
	return &Policy{
		Years: map[int]YearParams{
			2021: {TaxRatePct: 31, ExemptionPP: 50000, FilingJoint2: 100000},
			2022: {TaxRatePct: 31, ExemptionPP: 50650, FilingJoint2: 101300},
			2023: {TaxRatePct: 32, ExemptionPP: 57000, FilingJoint2: 114000},
			2024: {TaxRatePct: 36, ExemptionPP: 57000, FilingJoint2: 114000},
			2025: {TaxRatePct: 36, ExemptionPP: 57684, FilingJoint2: 115368},
		},
		Tolerance: Tolerances{
			AssetTotalAbs:   1000,
			AssetTotalPct:   2,
			AssetErrorPct:   15,
			BalanceMatch:    2,
			InterestVsBal:   0.15,
			ReconcilePrefix: 12,
		},
		DedupPriority: []string{"investment", "bank", "other"},
		RevolvingCredit: Vocabulary{
			"creditcard", "credit card", "doorlopend krediet", "rood staan", "revolving",
		},
		PensionAnnuity: Vocabulary{
			"pensioen", "lijfrente", "annuity", "kew", "kapitaalverzekering",
			"oudedags", "banksparen",
		},
		StudyLoan: Vocabulary{
			"studieschuld", "studielening", "studiefinanciering", "duo", "student loan",
		},
		InvestmentWords: Vocabulary{
			"beleggen", "belegging", "effecten", "aandelen", "obligatie", "fonds",
			"etf", "vermogensbeheer", "brokerage", "depot",
		},
		BankWords: Vocabulary{
			"spaarrekening", "betaalrekening", "spaar", "deposito", "savings",
			"rekening", "bank",
		},
		PrimaryHome: Vocabulary{
			"eigen woning", "hoofdverblijf", "primary residence",
		},
		MinCharsPerPage:   200,
		MinTotalChars:     120,
		ClassifyBatchSize: 4,
	}
}

// LoadFile overlays a YAML policy file on the defaults. Missing keys keep
// their default values.
func LoadFile(path string) (*Policy, error) {
	p := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}
	return p, nil
}

// ParamsFor returns the year parameters, falling back to the latest known
// year when the requested one is missing.
func (p *Policy) ParamsFor(year int) YearParams {
	if yp, ok := p.Years[year]; ok {
		return yp
	}
	latest := 0
	var out YearParams
	for y, yp := range p.Years {
		if y > latest {
			latest, out = y, yp
		}
	}
	return out
}
