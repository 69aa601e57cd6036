// Package merge combines the category extraction results into one blueprint
// and normalizes it: hard reclassification rules, cross-category dedup and
// domain exclusions. The stage is deterministic (no oracle calls) and
// idempotent: normalizing its own output is a no-op.
package merge

import (
	"strings"

	"fiscal_blueprint/pkg/core/policy"
	"fiscal_blueprint/pkg/models"
)

// RuleAction is what a matched rule does to a record.
type RuleAction string

const (
	ActionReclassifyAsDebt RuleAction = "reclassify_debt"
	ActionExcludeAsset     RuleAction = "exclude_asset"
	ActionExcludeDebt      RuleAction = "exclude_debt"
)

// Rule is one data-driven predicate evaluated by the engine. Rules match on
// normalized description keywords; debt rules also consult lender and type.
type Rule struct {
	Name     string
	Keywords policy.Vocabulary
	Action   RuleAction

	// RequiresNegativeBalance restricts the rule to records with a negative
	// year-1 balance in at least one year (the revolving-credit case).
	RequiresNegativeBalance bool
}

// rulesFor builds the rule table from policy vocabularies. Expressed as data
// so individual rules stay unit-testable and extensible without touching the
// engine's control flow.
func rulesFor(pol *policy.Policy) []Rule {
	return []Rule{
		{
			Name:                    "revolving_credit_negative_balance",
			Keywords:                pol.RevolvingCredit,
			Action:                  ActionReclassifyAsDebt,
			RequiresNegativeBalance: true,
		},
		{
			Name:     "pension_annuity_regime",
			Keywords: pol.PensionAnnuity,
			Action:   ActionExcludeAsset,
		},
		{
			Name:     "study_loan_non_deductible",
			Keywords: pol.StudyLoan,
			Action:   ActionExcludeDebt,
		},
	}
}

// matchesVocab reports whether any keyword occurs in the normalized text.
func matchesVocab(text string, vocab policy.Vocabulary) bool {
	norm := models.NormalizeDescription(text)
	if norm == "" {
		return false
	}
	for _, kw := range vocab {
		if strings.Contains(norm, models.NormalizeDescription(kw)) {
			return true
		}
	}
	return false
}

// hasNegativeBalance reports whether any year's opening balance is negative.
func hasNegativeBalance(rec models.AssetRecord) bool {
	for _, yd := range rec.Years {
		if yd.BalanceJan1 < 0 {
			return true
		}
	}
	return false
}

// debtMatchesRule checks description, lender and explicit type.
func debtMatchesRule(d models.DebtRecord, r Rule) bool {
	if matchesVocab(d.Description, r.Keywords) || matchesVocab(d.Lender, r.Keywords) {
		return true
	}
	return matchesVocab(d.DebtType, r.Keywords)
}
