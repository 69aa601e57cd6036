package models

import "fmt"

// CheckSeverity grades a validation finding.
type CheckSeverity string

const (
	SeverityInfo    CheckSeverity = "info"
	SeverityWarning CheckSeverity = "warning"
	SeverityError   CheckSeverity = "error"
)

// CheckType names the deterministic and advisory validation rules.
type CheckType string

const (
	CheckAssetTotal        CheckType = "asset_total_vs_authority"
	CheckCategoryCount     CheckType = "category_count_vs_checklist"
	CheckPlausibility      CheckType = "plausibility"
	CheckAssessedTax       CheckType = "assessed_tax_present"
	CheckExclusionRules    CheckType = "exclusion_rules"
	CheckOwnershipPct      CheckType = "ownership_consistency"
	CheckAssessmentStatus  CheckType = "assessment_status"
	CheckAnomaly           CheckType = "anomaly_scan"
	CheckReconcilerOutcome CheckType = "reconciler"
)

// CheckDetails carries the structured expected/actual breakdown of a check.
type CheckDetails struct {
	Year        int     `json:"year,omitempty"`
	Expected    float64 `json:"expected,omitempty"`
	Actual      float64 `json:"actual,omitempty"`
	Difference  float64 `json:"difference,omitempty"`
	Remediation string  `json:"remediation,omitempty"`
}

// ValidationCheck is one rule evaluation. Checks are aggregated into the
// blueprint's diagnostics, never persisted standalone.
type ValidationCheck struct {
	Type     CheckType     `json:"type"`
	Passed   bool          `json:"passed"`
	Severity CheckSeverity `json:"severity"`
	Message  string        `json:"message"`
	Details  *CheckDetails `json:"details,omitempty"`
}

// ChecklistCategory is the authority-derived inventory for one category.
type ChecklistCategory struct {
	ExpectedCount int      `json:"expected_count"`
	Descriptions  []string `json:"descriptions,omitempty"`
}

// Checklist maps asset categories to their expected inventory. It is the
// ground truth category extractors and the validator measure against.
type Checklist map[AssetCategory]ChecklistCategory

// Expected returns the expected count for a category, zero when absent.
func (c Checklist) Expected(cat AssetCategory) int {
	return c[cat].ExpectedCount
}

// ExtractionNotes records found-vs-expected bookkeeping of one category
// extractor. Consumed by the validator.
type ExtractionNotes struct {
	Category     AssetCategory `json:"category"`
	Expected     int           `json:"expected"`
	Found        int           `json:"found"`
	Unmatched    []string      `json:"unmatched,omitempty"` // checklist descriptions not matched
	VisionRetry  bool          `json:"vision_retry,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// Summary renders the notes as an operator-facing line.
func (n ExtractionNotes) Summary() string {
	return fmt.Sprintf("%s: found %d of %d expected (unmatched: %d)",
		n.Category, n.Found, n.Expected, len(n.Unmatched))
}

// ExclusionContext is the pipeline-run-scoped list of already-extracted
// identifiers, used in sequential mode to keep later category extractors
// from re-extracting the same real-world asset. Discarded at run end.
type ExclusionContext struct {
	Descriptions []string
	Accounts     []string
	Addresses    []string
}

// AddAsset appends a record's identifying fields to the context.
func (x *ExclusionContext) AddAsset(rec AssetRecord) {
	if rec.Description != "" {
		x.Descriptions = append(x.Descriptions, rec.Description)
	}
	if rec.AccountMasked != "" {
		x.Accounts = append(x.Accounts, rec.AccountMasked)
	}
	if rec.Address != "" {
		x.Addresses = append(x.Addresses, rec.Address)
	}
}

// IsEmpty reports whether nothing has been excluded yet.
func (x *ExclusionContext) IsEmpty() bool {
	return len(x.Descriptions) == 0 && len(x.Accounts) == 0 && len(x.Addresses) == 0
}
