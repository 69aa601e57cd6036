package validate

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"fiscal_blueprint/pkg/core/docset"
	"fiscal_blueprint/pkg/core/llm"
	"fiscal_blueprint/pkg/core/policy"
	"fiscal_blueprint/pkg/core/prompt"
	"fiscal_blueprint/pkg/core/utils"
	"fiscal_blueprint/pkg/models"
)

// Reconciler runs one targeted repair pass when the deterministic checks
// find a gap. It may add records, never modify or remove existing ones, and
// it is invoked at most once per pipeline run.
type Reconciler struct {
	oracle llm.Oracle
	pol    *policy.Policy
}

// NewReconciler creates a reconciler.
func NewReconciler(oracle llm.Oracle, pol *policy.Policy) *Reconciler {
	if pol == nil {
		pol = policy.Default()
	}
	return &Reconciler{oracle: oracle, pol: pol}
}

type reconcileRecord struct {
	Category     string                `json:"category"`
	Description  string                `json:"description"`
	Institution  string                `json:"institution"`
	Account      string                `json:"account"`
	Address      string                `json:"address"`
	Owner        string                `json:"owner"`
	OwnershipPct float64               `json:"ownership_pct"`
	Years        map[string]reconYear  `json:"years"`
}

type reconYear struct {
	BalanceJan1  float64 `json:"balance_jan1"`
	BalanceDec31 float64 `json:"balance_dec31"`
	Income       float64 `json:"income"`
	RealizedGain float64 `json:"realized_gain"`
	Costs        float64 `json:"costs"`
}

type reconcileReply struct {
	Records []reconcileRecord `json:"records"`
}

// Outcome reports what the repair pass did.
type Outcome struct {
	Proposed int
	Admitted int
	Rejected []string
	Err      error
}

// Check renders the outcome as a validation check for the blueprint.
func (o Outcome) Check() models.ValidationCheck {
	if o.Err != nil {
		return models.ValidationCheck{
			Type:     models.CheckReconcilerOutcome,
			Passed:   false,
			Severity: models.SeverityWarning,
			Message:  fmt.Sprintf("reconciliation pass failed: %v", o.Err),
		}
	}
	return models.ValidationCheck{
		Type:     models.CheckReconcilerOutcome,
		Passed:   true,
		Severity: models.SeverityInfo,
		Message:  fmt.Sprintf("reconciliation proposed %d item(s), admitted %d", o.Proposed, o.Admitted),
	}
}

// Reconcile asks the oracle to re-read the dossier for the items that
// explain the failed checks and admits proposals that do not collide with
// anything already extracted. The blueprint is mutated in place.
func (r *Reconciler) Reconcile(ctx context.Context, bp *models.Blueprint, docs []models.PreparedDocument, failed []models.ValidationCheck) Outcome {
	discrepancy := summarizeFailures(failed)
	if discrepancy == "" {
		return Outcome{}
	}

	payload := docset.Build(docs, docset.DefaultMaxCharsPerDoc, false)
	system, user, err := prompt.Get().MustRender("reconcile.missing", map[string]any{
		"Discrepancy": discrepancy,
		"Exclusions":  renderExisting(bp),
		"Documents":   payload.Text,
	})
	if err != nil {
		return Outcome{Err: err}
	}

	raw, err := r.oracle.Invoke(ctx, user, llm.DeepReasoning(system), payload.Attachments...)
	if err != nil {
		return Outcome{Err: fmt.Errorf("reconcile call: %w", err)}
	}

	var reply reconcileReply
	if err := utils.Decode(raw, &reply); err != nil {
		return Outcome{Err: fmt.Errorf("reconcile parse: %w", err)}
	}

	out := Outcome{Proposed: len(reply.Records)}
	existing := existingPrefixes(bp)
	for _, rec := range reply.Records {
		norm := models.NormalizeDescription(rec.Description)
		if norm == "" {
			out.Rejected = append(out.Rejected, "proposal without a description")
			continue
		}
		if match := prefixCollision(norm, existing, r.pol.Tolerance.ReconcilePrefix); match != "" {
			out.Rejected = append(out.Rejected, fmt.Sprintf("%q collides with existing %q", rec.Description, match))
			continue
		}
		admitted := r.admit(bp, rec, payload.DocIDs)
		if admitted {
			existing = append(existing, norm)
			out.Admitted++
		}
	}
	return out
}

func (r *Reconciler) admit(bp *models.Blueprint, rec reconcileRecord, docIDs []string) bool {
	cat := models.AssetCategory(rec.Category)
	switch cat {
	case models.CategoryBank, models.CategoryInvestment, models.CategoryRealEstate, models.CategoryOther:
	default:
		return false
	}

	owner := models.OwnerRef(rec.Owner)
	switch owner {
	case models.OwnerTaxpayer, models.OwnerPartner, models.OwnerJoint:
	default:
		owner = models.OwnerTaxpayer
	}

	pct := rec.OwnershipPct
	if pct <= 0 || pct > 100 {
		pct = 100
	}

	record := models.AssetRecord{
		ID:            uuid.NewString(),
		Category:      cat,
		Owner:         owner,
		Description:   rec.Description,
		Institution:   rec.Institution,
		AccountMasked: models.MaskIdentifier(rec.Account),
		Address:       rec.Address,
		OwnershipPct:  pct,
		Years:         make(map[int]models.YearlyAssetData),
		SourceDocIDs:  docIDs,
		AddedBy:       "reconciler",
	}
	for ys, yd := range rec.Years {
		year, err := strconv.Atoi(ys)
		if err != nil {
			continue
		}
		record.Years[year] = models.YearlyAssetData{
			BalanceJan1:  yd.BalanceJan1,
			BalanceDec31: yd.BalanceDec31,
			Income:       yd.Income,
			RealizedGain: yd.RealizedGain,
			Costs:        yd.Costs,
		}
	}
	if len(record.Years) == 0 {
		return false
	}
	bp.SetAssets(cat, append(bp.Assets(cat), record))
	return true
}

func summarizeFailures(checks []models.ValidationCheck) string {
	var lines []string
	for _, c := range checks {
		if c.Passed {
			continue
		}
		if c.Type != models.CheckAssetTotal && c.Type != models.CheckCategoryCount {
			continue
		}
		lines = append(lines, "- "+c.Message)
	}
	return strings.Join(lines, "\n")
}

func renderExisting(bp *models.Blueprint) string {
	var lines []string
	for _, rec := range bp.AllAssets() {
		line := "- " + rec.Description
		if rec.AccountMasked != "" {
			line += " (account " + rec.AccountMasked + ")"
		}
		lines = append(lines, line)
	}
	for _, d := range bp.Debts {
		lines = append(lines, "- "+d.Description)
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

func existingPrefixes(bp *models.Blueprint) []string {
	var out []string
	for _, rec := range bp.AllAssets() {
		if norm := models.NormalizeDescription(rec.Description); norm != "" {
			out = append(out, norm)
		}
	}
	return out
}

// prefixCollision reports the first existing normalized description sharing
// a prefix of at least minLen characters with the candidate. Matching an
// existing item means the proposal duplicates it rather than filling a gap.
func prefixCollision(norm string, existing []string, minLen int) string {
	for _, e := range existing {
		n := commonPrefixLen(norm, e)
		if n >= minLen || norm == e {
			return e
		}
	}
	return ""
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
