// Package assets runs the four category extractors (bank, investment,
// real-estate, other+debts) over the full prepared document set, guided by
// the authority checklist and, in sequential mode, an accumulating exclusion
// context.
package assets

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

// categoryLabels drive the extraction prompt wording per category.
var categoryLabels = map[models.AssetCategory]string{
	models.CategoryBank:       "bank or savings account",
	models.CategoryInvestment: "investment or brokerage position",
	models.CategoryRealEstate: "real-estate property (excluding the primary residence)",
	models.CategoryOther:      "other reportable asset or outstanding debt",
}

// CategoryExtractor extracts one asset category from the document set.
type CategoryExtractor struct {
	oracle   llm.Oracle
	pol      *policy.Policy
	category models.AssetCategory
}

// NewCategoryExtractor creates an extractor for one category.
func NewCategoryExtractor(oracle llm.Oracle, pol *policy.Policy, category models.AssetCategory) *CategoryExtractor {
	if pol == nil {
		pol = policy.Default()
	}
	return &CategoryExtractor{oracle: oracle, pol: pol, category: category}
}

// CategoryResult is the output of one category extraction pass.
type CategoryResult struct {
	Records []models.AssetRecord
	Debts   []models.DebtRecord // populated by the "other" extractor only
	Notes   models.ExtractionNotes
}

type parsedYear struct {
	BalanceJan1  float64 `json:"balance_jan1"`
	BalanceDec31 float64 `json:"balance_dec31"`
	Income       float64 `json:"income"`
	RealizedGain float64 `json:"realized_gain"`
	Costs        float64 `json:"costs"`
	InterestPaid float64 `json:"interest_paid"`
}

type parsedRecord struct {
	Kind         string                `json:"kind"`
	Description  string                `json:"description"`
	Institution  string                `json:"institution"`
	Account      string                `json:"account"`
	Address      string                `json:"address"`
	Owner        string                `json:"owner"`
	OwnershipPct float64               `json:"ownership_pct"`
	Lender       string                `json:"lender"`
	DebtType     string                `json:"debt_type"`
	Years        map[string]parsedYear `json:"years"`
}

type extractionReply struct {
	Records            []parsedRecord `json:"records"`
	UnmatchedChecklist []string       `json:"unmatched_checklist"`
}

// Extract runs the oracle extraction for this category. The bank extractor
// retries once with forced vision-based extraction when the checklist expects
// accounts but the text pass found none; text extraction can silently miss
// tabular account listings.
func (e *CategoryExtractor) Extract(ctx context.Context, docs []models.PreparedDocument, checklist models.Checklist, exclusions *models.ExclusionContext) *CategoryResult {
	expected := checklist.Expected(e.category)
	result := &CategoryResult{
		Notes: models.ExtractionNotes{Category: e.category, Expected: expected},
	}

	reply, docIDs, err := e.callOracle(ctx, docs, checklist, exclusions, false)
	if err != nil {
		result.Notes.ErrorMessage = err.Error()
		fmt.Printf("Warning: %s extraction failed: %v\n", e.category, err)
		return result
	}

	if e.category == models.CategoryBank && expected > 0 && len(reply.Records) == 0 {
		fmt.Printf("Bank extraction found 0 of %d expected accounts; retrying with vision\n", expected)
		result.Notes.VisionRetry = true
		retry, retryIDs, err := e.callOracle(ctx, docs, checklist, exclusions, true)
		if err != nil {
			result.Notes.ErrorMessage = fmt.Sprintf("no accounts found after two attempts: %v", err)
			return result
		}
		if len(retry.Records) == 0 {
			result.Notes.ErrorMessage = "no accounts found after two attempts"
		}
		reply, docIDs = retry, retryIDs
	}

	e.convert(reply, docIDs, exclusions, result)
	result.Notes.Found = len(result.Records) + len(result.Debts)
	result.Notes.Unmatched = reply.UnmatchedChecklist
	return result
}

func (e *CategoryExtractor) callOracle(ctx context.Context, docs []models.PreparedDocument, checklist models.Checklist, exclusions *models.ExclusionContext, forceVision bool) (*extractionReply, []string, error) {
	payload := docset.Build(docs, docset.DefaultMaxCharsPerDoc, forceVision)

	entry := checklist[e.category]
	vars := map[string]interface{}{
		"CategoryLabel":         categoryLabels[e.category],
		"Documents":             payload.Text,
		"ExpectedCount":         entry.ExpectedCount,
		"ChecklistDescriptions": strings.Join(entry.Descriptions, "\n"),
		"Exclusions":            renderExclusions(exclusions),
		"IncludeDebts":          e.category == models.CategoryOther,
	}
	system, user, err := prompt.Get().MustRender("assets.extract", vars)
	if err != nil {
		return nil, nil, err
	}

	raw, err := e.oracle.Invoke(ctx, user, llm.FastExtraction(system), payload.Attachments...)
	if err != nil {
		return nil, nil, err
	}

	var reply extractionReply
	if err := utils.Decode(raw, &reply); err != nil {
		return nil, nil, err
	}
	return &reply, payload.DocIDs, nil
}

// convert turns parsed records into typed asset/debt records, enforcing the
// exclusion context in code rather than trusting the prompt alone. docIDs
// are the documents the oracle saw; every produced record traces to them.
func (e *CategoryExtractor) convert(reply *extractionReply, docIDs []string, exclusions *models.ExclusionContext, result *CategoryResult) {
	for _, pr := range reply.Records {
		if strings.TrimSpace(pr.Description) == "" {
			continue
		}
		masked := models.MaskIdentifier(pr.Account)
		if isExcluded(pr.Description, masked, pr.Address, exclusions) {
			continue
		}

		if pr.Kind == "debt" || pr.Lender != "" || pr.DebtType != "" {
			result.Debts = append(result.Debts, models.DebtRecord{
				ID:           uuid.NewString(),
				Owner:        parseOwner(pr.Owner),
				Description:  pr.Description,
				Lender:       pr.Lender,
				DebtType:     pr.DebtType,
				Years:        convertDebtYears(pr.Years),
				SourceDocIDs: docIDs,
			})
			continue
		}

		ownership := pr.OwnershipPct
		if ownership <= 0 || ownership > 100 {
			ownership = 100
		}
		result.Records = append(result.Records, models.AssetRecord{
			ID:            uuid.NewString(),
			Category:      e.category,
			Owner:         parseOwner(pr.Owner),
			Description:   pr.Description,
			Institution:   pr.Institution,
			AccountMasked: masked,
			Address:       pr.Address,
			OwnershipPct:  ownership,
			Years:         convertAssetYears(pr.Years),
			SourceDocIDs:  docIDs,
			AddedBy:       string(e.category) + "_extractor",
		})
	}
}

func convertAssetYears(in map[string]parsedYear) map[int]models.YearlyAssetData {
	out := make(map[int]models.YearlyAssetData, len(in))
	for ys, py := range in {
		y, err := strconv.Atoi(strings.TrimSpace(ys))
		if err != nil {
			continue
		}
		out[y] = models.YearlyAssetData{
			BalanceJan1:  py.BalanceJan1,
			BalanceDec31: py.BalanceDec31,
			Income:       py.Income,
			RealizedGain: py.RealizedGain,
			Costs:        py.Costs,
		}
	}
	return out
}

func convertDebtYears(in map[string]parsedYear) map[int]models.YearlyDebtData {
	out := make(map[int]models.YearlyDebtData, len(in))
	for ys, py := range in {
		y, err := strconv.Atoi(strings.TrimSpace(ys))
		if err != nil {
			continue
		}
		out[y] = models.YearlyDebtData{
			BalanceJan1:  py.BalanceJan1,
			InterestPaid: py.InterestPaid,
		}
	}
	return out
}

func parseOwner(s string) models.OwnerRef {
	switch models.OwnerRef(strings.ToLower(strings.TrimSpace(s))) {
	case models.OwnerPartner:
		return models.OwnerPartner
	case models.OwnerJoint:
		return models.OwnerJoint
	}
	return models.OwnerTaxpayer
}

// isExcluded reports whether a parsed record matches the exclusion context by
// normalized description, masked account or address.
func isExcluded(description, maskedAccount, address string, x *models.ExclusionContext) bool {
	if x == nil || x.IsEmpty() {
		return false
	}
	norm := models.NormalizeDescription(description)
	for _, d := range x.Descriptions {
		if norm != "" && norm == models.NormalizeDescription(d) {
			return true
		}
	}
	if maskedAccount != "" {
		for _, a := range x.Accounts {
			if maskedAccount == a {
				return true
			}
		}
	}
	if address != "" {
		normAddr := models.NormalizeDescription(address)
		for _, a := range x.Addresses {
			if normAddr == models.NormalizeDescription(a) {
				return true
			}
		}
	}
	return false
}

// renderExclusions lists already-extracted identifiers for the prompt.
func renderExclusions(x *models.ExclusionContext) string {
	if x == nil || x.IsEmpty() {
		return ""
	}
	var lines []string
	for _, d := range x.Descriptions {
		lines = append(lines, "- "+d)
	}
	for _, a := range x.Accounts {
		lines = append(lines, "- account "+a)
	}
	for _, a := range x.Addresses {
		lines = append(lines, "- "+a)
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
