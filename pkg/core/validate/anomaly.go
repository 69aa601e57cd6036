package validate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"fiscal_blueprint/pkg/core/llm"
	"fiscal_blueprint/pkg/core/prompt"
	"fiscal_blueprint/pkg/core/utils"
	"fiscal_blueprint/pkg/models"
)

// AnomalyScanner runs the advisory semantic pass over the finished
// blueprint. Its findings are appended as checks and never change the
// blueprint or the run outcome.
type AnomalyScanner struct {
	oracle llm.Oracle
}

// NewAnomalyScanner creates a scanner.
func NewAnomalyScanner(oracle llm.Oracle) *AnomalyScanner {
	return &AnomalyScanner{oracle: oracle}
}

type anomalyFinding struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Year     int    `json:"year"`
}

type anomalyReply struct {
	Findings []anomalyFinding `json:"findings"`
}

// Scan asks the oracle to review a condensed rendering of the blueprint.
// Oracle failures are swallowed; an advisory pass must not fail the run.
func (s *AnomalyScanner) Scan(ctx context.Context, bp *models.Blueprint, clientContext string) []models.ValidationCheck {
	summary := RenderSummary(bp)

	system, user, err := prompt.Get().MustRender("anomaly.scan", map[string]any{
		"Summary":       summary,
		"ClientContext": clientContext,
	})
	if err != nil {
		fmt.Printf("Warning: anomaly prompt: %v\n", err)
		return nil
	}

	raw, err := s.oracle.Invoke(ctx, user, llm.DeepReasoning(system))
	if err != nil {
		fmt.Printf("Warning: anomaly scan skipped: %v\n", err)
		return nil
	}

	var reply anomalyReply
	if err := utils.Decode(raw, &reply); err != nil {
		fmt.Printf("Warning: anomaly scan returned unusable output: %v\n", err)
		return nil
	}

	var checks []models.ValidationCheck
	for _, f := range reply.Findings {
		if strings.TrimSpace(f.Message) == "" {
			continue
		}
		check := models.ValidationCheck{
			Type:     models.CheckAnomaly,
			Passed:   false,
			Severity: severityFrom(f.Severity),
		}
		check.Message = f.Message
		if f.Year > 0 {
			check.Details = &models.CheckDetails{Year: f.Year}
		}
		checks = append(checks, check)
	}
	return checks
}

func severityFrom(s string) models.CheckSeverity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(models.SeverityError):
		return models.SeverityError
	case string(models.SeverityWarning):
		return models.SeverityWarning
	default:
		return models.SeverityInfo
	}
}

// RenderSummary produces the condensed markdown model handed to the
// anomaly scan. Only aggregates and per-record headline figures go in; raw
// document text never does.
func RenderSummary(bp *models.Blueprint) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Dossier %s (version %d)\n\n", bp.DossierID, bp.Version)
	fmt.Fprintf(&b, "Taxpayer: %s", bp.Entity.Taxpayer.Name)
	if bp.Entity.Partner != nil {
		fmt.Fprintf(&b, ", partner: %s", bp.Entity.Partner.Name)
	}
	b.WriteString("\n\n## Authority data\n")

	years := bp.Years()
	sort.Ints(years)
	for _, year := range years {
		a, ok := bp.Authority[year]
		if !ok {
			fmt.Fprintf(&b, "- %d: holdings present but no official figures extracted\n", year)
			continue
		}
		status := "final"
		if a.Provisional {
			status = "provisional"
		}
		fmt.Fprintf(&b, "- %d (%s): assets %.2f, debts %.2f, deemed return %.2f, assessed tax %.2f\n",
			year, status, a.GrossAssets, a.GrossDebts, a.DeemedReturn, a.AssessedTax)
	}

	b.WriteString("\n## Holdings\n")
	for _, cat := range models.AssetCategories {
		records := bp.Assets(cat)
		if len(records) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s (%d)\n", cat, len(records))
		for _, rec := range records {
			fmt.Fprintf(&b, "- %s (%s, ownership %.0f%%)", rec.Description, rec.Owner, rec.OwnershipPct)
			for _, year := range sortedYears(rec.Years) {
				yd := rec.Years[year]
				fmt.Fprintf(&b, " | %d: jan1 %.2f, income %.2f, gain %.2f", year, yd.BalanceJan1, yd.Income, yd.RealizedGain)
			}
			b.WriteString("\n")
		}
	}

	if len(bp.Debts) > 0 {
		fmt.Fprintf(&b, "\n## Debts (%d)\n", len(bp.Debts))
		for _, d := range bp.Debts {
			fmt.Fprintf(&b, "- %s (%s)", d.Description, d.DebtType)
			for _, year := range sortedDebtYears(d.Years) {
				yd := d.Years[year]
				fmt.Fprintf(&b, " | %d: jan1 %.2f, interest %.2f", year, yd.BalanceJan1, yd.InterestPaid)
			}
			b.WriteString("\n")
		}
	}

	if len(bp.Summaries) > 0 {
		b.WriteString("\n## Return comparison\n")
		for _, s := range bp.Summaries {
			fmt.Fprintf(&b, "- %d: actual %.2f vs deemed %.2f, indicative refund %.2f\n",
				s.Year, s.ActualReturn.Total, s.DeemedReturn, s.IndicativeRefund)
		}
	}

	out := utils.CleanMarkdown(b.String())
	if !utils.ValidateMarkdown(out) {
		fmt.Printf("Warning: anomaly summary failed the markdown sanity check\n")
	}
	return out
}

func sortedYears(m map[int]models.YearlyAssetData) []int {
	out := make([]int, 0, len(m))
	for y := range m {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

func sortedDebtYears(m map[int]models.YearlyDebtData) []int {
	out := make([]int, 0, len(m))
	for y := range m {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}
