package prompt

// Built-in prompt templates. Wording here is a working default; operators can
// override any of them by registering a template with the same ID (or loading
// a JSON directory, see loader.go).

const extractionSystem = `You are an expert Dutch tax analyst. You extract structured data from
financial documents belonging to one tax dossier: tax returns, assessments,
bank and investment statements, property valuations.

Rules:
1. Only report data explicitly present in the supplied document(s).
2. Amounts are in euros; use plain numbers without thousand separators.
3. Respond with valid JSON matching the requested schema, nothing else.
4. When a field is unknown, omit it or use null. Never invent values.`

func registerBuiltins(r *Registry) {
	templates := []*Template{
		{
			ID:           "classify.document",
			Name:         "Document classification",
			Category:     "classify",
			SystemPrompt: extractionSystem,
			UserPromptTmpl: `Classify this document from a tax dossier.

Document filename: {{.Filename}}
{{if .Text}}Document text:
{{.Text}}{{else}}The document is attached as a binary file.{{end}}

Return JSON:
{
  "type": "tax_return | final_assessment | provisional_assessment | bank_statement | investment_statement | property_valuation | mortgage_statement | loan_statement | unclassified",
  "years": [list of tax years this document covers],
  "persons": [names of persons mentioned],
  "asset_hints": ["bank" | "investment" | "real_estate" | "other" | "debt"],
  "confidence": 0.0-1.0
}`,
			Version: "1.0",
		},
		{
			ID:           "authority.identity",
			Name:         "Fiscal entity identity",
			Category:     "authority",
			SystemPrompt: extractionSystem,
			UserPromptTmpl: `From the attached tax return / assessment documents, extract the taxpayer
and, if present, the fiscal partner.

{{.Documents}}

Return JSON:
{
  "taxpayer": {"name": "...", "tax_id": "...", "birth_year": 0, "allocation_pct": 0, "taxable_base": 0},
  "partner": {"name": "...", "tax_id": "...", "birth_year": 0, "allocation_pct": 0, "taxable_base": 0} or null
}
allocation_pct is each person's share of the joint savings-and-investments base.`,
			Version: "1.0",
		},
		{
			ID:           "authority.totals",
			Name:         "Official per-year totals",
			Category:     "authority",
			SystemPrompt: extractionSystem,
			UserPromptTmpl: `From the attached tax return / assessment documents, extract the officially
reported totals for every tax year present.

{{.Documents}}

Return JSON:
{
  "years": [
    {
      "year": 0,
      "gross_assets": 0,
      "gross_debts": 0,
      "exemption": 0,
      "taxable_base": 0,
      "deemed_return": 0,
      "assessed_tax": 0,
      "provisional": true/false,
      "allocations": [
        {"member": "taxpayer | partner", "pct": 0, "taxable_base": 0}
      ]
    }
  ]
}
When the documents split the joint taxable base between fiscal partners,
report that split per year under "allocations"; omit the array for a single
taxpayer. Numbers may appear in the source as plain values or as objects
wrapping a value; always return them as plain numbers.`,
			Version: "1.0",
		},
		{
			ID:           "authority.checklist",
			Name:         "Declared asset checklist",
			Category:     "authority",
			SystemPrompt: extractionSystem,
			UserPromptTmpl: `From the attached tax return / assessment documents, enumerate how many
assets of each category the declaration claims, with their descriptions.

{{.Documents}}

Return JSON:
{
  "bank": {"expected_count": 0, "descriptions": ["..."]},
  "investment": {"expected_count": 0, "descriptions": ["..."]},
  "real_estate": {"expected_count": 0, "descriptions": ["..."]},
  "other": {"expected_count": 0, "descriptions": ["..."]},
  "debt": {"expected_count": 0, "descriptions": ["..."]}
}`,
			Version: "1.0",
		},
		{
			ID:           "assets.extract",
			Name:         "Category asset extraction",
			Category:     "assets",
			SystemPrompt: extractionSystem,
			UserPromptTmpl: `Extract every {{.CategoryLabel}} from the dossier documents below.

{{.Documents}}

The declaration claims {{.ExpectedCount}} item(s) in this category{{if .ChecklistDescriptions}}, described as:
{{.ChecklistDescriptions}}{{end}}.
{{if .Exclusions}}
Already extracted elsewhere - do NOT extract these again:
{{.Exclusions}}
{{end}}
Return JSON:
{
  "records": [
    {
      "kind": "asset{{if .IncludeDebts}} | debt{{end}}",
      "description": "...",
      "institution": "...",
      "account": "...",
      "address": "...",
      "owner": "taxpayer | partner | joint",
      "ownership_pct": 100,{{if .IncludeDebts}}
      "lender": "... (debts only)",
      "debt_type": "mortgage | consumer | study_loan | other (debts only)",{{end}}
      "years": {"2023": {"balance_jan1": 0, "balance_dec31": 0, "income": 0, "realized_gain": 0, "costs": 0, "interest_paid": 0}}
    }
  ],
  "unmatched_checklist": ["checklist descriptions you could not find data for"]
}`,
			Version: "1.0",
		},
		{
			ID:           "reconcile.missing",
			Name:         "Targeted discrepancy repair",
			Category:     "reconcile",
			SystemPrompt: extractionSystem,
			UserPromptTmpl: `A validation pass found a discrepancy between extracted assets and the
officially reported totals.

Discrepancy:
{{.Discrepancy}}

Items already extracted (do NOT propose these again):
{{.Exclusions}}

Re-read the dossier documents below and identify the specific missing items
that explain the gap.

{{.Documents}}

Return JSON with the same "records" schema as an extraction call, plus a
"category" field per record ("bank", "investment", "real_estate", "other").`,
			Version: "1.0",
		},
		{
			ID:           "anomaly.scan",
			Name:         "Semantic anomaly scan",
			Category:     "anomaly",
			SystemPrompt: extractionSystem,
			UserPromptTmpl: `Review this condensed financial model of a tax dossier and report anything
implausible: impossible balances, inconsistent ownership, income out of
proportion to principal, items that look misclassified.
{{if .ClientContext}}
Context provided by the client:
{{.ClientContext}}
{{end}}
Model:
{{.Summary}}

Return JSON:
{
  "findings": [
    {"severity": "info | warning | error", "message": "...", "year": 0}
  ]
}
Return an empty findings array when nothing stands out.`,
			Version: "1.0",
		},
	}

	for _, t := range templates {
		_ = r.Register(t)
	}
}
