// Package authority extracts the officially reported model from
// authority-facing documents: the fiscal entity, the per-year totals and the
// declared asset checklist. The three concerns run as independent concurrent
// sub-extractions against the same document set because a single call's
// accuracy degrades as its required output grows; splitting by concern bounds
// each call's output size.
package authority

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"fiscal_blueprint/pkg/core/docset"
	"fiscal_blueprint/pkg/core/llm"
	"fiscal_blueprint/pkg/core/policy"
	"fiscal_blueprint/pkg/core/prompt"
	"fiscal_blueprint/pkg/core/utils"
	"fiscal_blueprint/pkg/models"
)

// Result holds the three normalized facets. A failed sub-extraction leaves
// its facet empty and adds an error string; the stage itself never fails.
type Result struct {
	Entity    models.FiscalEntity
	Years     map[int]models.TaxAuthorityYearData
	Checklist models.Checklist
	Errors    []string
}

// Extractor runs the authority stage.
type Extractor struct {
	oracle llm.Oracle
	pol    *policy.Policy
}

// NewExtractor creates an authority extractor.
func NewExtractor(oracle llm.Oracle, pol *policy.Policy) *Extractor {
	if pol == nil {
		pol = policy.Default()
	}
	return &Extractor{oracle: oracle, pol: pol}
}

type identityPerson struct {
	Name          string     `json:"name"`
	TaxID         string     `json:"tax_id"`
	BirthYear     int        `json:"birth_year"`
	AllocationPct FlexNumber `json:"allocation_pct"`
	TaxableBase   FlexNumber `json:"taxable_base"`
}

type identityResult struct {
	Taxpayer identityPerson  `json:"taxpayer"`
	Partner  *identityPerson `json:"partner"`
}

type totalsAllocation struct {
	Member      string     `json:"member"`
	Pct         FlexNumber `json:"pct"`
	TaxableBase FlexNumber `json:"taxable_base"`
}

type totalsYear struct {
	Year         int                `json:"year"`
	GrossAssets  FlexNumber         `json:"gross_assets"`
	GrossDebts   FlexNumber         `json:"gross_debts"`
	Exemption    FlexNumber         `json:"exemption"`
	TaxableBase  FlexNumber         `json:"taxable_base"`
	DeemedReturn FlexNumber         `json:"deemed_return"`
	AssessedTax  FlexNumber         `json:"assessed_tax"`
	Provisional  bool               `json:"provisional"`
	Allocations  []totalsAllocation `json:"allocations"`
}

type totalsResult struct {
	Years []totalsYear `json:"years"`
}

type checklistResult struct {
	Bank       checklistEntry `json:"bank"`
	Investment checklistEntry `json:"investment"`
	RealEstate checklistEntry `json:"real_estate"`
	Other      checklistEntry `json:"other"`
	Debt       checklistEntry `json:"debt"`
}

type checklistEntry struct {
	ExpectedCount int      `json:"expected_count"`
	Descriptions  []string `json:"descriptions"`
}

// Extract runs the three sub-extractions concurrently over the
// authority-facing subset of the prepared documents. They are read-only over
// the same input and write disjoint facets, so this is a plain fork/join.
func (e *Extractor) Extract(ctx context.Context, docs []models.PreparedDocument, registry []models.SourceDocumentEntry) *Result {
	result := &Result{
		Years:     make(map[int]models.TaxAuthorityYearData),
		Checklist: make(models.Checklist),
	}

	authorityDocs := filterAuthorityDocs(docs, registry)
	if len(authorityDocs) == 0 {
		result.Errors = append(result.Errors, "no authority-facing documents in dossier; official totals unavailable")
		return result
	}

	payload := docset.Build(authorityDocs, docset.DefaultMaxCharsPerDoc, false)

	var wg sync.WaitGroup
	var mu sync.Mutex

	record := func(facet string, err error) {
		mu.Lock()
		result.Errors = append(result.Errors, fmt.Sprintf("%s extraction failed: %v", facet, err))
		mu.Unlock()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		entity, err := e.extractIdentity(ctx, payload)
		if err != nil {
			record("identity", err)
			return
		}
		mu.Lock()
		result.Entity = *entity
		mu.Unlock()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		years, err := e.extractTotals(ctx, payload)
		if err != nil {
			record("totals", err)
			return
		}
		mu.Lock()
		for y, yd := range years {
			result.Years[y] = yd
		}
		mu.Unlock()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		cl, err := e.extractChecklist(ctx, payload)
		if err != nil {
			record("checklist", err)
			return
		}
		mu.Lock()
		result.Checklist = cl
		mu.Unlock()
	}()

	wg.Wait()
	return result
}

func (e *Extractor) extractIdentity(ctx context.Context, payload docset.Payload) (*models.FiscalEntity, error) {
	system, user, err := prompt.Get().MustRender("authority.identity", map[string]interface{}{
		"Documents": payload.Text,
	})
	if err != nil {
		return nil, err
	}
	raw, err := e.oracle.Invoke(ctx, user, llm.FastExtraction(system), payload.Attachments...)
	if err != nil {
		return nil, err
	}

	var parsed identityResult
	if err := utils.Decode(raw, &parsed); err != nil {
		return nil, err
	}

	entity := &models.FiscalEntity{
		Taxpayer: models.EntityMember{
			Name:          parsed.Taxpayer.Name,
			MaskedTaxID:   models.MaskIdentifier(parsed.Taxpayer.TaxID),
			BirthYear:     parsed.Taxpayer.BirthYear,
			AllocationPct: parsed.Taxpayer.AllocationPct.Float(),
		},
	}
	var partnerBase float64
	if parsed.Partner != nil && parsed.Partner.Name != "" {
		entity.Partner = &models.EntityMember{
			Name:          parsed.Partner.Name,
			MaskedTaxID:   models.MaskIdentifier(parsed.Partner.TaxID),
			BirthYear:     parsed.Partner.BirthYear,
			AllocationPct: parsed.Partner.AllocationPct.Float(),
		}
		partnerBase = parsed.Partner.TaxableBase.Float()
	}

	NormalizeAllocations(entity, parsed.Taxpayer.TaxableBase.Float(), partnerBase)
	return entity, nil
}

func (e *Extractor) extractTotals(ctx context.Context, payload docset.Payload) (map[int]models.TaxAuthorityYearData, error) {
	system, user, err := prompt.Get().MustRender("authority.totals", map[string]interface{}{
		"Documents": payload.Text,
	})
	if err != nil {
		return nil, err
	}
	raw, err := e.oracle.Invoke(ctx, user, llm.FastExtraction(system), payload.Attachments...)
	if err != nil {
		return nil, err
	}

	var parsed totalsResult
	if err := utils.Decode(raw, &parsed); err != nil {
		return nil, err
	}

	years := make(map[int]models.TaxAuthorityYearData, len(parsed.Years))
	for _, ty := range parsed.Years {
		if ty.Year == 0 {
			continue
		}
		yd := models.TaxAuthorityYearData{
			Year:         ty.Year,
			GrossAssets:  ty.GrossAssets.Float(),
			GrossDebts:   ty.GrossDebts.Float(),
			Exemption:    ty.Exemption.Float(),
			TaxableBase:  ty.TaxableBase.Float(),
			DeemedReturn: ty.DeemedReturn.Float(),
			AssessedTax:  ty.AssessedTax.Float(),
			Provisional:  ty.Provisional,
		}
		for _, ta := range ty.Allocations {
			yd.Allocations = append(yd.Allocations, models.PersonAllocation{
				Member:      memberRef(ta.Member),
				Pct:         ta.Pct.Float(),
				TaxableBase: ta.TaxableBase.Float(),
			})
		}
		NormalizeYearAllocations(&yd)
		years[ty.Year] = yd
	}
	return years, nil
}

func (e *Extractor) extractChecklist(ctx context.Context, payload docset.Payload) (models.Checklist, error) {
	system, user, err := prompt.Get().MustRender("authority.checklist", map[string]interface{}{
		"Documents": payload.Text,
	})
	if err != nil {
		return nil, err
	}
	raw, err := e.oracle.Invoke(ctx, user, llm.FastExtraction(system), payload.Attachments...)
	if err != nil {
		return nil, err
	}

	var parsed checklistResult
	if err := utils.Decode(raw, &parsed); err != nil {
		return nil, err
	}

	cl := models.Checklist{
		models.CategoryBank:       {ExpectedCount: parsed.Bank.ExpectedCount, Descriptions: parsed.Bank.Descriptions},
		models.CategoryInvestment: {ExpectedCount: parsed.Investment.ExpectedCount, Descriptions: parsed.Investment.Descriptions},
		models.CategoryRealEstate: {ExpectedCount: parsed.RealEstate.ExpectedCount, Descriptions: parsed.RealEstate.Descriptions},
		models.CategoryOther:      {ExpectedCount: parsed.Other.ExpectedCount, Descriptions: parsed.Other.Descriptions},
		models.CategoryDebt:       {ExpectedCount: parsed.Debt.ExpectedCount, Descriptions: parsed.Debt.Descriptions},
	}
	return cl, nil
}

// memberRef maps the oracle's member label onto an owner reference,
// defaulting to the taxpayer.
func memberRef(s string) models.OwnerRef {
	if models.OwnerRef(strings.ToLower(strings.TrimSpace(s))) == models.OwnerPartner {
		return models.OwnerPartner
	}
	return models.OwnerTaxpayer
}

// filterAuthorityDocs selects the prepared documents whose registry entry is
// an authority-facing type.
func filterAuthorityDocs(docs []models.PreparedDocument, registry []models.SourceDocumentEntry) []models.PreparedDocument {
	authoritative := make(map[string]bool)
	for _, entry := range registry {
		if entry.Type.IsAuthority() {
			authoritative[entry.ID] = true
		}
	}
	var out []models.PreparedDocument
	for _, doc := range docs {
		if authoritative[doc.ID] {
			out = append(out, doc)
		}
	}
	return out
}
