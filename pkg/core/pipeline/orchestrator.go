// Package pipeline wires the extraction stages into one run over a dossier.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"fiscal_blueprint/pkg/core/assets"
	"fiscal_blueprint/pkg/core/authority"
	"fiscal_blueprint/pkg/core/calc"
	"fiscal_blueprint/pkg/core/classify"
	"fiscal_blueprint/pkg/core/llm"
	"fiscal_blueprint/pkg/core/merge"
	"fiscal_blueprint/pkg/core/policy"
	"fiscal_blueprint/pkg/core/prepare"
	"fiscal_blueprint/pkg/core/validate"
	"fiscal_blueprint/pkg/models"
)

// BlueprintRepository persists blueprint versions per dossier.
// Implementations may store in Postgres or keep everything in memory for
// tests; the pipeline works without one.
type BlueprintRepository interface {
	NextVersion(ctx context.Context, dossierID string) (int, error)
	Save(ctx context.Context, bp *models.Blueprint) error
}

// ProgressFunc observes stage transitions. It must not block for long and
// has no way to influence the run.
type ProgressFunc func(stage string, step, totalSteps int, message string, subProgress float64)

// StepResult records the outcome of one pipeline stage.
type StepResult struct {
	Stage    string
	Degraded bool     // the stage recorded at least one non-fatal error
	Errors   []string // the degradations this stage contributed
	Elapsed  time.Duration
}

// RunResult is everything one pipeline run produced.
type RunResult struct {
	Blueprint   *models.Blueprint
	Checks      []models.ValidationCheck
	StepResults []StepResult // one entry per stage, in execution order
	Errors      []string     // non-fatal degradations, in stage order
	MergeLog    []string
	Elapsed     time.Duration
}

// Orchestrator manages the end-to-end flow:
// Prepare -> Classify -> Authority -> Assets -> Merge -> Calc -> Validate -> Anomaly.
type Orchestrator struct {
	preparer   *prepare.Preparer
	classifier *classify.Classifier
	authority  *authority.Extractor
	strategy   assets.Strategy
	merger     *merge.Engine
	calculator *calc.Engine
	validator  *validate.Validator
	reconciler *validate.Reconciler
	anomalies  *validate.AnomalyScanner
	repo       BlueprintRepository
	progress   ProgressFunc
}

// NewOrchestrator creates an orchestrator with all stages wired up.
// textExtractor may be nil when only scans without a text layer are expected.
// sequential selects the accumulating-exclusion asset strategy instead of the
// concurrent one.
func NewOrchestrator(oracle llm.Oracle, textExtractor prepare.TextExtractor, pol *policy.Policy, sequential bool) *Orchestrator {
	if pol == nil {
		pol = policy.Default()
	}
	return &Orchestrator{
		preparer:   prepare.NewPreparer(textExtractor, pol),
		classifier: classify.NewClassifier(oracle, pol),
		authority:  authority.NewExtractor(oracle, pol),
		strategy:   assets.NewStrategy(oracle, pol, sequential),
		merger:     merge.NewEngine(pol),
		calculator: calc.NewEngine(pol),
		validator:  validate.NewValidator(pol),
		reconciler: validate.NewReconciler(oracle, pol),
		anomalies:  validate.NewAnomalyScanner(oracle),
	}
}

// SetRepository injects blueprint persistence. Without one the run still
// completes; the result is only returned, not stored.
func (o *Orchestrator) SetRepository(repo BlueprintRepository) {
	o.repo = repo
}

// SetProgress installs the progress observer.
func (o *Orchestrator) SetProgress(fn ProgressFunc) {
	o.progress = fn
}

const totalSteps = 8

func (o *Orchestrator) report(stage string, step int, message string, sub float64) {
	if o.progress != nil {
		o.progress(stage, step, totalSteps, message, sub)
	}
}

// Run executes the full pipeline over the dossier documents and produces the
// next blueprint version. Stage failures degrade into recorded errors; the
// only fatal condition is a dossier with nothing the pipeline can read or
// classify. freeTextContext is optional client-provided background handed to
// the anomaly scan.
func (o *Orchestrator) Run(ctx context.Context, dossierID string, docs []models.RawDocument, freeTextContext string) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{}
	fmt.Printf("Starting pipeline for dossier %s (%d documents)...\n", dossierID, len(docs))

	if len(docs) == 0 {
		return nil, fmt.Errorf("dossier %s contains no documents", dossierID)
	}

	stepStart := time.Now()
	seenErrs := 0
	endStep := func(stage string) {
		errs := append([]string(nil), result.Errors[seenErrs:]...)
		result.StepResults = append(result.StepResults, StepResult{
			Stage:    stage,
			Degraded: len(errs) > 0,
			Errors:   errs,
			Elapsed:  time.Since(stepStart),
		})
		stepStart = time.Now()
		seenErrs = len(result.Errors)
	}

	// 1. Prepare
	o.report("prepare", 1, "extracting document text", 0)
	prepared := o.preparer.Prepare(ctx, docs)
	endStep("prepare")

	// 2. Classify
	o.report("classify", 2, "classifying documents", 0)
	classified := o.classifier.Classify(ctx, prepared)
	result.Errors = append(result.Errors, classified.Warnings...)

	usable := 0
	for i, entry := range classified.Registry {
		if entry.Type != models.DocUnclassified || prepared[i].HasUsableText {
			usable++
		}
	}
	if usable == 0 {
		return nil, fmt.Errorf("dossier %s: no document could be read or classified", dossierID)
	}

	version := 1
	if o.repo != nil {
		v, err := o.repo.NextVersion(ctx, dossierID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("version lookup failed: %v", err))
		} else {
			version = v
		}
	}
	bp := models.NewBlueprint(dossierID, version)
	bp.Documents = classified.Registry
	endStep("classify")

	// 3. Authority facets
	o.report("authority", 3, "extracting official totals and identity", 0)
	auth := o.authority.Extract(ctx, prepared, classified.Registry)
	bp.Entity = auth.Entity
	bp.Authority = auth.Years
	bp.Checklist = auth.Checklist
	result.Errors = append(result.Errors, auth.Errors...)
	endStep("authority")

	// 4. Category extraction
	o.report("assets", 4, fmt.Sprintf("extracting assets (%s strategy)", o.strategy.Name()), 0)
	stage := o.strategy.Extract(ctx, prepared, bp.Checklist)
	bp = o.merger.Combine(bp, stage)
	for _, n := range stage.Notes {
		if n.ErrorMessage != "" {
			result.Errors = append(result.Errors, fmt.Sprintf("%s extraction: %s", n.Category, n.ErrorMessage))
		}
	}
	markUsed(bp, stage)
	endStep("assets")

	// 5. Merge and normalize
	o.report("merge", 5, "normalizing and deduplicating", 0)
	bp, mergeLog := o.merger.Normalize(bp)
	result.MergeLog = mergeLog
	bp.Flags = append(bp.Flags, mergeLog...)
	endStep("merge")

	// 6. Calculation
	o.report("calc", 6, "comparing actual against deemed return", 0)
	bp.Summaries = o.calculator.Summarize(bp)
	endStep("calc")

	// 7. Validation with one optional repair pass
	o.report("validate", 7, "running consistency checks", 0)
	checks := o.validator.Run(bp, stage.Notes)
	if validate.NeedsReconciliation(checks) {
		o.report("validate", 7, "reconciling discrepancies", 0.5)
		fmt.Printf("Validation found gaps for dossier %s. Running reconciliation pass...\n", dossierID)
		outcome := o.reconciler.Reconcile(ctx, bp, prepared, checks)
		if outcome.Admitted > 0 {
			// Admitted records go through the same normalization and the
			// derived numbers are rebuilt before re-validating.
			bp, mergeLog = o.merger.Normalize(bp)
			result.MergeLog = append(result.MergeLog, mergeLog...)
			bp.Summaries = o.calculator.Summarize(bp)
			checks = o.validator.Run(bp, stage.Notes)
		}
		checks = append(checks, outcome.Check())
	}
	endStep("validate")

	// 8. Advisory anomaly scan
	o.report("anomaly", 8, "scanning for anomalies", 0)
	checks = append(checks, o.anomalies.Scan(ctx, bp, freeTextContext)...)
	endStep("anomaly")

	bp.Checks = checks
	result.Blueprint = bp
	result.Checks = checks
	result.Elapsed = time.Since(start)

	if o.repo != nil {
		if err := o.repo.Save(ctx, bp); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("blueprint save failed: %v", err))
		}
	}

	fmt.Printf("Pipeline finished for dossier %s: version %d, %d checks, %d degradations (%.1fs)\n",
		dossierID, bp.Version, len(checks), len(result.Errors), result.Elapsed.Seconds())
	return result, nil
}

// SingleResult is the outcome of extracting one document outside a full run.
type SingleResult struct {
	Entry     models.SourceDocumentEntry
	Authority *authority.Result
	Stage     *assets.StageResult
}

// ExtractSingle classifies one document and runs only the extractor its type
// calls for. Useful when a client uploads one late statement into an
// existing dossier.
func (o *Orchestrator) ExtractSingle(ctx context.Context, doc models.RawDocument) (*SingleResult, error) {
	prepared := o.preparer.Prepare(ctx, []models.RawDocument{doc})
	classified := o.classifier.Classify(ctx, prepared)
	entry := classified.Registry[0]

	if entry.Type == models.DocUnclassified && !prepared[0].HasUsableText {
		return nil, fmt.Errorf("document %s could not be read or classified", doc.Filename)
	}

	out := &SingleResult{Entry: entry}
	if entry.Type.IsAuthority() {
		out.Authority = o.authority.Extract(ctx, prepared, classified.Registry)
		return out, nil
	}
	out.Stage = o.strategy.Extract(ctx, prepared, checklistFor(entry))
	return out, nil
}

// checklistFor builds a minimal checklist so a single-document extraction
// still gets hint descriptions from the classification pass.
func checklistFor(entry models.SourceDocumentEntry) models.Checklist {
	cl := make(models.Checklist)
	cat := categoryForDocType(entry.Type)
	if cat == "" {
		return cl
	}
	cl[cat] = models.ChecklistCategory{
		ExpectedCount: 1,
		Descriptions:  entry.AssetHints,
	}
	return cl
}

func categoryForDocType(t models.DocumentType) models.AssetCategory {
	switch t {
	case models.DocBankStatement:
		return models.CategoryBank
	case models.DocInvestmentStatement:
		return models.CategoryInvestment
	case models.DocPropertyValuation:
		return models.CategoryRealEstate
	case models.DocMortgageStatement, models.DocLoanStatement:
		return models.CategoryOther
	default:
		return ""
	}
}

// markUsed flips the registry flag on every document an extractor consumed.
func markUsed(bp *models.Blueprint, stage *assets.StageResult) {
	used := make(map[string]bool)
	for _, recs := range stage.ByCategory {
		for _, rec := range recs {
			for _, id := range rec.SourceDocIDs {
				used[id] = true
			}
		}
	}
	for _, d := range stage.Debts {
		for _, id := range d.SourceDocIDs {
			used[id] = true
		}
	}
	for i := range bp.Documents {
		if bp.Documents[i].Type.IsAuthority() || used[bp.Documents[i].ID] {
			bp.Documents[i].UsedForExtraction = true
		}
	}
}
