// Package classify assigns each prepared document a type, candidate tax years
// and coarse asset hints, producing the blueprint's document registry. One
// oracle call per document, issued in bounded batches; a document that cannot
// be classified degrades to filename hints and finally to an unclassified
// entry, never to a pipeline failure.
package classify

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"fiscal_blueprint/pkg/core/llm"
	"fiscal_blueprint/pkg/core/policy"
	"fiscal_blueprint/pkg/core/prompt"
	"fiscal_blueprint/pkg/core/utils"
	"fiscal_blueprint/pkg/models"
)

// lowConfidence marks results worth a classification warning.
const lowConfidence = 0.5

// maxTextForClassification bounds the document excerpt sent per call.
const maxTextForClassification = 12000

// Classifier runs the classification stage.
type Classifier struct {
	oracle llm.Oracle
	pol    *policy.Policy
}

// NewClassifier creates a classifier.
func NewClassifier(oracle llm.Oracle, pol *policy.Policy) *Classifier {
	if pol == nil {
		pol = policy.Default()
	}
	return &Classifier{oracle: oracle, pol: pol}
}

// Result is the registry plus classification warnings.
type Result struct {
	Registry []models.SourceDocumentEntry
	Warnings []string
}

// classification is the parsed shape of one oracle reply.
type classification struct {
	Type       string   `json:"type"`
	Years      []int    `json:"years"`
	Persons    []string `json:"persons"`
	AssetHints []string `json:"asset_hints"`
	Confidence float64  `json:"confidence" validate:"gte=0,lte=1"`
}

// Classify processes documents in small concurrent batches. The batch size
// bounds simultaneous oracle calls; the stage never errors because of one
// unclassifiable document.
func (c *Classifier) Classify(ctx context.Context, docs []models.PreparedDocument) *Result {
	result := &Result{Registry: make([]models.SourceDocumentEntry, len(docs))}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.pol.ClassifyBatchSize)

	for i, doc := range docs {
		g.Go(func() error {
			entry, warning := c.classifyOne(gctx, doc)
			mu.Lock()
			result.Registry[i] = entry
			if warning != "" {
				result.Warnings = append(result.Warnings, warning)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; degradation is per document

	return result
}

// classifyOne runs the oracle call with fallbacks and cross-checks the result
// against filename hints.
func (c *Classifier) classifyOne(ctx context.Context, doc models.PreparedDocument) (models.SourceDocumentEntry, string) {
	entry := models.SourceDocumentEntry{
		ID:            doc.ID,
		Filename:      doc.Filename,
		Type:          models.DocUnclassified,
		HasUsableText: doc.HasUsableText,
	}

	cls, err := c.callOracle(ctx, doc)
	if err != nil {
		fmt.Printf("Warning: classification failed for %s: %v (falling back to filename)\n", doc.Filename, err)
		entry.Type = typeFromFilename(doc.Filename)
		entry.Years = yearsFromFilename(doc.Filename)
		if entry.Type == models.DocUnclassified {
			entry.Confidence = 0
			return entry, fmt.Sprintf("document %s could not be classified", doc.Filename)
		}
		entry.Confidence = 0.3 // filename-derived, low trust
		return entry, ""
	}

	entry.Type = parseDocumentType(cls.Type)
	entry.Years = cls.Years
	entry.Persons = cls.Persons
	entry.AssetHints = cls.AssetHints
	entry.Confidence = cls.Confidence
	if len(entry.Years) == 0 {
		entry.Years = yearsFromFilename(doc.Filename)
	}

	// Cross-check, not override: a filename that strongly implies a type the
	// model did not select is flagged for the operator.
	if hinted := typeFromFilename(doc.Filename); hinted != models.DocUnclassified && hinted != entry.Type {
		return entry, fmt.Sprintf("document %s: filename suggests %s but classified as %s", doc.Filename, hinted, entry.Type)
	}
	if entry.Confidence < lowConfidence {
		return entry, fmt.Sprintf("document %s classified as %s with low confidence %.2f", doc.Filename, entry.Type, entry.Confidence)
	}
	return entry, ""
}

func (c *Classifier) callOracle(ctx context.Context, doc models.PreparedDocument) (*classification, error) {
	text := doc.Text
	if len(text) > maxTextForClassification {
		text = text[:maxTextForClassification] + "... [truncated]"
	}

	system, user, err := prompt.Get().MustRender("classify.document", map[string]interface{}{
		"Filename": doc.Filename,
		"Text":     text,
	})
	if err != nil {
		return nil, err
	}

	var attachments []llm.Attachment
	if !doc.HasUsableText {
		attachments = append(attachments, llm.Attachment{
			MediaType: doc.MediaType,
			Filename:  doc.Filename,
			Bytes:     doc.Bytes,
		})
	}

	raw, err := c.oracle.Invoke(ctx, user, llm.FastExtraction(system), attachments...)
	if err != nil {
		return nil, err
	}

	var cls classification
	if err := utils.DecodeValidated(raw, &cls); err != nil {
		return nil, err
	}
	return &cls, nil
}

func parseDocumentType(s string) models.DocumentType {
	switch models.DocumentType(s) {
	case models.DocTaxReturn, models.DocFinalAssessment, models.DocProvisionalAssmnt,
		models.DocBankStatement, models.DocInvestmentStatement, models.DocPropertyValuation,
		models.DocMortgageStatement, models.DocLoanStatement:
		return models.DocumentType(s)
	}
	return models.DocUnclassified
}
