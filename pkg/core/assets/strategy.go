package assets

import (
	"context"
	"sync"

	"fiscal_blueprint/pkg/core/llm"
	"fiscal_blueprint/pkg/core/policy"
	"fiscal_blueprint/pkg/models"
)

// StageResult aggregates the output of all four category extractors.
type StageResult struct {
	ByCategory map[models.AssetCategory][]models.AssetRecord
	Debts      []models.DebtRecord
	Notes      []models.ExtractionNotes
}

// Strategy is one orchestration mode for the asset-extraction stage. The
// variant is selected once at construction, not branched on inside the stage.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, docs []models.PreparedDocument, checklist models.Checklist) *StageResult
}

// NewStrategy selects the orchestration mode. Sequential runs the extractors
// in priority order with an accumulating exclusion context; parallel runs
// them concurrently and leaves overlap to the merge stage's dedup.
func NewStrategy(oracle llm.Oracle, pol *policy.Policy, sequential bool) Strategy {
	extractors := make(map[models.AssetCategory]*CategoryExtractor, len(models.AssetCategories))
	for _, cat := range models.AssetCategories {
		extractors[cat] = NewCategoryExtractor(oracle, pol, cat)
	}
	if sequential {
		return &sequentialStrategy{extractors: extractors}
	}
	return &parallelStrategy{extractors: extractors}
}

type parallelStrategy struct {
	extractors map[models.AssetCategory]*CategoryExtractor
}

func (s *parallelStrategy) Name() string { return "parallel" }

// Extract fans out all four extractors with an empty exclusion context.
// Results share no mutable state until all complete.
func (s *parallelStrategy) Extract(ctx context.Context, docs []models.PreparedDocument, checklist models.Checklist) *StageResult {
	result := &StageResult{ByCategory: make(map[models.AssetCategory][]models.AssetRecord)}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, cat := range models.AssetCategories {
		wg.Add(1)
		go func(cat models.AssetCategory) {
			defer wg.Done()
			catResult := s.extractors[cat].Extract(ctx, docs, checklist, &models.ExclusionContext{})
			mu.Lock()
			defer mu.Unlock()
			result.ByCategory[cat] = catResult.Records
			result.Debts = append(result.Debts, catResult.Debts...)
			result.Notes = append(result.Notes, catResult.Notes)
		}(cat)
	}
	wg.Wait()

	return result
}

type sequentialStrategy struct {
	extractors map[models.AssetCategory]*CategoryExtractor
}

func (s *sequentialStrategy) Name() string { return "sequential" }

// Extract runs bank, investment, real-estate, other in order. Each stage's
// findings feed the next stage's exclusion context (read-after-write), so
// fewer duplicates reach the merge step at the cost of wall-clock time.
func (s *sequentialStrategy) Extract(ctx context.Context, docs []models.PreparedDocument, checklist models.Checklist) *StageResult {
	result := &StageResult{ByCategory: make(map[models.AssetCategory][]models.AssetRecord)}
	exclusions := &models.ExclusionContext{}

	for _, cat := range models.AssetCategories {
		catResult := s.extractors[cat].Extract(ctx, docs, checklist, exclusions)
		result.ByCategory[cat] = catResult.Records
		result.Debts = append(result.Debts, catResult.Debts...)
		result.Notes = append(result.Notes, catResult.Notes)

		for _, rec := range catResult.Records {
			exclusions.AddAsset(rec)
		}
	}

	return result
}
