package merge

import (
	"fmt"
	"math"
	"sort"

	"fiscal_blueprint/pkg/core/assets"
	"fiscal_blueprint/pkg/core/policy"
	"fiscal_blueprint/pkg/models"
)

// Engine applies the normalization sequence. It is pure: Normalize takes a
// blueprint and returns a new one plus a log of every removal.
type Engine struct {
	pol   *policy.Policy
	rules []Rule
}

// NewEngine creates a merge engine.
func NewEngine(pol *policy.Policy) *Engine {
	if pol == nil {
		pol = policy.Default()
	}
	return &Engine{pol: pol, rules: rulesFor(pol)}
}

// Combine folds a stage result into the blueprint's collections.
func (e *Engine) Combine(bp *models.Blueprint, stage *assets.StageResult) *models.Blueprint {
	out := cloneBlueprint(bp)
	for _, cat := range models.AssetCategories {
		out.SetAssets(cat, append(cloneAssets(out.Assets(cat)), stage.ByCategory[cat]...))
	}
	out.Debts = append(cloneDebts(out.Debts), stage.Debts...)
	return out
}

// Normalize applies, in order: negative-balance reclassification,
// cross-category dedup, pension/annuity exclusion, study-loan exclusion.
// Returns the normalized blueprint and the removal log.
func (e *Engine) Normalize(bp *models.Blueprint) (*models.Blueprint, []string) {
	out := cloneBlueprint(bp)
	var log []string

	out, log = e.reclassifyNegativeBalances(out, log)
	out, log = e.dedupAcrossCategories(out, log)
	out, log = e.applyAssetExclusions(out, log)
	out, log = e.applyDebtExclusions(out, log)

	return out, log
}

// reclassifyNegativeBalances moves revolving-credit bank records with a
// negative opening balance into the debt collection; a negative balance on
// such an instrument is debt, not an asset.
func (e *Engine) reclassifyNegativeBalances(bp *models.Blueprint, log []string) (*models.Blueprint, []string) {
	var rule Rule
	for _, r := range e.rules {
		if r.Action == ActionReclassifyAsDebt {
			rule = r
		}
	}
	if rule.Name == "" {
		return bp, log
	}

	var kept []models.AssetRecord
	for _, rec := range bp.Bank {
		if matchesVocab(rec.Description, rule.Keywords) && hasNegativeBalance(rec) {
			debt := models.DebtRecord{
				ID:           rec.ID,
				Owner:        rec.Owner,
				Description:  rec.Description,
				Lender:       rec.Institution,
				DebtType:     "revolving_credit",
				Years:        make(map[int]models.YearlyDebtData, len(rec.Years)),
				SourceDocIDs: rec.SourceDocIDs,
			}
			for y, yd := range rec.Years {
				debt.Years[y] = models.YearlyDebtData{BalanceJan1: math.Abs(yd.BalanceJan1)}
			}
			bp.Debts = append(bp.Debts, debt)
			log = append(log, fmt.Sprintf("rule %s: moved %q (%s) to debts", rule.Name, rec.Description, rec.ID))
			continue
		}
		kept = append(kept, rec)
	}
	bp.Bank = kept
	return bp, log
}

// dedupAcrossCategories removes cross-category duplicates among bank,
// investment and other records. Records group by normalized description;
// within a group, members are duplicates only when at least one shared tax
// year has matching opening balances within the rounding tolerance.
func (e *Engine) dedupAcrossCategories(bp *models.Blueprint, log []string) (*models.Blueprint, []string) {
	dedupCats := []models.AssetCategory{models.CategoryBank, models.CategoryInvestment, models.CategoryOther}

	groups := make(map[string][]dedupMember)
	var order []string
	for _, cat := range dedupCats {
		for _, rec := range bp.Assets(cat) {
			key := models.NormalizeDescription(rec.Description)
			if _, seen := groups[key]; !seen {
				order = append(order, key)
			}
			groups[key] = append(groups[key], dedupMember{rec: rec, cat: cat})
		}
	}

	dropped := make(map[string]bool)
	moved := make(map[string]models.AssetCategory) // survivor id -> target category
	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}

		// Transitive closure over the balance-match relation.
		clusters := clusterByBalance(group, e.pol.Tolerance.BalanceMatch)
		for _, cluster := range clusters {
			if len(cluster) < 2 {
				continue
			}
			best := e.bestCategory(cluster)
			keepIdx := pickSurvivor(cluster, best)
			keep := cluster[keepIdx]
			if keep.cat != best {
				moved[keep.rec.ID] = best
			}
			for i, m := range cluster {
				if i == keepIdx {
					continue
				}
				dropped[m.rec.ID] = true
				log = append(log, fmt.Sprintf(
					"dedup: kept %s (%s), removed %s (%s): same description %q, matching balance",
					keep.rec.ID, best, m.rec.ID, m.cat, keep.rec.Description))
			}
		}
	}

	if len(dropped) == 0 && len(moved) == 0 {
		return bp, log
	}
	var relocated []models.AssetRecord
	for _, cat := range dedupCats {
		var kept []models.AssetRecord
		for _, rec := range bp.Assets(cat) {
			if dropped[rec.ID] {
				continue
			}
			if target, ok := moved[rec.ID]; ok && target != cat {
				rec.Category = target
				relocated = append(relocated, rec)
				continue
			}
			kept = append(kept, rec)
		}
		bp.SetAssets(cat, kept)
	}
	for _, rec := range relocated {
		bp.SetAssets(rec.Category, append(bp.Assets(rec.Category), rec))
	}
	return bp, log
}

// dedupMember pairs a record with the collection it currently sits in.
type dedupMember struct {
	rec models.AssetRecord
	cat models.AssetCategory
}

// clusterByBalance partitions a description group into clusters of records
// whose opening balances match in at least one shared year.
func clusterByBalance(group []dedupMember, tolerance float64) [][]dedupMember {
	n := len(group)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(a, b int) { parent[find(a)] = find(b) }

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if balancesMatch(group[i].rec, group[j].rec, tolerance) {
				union(i, j)
			}
		}
	}

	byRoot := make(map[int][]dedupMember)
	var roots []int
	for i, m := range group {
		r := find(i)
		if _, seen := byRoot[r]; !seen {
			roots = append(roots, r)
		}
		byRoot[r] = append(byRoot[r], m)
	}
	sort.Ints(roots)
	out := make([][]dedupMember, 0, len(roots))
	for _, r := range roots {
		out = append(out, byRoot[r])
	}
	return out
}

// balancesMatch reports whether two records share a tax year with opening
// balances equal within tolerance.
func balancesMatch(a, b models.AssetRecord, tolerance float64) bool {
	for y, ya := range a.Years {
		if yb, ok := b.Years[y]; ok {
			if math.Abs(ya.BalanceJan1-yb.BalanceJan1) <= tolerance {
				return true
			}
		}
	}
	return false
}

// bestCategory picks the surviving category for a duplicate cluster:
// investment keyword beats bank keyword beats the majority category. The
// priority order is policy, not hard-coded.
func (e *Engine) bestCategory(cluster []dedupMember) models.AssetCategory {
	desc := cluster[0].rec.Description

	for _, catName := range e.pol.DedupPriority {
		cat := models.AssetCategory(catName)
		switch cat {
		case models.CategoryInvestment:
			if matchesVocab(desc, e.pol.InvestmentWords) {
				return cat
			}
		case models.CategoryBank:
			if matchesVocab(desc, e.pol.BankWords) {
				return cat
			}
		}
	}

	counts := make(map[models.AssetCategory]int)
	for _, m := range cluster {
		counts[m.cat]++
	}
	best := cluster[0].cat
	for cat, n := range counts {
		if n > counts[best] || (n == counts[best] && cat < best) {
			best = cat
		}
	}
	return best
}

// pickSurvivor keeps a cluster member already in the best category, breaking
// ties on the most year data; falls back to the richest member regardless of
// category.
func pickSurvivor(cluster []dedupMember, best models.AssetCategory) int {
	idx := -1
	for i, m := range cluster {
		if m.cat != best {
			continue
		}
		if idx < 0 || len(m.rec.Years) > len(cluster[idx].rec.Years) {
			idx = i
		}
	}
	if idx >= 0 {
		return idx
	}
	idx = 0
	for i, m := range cluster {
		if len(m.rec.Years) > len(cluster[idx].rec.Years) {
			idx = i
		}
	}
	return idx
}

// applyAssetExclusions removes records matching the pension/annuity
// vocabulary from every asset collection; those belong to a different tax
// regime and must never reach the category totals.
func (e *Engine) applyAssetExclusions(bp *models.Blueprint, log []string) (*models.Blueprint, []string) {
	for _, rule := range e.rules {
		if rule.Action != ActionExcludeAsset {
			continue
		}
		for _, cat := range models.AssetCategories {
			var kept []models.AssetRecord
			for _, rec := range bp.Assets(cat) {
				if matchesVocab(rec.Description, rule.Keywords) {
					log = append(log, fmt.Sprintf("rule %s: removed %s asset %q (%s)", rule.Name, cat, rec.Description, rec.ID))
					continue
				}
				kept = append(kept, rec)
			}
			bp.SetAssets(cat, kept)
		}
	}
	return bp, log
}

// applyDebtExclusions removes study-loan debts; genuine liabilities, but
// non-deductible under this regime.
func (e *Engine) applyDebtExclusions(bp *models.Blueprint, log []string) (*models.Blueprint, []string) {
	for _, rule := range e.rules {
		if rule.Action != ActionExcludeDebt {
			continue
		}
		var kept []models.DebtRecord
		for _, d := range bp.Debts {
			if debtMatchesRule(d, rule) {
				log = append(log, fmt.Sprintf("rule %s: removed debt %q (%s)", rule.Name, d.Description, d.ID))
				continue
			}
			kept = append(kept, d)
		}
		bp.Debts = kept
	}
	return bp, log
}

func cloneBlueprint(bp *models.Blueprint) *models.Blueprint {
	out := *bp
	out.Bank = cloneAssets(bp.Bank)
	out.Investments = cloneAssets(bp.Investments)
	out.RealEstate = cloneAssets(bp.RealEstate)
	out.Other = cloneAssets(bp.Other)
	out.Debts = cloneDebts(bp.Debts)
	return &out
}

func cloneAssets(in []models.AssetRecord) []models.AssetRecord {
	if in == nil {
		return nil
	}
	out := make([]models.AssetRecord, len(in))
	copy(out, in)
	return out
}

func cloneDebts(in []models.DebtRecord) []models.DebtRecord {
	if in == nil {
		return nil
	}
	out := make([]models.DebtRecord, len(in))
	copy(out, in)
	return out
}
