package authority

import (
	"encoding/json"
	"fmt"
	"math"

	"fiscal_blueprint/pkg/models"
)

// FlexNumber coerces the heterogeneous numeric shapes authority documents
// yield through extraction: a raw number, a numeric string, or an object
// wrapping the number under "value" or "amount".
type FlexNumber float64

// UnmarshalJSON implements the coercion.
func (f *FlexNumber) UnmarshalJSON(data []byte) error {
	var direct float64
	if err := json.Unmarshal(data, &direct); err == nil {
		*f = FlexNumber(direct)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		var parsed float64
		if _, err := fmt.Sscanf(str, "%f", &parsed); err == nil {
			*f = FlexNumber(parsed)
			return nil
		}
		*f = 0
		return nil
	}

	var wrapped struct {
		Value  *float64 `json:"value"`
		Amount *float64 `json:"amount"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil {
		switch {
		case wrapped.Value != nil:
			*f = FlexNumber(*wrapped.Value)
		case wrapped.Amount != nil:
			*f = FlexNumber(*wrapped.Amount)
		default:
			*f = 0
		}
		return nil
	}

	return fmt.Errorf("cannot coerce %s to a number", string(data))
}

// Float returns the coerced value.
func (f FlexNumber) Float() float64 { return float64(f) }

// NormalizeAllocations enforces the allocation invariant: with a partner
// present the two percentages sum to exactly 100. Recomputed from the
// relative taxable-base shares when available, else an equal split. A
// correction note is emitted either way.
func NormalizeAllocations(entity *models.FiscalEntity, taxpayerBase, partnerBase float64) {
	if entity.Partner == nil {
		if entity.Taxpayer.AllocationPct != 100 {
			entity.Taxpayer.AllocationPct = 100
			entity.CorrectionNotes = append(entity.CorrectionNotes,
				"allocation set to 100% for single taxpayer")
		}
		return
	}

	sum := entity.Taxpayer.AllocationPct + entity.Partner.AllocationPct
	if math.Abs(sum-100) < 0.01 && entity.Taxpayer.AllocationPct >= 0 && entity.Partner.AllocationPct >= 0 {
		return
	}

	if taxpayerBase+partnerBase > 0 {
		share := taxpayerBase / (taxpayerBase + partnerBase) * 100
		entity.Taxpayer.AllocationPct = round2(share)
		entity.Partner.AllocationPct = round2(100 - share)
		entity.CorrectionNotes = append(entity.CorrectionNotes, fmt.Sprintf(
			"allocation percentages summed to %.1f; recomputed from taxable-base shares", sum))
		return
	}

	entity.Taxpayer.AllocationPct = 50
	entity.Partner.AllocationPct = 50
	entity.CorrectionNotes = append(entity.CorrectionNotes, fmt.Sprintf(
		"allocation percentages summed to %.1f; fell back to an equal split", sum))
}

// NormalizeYearAllocations enforces the same 100%-sum invariant on the
// per-year allocation breakdown.
func NormalizeYearAllocations(yd *models.TaxAuthorityYearData) {
	if len(yd.Allocations) == 0 {
		return
	}
	var sum float64
	for _, a := range yd.Allocations {
		sum += a.Pct
	}
	if math.Abs(sum-100) < 0.01 {
		return
	}

	if sum > 0 {
		for i := range yd.Allocations {
			yd.Allocations[i].Pct = round2(yd.Allocations[i].Pct / sum * 100)
		}
	} else {
		equal := round2(100 / float64(len(yd.Allocations)))
		for i := range yd.Allocations {
			yd.Allocations[i].Pct = equal
		}
	}
	// Push rounding residue into the first entry so the sum is exact.
	var newSum float64
	for _, a := range yd.Allocations {
		newSum += a.Pct
	}
	yd.Allocations[0].Pct = round2(yd.Allocations[0].Pct + 100 - newSum)

	yd.Notes = append(yd.Notes, fmt.Sprintf(
		"year %d allocation percentages summed to %.1f; rescaled to 100", yd.Year, sum))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
