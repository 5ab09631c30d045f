// Package heuristics implements C5, the budget/audience/creative rule
// checks and auto-downscope pass that runs between PATCH generation and
// the sanity gate. Every function here is a pure function over patch
// JSON; no I/O.
package heuristics

import (
	"fmt"

	"github.com/adronaut/strategist-core/pkg/domain"
)

const budgetShiftBoundPercent = 25.0

// ValidationResult is C5's validate_patch output.
type ValidationResult struct {
	Passed         bool
	HeuristicFlags []string
	BudgetFlags    []string
	AudienceFlags  []string
	CreativeFlags  []string
}

func (v ValidationResult) allFlags() []string {
	var all []string
	all = append(all, v.BudgetFlags...)
	all = append(all, v.AudienceFlags...)
	all = append(all, v.CreativeFlags...)
	return all
}

// ValidatePatch runs the three rule checks from spec.md §4.5 against
// patch and reports whether it passed unconditionally.
func ValidatePatch(patch domain.StrategyPatch) ValidationResult {
	budgetFlags, _ := checkBudget(patch)
	audienceFlags := checkAudience(patch)
	creativeFlags := checkCreative(patch)

	result := ValidationResult{
		BudgetFlags:   budgetFlags,
		AudienceFlags: audienceFlags,
		CreativeFlags: creativeFlags,
	}
	result.HeuristicFlags = result.allFlags()
	result.Passed = len(result.HeuristicFlags) == 0
	return result
}

// checkBudget sums the absolute percentage shifts in
// budget_allocation.channel_breakdown relative to a baseline. The baseline
// is read from budget_allocation.baseline when present; otherwise an
// equal-distribution baseline is assumed across the channels present.
func checkBudget(patch domain.StrategyPatch) ([]string, float64) {
	breakdown, ok := patch.BudgetAllocation["channel_breakdown"].(map[string]interface{})
	if !ok || len(breakdown) == 0 {
		return nil, 0
	}

	baseline, _ := patch.BudgetAllocation["baseline"].(map[string]interface{})
	equalShare := 100.0 / float64(len(breakdown))

	var totalShift float64
	for channel, raw := range breakdown {
		proposed := toFloat(raw)
		base := equalShare
		if baseline != nil {
			if bv, ok := baseline[channel]; ok {
				base = toFloat(bv)
			}
		}
		totalShift += abs(proposed - base)
	}

	if totalShift > budgetShiftBoundPercent {
		return []string{fmt.Sprintf("budget_shift_exceeds_25_percent: total_shift=%.1f%%", totalShift)}, totalShift
	}
	return nil, totalShift
}

// checkAudience flags any (location, age) tuple that appears more than
// once across audience_targeting.segments.
func checkAudience(patch domain.StrategyPatch) []string {
	segments, ok := patch.AudienceTargeting["segments"].([]interface{})
	if !ok {
		return nil
	}

	type tuple struct{ location, age string }
	seen := make(map[tuple]bool)
	flagged := make(map[tuple]bool)
	var flags []string

	for _, raw := range segments {
		seg, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		t := tuple{location: toString(seg["location"]), age: toString(seg["age"])}
		if seen[t] && !flagged[t] {
			flags = append(flags, fmt.Sprintf("overlapping_segment: location='%s', age='%s'", t.location, t.age))
			flagged[t] = true
		}
		seen[t] = true
	}
	return flags
}

// checkCreative flags when key_themes exceeds |segments| * 3. The
// comparison itself is delegated to the OPA-evaluated creative cap
// policy (policy.go); a policy evaluation error is treated as "no flag"
// since heuristic checks must never block the pipeline on their own
// infrastructure failure.
func checkCreative(patch domain.StrategyPatch) []string {
	themes, _ := patch.MessagingStrategy["key_themes"].([]interface{})
	segments, _ := patch.AudienceTargeting["segments"].([]interface{})

	exceeds, err := evaluateCreativeCap(len(themes), len(segments))
	if err != nil || !exceeds {
		return nil
	}
	return []string{fmt.Sprintf("excessive_creatives: %d themes for %d segments", len(themes), len(segments))}
}

// DownscopeIfNeeded attempts to fix a failing patch in place: it scales
// all budget shifts by 0.8 up to 3 iterations, and truncates key_themes to
// the allowed maximum. Audience overlaps are never auto-resolved. Returns
// the (possibly mutated) patch and whether it was modified; the
// re-validation result is recorded in the patch's annotations.
func DownscopeIfNeeded(patch domain.StrategyPatch, validation ValidationResult) (domain.StrategyPatch, bool) {
	if validation.Passed {
		return patch, false
	}

	modified := false

	if len(validation.BudgetFlags) > 0 {
		if scaleBudgetDownToBound(&patch) {
			modified = true
		}
	}
	if len(validation.CreativeFlags) > 0 {
		if truncateThemes(&patch) {
			modified = true
		}
	}

	revalidated := ValidatePatch(patch)
	patch.Annotations.AutoDownscoped = modified
	patch.Annotations.RequiresHITLReview = !revalidated.Passed || len(revalidated.AudienceFlags) > 0
	patch.Annotations.HeuristicFlags = revalidated.HeuristicFlags

	return patch, modified
}

// scaleBudgetDownToBound scales every channel's shift toward its baseline
// by 0.8 per iteration, up to 3 iterations, until the total shift is
// within bound.
func scaleBudgetDownToBound(patch *domain.StrategyPatch) bool {
	breakdown, ok := patch.BudgetAllocation["channel_breakdown"].(map[string]interface{})
	if !ok {
		return false
	}
	baseline, _ := patch.BudgetAllocation["baseline"].(map[string]interface{})
	equalShare := 100.0 / float64(len(breakdown))

	scaled := false
	for i := 0; i < 3; i++ {
		_, totalShift := checkBudget(*patch)
		if totalShift <= budgetShiftBoundPercent {
			break
		}
		for channel, raw := range breakdown {
			proposed := toFloat(raw)
			base := equalShare
			if baseline != nil {
				if bv, ok := baseline[channel]; ok {
					base = toFloat(bv)
				}
			}
			shifted := base + (proposed-base)*0.8
			breakdown[channel] = shifted
		}
		scaled = true
	}
	patch.BudgetAllocation["channel_breakdown"] = breakdown
	return scaled
}

func truncateThemes(patch *domain.StrategyPatch) bool {
	themes, ok := patch.MessagingStrategy["key_themes"].([]interface{})
	if !ok {
		return false
	}
	segments, _ := patch.AudienceTargeting["segments"].([]interface{})
	maxAllowed := len(segments) * 3
	if len(themes) <= maxAllowed {
		return false
	}
	patch.MessagingStrategy["key_themes"] = themes[:maxAllowed]
	return true
}

// ShouldRequireHITLReview mirrors the annotation rule for callers that
// only have a ValidationResult.
func ShouldRequireHITLReview(validation ValidationResult, stillFailing bool) bool {
	return stillFailing || len(validation.AudienceFlags) > 0
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
