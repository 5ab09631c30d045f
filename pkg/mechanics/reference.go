// Package mechanics holds the static marketing-mechanics reference
// material injected verbatim into INSIGHTS and PATCH prompts. Nothing
// here touches I/O; the two string blocks are immutable constants and the
// helpers are trivial lookups; C4 and C5 do not call them.
package mechanics

import "strings"

// MECHANICS_CHEAT_SHEET maps each metric family to its primary and
// secondary levers, defines the magnitude bands used in ExpectedEffect,
// and states the action rules an insight must obey.
const MECHANICS_CHEAT_SHEET = `METRIC -> LEVER MAPPING
- CTR (click-through rate): primary=creative, secondary=audience
- CVR (conversion rate): primary=funnel, secondary=creative
- CPC (cost per click): primary=bidding, secondary=audience
- CPA (cost per acquisition): primary=bidding, secondary=funnel
- ROAS (return on ad spend): primary=budget, secondary=bidding
- Impressions/reach: primary=budget, secondary=audience
- Revenue/orders: primary=funnel, secondary=budget

MAGNITUDE BANDS
- small: 5-15% expected change
- medium: 15-30% expected change
- large: >30% expected change

ACTION RULES
1. One primary lever per recommendation; do not mix levers in a single action.
2. Lever choice must be justified by the evidence cited, not by convention.
3. Weak evidence requires a learn-first action (pilot/test/experiment/a-b/validate/trial), never a full commitment.`

// UNIVERSAL_MECHANICS lists seven platform-agnostic performance patterns
// an LLM should consider when proposing insights, independent of the
// specific ad platform the data came from.
const UNIVERSAL_MECHANICS = `1. Efficiency outliers: segments performing at >=2x the median efficiency metric deserve scaling; segments at <=0.5x deserve review.
2. Waste elimination: poor efficiency combined with high cost is the strongest signal to cut or pause a segment.
3. Comparative gap closure: when a suggested/recommended value diverges materially from the current value, closing that gap is usually low-risk.
4. Volume x efficiency matrix: classify segments into high/low volume crossed with high/low efficiency; each quadrant implies a different action (scale, optimize, harvest, cut).
5. Pareto concentration: a small share of segments usually drives most of the volume or spend; prioritize insights there first.
6. Metric correlation: look for metrics that move together (e.g. CPC and CTR inversely) before attributing causality to either alone.
7. Low-data segments: segments with fewer than 10 observations should be treated as weak evidence regardless of how extreme their numbers look.`

// metricLevers mirrors the mapping documented in MECHANICS_CHEAT_SHEET for
// programmatic lookup.
var metricLevers = map[string]struct{ Primary, Secondary string }{
	"ctr":         {"creative", "audience"},
	"cvr":         {"funnel", "creative"},
	"cpc":         {"bidding", "audience"},
	"cpa":         {"bidding", "funnel"},
	"roas":        {"budget", "bidding"},
	"impressions": {"budget", "audience"},
	"reach":       {"budget", "audience"},
	"revenue":     {"funnel", "budget"},
	"orders":      {"funnel", "budget"},
}

// GetMechanicsForMetric returns the primary and secondary lever recognized
// for metric, matching case-insensitively and by substring (e.g. "roas_7d"
// matches "roas"). Returns ok=false for an unrecognized metric.
func GetMechanicsForMetric(metric string) (primary, secondary string, ok bool) {
	name := strings.ToLower(strings.TrimSpace(metric))
	if levers, found := metricLevers[name]; found {
		return levers.Primary, levers.Secondary, true
	}
	for key, levers := range metricLevers {
		if strings.Contains(name, key) {
			return levers.Primary, levers.Secondary, true
		}
	}
	return "", "", false
}

// ValidateLeverChoice reports whether lever is a recognized primary or
// secondary lever for metric. An unrecognized metric always returns false.
func ValidateLeverChoice(lever, metric string) bool {
	primary, secondary, ok := GetMechanicsForMetric(metric)
	if !ok {
		return false
	}
	lever = strings.ToLower(strings.TrimSpace(lever))
	return lever == primary || lever == secondary
}
