// Package insights implements C4, the deterministic rubric scoring and
// top-k selection stage between the INSIGHTS and PATCH_GENERATION steps.
package insights

import (
	"math"
	"sort"

	"github.com/adronaut/strategist-core/internal/validation"
	"github.com/adronaut/strategist-core/pkg/domain"
)

// Validate reports whether candidate satisfies every invariant in
// spec.md §4.4. The field-level schema (required fields, enums,
// confidence range) is checked through the validate tags on
// domain.InsightCandidate; the cross-field rules — evidence_refs non-nil
// and the weak-evidence discipline (learning keyword, confidence cap) —
// cannot be expressed as tags and are checked here.
func Validate(c domain.InsightCandidate) bool {
	if err := validation.ValidateStruct(&c); err != nil {
		return false
	}
	if c.EvidenceRefs == nil {
		return false
	}
	if c.DataSupport == domain.SupportWeak {
		if !validation.ContainsLearningKeyword(c.ProposedAction) {
			return false
		}
		if c.Confidence > 0.4 {
			return false
		}
	}
	return true
}

// Score applies the deterministic rubric from spec.md §4.4 and normalizes
// the raw point total into [0,100]. Score does not itself validate c;
// callers must run Validate first.
func Score(c domain.InsightCandidate) int {
	var raw float64

	if len(c.EvidenceRefs) > 0 {
		raw += 2
	}
	switch c.DataSupport {
	case domain.SupportStrong:
		raw += 2
	case domain.SupportModerate:
		raw += 1
	}
	if c.ExpectedEffect.Direction != "" && c.ExpectedEffect.Magnitude != "" {
		raw += 1
	}
	if domain.IsValidLever(c.PrimaryLever) {
		raw += 1
	}
	if c.DataSupport == domain.SupportWeak && !validation.ContainsLearningKeyword(c.ProposedAction) {
		raw -= 1
	}

	normalized := int(math.Round(raw * 12.5))
	if normalized < 0 {
		return 0
	}
	if normalized > 100 {
		return 100
	}
	return normalized
}

// SelectTop validates every candidate, scores the valid ones, sorts by
// score descending with a stable tie-break on original input index, and
// returns the first k (default 3) with impact_rank/impact_score assigned.
// If fewer than k candidates validate, SelectTop returns what remains; the
// caller treats a short result as insufficient.
func SelectTop(candidates []domain.InsightCandidate, k int) domain.InsightsResult {
	if k <= 0 {
		k = 3
	}

	type scored struct {
		candidate domain.InsightCandidate
		score     int
		index     int
	}

	var valid []scored
	for i, c := range candidates {
		if Validate(c) {
			valid = append(valid, scored{candidate: c, score: Score(c), index: i})
		}
	}

	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].score != valid[j].score {
			return valid[i].score > valid[j].score
		}
		return valid[i].index < valid[j].index
	})

	if len(valid) > k {
		valid = valid[:k]
	}

	result := domain.InsightsResult{
		CandidatesEvaluated: len(candidates),
		SelectionMethod:     domain.SelectionMethodDeterministicRubric,
	}
	for rank, s := range valid {
		c := s.candidate
		c.ImpactRank = rank + 1
		c.ImpactScore = s.score
		result.Insights = append(result.Insights, c)
	}
	return result
}
