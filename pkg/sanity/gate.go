// Package sanity implements C6, the LLM self-reflection pass over a
// candidate patch. It is the last stage before a patch is persisted for
// HITL review.
package sanity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adronaut/strategist-core/internal/config"
	"github.com/adronaut/strategist-core/pkg/domain"
	"github.com/adronaut/strategist-core/pkg/llm"
)

// Caller is the subset of the LLM gateway the sanity gate needs; the
// orchestrator passes its *llm.Gateway, and tests pass a stub.
type Caller interface {
	Call(ctx context.Context, task config.TaskKind, prompt string) (string, error)
}

var evidenceKeywords = []string{"evidence", "data support", "insufficient data", "unverified", "no data"}

type reviewResponse struct {
	ApprovedActions []domain.ApprovedAction `json:"approved_actions"`
	Flagged         []domain.SanityFlag     `json:"flagged"`
	OverallAssessment domain.SanityReview   `json:"overall_assessment"`
}

// Apply strips annotation/metadata fields from patch, asks the gateway's
// PATCH task (temperature 0.2, set by the gateway's task temperature
// table) to review the remainder, and merges the model's assessment back
// onto patch. A gateway or parse failure never blocks the pipeline: the
// patch proceeds with a conservative review_recommended marker instead.
func Apply(ctx context.Context, caller Caller, patch domain.StrategyPatch) domain.StrategyPatch {
	prompt := buildReviewPrompt(patch)

	raw, err := caller.Call(ctx, config.TaskPatch, prompt)
	if err != nil {
		return withGateFailure(patch)
	}

	extracted, err := llm.ExtractJSON(raw)
	if err != nil {
		return withGateFailure(patch)
	}

	encoded, err := json.Marshal(extracted)
	if err != nil {
		return withGateFailure(patch)
	}
	var review reviewResponse
	if err := json.Unmarshal(encoded, &review); err != nil {
		return withGateFailure(patch)
	}

	patch.Annotations.SanityFlags = review.Flagged
	patch.Annotations.ApprovedActions = review.ApprovedActions
	patch.SanityReview = normalizeAssessment(review.OverallAssessment)
	patch.InsufficientEvidence = anyFlagMentionsEvidence(review.Flagged)
	return patch
}

// normalizeAssessment clamps an off-schema assessment string to the
// conservative default so sanity_review is always one of the three
// recognized values.
func normalizeAssessment(assessment domain.SanityReview) domain.SanityReview {
	switch assessment {
	case domain.SanitySafe, domain.SanityReviewRecommended, domain.SanityHighRisk:
		return assessment
	default:
		return domain.SanityReviewRecommended
	}
}

func withGateFailure(patch domain.StrategyPatch) domain.StrategyPatch {
	patch.SanityReview = domain.SanityReviewRecommended
	patch.Annotations.SanityFlags = []domain.SanityFlag{{
		Reason: "sanity_gate_error",
		Risk:   domain.RiskLow,
	}}
	return patch
}

func anyFlagMentionsEvidence(flags []domain.SanityFlag) bool {
	for _, f := range flags {
		reason := strings.ToLower(f.Reason)
		for _, kw := range evidenceKeywords {
			if strings.Contains(reason, kw) {
				return true
			}
		}
	}
	return false
}

// ShouldBlock is advisory: true iff at least two flags carry risk=high.
// The workflow engine never acts on this alone; a human still decides.
func ShouldBlock(patch domain.StrategyPatch) bool {
	high := 0
	for _, f := range patch.Annotations.SanityFlags {
		if f.Risk == domain.RiskHigh {
			high++
		}
	}
	return high >= 2
}

func buildReviewPrompt(patch domain.StrategyPatch) string {
	strippable := patch
	strippable.Annotations = domain.PatchAnnotations{}
	strippable.SanityReview = ""
	strippable.InsufficientEvidence = false

	encoded, _ := json.Marshal(strippable)
	return fmt.Sprintf(`Review the following proposed marketing strategy patch for internal consistency, unjustified claims, and risk.

PATCH:
%s

Return ONLY a JSON object with exactly this shape:
{"approved_actions": [{"action_id": "...", "reasoning": "..."}], "flagged": [{"action_id": "...", "reason": "...", "risk": "high|medium|low", "recommendation": "..."}], "overall_assessment": "safe|review_recommended|high_risk"}`, string(encoded))
}
