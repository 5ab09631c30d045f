package sanity

import (
	"context"
	"errors"
	"testing"

	"github.com/adronaut/strategist-core/internal/config"
	"github.com/adronaut/strategist-core/pkg/domain"
)

type stubCaller struct {
	response string
	err      error
}

func (s stubCaller) Call(ctx context.Context, task config.TaskKind, prompt string) (string, error) {
	return s.response, s.err
}

func TestApplyMergesReviewResponse(t *testing.T) {
	caller := stubCaller{response: `{"approved_actions":[{"action_id":"a1","reasoning":"backed by evidence"}],"flagged":[{"action_id":"a2","reason":"no data to support this claim","risk":"high","recommendation":"cut"}],"overall_assessment":"review_recommended"}`}

	patch := domain.StrategyPatch{}
	got := Apply(context.Background(), caller, patch)

	if got.SanityReview != domain.SanityReviewRecommended {
		t.Fatalf("SanityReview = %q", got.SanityReview)
	}
	if len(got.Annotations.SanityFlags) != 1 {
		t.Fatalf("SanityFlags = %+v", got.Annotations.SanityFlags)
	}
	if !got.InsufficientEvidence {
		t.Fatal("expected InsufficientEvidence = true from the evidence-keyword flag reason")
	}
}

func TestApplyGracefullyDegradesOnGatewayFailure(t *testing.T) {
	caller := stubCaller{err: errors.New("provider down")}
	got := Apply(context.Background(), caller, domain.StrategyPatch{})

	if got.SanityReview != domain.SanityReviewRecommended {
		t.Fatalf("SanityReview = %q, want review_recommended on gate failure", got.SanityReview)
	}
	if len(got.Annotations.SanityFlags) != 1 || got.Annotations.SanityFlags[0].Reason != "sanity_gate_error" {
		t.Fatalf("SanityFlags = %+v", got.Annotations.SanityFlags)
	}
}

func TestApplyGracefullyDegradesOnParseFailure(t *testing.T) {
	caller := stubCaller{response: "not json at all"}
	got := Apply(context.Background(), caller, domain.StrategyPatch{})

	if got.SanityReview != domain.SanityReviewRecommended {
		t.Fatalf("SanityReview = %q", got.SanityReview)
	}
}

func TestShouldBlockRequiresTwoHighRiskFlags(t *testing.T) {
	patch := domain.StrategyPatch{
		Annotations: domain.PatchAnnotations{
			SanityFlags: []domain.SanityFlag{
				{Risk: domain.RiskHigh},
				{Risk: domain.RiskMedium},
			},
		},
	}
	if ShouldBlock(patch) {
		t.Fatal("expected ShouldBlock = false with only one high-risk flag")
	}

	patch.Annotations.SanityFlags = append(patch.Annotations.SanityFlags, domain.SanityFlag{Risk: domain.RiskHigh})
	if !ShouldBlock(patch) {
		t.Fatal("expected ShouldBlock = true with two high-risk flags")
	}
}

func TestApplyNormalizesOffSchemaAssessment(t *testing.T) {
	caller := stubCaller{response: `{"approved_actions":[],"flagged":[],"overall_assessment":"looks fine to me"}`}
	got := Apply(context.Background(), caller, domain.StrategyPatch{})

	if got.SanityReview != domain.SanityReviewRecommended {
		t.Fatalf("SanityReview = %q, want review_recommended for an unrecognized assessment", got.SanityReview)
	}
}
