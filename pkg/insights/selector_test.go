package insights

import (
	"testing"

	"github.com/adronaut/strategist-core/pkg/domain"
)

func strongCandidate(insight string) domain.InsightCandidate {
	return domain.InsightCandidate{
		Insight:           insight,
		Hypothesis:        "hypothesis",
		ProposedAction:    "Increase budget on top segment",
		PrimaryLever:      domain.LeverBudget,
		ExpectedEffect:    domain.ExpectedEffect{Direction: domain.EffectIncrease, Metric: "roas", Magnitude: domain.MagnitudeMedium},
		Confidence:        0.8,
		DataSupport:       domain.SupportStrong,
		EvidenceRefs:      []string{"segment_performance.by_campaign.top"},
		ContrastiveReason: "other segments underperform",
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	c := strongCandidate("x")
	c.Hypothesis = ""
	if Validate(c) {
		t.Fatal("expected Validate to reject a candidate missing hypothesis")
	}
}

func TestValidateRejectsBadLever(t *testing.T) {
	c := strongCandidate("x")
	c.PrimaryLever = "seo"
	if Validate(c) {
		t.Fatal("expected Validate to reject an unrecognized lever")
	}
}

func TestValidateWeakEvidenceRequiresLearningKeyword(t *testing.T) {
	c := strongCandidate("x")
	c.DataSupport = domain.SupportWeak
	c.Confidence = 0.3
	c.ProposedAction = "Increase budget on top segment"
	if Validate(c) {
		t.Fatal("expected Validate to reject weak evidence without a learning keyword")
	}
	c.ProposedAction = "Run a pilot increasing budget on top segment"
	if !Validate(c) {
		t.Fatal("expected Validate to accept weak evidence with a learning keyword")
	}
}

func TestScoreRubric(t *testing.T) {
	c := strongCandidate("x")
	got := Score(c)
	// evidence_refs(+2) + strong(+2) + effect complete(+1) + valid lever(+1) = 6 raw -> round(6*12.5)=75
	if got != 75 {
		t.Fatalf("Score = %d, want 75", got)
	}
}

func TestScoreWeakPenalty(t *testing.T) {
	c := strongCandidate("x")
	c.DataSupport = domain.SupportWeak
	c.Confidence = 0.3
	c.ProposedAction = "no learning language here"
	got := Score(c)
	// evidence_refs(+2) + weak(+0) + effect complete(+1) + valid lever(+1) - weak penalty(-1) = 3 raw -> round(3*12.5)=38 (37.5 rounds to 38)
	if got != 38 {
		t.Fatalf("Score = %d, want 38", got)
	}
}

func TestSelectTopOrdersByScoreThenIndex(t *testing.T) {
	a := strongCandidate("a")
	b := strongCandidate("b")
	b.DataSupport = domain.SupportModerate
	c := strongCandidate("c")
	d := strongCandidate("d")

	result := SelectTop([]domain.InsightCandidate{a, b, c, d}, 3)
	if result.CandidatesEvaluated != 4 {
		t.Fatalf("CandidatesEvaluated = %d, want 4", result.CandidatesEvaluated)
	}
	if len(result.Insights) != 3 {
		t.Fatalf("len(Insights) = %d, want 3", len(result.Insights))
	}
	if result.Insights[0].Insight != "a" || result.Insights[1].Insight != "c" || result.Insights[2].Insight != "d" {
		t.Fatalf("unexpected order: %+v", result.Insights)
	}
	for i, ins := range result.Insights {
		if ins.ImpactRank != i+1 {
			t.Fatalf("ImpactRank[%d] = %d, want %d", i, ins.ImpactRank, i+1)
		}
	}
	if result.SelectionMethod != domain.SelectionMethodDeterministicRubric {
		t.Fatalf("SelectionMethod = %q", result.SelectionMethod)
	}
}

func TestSelectTopReturnsFewerWhenInsufficientValidCandidates(t *testing.T) {
	a := strongCandidate("a")
	invalid := strongCandidate("bad")
	invalid.PrimaryLever = "seo"

	result := SelectTop([]domain.InsightCandidate{a, invalid}, 3)
	if len(result.Insights) != 1 {
		t.Fatalf("len(Insights) = %d, want 1", len(result.Insights))
	}
}

func TestScoreMonotonicInEvidenceRefs(t *testing.T) {
	c := strongCandidate("x")
	c.EvidenceRefs = []string{}
	without := Score(c)
	c.EvidenceRefs = []string{"metrics_summary.roas"}
	with := Score(c)
	if with < without {
		t.Fatalf("adding evidence_refs lowered the score: %d -> %d", without, with)
	}
}

func TestSelectTopStableUnderShuffleWithDistinctScores(t *testing.T) {
	strong := strongCandidate("strong")
	moderate := strongCandidate("moderate")
	moderate.DataSupport = domain.SupportModerate
	weak := strongCandidate("weak")
	weak.DataSupport = domain.SupportWeak
	weak.Confidence = 0.3
	weak.ProposedAction = "Run a pilot on the top segment"

	orders := [][]domain.InsightCandidate{
		{strong, moderate, weak},
		{weak, strong, moderate},
		{moderate, weak, strong},
	}
	for _, candidates := range orders {
		result := SelectTop(candidates, 3)
		if len(result.Insights) != 3 {
			t.Fatalf("len(Insights) = %d, want 3", len(result.Insights))
		}
		got := []string{result.Insights[0].Insight, result.Insights[1].Insight, result.Insights[2].Insight}
		if got[0] != "strong" || got[1] != "moderate" || got[2] != "weak" {
			t.Fatalf("order %v not stable under shuffle with distinct scores", got)
		}
	}
}

func TestValidateWeakEvidenceCapsConfidence(t *testing.T) {
	c := strongCandidate("x")
	c.DataSupport = domain.SupportWeak
	c.ProposedAction = "Run a pilot on the top segment"
	c.Confidence = 0.7
	if Validate(c) {
		t.Fatal("expected Validate to reject weak evidence with confidence above 0.4")
	}
	c.Confidence = 0.4
	if !Validate(c) {
		t.Fatal("expected Validate to accept weak evidence at the 0.4 confidence cap")
	}
}
