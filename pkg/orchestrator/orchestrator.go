// Package orchestrator is the facade wiring C1 (schema), C2 (mechanics),
// C3 (LLM gateway), C4 (insights selector), C5 (heuristic filters), and C6
// (sanity gate) into the six LLM task operations spec.md §4.8 names. Each
// operation is a pure function of its inputs plus its LLM calls (PATCH and
// EDIT make one generation call each, run C5 locally, then make a second
// call through the C6 sanity gate).
package orchestrator

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/sjson"

	"github.com/adronaut/strategist-core/internal/apperrors"
	"github.com/adronaut/strategist-core/internal/config"
	"github.com/adronaut/strategist-core/pkg/domain"
	"github.com/adronaut/strategist-core/pkg/heuristics"
	"github.com/adronaut/strategist-core/pkg/insights"
	"github.com/adronaut/strategist-core/pkg/llm"
	"github.com/adronaut/strategist-core/pkg/mechanics"
	"github.com/adronaut/strategist-core/pkg/sanity"
	"github.com/adronaut/strategist-core/pkg/schema"
)

// Caller is the subset of the LLM gateway the orchestrator needs.
type Caller interface {
	Call(ctx context.Context, task config.TaskKind, prompt string) (string, error)
}

// Orchestrator implements the six-operation facade. It satisfies
// workflow.Orchestrator.
type Orchestrator struct {
	gateway Caller
}

func New(gateway Caller) *Orchestrator {
	return &Orchestrator{gateway: gateway}
}

// ExtractFeatures runs C1 over every tabular artifact, builds a data
// dictionary, and calls C3 FEATURES with instructions to use actual
// column names and never fabricate values for insufficient evidence.
func (o *Orchestrator) ExtractFeatures(ctx context.Context, artifacts []domain.Artifact) (domain.FeaturesBundle, error) {
	var dataSchema domain.DataSchema
	var samples string
	tabular := false
	for _, artifact := range artifacts {
		columns, rows, err := parseCSV(artifact.Content)
		if err != nil {
			continue
		}
		dataSchema = schema.Detect(columns, rows)
		samples = rawSample(artifact.Content, 6)
		tabular = true
		break // the first tabular artifact defines the schema; spec.md is silent on multi-file merge
	}

	prompt := fmt.Sprintf(`Extract marketing performance features from this data.

%s

RAW SAMPLE:
%s

Use the ACTUAL column names shown above. If data is insufficient for a claim, set the field to %q. DO NOT speculate.

Return a JSON object with at least: data_schema, metrics_summary, and segment_performance.by_%s (keyed by dimension value, with nested metrics and counts).`,
		dataSchema.Dictionary, samples, domain.InsufficientEvidence, orDefault(dataSchema.PrimaryDimension, "segment"))

	raw, err := o.gateway.Call(ctx, config.TaskFeatures, prompt)
	if err != nil {
		return nil, err
	}
	extracted, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	bundle := domain.FeaturesBundle(extracted)
	bundle["data_schema"] = dataSchema
	if !tabular {
		bundle["insufficient_evidence"] = true
	}
	return bundle, nil
}

// rawSample returns the first n lines of content verbatim for prompt
// grounding; the dictionary describes the shape, the sample anchors the
// actual values.
func rawSample(content []byte, n int) string {
	lines := strings.SplitN(string(content), "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

// GenerateInsights injects the mechanics reference and the schema's
// actual names, prompts for exactly 5 candidates, then runs C4 to
// validate, score, and select the top 3.
func (o *Orchestrator) GenerateInsights(ctx context.Context, features domain.FeaturesBundle) (domain.InsightsResult, error) {
	prompt := fmt.Sprintf(`%s

%s

FEATURES:
%s

Propose exactly 5 insight candidates, each with all eleven fields: insight, hypothesis, proposed_action, primary_lever, expected_effect, confidence, data_support, evidence_refs, contrastive_reason, impact_rank, impact_score. DO NOT include a patch field.

Return a JSON object: {"candidates": [ ... ]}`, mechanics.MECHANICS_CHEAT_SHEET, mechanics.UNIVERSAL_MECHANICS, encodeFeatures(features))

	raw, err := o.gateway.Call(ctx, config.TaskInsights, prompt)
	if err != nil {
		return domain.InsightsResult{}, err
	}
	extracted, err := llm.ExtractJSON(raw)
	if err != nil {
		return domain.InsightsResult{}, err
	}

	candidates, err := decodeCandidates(extracted)
	if err != nil {
		return domain.InsightsResult{}, err
	}

	result := insights.SelectTop(candidates, 3)
	for _, ins := range result.Insights {
		if problems := insights.ValidateEvidenceRefs(ins.EvidenceRefs, features); len(problems) > 0 {
			// Advisory: a ref that does not resolve never re-orders the
			// deterministic selection, it only surfaces in metrics.
			evidenceRefProblems.Add(float64(len(problems)))
		}
	}
	insightsJobCandidates.Observe(float64(result.CandidatesEvaluated))
	insufficient := "false"
	if len(result.Insights) < 3 {
		insufficient = "true"
	}
	insightsJobTotal.WithLabelValues(insufficient).Inc()
	return result, nil
}

// GeneratePatch calls C3 PATCH with the three selected insights and the
// standing constraints, then runs C5 (with one auto-downscope retry) and
// C6. The returned metadata matches the PATCH_GENERATION StepEvent shape
// from spec.md §6.
func (o *Orchestrator) GeneratePatch(ctx context.Context, ins domain.InsightsResult) (domain.StrategyPatch, map[string]interface{}, error) {
	prompt := fmt.Sprintf(`Generate a strategy patch implementing these insights:

%s

Constraints: total budget shift must not exceed 25%%; at most 3 creative themes per audience segment; audience segments must not overlap on (location, age); every change must be justified by the insight evidence above.

Return a JSON object with any of: audience_targeting, messaging_strategy, channel_strategy, budget_allocation.`, encodeInsights(ins))

	patch, err := o.callAndParsePatch(ctx, config.TaskPatch, prompt)
	if err != nil {
		return domain.StrategyPatch{}, nil, err
	}

	patch = o.runFiltersAndGate(ctx, patch)

	metadata := map[string]interface{}{
		"heuristic_flags_count": len(patch.Annotations.HeuristicFlags),
		"sanity_flags_count":    len(patch.Annotations.SanityFlags),
		"passed_validation":     len(patch.Annotations.HeuristicFlags) == 0,
		"auto_downscoped":       patch.Annotations.AutoDownscoped,
		"requires_hitl_review":  patch.Annotations.RequiresHITLReview,
	}
	patchJobTotal.WithLabelValues(boolLabel(metadata["passed_validation"].(bool)), boolLabel(patch.Annotations.AutoDownscoped)).Inc()
	patchJobFlags.WithLabelValues("heuristic").Observe(float64(len(patch.Annotations.HeuristicFlags)))
	patchJobFlags.WithLabelValues("sanity").Observe(float64(len(patch.Annotations.SanityFlags)))

	return patch, metadata, nil
}

// runFiltersAndGate applies C5 once, auto-downscopes on failure and
// re-validates, then always runs C6 regardless of C5's outcome.
func (o *Orchestrator) runFiltersAndGate(ctx context.Context, patch domain.StrategyPatch) domain.StrategyPatch {
	validation := heuristics.ValidatePatch(patch)
	if !validation.Passed {
		patch, _ = heuristics.DownscopeIfNeeded(patch, validation)
	} else {
		patch.Annotations.HeuristicFlags = validation.HeuristicFlags
	}
	return sanity.Apply(ctx, o.gateway, patch)
}

// EditPatch prompts for a minimal delta, merges the model's updated_patch
// onto original with a minimal-delta JSON merge, then re-runs C5 and C6.
// delta_size counts the top-level fields that changed.
func (o *Orchestrator) EditPatch(ctx context.Context, original domain.StrategyPatch, editRequest string) (domain.StrategyPatch, map[string]interface{}, error) {
	originalJSON, err := json.Marshal(original)
	if err != nil {
		return domain.StrategyPatch{}, nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "marshaling original patch")
	}

	prompt := fmt.Sprintf(`Change ONLY what the user requested, keep all other structure.

ORIGINAL PATCH:
%s

USER REQUEST:
%s

Return a JSON object: {"updated_patch": {...}, "changes_made": [...], "rationale": "...", "impact_assessment": "..."}`, string(originalJSON), editRequest)

	raw, err := o.gateway.Call(ctx, config.TaskEdit, prompt)
	if err != nil {
		return domain.StrategyPatch{}, nil, err
	}
	extracted, err := llm.ExtractJSON(raw)
	if err != nil {
		return domain.StrategyPatch{}, nil, err
	}

	updatedRaw, _ := json.Marshal(extracted["updated_patch"])
	merged, deltaSize, err := mergeMinimalDelta(originalJSON, updatedRaw)
	if err != nil {
		return domain.StrategyPatch{}, nil, err
	}

	var patch domain.StrategyPatch
	if err := json.Unmarshal(merged, &patch); err != nil {
		return domain.StrategyPatch{}, nil, apperrors.Wrap(err, apperrors.ErrorTypeParse, "unmarshaling merged patch")
	}

	patch = o.runFiltersAndGate(ctx, patch)

	metadata := map[string]interface{}{
		"delta_size": deltaSize,
		"flagged":    deltaSize == 0 || touchesUnrelatedFields(extracted),
	}
	return patch, metadata, nil
}

// CompileBrief is a straightforward BRIEF call; brief structure is out of
// this system's depth per spec.md §4.8.
func (o *Orchestrator) CompileBrief(ctx context.Context, patch domain.StrategyPatch) (string, error) {
	encoded, _ := json.Marshal(patch)
	prompt := fmt.Sprintf("Compile a campaign brief from this approved strategy patch:\n%s", string(encoded))
	return o.gateway.Call(ctx, config.TaskBrief, prompt)
}

// AnalyzePerformance is a straightforward ANALYZE call; report structure
// is out of this system's depth per spec.md §4.8.
func (o *Orchestrator) AnalyzePerformance(ctx context.Context, metrics map[string]interface{}) (string, error) {
	encoded, _ := json.Marshal(metrics)
	prompt := fmt.Sprintf("Analyze this campaign performance data and summarize what changed:\n%s", string(encoded))
	return o.gateway.Call(ctx, config.TaskAnalyze, prompt)
}

func (o *Orchestrator) callAndParsePatch(ctx context.Context, task config.TaskKind, prompt string) (domain.StrategyPatch, error) {
	raw, err := o.gateway.Call(ctx, task, prompt)
	if err != nil {
		return domain.StrategyPatch{}, err
	}
	extracted, err := llm.ExtractJSON(raw)
	if err != nil {
		return domain.StrategyPatch{}, err
	}
	encoded, err := json.Marshal(extracted)
	if err != nil {
		return domain.StrategyPatch{}, apperrors.Wrap(err, apperrors.ErrorTypeParse, "re-marshaling extracted patch JSON")
	}
	var patch domain.StrategyPatch
	if err := json.Unmarshal(encoded, &patch); err != nil {
		return domain.StrategyPatch{}, apperrors.Wrap(err, apperrors.ErrorTypeParse, "unmarshaling patch")
	}
	return patch, nil
}

// mergeMinimalDelta applies every top-level key of updatedJSON onto
// originalJSON via sjson, keeping fields absent from updatedJSON
// untouched, and returns the merged document plus the count of top-level
// fields that actually changed value.
func mergeMinimalDelta(originalJSON, updatedJSON []byte) ([]byte, int, error) {
	var updated map[string]interface{}
	if err := json.Unmarshal(updatedJSON, &updated); err != nil {
		return originalJSON, 0, nil
	}

	var original map[string]interface{}
	_ = json.Unmarshal(originalJSON, &original)

	merged := string(originalJSON)
	deltaSize := 0
	for key, value := range updated {
		encodedValue, _ := json.Marshal(value)
		var err error
		mergedBytes, err := sjson.SetRawBytes([]byte(merged), key, encodedValue)
		if err != nil {
			return nil, 0, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "merging edited patch delta")
		}
		merged = string(mergedBytes)
		if fmt.Sprintf("%v", original[key]) != fmt.Sprintf("%v", value) {
			deltaSize++
		}
	}
	return []byte(merged), deltaSize, nil
}

func touchesUnrelatedFields(extracted map[string]interface{}) bool {
	changes, _ := extracted["changes_made"].([]interface{})
	return len(changes) == 0
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func encodeFeatures(features domain.FeaturesBundle) string {
	encoded, _ := json.MarshalIndent(features, "", "  ")
	return string(encoded)
}

func encodeInsights(result domain.InsightsResult) string {
	encoded, _ := json.MarshalIndent(result.Insights, "", "  ")
	return string(encoded)
}

func decodeCandidates(extracted map[string]interface{}) ([]domain.InsightCandidate, error) {
	raw, ok := extracted["candidates"]
	if !ok {
		return nil, apperrors.NewParseError("response missing candidates field")
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeParse, "re-marshaling candidates")
	}
	var candidates []domain.InsightCandidate
	if err := json.Unmarshal(encoded, &candidates); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeParse, "unmarshaling candidates")
	}
	return candidates, nil
}

// parseCSV reads a simple comma-separated artifact into column names and
// Row values for C1. Non-CSV content yields an error; callers skip it.
func parseCSV(content []byte) ([]string, []schema.Row, error) {
	reader := csv.NewReader(strings.NewReader(string(content)))
	records, err := reader.ReadAll()
	if err != nil || len(records) == 0 {
		return nil, nil, apperrors.NewParseError("artifact content is not valid CSV")
	}
	columns := records[0]
	var rows []schema.Row
	for _, record := range records[1:] {
		row := make(schema.Row, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return columns, rows, nil
}
