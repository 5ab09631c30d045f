package insights

import (
	"fmt"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/adronaut/strategist-core/pkg/domain"
)

// ValidateEvidenceRefs checks that every evidence_ref path in refs
// resolves to a non-null value inside bundle. Paths are dotted strings
// like "segment_performance.by_campaign.Summer Sale.metrics.ctr",
// evaluated as jq filters. A ref that does not parse as a path or that
// resolves to null/insufficient_evidence fails. The check is advisory: it
// does not affect C4 scoring or selection, and base Validate does not
// require it since the rubric only checks evidence_refs is non-nil.
func ValidateEvidenceRefs(refs []string, bundle domain.FeaturesBundle) []string {
	var problems []string
	for _, ref := range refs {
		query, err := toJQPath(ref)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: not a valid evidence path", ref))
			continue
		}
		parsed, err := gojq.Parse(query)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", ref, err))
			continue
		}
		code, err := gojq.Compile(parsed)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", ref, err))
			continue
		}
		iter := code.Run(map[string]interface{}(bundle))
		value, ok := iter.Next()
		if !ok {
			problems = append(problems, fmt.Sprintf("%s: path not found in features bundle", ref))
			continue
		}
		if err, ok := value.(error); ok {
			problems = append(problems, fmt.Sprintf("%s: %v", ref, err))
			continue
		}
		if value == nil || value == domain.InsufficientEvidence {
			problems = append(problems, fmt.Sprintf("%s: resolves to insufficient evidence", ref))
		}
	}
	return problems
}

// toJQPath turns a dotted evidence-ref string (e.g.
// "segment_performance.by_campaign.Summer Sale.ctr") into a gojq filter
// path (".[\"segment_performance\"][\"by_campaign\"][\"Summer Sale\"][\"ctr\"]"),
// quoting every segment so keys containing spaces or punctuation still parse.
func toJQPath(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty evidence ref")
	}
	var b strings.Builder
	for _, segment := range strings.Split(ref, ".") {
		if segment == "" {
			return "", fmt.Errorf("empty path segment")
		}
		fmt.Fprintf(&b, "[%q]", segment)
	}
	return "." + b.String(), nil
}
