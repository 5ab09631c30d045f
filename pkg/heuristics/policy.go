package heuristics

import (
	"context"

	"github.com/open-policy-agent/opa/rego"

	"github.com/adronaut/strategist-core/internal/apperrors"
)

// creativeCapModule is the Rego encoding of the creative sanity rule
// (spec.md §4.5 rule 3): it is the one check naturally expressed as a
// single policy predicate over counts rather than stateful iteration, so
// it is evaluated through OPA while the stateful budget/audience checks
// stay as plain Go above.
const creativeCapModule = `
package strategist.creative

import rego.v1

default exceeds := false

exceeds if {
	input.theme_count > input.segment_count * 3
}
`

var creativeQuery *rego.PreparedEvalQuery

func init() {
	q, err := rego.New(
		rego.Query("data.strategist.creative.exceeds"),
		rego.Module("creative_cap.rego", creativeCapModule),
	).PrepareForEval(context.Background())
	if err != nil {
		panic(err)
	}
	creativeQuery = &q
}

// evaluateCreativeCap asks the compiled Rego policy whether themeCount
// exceeds the allowed cap for segmentCount, the same segments*3 cap that
// truncateThemes applies, but through OPA so the rule can be changed without a Go
// recompile in a future policy bundle.
func evaluateCreativeCap(themeCount, segmentCount int) (bool, error) {
	rs, err := creativeQuery.Eval(context.Background(), rego.EvalInput(map[string]interface{}{
		"theme_count":   themeCount,
		"segment_count": segmentCount,
	}))
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "creative cap policy evaluation failed")
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, apperrors.NewValidationError("creative cap policy returned no result")
	}
	exceeds, _ := rs[0].Expressions[0].Value.(bool)
	return exceeds, nil
}
