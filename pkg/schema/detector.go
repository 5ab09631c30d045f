// Package schema implements C1, the schema detector: a pure function over
// tabular rows that classifies every column into a dimension, identifier,
// or one metric role, and emits a human-readable data dictionary for
// prompt injection. Grounded on the teacher's pattern of small, pure
// classification helpers tested with plain `testing` functions.
package schema

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/adronaut/strategist-core/pkg/domain"
)

// Row is one record of tabular input: column name to raw cell value. All
// values arrive as strings; numeric classification parses them.
type Row map[string]string

var (
	efficiencyNamePattern   = regexp.MustCompile(`(?i)roas|ctr|cvr|rate`)
	costNamePattern         = regexp.MustCompile(`(?i)cpc|cpa|cpm|spend|cost|bid`)
	volumeNamePattern       = regexp.MustCompile(`(?i)impressions|clicks|orders|sales|revenue|conversions`)
	comparativeNamePattern  = regexp.MustCompile(`(?i)suggested|recommended|target`)
	identifierNamePattern   = regexp.MustCompile(`(?i)^id$|_id$|^id_`)
)

// primaryDimensionPriority is the tie-break order from spec.md §4.1 step 3,
// evaluated before falling back to cardinality and input order.
var primaryDimensionPriority = []string{"keyword", "campaign", "ad_group", "adset"}

// Detect classifies every column of rows into the DataSchema per spec.md
// §4.1. Detect is a pure function: no I/O, never errors on well-formed
// tabular input. An empty row set yields a DataSchema with RowCount 0 and
// empty metric lists.
func Detect(columns []string, rows []Row) domain.DataSchema {
	if len(columns) == 0 {
		return domain.DataSchema{Dictionary: "No columns detected."}
	}
	if len(rows) == 0 {
		return domain.DataSchema{Dictionary: fmt.Sprintf("No rows detected (columns: %s).", strings.Join(columns, ", "))}
	}

	roles := make(map[string]domain.MetricRole)
	isDimension := make(map[string]bool)
	isIdentifier := make(map[string]bool)

	for _, col := range columns {
		role, ok := classifyByName(col)
		if ok {
			roles[col] = role
			continue
		}
		if identifierNamePattern.MatchString(normalize(col)) {
			isIdentifier[col] = true
			continue
		}
		if role, ok := classifyByValues(col, rows); ok {
			roles[col] = role
			continue
		}
		isDimension[col] = true
	}

	schema := domain.DataSchema{RowCount: len(rows)}
	for _, col := range columns {
		switch roles[col] {
		case domain.MetricRoleEfficiency:
			schema.EfficiencyMetrics = append(schema.EfficiencyMetrics, computeMetric(col, domain.MetricRoleEfficiency, rows))
		case domain.MetricRoleCost:
			schema.CostMetrics = append(schema.CostMetrics, computeMetric(col, domain.MetricRoleCost, rows))
		case domain.MetricRoleVolume:
			schema.VolumeMetrics = append(schema.VolumeMetrics, computeMetric(col, domain.MetricRoleVolume, rows))
		case domain.MetricRoleComparative:
			schema.ComparativeMetrics = append(schema.ComparativeMetrics, computeMetric(col, domain.MetricRoleComparative, rows))
		default:
			if isIdentifier[col] {
				schema.Identifiers = append(schema.Identifiers, col)
			}
		}
	}

	var dimensions []string
	for col := range isDimension {
		dimensions = append(dimensions, col)
	}
	schema.PrimaryDimension = choosePrimaryDimension(dimensions, columns, rows)
	schema.Dictionary = buildDictionary(schema, columns, roles, isDimension, isIdentifier, rows)
	return schema
}

// classifyByName applies the name-pattern rule table. Comparative columns
// require BOTH a suggested/recommended/target token AND that the column is
// paired with a cost/efficiency concept, per spec.md §4.1 step 1.
func classifyByName(col string) (domain.MetricRole, bool) {
	name := normalize(col)
	if comparativeNamePattern.MatchString(name) && (costNamePattern.MatchString(name) || efficiencyNamePattern.MatchString(name)) {
		return domain.MetricRoleComparative, true
	}
	switch {
	case efficiencyNamePattern.MatchString(name):
		return domain.MetricRoleEfficiency, true
	case costNamePattern.MatchString(name):
		return domain.MetricRoleCost, true
	case volumeNamePattern.MatchString(name):
		return domain.MetricRoleVolume, true
	}
	return "", false
}

// classifyByValues is the step-2 fallback: value-range heuristics over the
// numeric cells of a column that the name pattern table missed.
func classifyByValues(col string, rows []Row) (domain.MetricRole, bool) {
	values := numericValues(col, rows)
	if len(values) == 0 {
		return "", false
	}

	bounded := true
	hasFraction := false
	allLargeIntegers := true
	currencyHint := strings.ContainsAny(col, "$") || strings.Contains(strings.ToUpper(col), "USD")

	for _, v := range values {
		if v < 0 || v > 100 {
			bounded = false
		}
		if v != math.Trunc(v) {
			hasFraction = true
		}
		if v != math.Trunc(v) || v < 100 {
			allLargeIntegers = false
		}
	}

	switch {
	// Efficiency needs fractional parts, not just bounded values: an
	// integer column in [0,100] is a rating or a tier, not a rate.
	case bounded && hasFraction:
		return domain.MetricRoleEfficiency, true
	case allLargeIntegers:
		return domain.MetricRoleVolume, true
	case currencyHint:
		return domain.MetricRoleCost, true
	}
	return "", false
}

func numericValues(col string, rows []Row) []float64 {
	var values []float64
	for _, row := range rows {
		raw, ok := row[col]
		if !ok {
			continue
		}
		cleaned := strings.TrimSpace(strings.TrimPrefix(raw, "$"))
		cleaned = strings.TrimSuffix(cleaned, "%")
		cleaned = strings.ReplaceAll(cleaned, ",", "")
		v, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			continue
		}
		values = append(values, v)
	}
	return values
}

func computeMetric(col string, role domain.MetricRole, rows []Row) domain.Metric {
	values := numericValues(col, rows)
	return domain.Metric{Name: col, Role: role, Stats: computeStats(values)}
}

func computeStats(values []float64) domain.MetricStats {
	stats := domain.MetricStats{Count: len(values)}
	if len(values) == 0 {
		return stats
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	stats.Min = sorted[0]
	stats.Max = sorted[len(sorted)-1]
	var sum float64
	for _, v := range values {
		sum += v
	}
	stats.Sum = sum
	stats.Mean = sum / float64(len(values))
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		stats.Median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		stats.Median = sorted[mid]
	}
	return stats
}

// choosePrimaryDimension applies the tie-break order from spec.md §4.1
// step 3: literal name "keyword", then "campaign", then "ad_group"/"adset",
// then highest cardinality, then first by input order.
func choosePrimaryDimension(dimensions, columns []string, rows []Row) string {
	if len(dimensions) == 0 {
		return ""
	}
	present := make(map[string]bool, len(dimensions))
	for _, d := range dimensions {
		present[normalize(d)] = true
	}
	byNormalized := make(map[string]string, len(dimensions))
	for _, d := range dimensions {
		byNormalized[normalize(d)] = d
	}

	for _, priority := range primaryDimensionPriority {
		if priority == "ad_group" {
			if present["ad_group"] {
				return byNormalized["ad_group"]
			}
			if present["adset"] {
				return byNormalized["adset"]
			}
			continue
		}
		if present[priority] {
			return byNormalized[priority]
		}
	}

	best := ""
	bestCardinality := -1
	for _, col := range columns {
		isDim := false
		for _, d := range dimensions {
			if d == col {
				isDim = true
				break
			}
		}
		if !isDim {
			continue
		}
		card := cardinality(col, rows)
		if card > bestCardinality {
			bestCardinality = card
			best = col
		}
	}
	if best != "" {
		return best
	}
	return dimensions[0]
}

func cardinality(col string, rows []Row) int {
	seen := make(map[string]struct{})
	for _, row := range rows {
		seen[row[col]] = struct{}{}
	}
	return len(seen)
}

func normalize(col string) string {
	return strings.ToLower(strings.TrimSpace(col))
}

func buildDictionary(schema domain.DataSchema, columns []string, roles map[string]domain.MetricRole, isDimension, isIdentifier map[string]bool, rows []Row) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Data dictionary (%d rows, primary dimension: %s)\n", schema.RowCount, orNone(schema.PrimaryDimension)))
	for _, col := range columns {
		role := "dimension"
		switch {
		case roles[col] != "":
			role = string(roles[col])
		case isIdentifier[col]:
			role = "identifier"
		}
		b.WriteString(fmt.Sprintf("- %s (%s): %s\n", col, role, strings.Join(topExamples(col, rows, 3), ", ")))
	}
	return b.String()
}

func topExamples(col string, rows []Row, n int) []string {
	seen := make(map[string]bool)
	var examples []string
	for _, row := range rows {
		v := row[col]
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		examples = append(examples, v)
		if len(examples) == n {
			break
		}
	}
	return examples
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
