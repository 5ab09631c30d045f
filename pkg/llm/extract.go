package llm

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/adronaut/strategist-core/internal/apperrors"
)

// ExtractJSON tolerates three response shapes from an LLM: a markdown code
// fence containing JSON, a bare JSON object, or loose text scanned by
// balanced-brace search for the largest valid JSON object. Fails with a
// ParseError if none parses.
func ExtractJSON(text string) (map[string]interface{}, error) {
	candidates := []string{
		extractFence(text),
		strings.TrimSpace(text),
	}
	if brace := extractLargestBraceSpan(text); brace != "" {
		candidates = append(candidates, brace)
	}

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if result := gjson.Parse(candidate); result.IsObject() {
			return result.Value().(map[string]interface{}), nil
		}
	}
	return nil, apperrors.NewParseError("no valid JSON object found in response")
}

// extractFence pulls the content of the first ```json or ``` fenced block.
func extractFence(text string) string {
	start := strings.Index(text, "```")
	if start == -1 {
		return ""
	}
	rest := text[start+3:]
	rest = strings.TrimPrefix(rest, "json")
	rest = strings.TrimPrefix(rest, "\n")
	end := strings.Index(rest, "```")
	if end == -1 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// extractLargestBraceSpan scans text for the largest balanced-brace span
// that parses as a JSON object, for responses that embed JSON in prose
// without a fence.
func extractLargestBraceSpan(text string) string {
	var best string
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		if end := matchingBrace(text, i); end != -1 {
			span := text[i : end+1]
			if len(span) > len(best) && gjson.Valid(span) {
				best = span
			}
		}
	}
	return best
}

// matchingBrace returns the index of the closing brace matching the '{' at
// open, or -1 if the braces are unbalanced for the rest of text.
func matchingBrace(text string, open int) int {
	depth := 0
	for j := open; j < len(text); j++ {
		switch text[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}
