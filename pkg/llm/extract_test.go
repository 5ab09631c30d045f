package llm

import "testing"

func TestExtractJSONFencedBlock(t *testing.T) {
	text := "Here is the result:\n```json\n{\"insight\": \"scale top segment\"}\n```\nLet me know if you need more."
	got, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON returned error: %v", err)
	}
	if got["insight"] != "scale top segment" {
		t.Fatalf("got %+v", got)
	}
}

func TestExtractJSONBareObject(t *testing.T) {
	got, err := ExtractJSON(`{"insight": "cut low performers"}`)
	if err != nil {
		t.Fatalf("ExtractJSON returned error: %v", err)
	}
	if got["insight"] != "cut low performers" {
		t.Fatalf("got %+v", got)
	}
}

func TestExtractJSONBraceScan(t *testing.T) {
	text := `The model said: before the json {"a": 1} some trailing text {"insight": "raise budget", "confidence": 0.6} and more prose.`
	got, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON returned error: %v", err)
	}
	if got["insight"] != "raise budget" {
		t.Fatalf("expected the larger brace span to win, got %+v", got)
	}
}

func TestExtractJSONFailsOnNoJSON(t *testing.T) {
	_, err := ExtractJSON("no json here at all")
	if err == nil {
		t.Fatal("expected a ParseError, got nil")
	}
}
