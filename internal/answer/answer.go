package answer

import "strings"

const (
	SQLQueryMarker = "SQL Query:"
	AnswerMarker   = "Answer:"
)

// Parsed holds the fields recovered from a final agent reply. A nil field
// means its marker did not appear.
type Parsed struct {
	SQLQuery *string `json:"sqlQuery"`
	Answer   *string `json:"answer"`
}

type Parser interface {
	Parse(finalText string) Parsed
}

// MarkerParser splits text on the SQL Query and Answer markers. Each field
// spans from the first occurrence of its marker to the next marker of either
// kind, or to the end of the text.
type MarkerParser struct{}

func (MarkerParser) Parse(finalText string) Parsed {
	return Parsed{
		SQLQuery: fieldAfter(finalText, SQLQueryMarker),
		Answer:   fieldAfter(finalText, AnswerMarker),
	}
}

// HasMarkers reports whether text carries both markers.
func HasMarkers(text string) bool {
	return strings.Contains(text, SQLQueryMarker) && strings.Contains(text, AnswerMarker)
}

func fieldAfter(text, marker string) *string {
	idx := strings.Index(text, marker)
	if idx < 0 {
		return nil
	}
	rest := text[idx+len(marker):]
	end := len(rest)
	for _, other := range []string{SQLQueryMarker, AnswerMarker} {
		if next := strings.Index(rest, other); next >= 0 && next < end {
			end = next
		}
	}
	value := strings.TrimSpace(rest[:end])
	return &value
}

func Value(field *string) string {
	if field == nil {
		return ""
	}
	return *field
}
