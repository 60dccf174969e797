package examples

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// NotApplicable marks examples answered without running a query.
const NotApplicable = "N/A"

var ErrInvalidExample = errors.New("invalid example")

type Example struct {
	Input    string `json:"input"`
	SQLQuery string `json:"sqlQuery"`
	Answer   string `json:"answer"`
}

// UnmarshalJSON accepts both the flat layout and the nested
// {"input": ..., "output": {"sqlQuery": ..., "answer": ...}} layout.
func (e *Example) UnmarshalJSON(data []byte) error {
	var raw struct {
		Input    string  `json:"input"`
		SQLQuery *string `json:"sqlQuery"`
		Answer   *string `json:"answer"`
		Output   *struct {
			SQLQuery string `json:"sqlQuery"`
			Answer   string `json:"answer"`
		} `json:"output"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Input = raw.Input
	e.SQLQuery, e.Answer = "", ""
	if raw.Output != nil {
		e.SQLQuery = raw.Output.SQLQuery
		e.Answer = raw.Output.Answer
	}
	if raw.SQLQuery != nil {
		e.SQLQuery = *raw.SQLQuery
	}
	if raw.Answer != nil {
		e.Answer = *raw.Answer
	}
	return nil
}

// Normalize trims every field and fills an empty query with N/A.
func (e Example) Normalize() Example {
	e.Input = strings.TrimSpace(e.Input)
	e.SQLQuery = strings.TrimSpace(e.SQLQuery)
	e.Answer = strings.TrimSpace(e.Answer)
	if e.SQLQuery == "" {
		e.SQLQuery = NotApplicable
	}
	return e
}

func (e Example) Validate() error {
	if strings.TrimSpace(e.Input) == "" {
		return errors.Join(ErrInvalidExample, errors.New("input is required"))
	}
	if strings.TrimSpace(e.Answer) == "" {
		return errors.Join(ErrInvalidExample, errors.New("answer is required"))
	}
	return nil
}

// Store persists the example corpus. Append rewrites the full corpus and
// implementations serialize concurrent appends.
type Store interface {
	Load(ctx context.Context) ([]Example, error)
	Append(ctx context.Context, example Example) error
}

func cloneExamples(in []Example) []Example {
	out := make([]Example, len(in))
	copy(out, in)
	return out
}
