package examples

import (
	"context"
	"errors"
	"testing"
)

// axisEmbedder maps known texts to fixed vectors so similarity is predictable.
type axisEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (e axisEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	if vector, ok := e.vectors[text]; ok {
		return vector, nil
	}
	return []float32{0, 0, 1}, nil
}

func TestSelectorReturnsWholeCorpusWhenSmallerThanK(t *testing.T) {
	corpus := []Example{
		{Input: "a", Answer: "1"},
		{Input: "b", Answer: "2"},
		{Input: "c", Answer: "3"},
	}
	selector := NewSelector(axisEmbedder{}, DefaultK)
	selected, err := selector.Select(context.Background(), "question", corpus)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(selected) != 3 {
		t.Fatalf("len(selected) = %d, want 3", len(selected))
	}
	for i := range corpus {
		if selected[i] != corpus[i] {
			t.Fatalf("selected[%d] = %#v, want corpus order on ties", i, selected[i])
		}
	}
}

func TestSelectorOrdersBySimilarity(t *testing.T) {
	embedder := axisEmbedder{vectors: map[string][]float32{
		"How many actors?":            {1, 0, 0},
		"Count the actors":            {0.9, 0.1, 0},
		"List the genres":             {0, 1, 0},
		"Which actor has most roles?": {0.6, 0.4, 0},
	}}
	corpus := []Example{
		{Input: "List the genres", Answer: "g"},
		{Input: "Which actor has most roles?", Answer: "r"},
		{Input: "Count the actors", Answer: "c"},
	}
	selected, err := NewSelector(embedder, 2).Select(context.Background(), "How many actors?", corpus)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(selected) != 2 {
		t.Fatalf("len(selected) = %d", len(selected))
	}
	if selected[0].Input != "Count the actors" || selected[1].Input != "Which actor has most roles?" {
		t.Fatalf("selected = %#v", selected)
	}
}

func TestSelectorEmptyCorpusAndZeroK(t *testing.T) {
	selected, err := NewSelector(axisEmbedder{}, DefaultK).Select(context.Background(), "q", nil)
	if err != nil || len(selected) != 0 {
		t.Fatalf("Select(empty) = %#v, %v", selected, err)
	}
	selected, err = NewSelector(axisEmbedder{}, 0).Select(context.Background(), "q", []Example{{Input: "a", Answer: "b"}})
	if err != nil || len(selected) != 0 {
		t.Fatalf("Select(k=0) = %#v, %v", selected, err)
	}
}

func TestSelectorPropagatesEmbedderError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewSelector(axisEmbedder{err: boom}, DefaultK).Select(context.Background(), "q", []Example{{Input: "a", Answer: "b"}})
	if !errors.Is(err, boom) {
		t.Fatalf("Select() error = %v, want boom", err)
	}
}
