package examples

import (
	"context"
	"fmt"
	"sort"

	"github.com/sqlpilot/sqlpilot/internal/embedding"
)

const DefaultK = 5

type Selector struct {
	embedder embedding.Embedder
	k        int
}

func NewSelector(embedder embedding.Embedder, k int) *Selector {
	if k < 0 {
		k = DefaultK
	}
	return &Selector{embedder: embedder, k: k}
}

type scored struct {
	index int
	score float64
}

// Select returns up to k examples ordered by similarity of their input to
// question. Equal scores keep corpus order.
func (s *Selector) Select(ctx context.Context, question string, corpus []Example) ([]Example, error) {
	if s.k == 0 || len(corpus) == 0 {
		return []Example{}, nil
	}
	queryVector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	inputs := make([]string, len(corpus))
	for i, example := range corpus {
		inputs[i] = example.Input
	}
	vectors, err := embedding.EmbedAll(ctx, s.embedder, inputs, 16)
	if err != nil {
		return nil, fmt.Errorf("embed examples: %w", err)
	}

	ranked := make([]scored, len(corpus))
	for i, vector := range vectors {
		ranked[i] = scored{index: i, score: embedding.Cosine(queryVector, vector)}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	limit := min(s.k, len(ranked))
	selected := make([]Example, 0, limit)
	for _, item := range ranked[:limit] {
		selected = append(selected, corpus[item.index])
	}
	return selected, nil
}
