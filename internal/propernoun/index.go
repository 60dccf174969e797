// Package propernoun builds a lookup of the distinct names stored in a target
// database so the agent can map misspelled or partial names from a question to
// values that actually exist.
package propernoun

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/sahilm/fuzzy"

	"github.com/sqlpilot/sqlpilot/internal/embedding"
	"github.com/sqlpilot/sqlpilot/internal/observability"
)

const (
	DefaultK = 5

	lexicalWeight = 0.5
	exactBonus    = 1.0
)

// ColumnRef names a column whose values are proper nouns. Table may be
// schema qualified.
type ColumnRef struct {
	Table  string
	Column string
}

func (c ColumnRef) String() string {
	return c.Table + "." + c.Column
}

// ParseColumnRef accepts "table.column" or "schema.table.column".
func ParseColumnRef(raw string) (ColumnRef, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			return ColumnRef{}, fmt.Errorf("invalid column reference %q", raw)
		}
	}
	switch len(parts) {
	case 2:
		return ColumnRef{Table: parts[0], Column: parts[1]}, nil
	case 3:
		return ColumnRef{Table: parts[0] + "." + parts[1], Column: parts[2]}, nil
	default:
		return ColumnRef{}, fmt.Errorf("invalid column reference %q: want table.column or schema.table.column", raw)
	}
}

func ParseColumnRefs(raw []string) ([]ColumnRef, error) {
	refs := make([]ColumnRef, 0, len(raw))
	for _, item := range raw {
		ref, err := ParseColumnRef(item)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// Source is the part of a database the index reads from.
type Source interface {
	DistinctValues(ctx context.Context, table, column string) ([]string, error)
}

type Entry struct {
	Text      string
	Embedding []float32
}

// Index is immutable once built and safe for concurrent lookups.
type Index struct {
	entries  []Entry
	lowered  []string
	embedder embedding.Embedder
}

// Build reads every referenced column, strips digits and surrounding
// whitespace from each value, drops empties and duplicates, and embeds what
// remains.
func Build(ctx context.Context, src Source, refs []ColumnRef, embedder embedding.Embedder) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	start := time.Now()

	seen := map[string]struct{}{}
	texts := make([]string, 0)
	for _, ref := range refs {
		values, err := src.DistinctValues(ctx, ref.Table, ref.Column)
		if err != nil {
			return nil, fmt.Errorf("read proper nouns from %s: %w", ref, err)
		}
		for _, value := range values {
			text := Normalize(value)
			if text == "" {
				continue
			}
			if _, ok := seen[text]; ok {
				continue
			}
			seen[text] = struct{}{}
			texts = append(texts, text)
		}
	}

	vectors, err := embedding.EmbedAll(ctx, embedder, texts, 64)
	if err != nil {
		return nil, fmt.Errorf("embed proper nouns: %w", err)
	}
	index := &Index{
		entries:  make([]Entry, len(texts)),
		lowered:  make([]string, len(texts)),
		embedder: embedder,
	}
	for i, text := range texts {
		index.entries[i] = Entry{Text: text, Embedding: vectors[i]}
		index.lowered[i] = strings.ToLower(text)
	}
	observability.ObserveProperNounIndexBuild(len(texts), time.Since(start))
	return index, nil
}

// Normalize removes digits and collapses whitespace.
func Normalize(value string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return -1
		}
		return r
	}, value)
	return strings.Join(strings.Fields(stripped), " ")
}

func (ix *Index) Len() int {
	return len(ix.entries)
}

func (ix *Index) Entries() []Entry {
	out := make([]Entry, len(ix.entries))
	copy(out, ix.entries)
	return out
}

type candidate struct {
	index int
	score float64
}

// Lookup returns up to k entry texts nearest to query. Semantic similarity is
// the base score; entries the query fuzzily matches get a rank based bonus and
// a case-insensitive exact match gets a further bonus.
func (ix *Index) Lookup(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		k = DefaultK
	}
	query = strings.TrimSpace(query)
	if len(ix.entries) == 0 || query == "" {
		return []string{}, nil
	}
	queryVector, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed lookup query: %w", err)
	}

	ranked := make([]candidate, len(ix.entries))
	for i, entry := range ix.entries {
		ranked[i] = candidate{index: i, score: embedding.Cosine(queryVector, entry.Embedding)}
	}

	lowered := strings.ToLower(query)
	matches := fuzzy.Find(lowered, ix.lowered)
	for rank, match := range matches {
		ranked[match.Index].score += lexicalWeight * (1 - float64(rank)/float64(len(matches)))
		if match.Str == lowered {
			ranked[match.Index].score += exactBonus
		}
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})
	limit := min(k, len(ranked))
	out := make([]string, 0, limit)
	for _, item := range ranked[:limit] {
		out = append(out, ix.entries[item.index].Text)
	}
	return out, nil
}
