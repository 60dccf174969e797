package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sqlpilot/sqlpilot/internal/config"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder is implemented by providers that embed many texts per call.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

func NewFromConfig(cfg config.EmbeddingConfig) (Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		return NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
	case "ollama":
		baseURL := cfg.BaseURL
		if strings.Contains(baseURL, "api.openai.com") {
			baseURL = ""
		}
		model := cfg.Model
		if strings.HasPrefix(model, "text-embedding-") {
			model = ""
		}
		return NewOllamaEmbedder(baseURL, model, cfg.Timeout), nil
	case "hashing":
		return NewHashingEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}
}

// EmbedAll embeds texts preserving order. Batch capable providers are called in
// chunks of batchSize; others are called concurrently up to batchSize at a time.
func EmbedAll(ctx context.Context, embedder Embedder, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = 64
	}
	out := make([][]float32, len(texts))
	if batcher, ok := embedder.(BatchEmbedder); ok {
		for start := 0; start < len(texts); start += batchSize {
			end := min(start+batchSize, len(texts))
			vectors, err := batcher.EmbedBatch(ctx, texts[start:end])
			if err != nil {
				return nil, err
			}
			if len(vectors) != end-start {
				return nil, fmt.Errorf("embedding batch returned %d vectors for %d texts", len(vectors), end-start)
			}
			copy(out[start:end], vectors)
		}
		return out, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(batchSize)
	for i, text := range texts {
		group.Go(func() error {
			vector, err := embedder.Embed(groupCtx, text)
			if err != nil {
				return fmt.Errorf("embed text %d: %w", i, err)
			}
			out[i] = vector
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is empty,
// zero length, or the dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
