package embedding

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes embeddings by exact text. Concurrent requests for the same
// text share one upstream call.
type Cache struct {
	inner      Embedder
	maxEntries int

	mu      sync.RWMutex
	entries map[string][]float32
	group   singleflight.Group
}

func NewCache(inner Embedder, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &Cache{inner: inner, maxEntries: maxEntries, entries: map[string][]float32{}}
}

func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.RLock()
	vector, ok := c.entries[text]
	c.mu.RUnlock()
	if ok {
		return vector, nil
	}

	value, err, _ := c.group.Do(text, func() (any, error) {
		vector, err := c.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.store(text, vector)
		return vector, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]float32), nil
}

func (c *Cache) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	missing := make([]string, 0)
	missingIdx := make([]int, 0)
	c.mu.RLock()
	for i, text := range texts {
		if vector, ok := c.entries[text]; ok {
			out[i] = vector
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	c.mu.RUnlock()
	if len(missing) == 0 {
		return out, nil
	}

	var vectors [][]float32
	var err error
	if batcher, ok := c.inner.(BatchEmbedder); ok {
		vectors, err = batcher.EmbedBatch(ctx, missing)
	} else {
		vectors, err = EmbedAll(ctx, c.inner, missing, 8)
	}
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("embedding batch returned %d vectors for %d texts", len(vectors), len(missing))
	}
	for i, vector := range vectors {
		out[missingIdx[i]] = vector
		c.store(missing[i], vector)
	}
	return out, nil
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) store(text string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.maxEntries {
		c.entries = map[string][]float32{}
	}
	c.entries[text] = vector
}
