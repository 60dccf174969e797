package examples

import (
	"context"
	"fmt"
	"sync"
)

// Corpus is the in-memory view of a Store that request handlers read from.
// Reads never block on the store; appends go to the store first and then
// refresh the view.
type Corpus struct {
	store Store

	// writeMu orders store writes with the loads that publish them.
	writeMu sync.Mutex

	mu       sync.RWMutex
	examples []Example
	version  uint64
}

func NewCorpus(ctx context.Context, store Store) (*Corpus, error) {
	if store == nil {
		return nil, fmt.Errorf("examples store is required")
	}
	c := &Corpus{store: store}
	if err := c.Reload(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Examples returns the current corpus. Callers must not modify the slice.
func (c *Corpus) Examples() []Example {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.examples
}

func (c *Corpus) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

func (c *Corpus) Reload(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.reload(ctx)
}

func (c *Corpus) reload(ctx context.Context) error {
	loaded, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load examples: %w", err)
	}
	c.mu.Lock()
	c.examples = loaded
	c.version++
	c.mu.Unlock()
	return nil
}

func (c *Corpus) Append(ctx context.Context, example Example) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.store.Append(ctx, example); err != nil {
		return err
	}
	return c.reload(ctx)
}
