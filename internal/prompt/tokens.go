package prompt

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts cl100k_base tokens, or estimates four characters per
// token when the encoding cannot be loaded.
type TiktokenCounter struct {
	mu      sync.Mutex
	encoder *tiktoken.Tiktoken
}

var (
	defaultCounter     *TiktokenCounter
	defaultCounterOnce sync.Once
)

func DefaultTokenCounter() *TiktokenCounter {
	defaultCounterOnce.Do(func() {
		encoder, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			defaultCounter = &TiktokenCounter{}
			return
		}
		defaultCounter = &TiktokenCounter{encoder: encoder}
	})
	return defaultCounter
}

func (c *TiktokenCounter) Count(text string) int {
	if c.encoder == nil {
		return len(text) / 4
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.encoder.Encode(text, nil, nil))
}

// CharCounter is the len/4 estimate on its own.
type CharCounter struct{}

func (CharCounter) Count(text string) int {
	return len(text) / 4
}
