package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sqlpilot/sqlpilot/internal/config"
)

// Model completes a single assembled prompt.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Stop sequences keep the model from inventing its own tool observations.
var DefaultStop = []string{"\nObservation:"}

func NewFromConfig(cfg config.AIConfig) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		return NewOpenAIModel(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
			Stop:        DefaultStop,
		})
	case "anthropic":
		// The shared defaults point at OpenAI; fall back to the SDK's own.
		baseURL, model := cfg.BaseURL, cfg.Model
		if strings.Contains(baseURL, "api.openai.com") {
			baseURL = ""
		}
		if strings.HasPrefix(model, "gpt-") {
			model = ""
		}
		return NewAnthropicModel(AnthropicConfig{
			BaseURL:     baseURL,
			APIKey:      cfg.APIKey,
			Model:       model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
			Stop:        DefaultStop,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

// StripMarkdownSQL removes a surrounding markdown code fence.
func StripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```SQL")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
