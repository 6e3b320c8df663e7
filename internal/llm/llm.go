// Package llm selects the configured generation backend.
package llm

import (
	"context"
	"fmt"

	"github.com/linnemanlabs/triageline/internal/cfg"
	"github.com/linnemanlabs/triageline/internal/llm/claude"
	"github.com/linnemanlabs/triageline/internal/llm/gemini"
	"github.com/linnemanlabs/triageline/internal/triage"
)

// NewGenerator builds the backend named by c.Generator. It returns a nil
// Generator for GeneratorNone, which leaves the generative votes absent.
func NewGenerator(ctx context.Context, c *cfg.Config) (triage.Generator, error) {
	switch c.Generator {
	case cfg.GeneratorClaude:
		client := claude.New(c.ClaudeAPIKey, c.ClaudeModel)
		if client == nil {
			return nil, fmt.Errorf("failed to initialize Claude generator: API key is required")
		}
		return client, nil
	case cfg.GeneratorGemini:
		client, err := gemini.New(ctx, c.GeminiAPIKey, c.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini generator: %w", err)
		}
		return client, nil
	case cfg.GeneratorNone, "":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown generator %q", c.Generator)
}
