// Package synthesis turns a case's aggregated tool results into a
// unified narrative report using a generative text model. The provider
// behind the call is pluggable: a local Ollama instance or the Gemini
// API, selected by configuration.
package synthesis

import (
	"context"
	"fmt"
	"strings"

	"loom/internal/config"
)

// Provider is a text-generation backend. Given a system prompt and a
// user prompt, it returns a single completed document.
type Provider interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	Name() string
}

// NewProvider selects and builds the configured provider.
func NewProvider(cfg config.SynthesisConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		return NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel, cfg.Timeout.Std()), nil
	case "gemini":
		return NewGeminiProvider(cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("unknown synthesis provider %q", cfg.Provider)
	}
}
