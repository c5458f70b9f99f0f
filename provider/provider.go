package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/litreview/config"
)

// Type represents different LLM providers
type Type string

const (
	Gemini Type = "gemini"
	OpenAI Type = "openai"
)

// Client is the interface every LLM backend must satisfy. Generate renders
// the stage instruction plus its input payload into a single request and
// returns the model's text output.
type Client interface {
	Generate(ctx context.Context, instruction, input string) (string, error)
}

// New creates a new LLM client based on the provided configuration
func New(cfg config.LLMConfig) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llm api key not set")
	}
	switch Type(cfg.Provider) {
	case Gemini:
		return NewGeminiClient(cfg), nil
	case OpenAI:
		return NewOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
