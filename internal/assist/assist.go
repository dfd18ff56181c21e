// Package assist sends chat completions to an AI provider on behalf of
// the UI's editing suggestions. Two providers are supported: any
// OpenAI-compatible endpoint and the Anthropic messages API.
package assist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Providers selectable in the assist configuration.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
)

// Message is one chat turn. Role is system, user, or assistant.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are per-request overrides. Zero values fall back to the
// configured defaults.
type Options struct {
	Temperature float32 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is a provider response. Errors surface to the caller
// directly; nothing retries.
type Completion struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Completer is the completion contract the API layer depends on.
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error)
}

// Config is the persisted assist configuration. The API key lives here
// and nowhere else; logs and API responses mask it.
type Config struct {
	Provider    string  `json:"provider"`
	Endpoint    string  `json:"endpoint,omitempty"`
	APIKey      string  `json:"api_key,omitempty"`
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

func DefaultConfig() Config {
	return Config{
		Provider:    ProviderOpenAI,
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   1024,
	}
}

// Validate rejects configurations the providers would refuse anyway.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderClaude:
	default:
		return fmt.Errorf("unknown assist provider %q", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature %g out of range 0..2", c.Temperature)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens %d must not be negative", c.MaxTokens)
	}
	return nil
}

// NewCompleter builds the client for the configured provider.
func NewCompleter(cfg Config, logger *slog.Logger) (Completer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("assist API key not configured")
	}
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(cfg, logger), nil
	case ProviderClaude:
		return NewClaudeClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown assist provider %q", cfg.Provider)
	}
}
