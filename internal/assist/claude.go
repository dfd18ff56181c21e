package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicVersion  = "2023-06-01"
	defaultClaudeBase = "https://api.anthropic.com"

	// maxErrorBody caps how much of a failed response is kept for the
	// error message.
	maxErrorBody = 4096
)

// APIError is a non-2xx provider response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("assist API returned %d: %s", e.StatusCode, e.Body)
}

// ClaudeClient talks to the Anthropic messages API.
type ClaudeClient struct {
	baseURL string
	apiKey  string
	cfg     Config
	http    *http.Client
	logger  *slog.Logger
}

func NewClaudeClient(cfg Config, logger *slog.Logger) *ClaudeClient {
	base := cfg.Endpoint
	if base == "" {
		base = defaultClaudeBase
	}
	return &ClaudeClient{
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  cfg.APIKey,
		cfg:     cfg,
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
	// Always sent: 0 means deterministic sampling, not "use the
	// provider default".
	Temperature float32 `json:"temperature"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *ClaudeClient) Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error) {
	req := claudeRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	if opts.Temperature > 0 {
		req.Temperature = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if req.MaxTokens <= 0 {
		// max_tokens is mandatory on this API.
		req.MaxTokens = DefaultConfig().MaxTokens
	}

	// The messages API takes the system prompt as a top-level field,
	// not as a message role.
	for _, m := range messages {
		if m.Role == "system" {
			req.System = m.Content
			continue
		}
		req.Messages = append(req.Messages, claudeMessage{Role: m.Role, Content: m.Content})
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode claude request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build claude request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("claude request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var parsed claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode claude response: %w", err)
	}

	var content strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	usage := Usage{
		PromptTokens:     parsed.Usage.InputTokens,
		CompletionTokens: parsed.Usage.OutputTokens,
		TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
	}

	c.logger.Info("assist completion",
		"provider", ProviderClaude,
		"model", c.cfg.Model,
		"total_tokens", usage.TotalTokens)

	return &Completion{Content: content.String(), Usage: usage}, nil
}
