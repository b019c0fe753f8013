// Package llm provides text completion through an OpenAI-compatible chat endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Static errors.
var (
	ErrNotConfigured = errors.New("completion endpoint is not configured")
	ErrNoChoices     = errors.New("completion returned no choices")
)

// Client implements core.TextCompleter.
type Client struct {
	client  openai.Client
	model   string
	enabled bool
	logger  *logger.Logger
}

// New creates a completion client for cfg. An empty apiKey yields an unavailable client.
func New(apiKey string, cfg config.LLMConfig, log *logger.Logger, opts ...option.RequestOption) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultLLMBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = config.DefaultLLMModel
	}

	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	}, opts...)

	return &Client{
		client:  openai.NewClient(clientOpts...),
		model:   model,
		enabled: apiKey != "",
		logger:  log,
	}
}

// Available reports whether an API key is configured.
func (c *Client) Available() bool {
	return c.enabled
}

// Complete sends prompt as a single user message and returns the trimmed reply.
func (c *Client) Complete(ctx context.Context, prompt string, opts core.CompletionOptions) (string, error) {
	if !c.enabled {
		return "", ErrNotConfigured
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	}

	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}

	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("completion request to %s failed: %w", c.model, err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	c.logger.Info("Completion from %s: %d tokens", c.model, resp.Usage.TotalTokens)

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Unavailable is a TextCompleter that is never configured. Callers use their
// deterministic fallbacks.
type Unavailable struct{}

// Available always returns false.
func (Unavailable) Available() bool { return false }

// Complete always fails with ErrNotConfigured.
func (Unavailable) Complete(context.Context, string, core.CompletionOptions) (string, error) {
	return "", ErrNotConfigured
}
