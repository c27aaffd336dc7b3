// Package llm provides chat-completion access via langchaingo.
//
// This package wraps langchaingo's OpenAI client behind a small Client
// interface so the relevance and analysis stages can be tested against
// fakes. It works with any OpenAI-compatible endpoint (OpenAI itself,
// or a local server exposing the same API).
//
// Example:
//
//	client, err := llm.NewClient(llm.Config{
//	    BaseURL: "https://api.openai.com/v1",
//	    APIKey:  os.Getenv("PAPERWATCH_LLM_API_KEY"),
//	    Model:   "gpt-4o-mini",
//	})
//	if err != nil {
//	    // Handle error
//	}
//	out, err := client.Complete(ctx, systemPrompt, userPrompt)
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/fyrsmithlabs/paperwatch/internal/pipeline"
)

var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyResponse indicates the model returned no choices.
	ErrEmptyResponse = errors.New("empty model response")
)

// Client issues a single-turn chat completion.
type Client interface {
	// Complete sends a system and user message and returns the model's
	// text response.
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config holds configuration for the chat client.
type Config struct {
	// BaseURL is the base URL of the OpenAI-compatible API.
	BaseURL string

	// APIKey authenticates against the API. Optional for local
	// servers that ignore it.
	APIKey string

	// Model is the chat model name.
	Model string

	// Temperature controls sampling randomness.
	Temperature float64
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// client wraps a langchaingo model.
type client struct {
	model  *openai.LLM
	config Config
}

// NewClient creates a chat client for an OpenAI-compatible endpoint.
func NewClient(config Config) (Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	apiKey := config.APIKey
	if apiKey == "" {
		// langchaingo requires a token; local servers ignore it
		apiKey = "placeholder"
	}

	model, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithModel(config.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	return &client{model: model, config: config}, nil
}

// Complete sends a system and user message and returns the first
// choice's text. Rate-limit, timeout, and server-side errors come back
// retryable; malformed requests and auth failures do not.
func (c *client) Complete(ctx context.Context, system, user string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	resp, err := c.model.GenerateContent(ctx, messages,
		llms.WithTemperature(c.config.Temperature),
	)
	if err != nil {
		return "", classify(fmt.Errorf("generating completion: %w", err))
	}

	if len(resp.Choices) == 0 {
		return "", pipeline.Transient(ErrEmptyResponse)
	}

	return resp.Choices[0].Content, nil
}

// classify marks recoverable API failures as transient so the pipeline
// executor retries them.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pipeline.Transient(err)
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429",
		"rate limit",
		"500",
		"502",
		"503",
		"504",
		"timeout",
		"connection refused",
		"connection reset",
		"eof",
	} {
		if strings.Contains(msg, marker) {
			return pipeline.Transient(err)
		}
	}
	return err
}
