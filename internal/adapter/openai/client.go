// Package openai answers copilot prompts through the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

const (
	temperature = 0.3
	maxTokens   = 400

	systemPrompt = "You are a civic risk assistant. Answer only from the data context you are given."
)

// ErrNoChoices is returned when the API responds without a completion.
var ErrNoChoices = errors.New("openai returned no choices")

// Client implements copilot.Model.
type Client struct {
	client *goopenai.Client
	model  string
	logger *slog.Logger
}

// NewClient creates a client for model using apiKey.
func NewClient(apiKey, model string, logger *slog.Logger) *Client {
	return newClientWithConfig(goopenai.DefaultConfig(apiKey), model, logger)
}

func newClientWithConfig(cfg goopenai.ClientConfig, model string, logger *slog.Logger) *Client {
	return &Client{
		client: goopenai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger,
	}
}

// Name identifies the model in answers and logs.
func (c *Client) Name() string { return "openai/" + c.model }

// Generate returns the first completion for prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature:         temperature,
		MaxCompletionTokens: maxTokens,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	c.logger.Debug("openai completion", "model", c.model, "finish_reason", resp.Choices[0].FinishReason)

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrNoChoices
	}
	return text, nil
}
