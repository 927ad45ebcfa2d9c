// Package gemini calls the Google Generative Language generateContent API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/couchcryptid/civic-risk-service/internal/adapter/upstream"
)

// Generation settings for resident-facing answers.
const (
	temperature     = 0.3
	maxOutputTokens = 400
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("gemini returned no text")

// Client implements copilot.Model.
type Client struct {
	http    *upstream.Client
	apiKey  string
	model   string
	baseURL string
}

// NewClient creates a Gemini client for the given model name.
func NewClient(hc *upstream.Client, apiKey, model string) *Client {
	return &Client{
		http:    hc,
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://generativelanguage.googleapis.com/v1beta",
	}
}

// Name identifies the model in answers and logs.
func (c *Client) Name() string { return "gemini/" + c.model }

// Generate sends prompt as a single user turn and returns the joined text parts.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))

	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxOutputTokens,
		},
	}

	var resp generateResponse
	if err := c.http.PostJSON(ctx, endpoint, http.Header{}, req, &resp); err != nil {
		return "", fmt.Errorf("gemini generate: %w", redact(err, c.apiKey))
	}
	if len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	var texts []string
	for _, p := range resp.Candidates[0].Content.Parts {
		texts = append(texts, p.Text)
	}
	text := strings.TrimSpace(strings.Join(texts, "\n"))
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// redact keeps the API key out of errors that embed the request URL.
func redact(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), key, "REDACTED"))
}

// Generative Language API request and response types.

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}
