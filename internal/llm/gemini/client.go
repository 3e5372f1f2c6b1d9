// Package gemini is the text-mode provider backed by the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"resumind-backend/internal/llm"
	"resumind-backend/internal/shared/telemetry"
)

const (
	providerName = "gemini"
	defaultModel = "gemini-2.5-flash"
)

// Client implements llm.Provider with Gemini generateContent.
type Client struct {
	client *genai.Client
	model  string
}

// Option tweaks the SDK client configuration.
type Option func(*genai.ClientConfig)

// WithBaseURL points the SDK at a different endpoint.
func WithBaseURL(url string) Option {
	return func(cfg *genai.ClientConfig) {
		cfg.HTTPOptions.BaseURL = url
	}
}

// New constructs a Gemini provider. An empty key yields an unconfigured client.
func New(ctx context.Context, apiKey, model string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	c := &Client{model: model}
	if strings.TrimSpace(apiKey) == "" {
		return c, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(apiKey),
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	c.client = client
	return c, nil
}

func (c *Client) Name() string       { return providerName }
func (c *Client) Model() string      { return c.model }
func (c *Client) IsConfigured() bool { return c.client != nil }

// Invoke sends instructions followed by the resume text and returns the first
// candidate's text.
func (c *Client) Invoke(ctx context.Context, payload llm.Payload) (string, error) {
	if !c.IsConfigured() {
		return "", llm.NotConfigured(providerName)
	}

	temperature := float32(1)
	topP := float32(0.95)
	topK := float32(40)
	config := &genai.GenerateContentConfig{
		Temperature: &temperature,
		TopP:        &topP,
		TopK:        &topK,
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(payload.Prompt()), config)
	if err != nil {
		return "", mapError(err)
	}
	if resp == nil {
		return "", nil
	}

	fields := map[string]any{"provider": providerName, "model": c.model}
	if resp.UsageMetadata != nil {
		fields["prompt_tokens"] = resp.UsageMetadata.PromptTokenCount
		fields["completion_tokens"] = resp.UsageMetadata.CandidatesTokenCount
		fields["total_tokens"] = resp.UsageMetadata.TotalTokenCount
	}
	telemetry.Info("llm.usage", fields)

	return strings.TrimSpace(resp.Text()), nil
}

func mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return statusError(apiErr, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return statusError(*apiErrPtr, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return llm.TransportError(providerName, err)
}

func statusError(apiErr genai.APIError, cause error) error {
	perr := llm.StatusError(providerName, apiErr.Code, apiErr.Message)
	perr.Err = cause
	return perr
}

var _ llm.Provider = (*Client)(nil)
