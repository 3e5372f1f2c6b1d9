package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"resumind-backend/internal/llm"
	"resumind-backend/internal/shared/telemetry"
)

const (
	providerName = "openai"
	defaultModel = "gpt-4o-mini"
)

var apiURL = "https://api.openai.com/v1/chat/completions"

// Client implements llm.Provider using OpenAI Chat Completions in text mode.
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient constructs a new OpenAI client. An empty key yields an
// unconfigured client whose calls fail with an unauthorized error.
func NewClient(apiKey, model string) *Client {
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		httpClient: &http.Client{},
	}
}

func (c *Client) Name() string       { return providerName }
func (c *Client) Model() string      { return c.model }
func (c *Client) IsConfigured() bool { return c.apiKey != "" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    *float32       `json:"temperature,omitempty"`
	ResponseFormat responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Invoke sends instructions and resume text as one user message and returns
// the first choice's content. An empty content is returned as "" with no error.
func (c *Client) Invoke(ctx context.Context, payload llm.Payload) (string, error) {
	if !c.IsConfigured() {
		return "", llm.NotConfigured(providerName)
	}

	withTemp := !skipTemperature(c.model)
	content, err := c.complete(ctx, payload.Prompt(), withTemp)
	if withTemp && isTemperatureUnsupported(err) {
		// resend once with the model default temperature
		content, err = c.complete(ctx, payload.Prompt(), false)
	}
	return content, err
}

func (c *Client) complete(ctx context.Context, prompt string, withTemp bool) (string, error) {
	reqBody := chatRequest{
		Model:          c.model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		ResponseFormat: responseFormat{Type: "json_object"},
	}
	if withTemp {
		temp := float32(0)
		reqBody.Temperature = &temp
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", llm.TransportError(providerName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", llm.TransportError(providerName, err)
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(raw, &parsed)
	if resp.StatusCode >= 400 || parsed.Error != nil {
		status := resp.StatusCode
		if status < 400 {
			status = http.StatusBadGateway
		}
		detail := strings.TrimSpace(string(raw))
		if decodeErr == nil && parsed.Error != nil {
			detail = parsed.Error.Message
		}
		return "", llm.StatusError(providerName, status, detail)
	}
	if decodeErr != nil {
		return "", &llm.ProviderError{
			Provider: providerName,
			Kind:     llm.KindUpstream,
			Status:   resp.StatusCode,
			Message:  fmt.Sprintf("openai response parse: %v", decodeErr),
			Err:      decodeErr,
		}
	}

	logUsage(c.model, parsed)
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func logUsage(model string, parsed chatResponse) {
	fields := map[string]any{"provider": providerName, "model": model}
	if parsed.Usage != nil {
		fields["prompt_tokens"] = parsed.Usage.PromptTokens
		fields["completion_tokens"] = parsed.Usage.CompletionTokens
		fields["total_tokens"] = parsed.Usage.TotalTokens
	}
	telemetry.Info("llm.usage", fields)
}

// skipTemperature reports models that only accept the default temperature.
func skipTemperature(model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	if strings.HasPrefix(m, "gpt-5") {
		return true
	}
	for _, denied := range strings.Split(os.Getenv("LLM_NO_TEMP0_MODELS"), ",") {
		if d := strings.ToLower(strings.TrimSpace(denied)); d != "" && d == m {
			return true
		}
	}
	return false
}

func isTemperatureUnsupported(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "temperature") && strings.Contains(msg, "unsupported")
}

var _ llm.Provider = (*Client)(nil)
