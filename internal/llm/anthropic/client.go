// Package anthropic is the document-aware provider. It hands the original
// uploaded document to the Messages API instead of extracted text.
package anthropic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"resumind-backend/internal/llm"
	"resumind-backend/internal/shared/telemetry"
)

const (
	providerName  = "anthropic"
	defaultModel  = "claude-3-5-sonnet-20241022"
	apiVersion    = "2023-06-01"
	maxTokens     = 4096
	mediaTypePDF  = "application/pdf"
	sourceURL     = "url"
	sourceBase64  = "base64"
	blockText     = "text"
	blockDocument = "document"
)

var apiURL = "https://api.anthropic.com/v1/messages"

// Client implements llm.Provider against the Anthropic Messages API.
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient constructs a client. An empty key yields an unconfigured client.
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

type documentSource struct {
	Type      string `json:"type"`
	URL       string `json:"url,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
}

type contentBlock struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Source *documentSource `json:"source,omitempty"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type errorResponse struct {
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Invoke sends the document reference with the instructions and returns the
// first non-empty text found in the response.
func (c *Client) Invoke(ctx context.Context, payload llm.Payload) (string, error) {
	if !c.IsConfigured() {
		return "", llm.NotConfigured(providerName)
	}

	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: buildContent(payload)}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", llm.TransportError(providerName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", llm.TransportError(providerName, err)
	}

	if resp.StatusCode >= 400 {
		detail := strings.TrimSpace(string(raw))
		var parsed errorResponse
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error != nil {
			detail = parsed.Error.Message
		}
		return "", llm.StatusError(providerName, resp.StatusCode, detail)
	}

	text, err := extractText(raw)
	if err != nil {
		return "", &llm.ProviderError{
			Provider: providerName,
			Kind:     llm.KindUpstream,
			Status:   resp.StatusCode,
			Message:  fmt.Sprintf("anthropic response parse: %v", err),
			Err:      err,
		}
	}
	telemetry.Info("llm.usage", map[string]any{"provider": providerName, "model": c.model})
	return text, nil
}

func buildContent(payload llm.Payload) []contentBlock {
	blocks := make([]contentBlock, 0, 2)
	if doc := payload.Document; doc != nil {
		if src := documentSourceFor(doc); src != nil {
			blocks = append(blocks, contentBlock{Type: blockDocument, Source: src})
		}
	}
	prompt := payload.Instructions
	if len(blocks) == 0 {
		prompt = payload.Instructions + "\n\nRESUME CONTENT:\n" + payload.Text
	}
	return append(blocks, contentBlock{Type: blockText, Text: prompt})
}

// documentSourceFor returns nil when the document cannot be attached, in
// which case the extracted text is sent instead. Only PDFs are attached.
func documentSourceFor(doc *llm.DocumentRef) *documentSource {
	if doc.MediaType != "" && doc.MediaType != mediaTypePDF {
		return nil
	}
	uri := strings.TrimSpace(doc.URI)
	if strings.HasPrefix(uri, "https://") || strings.HasPrefix(uri, "http://") {
		return &documentSource{Type: sourceURL, URL: uri}
	}
	if len(doc.Data) == 0 {
		return nil
	}
	mediaType := doc.MediaType
	if mediaType == "" {
		mediaType = mediaTypePDF
	}
	return &documentSource{
		Type:      sourceBase64,
		MediaType: mediaType,
		Data:      base64.StdEncoding.EncodeToString(doc.Data),
	}
}
