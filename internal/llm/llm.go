package llm

import (
	"context"
	"strings"
)

// Provider is an inference backend that analyzes a resume and returns the
// model's raw text output. Timeouts are enforced by the caller.
type Provider interface {
	Name() string
	Model() string
	IsConfigured() bool
	Invoke(ctx context.Context, payload Payload) (string, error)
}

// Payload carries the analysis input. Text-mode providers read Text,
// document-aware providers read Document and fall back to Text.
type Payload struct {
	Text         string
	Document     *DocumentRef
	Instructions string
}

// DocumentRef points at the uploaded original document.
type DocumentRef struct {
	URI       string
	MediaType string
	Data      []byte
}

// Prompt joins instructions and resume text the way text-mode providers expect.
func (p Payload) Prompt() string {
	return p.Instructions + "\n\n" + p.Text
}

// Status is the readiness summary of a provider.
type Status struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Configured bool   `json:"configured"`
}

// StatusOf reports the readiness of p.
func StatusOf(p Provider) Status {
	return Status{Provider: p.Name(), Model: p.Model(), Configured: p.IsConfigured()}
}

// Unconfigured stands in for a provider that cannot be used. Every call fails
// with an unauthorized ProviderError.
type Unconfigured struct {
	ProviderName string
	ModelName    string
}

func (u Unconfigured) Name() string       { return u.ProviderName }
func (u Unconfigured) Model() string      { return u.ModelName }
func (u Unconfigured) IsConfigured() bool { return false }

func (u Unconfigured) Invoke(ctx context.Context, payload Payload) (string, error) {
	return "", NotConfigured(u.ProviderName)
}

// NotConfigured builds the error returned when credentials are missing.
func NotConfigured(provider string) *ProviderError {
	name := strings.TrimSpace(provider)
	if name == "" {
		name = "inference provider"
	}
	return &ProviderError{
		Provider: name,
		Kind:     KindUnauthorized,
		Message:  name + " API key is not configured",
	}
}
