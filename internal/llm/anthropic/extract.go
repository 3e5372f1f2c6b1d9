package anthropic

import (
	"encoding/json"
	"strings"
)

// extractor pulls text out of one known response shape. It returns "" when
// the shape does not match.
type extractor func(doc map[string]json.RawMessage) string

// extractors are tried in order; the first non-empty result wins.
var extractors = []extractor{
	stringContent,
	blockContent,
	messageWrapper,
	choicesWrapper,
}

func extractText(raw []byte) (string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", err
	}
	return probe(doc), nil
}

func probe(doc map[string]json.RawMessage) string {
	for _, ex := range extractors {
		if text := strings.TrimSpace(ex(doc)); text != "" {
			return text
		}
	}
	return ""
}

// {"content": "..."}
func stringContent(doc map[string]json.RawMessage) string {
	var s string
	if err := json.Unmarshal(doc["content"], &s); err != nil {
		return ""
	}
	return s
}

// {"content": [{"type": "text", "text": "..."}, ...]}
func blockContent(doc map[string]json.RawMessage) string {
	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(doc["content"], &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		if (b.Type == "" || b.Type == blockText) && strings.TrimSpace(b.Text) != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// {"message": {"content": ...}}
func messageWrapper(doc map[string]json.RawMessage) string {
	var inner map[string]json.RawMessage
	if err := json.Unmarshal(doc["message"], &inner); err != nil || inner == nil {
		return ""
	}
	if text := stringContent(inner); strings.TrimSpace(text) != "" {
		return text
	}
	return blockContent(inner)
}

// {"choices": [{"message": {"content": ...}}]}
func choicesWrapper(doc map[string]json.RawMessage) string {
	var choices []map[string]json.RawMessage
	if err := json.Unmarshal(doc["choices"], &choices); err != nil {
		return ""
	}
	for _, choice := range choices {
		if text := messageWrapper(choice); strings.TrimSpace(text) != "" {
			return text
		}
	}
	return ""
}
