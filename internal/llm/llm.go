// Package llm defines the language-model client contract used by the
// encoder and helpers for parsing model output.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Usage accumulates token counts across requests.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	Requests         int `json:"requests"`
}

// Add merges another usage sample into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.Requests += other.Requests
}

// Completion is the result of a single model call.
type Completion struct {
	Content string
	Usage   Usage
	Model   string
}

// Client is the pluggable language-model provider contract.
type Client interface {
	// Complete sends a user prompt with an optional system prompt.
	Complete(ctx context.Context, user, system string) (*Completion, error)
	// CompleteJSON completes and decodes the response into out using
	// DecodeJSON. A decode failure returns an error; callers validate the
	// decoded value against their own schema.
	CompleteJSON(ctx context.Context, user, system string, out any) error
	// UsageStats reports cumulative token usage and request count.
	UsageStats() Usage
	// EstimateCost returns the provider-specific cost in USD for a usage sample.
	EstimateCost(u Usage) float64
}

// DecodeJSON decodes model output into out, tolerating prose around the
// payload. It tries, in order: the whole content as JSON, the body of a
// <solution>...</solution> block, and the first balanced {...} or [...]
// substring.
func DecodeJSON(content string, out any) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("empty response")
	}
	if err := json.Unmarshal([]byte(content), out); err == nil {
		return nil
	}
	if block, ok := solutionBlock(content); ok {
		if err := json.Unmarshal([]byte(block), out); err == nil {
			return nil
		}
	}
	if sub, ok := firstJSONValue(content); ok {
		if err := json.Unmarshal([]byte(sub), out); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no JSON value in response")
}

// solutionBlock extracts the body of a <solution>...</solution> block.
func solutionBlock(content string) (string, bool) {
	start := strings.Index(content, "<solution>")
	if start < 0 {
		return "", false
	}
	rest := content[start+len("<solution>"):]
	end := strings.Index(rest, "</solution>")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// firstJSONValue returns the first balanced {...} or [...] substring.
// String literals and escapes are honored so braces inside strings do not
// unbalance the scan.
func firstJSONValue(content string) (string, bool) {
	start := -1
	var open, close byte
	for i := 0; i < len(content); i++ {
		if content[i] == '{' || content[i] == '[' {
			start = i
			open = content[i]
			if open == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return content[start : i+1], true
			}
		}
	}
	return "", false
}
