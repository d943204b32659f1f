package llm

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedClient replays canned responses in order. It is the standard
// test double for Client across the module.
type ScriptedClient struct {
	mu        sync.Mutex
	Responses []string
	Errs      []error
	Prompts   []string // user prompts, recorded in call order
	calls     int
	usage     Usage
}

// Complete returns the next scripted response.
func (c *ScriptedClient) Complete(_ context.Context, user, _ string) (*Completion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Prompts = append(c.Prompts, user)
	idx := c.calls
	c.calls++
	c.usage.Requests++
	if idx < len(c.Errs) && c.Errs[idx] != nil {
		return nil, c.Errs[idx]
	}
	if idx >= len(c.Responses) {
		return nil, fmt.Errorf("scripted client exhausted after %d responses", len(c.Responses))
	}
	content := c.Responses[idx]
	c.usage.PromptTokens += len(user) / 4
	c.usage.CompletionTokens += len(content) / 4
	return &Completion{Content: content, Model: "scripted"}, nil
}

// CompleteJSON completes and decodes the next scripted response.
func (c *ScriptedClient) CompleteJSON(ctx context.Context, user, system string, out any) error {
	completion, err := c.Complete(ctx, user, system)
	if err != nil {
		return err
	}
	return DecodeJSON(completion.Content, out)
}

// UsageStats reports cumulative usage.
func (c *ScriptedClient) UsageStats() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// EstimateCost returns zero; scripted calls are free.
func (c *ScriptedClient) EstimateCost(Usage) float64 { return 0 }
