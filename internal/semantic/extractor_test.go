package semantic

import (
	"context"
	"errors"
	"testing"

	"github.com/pleaseai/repograph/internal/llm"
)

type mapCache struct {
	entries map[string]*Feature
	hashes  map[string]string
	sets    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]*Feature{}, hashes: map[string]string{}}
}

func (c *mapCache) Get(key, hash string) (*Feature, bool) {
	if c.hashes[key] != hash {
		return nil, false
	}
	f, ok := c.entries[key]
	return f, ok
}

func (c *mapCache) Set(key, hash string, f *Feature) error {
	c.entries[key] = f
	c.hashes[key] = hash
	c.sets++
	return nil
}

func TestExtractUsesLLMAndValidates(t *testing.T) {
	client := &llm.ScriptedClient{
		Responses: []string{`{"description": "Handle token refresh.", "keywords": ["Auth"]}`},
	}
	e := NewExtractor(client, nil, Options{})
	f := e.Extract(context.Background(), EntityInput{
		Type: "function", Name: "refreshToken", FilePath: "src/auth.py",
		SourceCode: "def refreshToken(): pass",
	})
	if f.Description != "dispatch token refresh" {
		t.Fatalf("description = %q", f.Description)
	}
	if len(f.Keywords) != 1 || f.Keywords[0] != "auth" {
		t.Fatalf("keywords = %v", f.Keywords)
	}
}

func TestExtractRetriesThenFallsBack(t *testing.T) {
	client := &llm.ScriptedClient{
		Responses: []string{"not json at all", "still not json", "nope"},
	}
	e := NewExtractor(client, nil, Options{MaxParseIterations: 2})
	f := e.Extract(context.Background(), EntityInput{
		Type: "function", Name: "getUser", FilePath: "src/users.py",
		SourceCode: "def getUser(): pass",
	})
	if f.Description != "retrieve user" {
		t.Fatalf("fallback description = %q", f.Description)
	}
	if len(client.Prompts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(client.Prompts))
	}
	if len(e.Warnings()) != 1 {
		t.Fatalf("warnings = %v", e.Warnings())
	}
}

func TestExtractLLMErrorFallsBack(t *testing.T) {
	client := &llm.ScriptedClient{
		Errs: []error{errors.New("rate limited"), errors.New("rate limited"), errors.New("rate limited")},
	}
	e := NewExtractor(client, nil, Options{MaxParseIterations: 2})
	f := e.Extract(context.Background(), EntityInput{
		Type: "function", Name: "saveConfig", FilePath: "src/config.py",
		SourceCode: "def saveConfig(): pass",
	})
	if f.Description != "persist config" {
		t.Fatalf("fallback description = %q", f.Description)
	}
}

func TestExtractSkipsLLMWithoutSource(t *testing.T) {
	client := &llm.ScriptedClient{}
	e := NewExtractor(client, nil, Options{})
	f := e.Extract(context.Background(), EntityInput{
		Type: "function", Name: "parseHeader", FilePath: "src/wire.py",
	})
	if f.Description != "parse header" {
		t.Fatalf("description = %q", f.Description)
	}
	if len(client.Prompts) != 0 {
		t.Fatalf("LLM should not have been consulted: %v", client.Prompts)
	}
}

func TestExtractCacheHitSkipsLLM(t *testing.T) {
	cache := newMapCache()
	client := &llm.ScriptedClient{
		Responses: []string{`{"description": "validate session cookie"}`},
	}
	e := NewExtractor(client, cache, Options{})
	input := EntityInput{
		Type: "function", Name: "checkSession", FilePath: "src/auth.py",
		SourceCode: "def checkSession(): pass",
	}

	first := e.Extract(context.Background(), input)
	if cache.sets != 1 {
		t.Fatalf("cache sets = %d", cache.sets)
	}
	second := e.Extract(context.Background(), input)
	if second.Description != first.Description {
		t.Fatalf("cache returned %q, want %q", second.Description, first.Description)
	}
	if len(client.Prompts) != 1 {
		t.Fatalf("LLM consulted %d times, want 1", len(client.Prompts))
	}

	// Changed source invalidates via the hash.
	input.SourceCode = "def checkSession(): return True"
	client.Responses = append(client.Responses, `{"description": "verify session cookie"}`)
	third := e.Extract(context.Background(), input)
	if third.Description != "verify session cookie" {
		t.Fatalf("after change: %q", third.Description)
	}
	if len(client.Prompts) != 2 {
		t.Fatalf("LLM consulted %d times, want 2", len(client.Prompts))
	}
}
