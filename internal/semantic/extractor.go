package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/pleaseai/repograph/internal/llm"
)

// SystemPrompt steers the model toward purpose-level verb+object features.
const SystemPrompt = `You are a senior software analyst. Extract semantic features from code: describe purpose, not implementation.
Rules:
- verb+object phrases, lowercase, 3-8 words
- one responsibility per feature
- avoid vague verbs (handle, process, deal with)
- avoid library names and control flow terms
- prefer domain semantics over code mechanics
- no chained actions in a single feature
Respond with JSON: {"description": string, "subFeatures": [string], "keywords": [string]}`

// Options configures the extractor.
type Options struct {
	MaxBatchTokens     int // batch budget, default 50000
	MinBatchTokens     int // tail-merge threshold, default 10000
	MaxParseIterations int // LLM JSON retry budget, default 2
}

func (o *Options) applyDefaults() {
	if o.MaxBatchTokens == 0 {
		o.MaxBatchTokens = 50000
	}
	if o.MinBatchTokens == 0 {
		o.MinBatchTokens = 10000
	}
	if o.MaxParseIterations == 0 {
		o.MaxParseIterations = 2
	}
}

// Extractor converts entities into validated features, preferring the LLM
// when one is configured and falling back to deterministic heuristics.
type Extractor struct {
	client llm.Client // nil: heuristics only
	cache  FeatureCache
	opts   Options

	mu       sync.Mutex
	warnings []string
}

// NewExtractor returns an Extractor. client and cache may be nil.
func NewExtractor(client llm.Client, cache FeatureCache, opts Options) *Extractor {
	opts.applyDefaults()
	return &Extractor{client: client, cache: cache, opts: opts}
}

// Warnings returns warnings accumulated since construction.
func (e *Extractor) Warnings() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.warnings...)
}

func (e *Extractor) warn(format string, args ...any) {
	e.mu.Lock()
	e.warnings = append(e.warnings, fmt.Sprintf(format, args...))
	e.mu.Unlock()
}

// Extract produces a validated feature for one entity, consulting the
// cache first. Never fails: LLM errors degrade to the heuristic path.
func (e *Extractor) Extract(ctx context.Context, input EntityInput) *Feature {
	key := cacheKeyFor(input)
	hash := cacheHashFor(input)
	if e.cache != nil {
		if f, ok := e.cache.Get(key, hash); ok {
			return f
		}
	}

	f := e.extractUncached(ctx, input)
	if e.cache != nil {
		if err := e.cache.Set(key, hash, f); err != nil {
			slog.Warn("semantic.cache.set", "key", key, "err", err)
		}
	}
	return f
}

func (e *Extractor) extractUncached(ctx context.Context, input EntityInput) *Feature {
	if e.client != nil && input.SourceCode != "" {
		if f, err := e.extractLLM(ctx, input); err == nil {
			return f
		} else {
			e.warn("llm extraction failed for %s %s: %v", input.Type, input.Name, err)
		}
	}
	return HeuristicFeature(input)
}

// extractLLM asks the model for a feature, retrying on parse or validation
// failure up to MaxParseIterations.
func (e *Extractor) extractLLM(ctx context.Context, input EntityInput) (*Feature, error) {
	prompt := buildEntityPrompt(input)

	var lastErr error
	for attempt := 0; attempt <= e.opts.MaxParseIterations; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var f Feature
		if err := e.client.CompleteJSON(ctx, prompt, SystemPrompt, &f); err != nil {
			lastErr = err
			continue
		}
		ValidateFeature(&f)
		if f.Description == "" {
			lastErr = fmt.Errorf("empty description")
			continue
		}
		return &f, nil
	}
	return nil, lastErr
}

func buildEntityPrompt(input EntityInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract the semantic feature of this %s.\n", input.Type)
	fmt.Fprintf(&b, "Name: %s\n", input.Name)
	fmt.Fprintf(&b, "File: %s\n", input.FilePath)
	if input.Parent != "" {
		fmt.Fprintf(&b, "Parent: %s\n", input.Parent)
	}
	if input.Documentation != "" {
		fmt.Fprintf(&b, "Documentation: %s\n", input.Documentation)
	}
	if input.SourceCode != "" {
		fmt.Fprintf(&b, "Source:\n%s\n", input.SourceCode)
	}
	return b.String()
}

func cacheKeyFor(input EntityInput) string {
	return input.FilePath + ":" + input.Type + ":" + input.Name
}

// cacheHashFor digests the fields that invalidate a cached feature when
// they change. Must stay in sync with the cache's own hashing.
func cacheHashFor(input EntityInput) string {
	h := xxh3.New()
	for _, part := range []string{input.FilePath, input.Type, input.Name, input.Parent, input.SourceCode, input.Documentation} {
		_, _ = h.WriteString(part)
		_, _ = h.WriteString("|")
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
