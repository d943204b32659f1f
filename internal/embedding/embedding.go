// Package embedding defines the embedding-provider contract and vector
// helpers used for semantic routing and drift scoring.
package embedding

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
)

// Embedding is a fixed-dimension vector for a text.
type Embedding struct {
	Vector    []float32
	Dimension int
}

// Provider is the pluggable embedding backend contract.
type Provider interface {
	Embed(ctx context.Context, text string) (Embedding, error)
	EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error)
	Dimension() int
	Provider() string
}

// Preprocess truncates text to roughly maxTokens worth of characters
// (4 characters per token) before embedding.
func Preprocess(text string, maxTokens int) string {
	limit := maxTokens * 4
	if limit <= 0 || len(text) <= limit {
		return text
	}
	return text[:limit]
}

// Cosine returns the cosine similarity of two vectors, 0 when either is
// empty or lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// EmbedBatchWithFallback calls the provider's batch endpoint and, when the
// batch fails, retries each text in parallel.
func EmbedBatchWithFallback(ctx context.Context, p Provider, texts []string) ([]Embedding, error) {
	results, err := p.EmbedBatch(ctx, texts)
	if err == nil {
		return results, nil
	}

	results = make([]Embedding, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	for i, text := range texts {
		g.Go(func() error {
			e, embedErr := p.Embed(gctx, text)
			if embedErr != nil {
				return embedErr
			}
			results[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
