package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		a, b []float32
		want float64
	}{
		{[]float32{1, 0}, []float32{1, 0}, 1},
		{[]float32{1, 0}, []float32{0, 1}, 0},
		{[]float32{1, 0}, []float32{-1, 0}, -1},
		{[]float32{1, 2}, []float32{1, 2, 3}, 0}, // length mismatch
		{nil, nil, 0},
		{[]float32{0, 0}, []float32{1, 1}, 0}, // zero norm
	}
	for _, tt := range tests {
		if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestPreprocessTruncation(t *testing.T) {
	long := strings.Repeat("x", 100)
	if got := Preprocess(long, 10); len(got) != 40 {
		t.Fatalf("len = %d", len(got))
	}
	if got := Preprocess("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := Preprocess(long, 0); got != long {
		t.Fatalf("zero limit must not truncate")
	}
}

// flakyBatchProvider fails its batch endpoint but serves single embeds.
type flakyBatchProvider struct {
	mu      sync.Mutex
	singles int
	broken  bool
}

func (p *flakyBatchProvider) Embed(_ context.Context, text string) (Embedding, error) {
	if p.broken {
		return Embedding{}, errors.New("down")
	}
	p.mu.Lock()
	p.singles++
	p.mu.Unlock()
	return Embedding{Vector: []float32{float32(len(text))}, Dimension: 1}, nil
}

func (p *flakyBatchProvider) EmbedBatch(context.Context, []string) ([]Embedding, error) {
	return nil, fmt.Errorf("batch unavailable")
}

func (p *flakyBatchProvider) Dimension() int   { return 1 }
func (p *flakyBatchProvider) Provider() string { return "flaky" }

func TestEmbedBatchWithFallback(t *testing.T) {
	p := &flakyBatchProvider{}
	texts := []string{"a", "bb", "ccc"}
	got, err := EmbedBatchWithFallback(context.Background(), p, texts)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	// Results keep input order even though retries run in parallel.
	for i, text := range texts {
		if got[i].Vector[0] != float32(len(text)) {
			t.Fatalf("got[%d] = %v", i, got[i])
		}
	}
	if p.singles != 3 {
		t.Fatalf("singles = %d", p.singles)
	}
}

func TestEmbedBatchWithFallbackPropagatesError(t *testing.T) {
	p := &flakyBatchProvider{broken: true}
	if _, err := EmbedBatchWithFallback(context.Background(), p, []string{"a"}); err == nil {
		t.Fatal("expected error when singles also fail")
	}
}
