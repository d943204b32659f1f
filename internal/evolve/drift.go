package evolve

import (
	"context"
	"strings"

	"github.com/pleaseai/repograph/internal/embedding"
	"github.com/pleaseai/repograph/internal/semantic"
)

// ComputeDrift scores how far a feature moved, in [0, 1]. With an
// embedding provider drift is one minus the cosine similarity of the two
// descriptions; otherwise Jaccard distance over keywords, and over
// description tokens when either keyword set is empty.
func ComputeDrift(ctx context.Context, embedder embedding.Provider, old, fresh *semantic.Feature) float64 {
	if old == nil || fresh == nil {
		return 1
	}
	if embedder != nil {
		if d, ok := embeddingDrift(ctx, embedder, old.Description, fresh.Description); ok {
			return d
		}
	}
	if len(old.Keywords) > 0 && len(fresh.Keywords) > 0 {
		return jaccardDistance(old.Keywords, fresh.Keywords)
	}
	return jaccardDistance(
		strings.Fields(strings.ToLower(old.Description)),
		strings.Fields(strings.ToLower(fresh.Description)),
	)
}

func embeddingDrift(ctx context.Context, embedder embedding.Provider, a, b string) (float64, bool) {
	vecs, err := embedding.EmbedBatchWithFallback(ctx, embedder, []string{a, b})
	if err != nil || len(vecs) != 2 {
		return 0, false
	}
	return 1 - embedding.Cosine(vecs[0].Vector, vecs[1].Vector), true
}

// jaccardDistance is 1 minus the Jaccard index over the two token sets.
func jaccardDistance(a, b []string) float64 {
	setA := map[string]bool{}
	for _, t := range a {
		setA[t] = true
	}
	setB := map[string]bool{}
	for _, t := range b {
		setB[t] = true
	}
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}
	inter := 0
	for t := range setA {
		if setB[t] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return 1 - float64(inter)/float64(union)
}
