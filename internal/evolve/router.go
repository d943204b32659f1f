package evolve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pleaseai/repograph/internal/embedding"
	"github.com/pleaseai/repograph/internal/llm"
	"github.com/pleaseai/repograph/internal/rpg"
	"github.com/pleaseai/repograph/internal/semantic"
)

const routingSystemPrompt = `You are a code architecture classifier. Respond with JSON {"selectedId": <id or null>, "confidence": 0-1}. Select the most semantically compatible category; null if none fit.`

// Router descends the high-level hierarchy to find the best parent for a
// new entity. Selection falls back from LLM to embeddings to the first
// candidate.
type Router struct {
	client   llm.Client
	embedder embedding.Provider

	// Attempts counts every LLM call made, including failed ones.
	Attempts int

	warnedFirstPick bool
}

// NewRouter returns a Router. Both backends may be nil.
func NewRouter(client llm.Client, embedder embedding.Provider) *Router {
	return &Router{client: client, embedder: embedder}
}

// FindBestParent descends from the functional roots and returns the
// deepest matching high-level node ID, or "" when the graph has no
// high-level nodes.
func (r *Router) FindBestParent(ctx context.Context, g *rpg.Graph, feature *semantic.Feature) string {
	roots := highLevelRoots(g)
	if len(roots) == 0 {
		return ""
	}
	node := r.selectBestChild(ctx, g, feature, roots)
	for {
		children := highLevelChildren(g, node)
		if len(children) == 0 {
			return node
		}
		node = r.selectBestChild(ctx, g, feature, children)
	}
}

func highLevelRoots(g *rpg.Graph) []string {
	var roots []string
	for _, n := range g.GetHighLevelNodes() {
		if g.GetParent(n.ID) == "" {
			roots = append(roots, n.ID)
		}
	}
	sort.Strings(roots)
	return roots
}

func highLevelChildren(g *rpg.Graph, id string) []string {
	var out []string
	for _, child := range g.GetChildren(id) {
		if n, err := g.GetNode(child); err == nil && n.Kind == rpg.KindHigh {
			out = append(out, child)
		}
	}
	sort.Strings(out)
	return out
}

// selectBestChild picks among candidates: LLM, then embeddings, then the
// first candidate.
func (r *Router) selectBestChild(ctx context.Context, g *rpg.Graph, feature *semantic.Feature, candidates []string) string {
	if len(candidates) == 1 {
		return candidates[0]
	}

	if r.client != nil {
		if id, ok := r.selectByLLM(ctx, g, feature, candidates); ok {
			return id
		}
	}
	if r.embedder != nil {
		if id, ok := r.selectByEmbedding(ctx, g, feature, candidates); ok {
			return id
		}
	}
	if !r.warnedFirstPick {
		slog.Warn("router.fallback.first", "candidates", len(candidates))
		r.warnedFirstPick = true
	}
	return candidates[0]
}

func (r *Router) selectByLLM(ctx context.Context, g *rpg.Graph, feature *semantic.Feature, candidates []string) (string, bool) {
	var b strings.Builder
	fmt.Fprintf(&b, "Entity: %s\n", feature.Description)
	b.WriteString("Candidates:\n")
	for _, id := range candidates {
		desc := ""
		if n, err := g.GetNode(id); err == nil {
			desc = n.Description()
		}
		fmt.Fprintf(&b, "- %s: %s\n", id, desc)
	}

	r.Attempts++
	var pick struct {
		SelectedID *string `json:"selectedId"`
		Confidence float64 `json:"confidence"`
	}
	if err := r.client.CompleteJSON(ctx, b.String(), routingSystemPrompt, &pick); err != nil {
		slog.Warn("router.llm.failed", "err", err)
		return "", false
	}
	if pick.SelectedID == nil {
		return "", false
	}
	for _, id := range candidates {
		if id == *pick.SelectedID {
			return id, true
		}
	}
	slog.Warn("router.llm.invalid", "selected", *pick.SelectedID)
	return "", false
}

func (r *Router) selectByEmbedding(ctx context.Context, g *rpg.Graph, feature *semantic.Feature, candidates []string) (string, bool) {
	target, err := r.embedder.Embed(ctx, feature.Description)
	if err != nil {
		return "", false
	}
	best := ""
	bestScore := -2.0
	for _, id := range candidates {
		n, err := g.GetNode(id)
		if err != nil {
			continue
		}
		vec, err := r.embedder.Embed(ctx, n.Description())
		if err != nil {
			continue
		}
		if score := embedding.Cosine(target.Vector, vec.Vector); score > bestScore {
			best, bestScore = id, score
		}
	}
	return best, best != ""
}
