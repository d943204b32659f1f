package inject

import (
	"context"
	"fmt"
	"strings"

	"github.com/pleaseai/repograph/internal/rpg"
)

const crossAreaSystemPrompt = `You are a software data-flow analyst. Given functional areas with their contents and the known dependency edges, identify data flowing between areas.
Respond with a JSON array: [{"source": "Area", "target": "Area", "data_id": "what flows", "data_type": "kind of flow"}]`

type crossAreaFlow struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	DataID   string `json:"data_id"`
	DataType string `json:"data_type"`
}

// InjectCrossArea asks the LLM for inter-area data flows and adds them as
// data-flow edges between area nodes. No-op without a client or areas.
func (in *Injector) InjectCrossArea(ctx context.Context, g *rpg.Graph) ([]string, error) {
	if in.client == nil {
		return nil, nil
	}
	areas := map[string]bool{}
	var roots []*rpg.Node
	for _, n := range g.GetHighLevelNodes() {
		if g.GetParent(n.ID) != "" {
			continue
		}
		segs, err := rpg.DomainSegments(n.ID)
		if err != nil || len(segs) != 1 {
			continue
		}
		areas[segs[0]] = true
		roots = append(roots, n)
	}
	if len(roots) < 2 {
		return nil, nil
	}

	prompt := buildCrossAreaPrompt(g, roots)
	var flows []crossAreaFlow
	if err := in.client.CompleteJSON(ctx, prompt, crossAreaSystemPrompt, &flows); err != nil {
		return []string{fmt.Sprintf("cross-area analysis failed: %v", err)}, nil
	}

	var warnings []string
	for _, f := range flows {
		if f.Source == f.Target || !areas[f.Source] || !areas[f.Target] {
			continue
		}
		if f.DataType == "" {
			f.DataType = rpg.FlowVariableChain
		}
		err := g.AddDataFlowEdge(rpg.DataFlowEdge{
			From:     rpg.DomainNodeID(f.Source),
			To:       rpg.DomainNodeID(f.Target),
			DataID:   f.DataID,
			DataType: f.DataType,
		})
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("cross-area edge %s to %s: %v", f.Source, f.Target, err))
		}
	}
	return warnings, nil
}

// buildCrossAreaPrompt summarizes each area subtree and the current
// dependency edges.
func buildCrossAreaPrompt(g *rpg.Graph, roots []*rpg.Node) string {
	var b strings.Builder
	b.WriteString("Areas:\n")
	for _, root := range roots {
		fmt.Fprintf(&b, "- %s: %s\n", root.ID, root.Description())
		for _, child := range g.GetChildren(root.ID) {
			if n, err := g.GetNode(child); err == nil {
				fmt.Fprintf(&b, "  - %s\n", n.Description())
			}
		}
	}
	b.WriteString("Dependency edges:\n")
	for _, e := range g.GetDependencyEdges() {
		fmt.Fprintf(&b, "- %s -> %s (%s)\n", e.Source, e.Target, e.Kind)
	}
	return b.String()
}
