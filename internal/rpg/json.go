package rpg

import (
	"encoding/json"
	"fmt"
	"sort"
)

// FormatVersion is the persisted document version.
const FormatVersion = 1

type document struct {
	Version         int              `json:"version"`
	Config          Config           `json:"config"`
	Nodes           []*Node          `json:"nodes"`
	FunctionalEdges []FunctionalEdge `json:"functionalEdges"`
	DependencyEdges []DependencyEdge `json:"dependencyEdges"`
	DataFlowEdges   []DataFlowEdge   `json:"dataFlowEdges"`
}

// ToJSON serializes the graph into a stable document: nodes and edges are
// emitted in sorted order so equal graphs produce identical bytes.
func (g *Graph) ToJSON() ([]byte, error) {
	g.mu.RLock()
	doc := document{
		Version:         FormatVersion,
		Config:          g.config,
		FunctionalEdges: append([]FunctionalEdge(nil), g.functional...),
		DependencyEdges: append([]DependencyEdge(nil), g.dependency...),
		DataFlowEdges:   append([]DataFlowEdge(nil), g.dataflow...),
	}
	doc.Nodes = make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		doc.Nodes = append(doc.Nodes, n)
	}
	g.mu.RUnlock()

	sort.Slice(doc.Nodes, func(i, j int) bool { return doc.Nodes[i].ID < doc.Nodes[j].ID })
	sort.Slice(doc.FunctionalEdges, func(i, j int) bool {
		a, b := doc.FunctionalEdges[i], doc.FunctionalEdges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Target < b.Target
	})
	sort.Slice(doc.DependencyEdges, func(i, j int) bool {
		a, b := doc.DependencyEdges[i], doc.DependencyEdges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Target < b.Target
	})
	sort.Slice(doc.DataFlowEdges, func(i, j int) bool {
		a, b := doc.DataFlowEdges[i], doc.DataFlowEdges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		if a.DataID != b.DataID {
			return a.DataID < b.DataID
		}
		return a.DataType < b.DataType
	})

	return json.MarshalIndent(doc, "", "  ")
}

// FromJSON reconstructs a graph from a serialized document, re-validating
// every edge endpoint.
func FromJSON(data []byte) (*Graph, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode graph document: %w", err)
	}
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported graph document version %d", doc.Version)
	}

	g := New(doc.Config)
	for _, n := range doc.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("graph document contains a node with empty id")
		}
		g.nodes[n.ID] = n
	}
	for _, e := range doc.FunctionalEdges {
		if err := g.AddFunctionalEdge(e.Source, e.Target); err != nil {
			return nil, fmt.Errorf("restore functional edge: %w", err)
		}
	}
	for _, e := range doc.DependencyEdges {
		if err := g.AddDependencyEdge(e); err != nil {
			return nil, fmt.Errorf("restore dependency edge: %w", err)
		}
	}
	for _, e := range doc.DataFlowEdges {
		if err := g.AddDataFlowEdge(e); err != nil {
			return nil, fmt.Errorf("restore dataflow edge: %w", err)
		}
	}
	return g, nil
}
