package rpg

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zeebo/xxh3"
)

var (
	// ErrNodeNotFound is returned when an operation names a missing node.
	ErrNodeNotFound = errors.New("node not found")
	// ErrStaleRevision is returned when an optimistic revision check fails.
	ErrStaleRevision = errors.New("stale graph revision")
)

// Config identifies the repository a graph describes.
type Config struct {
	Name     string  `json:"name"`
	RootPath string  `json:"rootPath"`
	Github   *Github `json:"github,omitempty"`
}

// Github pins the graph to a hosted commit.
type Github struct {
	Owner      string `json:"owner"`
	Repo       string `json:"repo"`
	Commit     string `json:"commit"`
	PathPrefix string `json:"pathPrefix,omitempty"`
}

// Graph is the in-memory repository planning graph. Safe for concurrent
// use.
type Graph struct {
	mu     sync.RWMutex
	config Config

	nodes map[string]*Node

	functional []FunctionalEdge
	dependency []DependencyEdge
	dataflow   []DataFlowEdge

	// parent and children index the functional edges.
	parent   map[string]string
	children map[string][]string
	// depIndex maps "source\x00target" to an index into dependency.
	depIndex map[string]int
	// flowIndex dedups data-flow edges on all four fields.
	flowIndex map[string]bool
}

// New returns an empty graph with the given config.
func New(config Config) *Graph {
	return &Graph{
		config:    config,
		nodes:     make(map[string]*Node),
		parent:    make(map[string]string),
		children:  make(map[string][]string),
		depIndex:  make(map[string]int),
		flowIndex: make(map[string]bool),
	}
}

// Config returns the current config.
func (g *Graph) Config() Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.config
}

// UpdateConfig replaces the config.
func (g *Graph) UpdateConfig(config Config) {
	g.mu.Lock()
	g.config = config
	g.mu.Unlock()
}

// AddLowLevelNode inserts or replaces an extracted code node.
func (g *Graph) AddLowLevelNode(n *Node) {
	n.Kind = KindLow
	g.mu.Lock()
	g.nodes[n.ID] = n
	g.mu.Unlock()
}

// AddHighLevelNode inserts or replaces a reorganization node.
func (g *Graph) AddHighLevelNode(n *Node) {
	n.Kind = KindHigh
	g.mu.Lock()
	g.nodes[n.ID] = n
	g.mu.Unlock()
}

// UpdateNode replaces an existing node in place.
func (g *Graph) UpdateNode(n *Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	old, ok := g.nodes[n.ID]
	if !ok {
		return fmt.Errorf("update %s: %w", n.ID, ErrNodeNotFound)
	}
	n.Kind = old.Kind
	g.nodes[n.ID] = n
	return nil
}

// HasNode reports whether id exists.
func (g *Graph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// GetNode returns the node for id.
func (g *Graph) GetNode(id string) (*Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, ErrNodeNotFound)
	}
	return n, nil
}

// RemoveNode deletes a node and every edge incident to it, in both
// directions and of every type, atomically.
func (g *Graph) RemoveNode(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("remove %s: %w", id, ErrNodeNotFound)
	}
	delete(g.nodes, id)

	kept := g.functional[:0]
	for _, e := range g.functional {
		if e.Source == id || e.Target == id {
			g.unindexFunctional(e)
			continue
		}
		kept = append(kept, e)
	}
	g.functional = kept

	deps := g.dependency[:0]
	for _, e := range g.dependency {
		if e.Source == id || e.Target == id {
			continue
		}
		deps = append(deps, e)
	}
	g.dependency = deps
	g.rebuildDepIndex()

	flows := g.dataflow[:0]
	for _, e := range g.dataflow {
		if e.From == id || e.To == id {
			delete(g.flowIndex, flowKey(e))
			continue
		}
		flows = append(flows, e)
	}
	g.dataflow = flows
	return nil
}

func (g *Graph) unindexFunctional(e FunctionalEdge) {
	delete(g.parent, e.Target)
	siblings := g.children[e.Source]
	for i, c := range siblings {
		if c == e.Target {
			g.children[e.Source] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	if len(g.children[e.Source]) == 0 {
		delete(g.children, e.Source)
	}
}

func (g *Graph) rebuildDepIndex() {
	g.depIndex = make(map[string]int, len(g.dependency))
	for i, e := range g.dependency {
		g.depIndex[depKey(e.Source, e.Target)] = i
	}
}

func depKey(source, target string) string {
	return source + "\x00" + target
}

func flowKey(e DataFlowEdge) string {
	return e.From + "\x00" + e.To + "\x00" + e.DataID + "\x00" + e.DataType
}

// AddFunctionalEdge records containment. Duplicate insertion is a no-op.
// A target may have at most one functional parent.
func (g *Graph) AddFunctionalEdge(source, target string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[source]; !ok {
		return fmt.Errorf("functional edge source %s: %w", source, ErrNodeNotFound)
	}
	if _, ok := g.nodes[target]; !ok {
		return fmt.Errorf("functional edge target %s: %w", target, ErrNodeNotFound)
	}
	if p, ok := g.parent[target]; ok {
		if p == source {
			return nil
		}
		return fmt.Errorf("node %s already has functional parent %s", target, p)
	}
	g.functional = append(g.functional, FunctionalEdge{Source: source, Target: target})
	g.parent[target] = source
	g.children[source] = append(g.children[source], target)
	return nil
}

// AddDependencyEdge records a dependency. One edge per (source, target):
// an import replaces a previously recorded call/inherit/implement, and any
// later kind yields to an existing import. Duplicate insertion is a no-op.
func (g *Graph) AddDependencyEdge(e DependencyEdge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[e.Source]; !ok {
		return fmt.Errorf("dependency edge source %s: %w", e.Source, ErrNodeNotFound)
	}
	if _, ok := g.nodes[e.Target]; !ok {
		return fmt.Errorf("dependency edge target %s: %w", e.Target, ErrNodeNotFound)
	}
	key := depKey(e.Source, e.Target)
	if i, ok := g.depIndex[key]; ok {
		if g.dependency[i].Kind != DepImport && e.Kind == DepImport {
			g.dependency[i] = e
		}
		return nil
	}
	g.depIndex[key] = len(g.dependency)
	g.dependency = append(g.dependency, e)
	return nil
}

// AddDataFlowEdge records a data-flow edge. Duplicate insertion is a no-op.
func (g *Graph) AddDataFlowEdge(e DataFlowEdge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[e.From]; !ok {
		return fmt.Errorf("dataflow edge from %s: %w", e.From, ErrNodeNotFound)
	}
	if _, ok := g.nodes[e.To]; !ok {
		return fmt.Errorf("dataflow edge to %s: %w", e.To, ErrNodeNotFound)
	}
	key := flowKey(e)
	if g.flowIndex[key] {
		return nil
	}
	g.flowIndex[key] = true
	g.dataflow = append(g.dataflow, e)
	return nil
}

// GetParent returns the functional parent of id, or "" when id is a root.
func (g *Graph) GetParent(id string) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.parent[id]
}

// GetChildren returns the functional children of id, in insertion order.
func (g *Graph) GetChildren(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.children[id]...)
}

// GetHighLevelNodes returns all reorganization nodes, sorted by ID.
func (g *Graph) GetHighLevelNodes() []*Node {
	return g.nodesOfKind(KindHigh)
}

// GetLowLevelNodes returns all extracted code nodes, sorted by ID.
func (g *Graph) GetLowLevelNodes() []*Node {
	return g.nodesOfKind(KindLow)
}

func (g *Graph) nodesOfKind(kind NodeKind) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*Node
	for _, n := range g.nodes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetFunctionalEdges returns a copy of all functional edges.
func (g *Graph) GetFunctionalEdges() []FunctionalEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]FunctionalEdge(nil), g.functional...)
}

// GetDependencyEdges returns a copy of all dependency edges.
func (g *Graph) GetDependencyEdges() []DependencyEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]DependencyEdge(nil), g.dependency...)
}

// GetDataFlowEdges returns a copy of all data-flow edges.
func (g *Graph) GetDataFlowEdges() []DataFlowEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]DataFlowEdge(nil), g.dataflow...)
}

// GetOutEdges returns every edge leaving id, optionally filtered by
// category.
func (g *Graph) GetOutEdges(id string, categories ...EdgeCategory) []EdgeRef {
	return g.incident(id, true, categories)
}

// GetInEdges returns every edge entering id, optionally filtered by
// category.
func (g *Graph) GetInEdges(id string, categories ...EdgeCategory) []EdgeRef {
	return g.incident(id, false, categories)
}

func (g *Graph) incident(id string, outgoing bool, categories []EdgeCategory) []EdgeRef {
	want := func(c EdgeCategory) bool {
		if len(categories) == 0 {
			return true
		}
		for _, cat := range categories {
			if cat == c {
				return true
			}
		}
		return false
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []EdgeRef
	if want(CategoryFunctional) {
		for _, e := range g.functional {
			if (outgoing && e.Source == id) || (!outgoing && e.Target == id) {
				out = append(out, EdgeRef{Category: CategoryFunctional, Source: e.Source, Target: e.Target})
			}
		}
	}
	if want(CategoryDependency) {
		for _, e := range g.dependency {
			if (outgoing && e.Source == id) || (!outgoing && e.Target == id) {
				out = append(out, EdgeRef{Category: CategoryDependency, Source: e.Source, Target: e.Target, Kind: string(e.Kind)})
			}
		}
	}
	if want(CategoryDataFlow) {
		for _, e := range g.dataflow {
			if (outgoing && e.From == id) || (!outgoing && e.To == id) {
				out = append(out, EdgeRef{Category: CategoryDataFlow, Source: e.From, Target: e.To, Kind: e.DataType})
			}
		}
	}
	return out
}

// Stats summarizes the graph.
type Stats struct {
	HighLevelNodes  int            `json:"highLevelNodes"`
	LowLevelNodes   int            `json:"lowLevelNodes"`
	FunctionalEdges int            `json:"functionalEdges"`
	DependencyEdges map[string]int `json:"dependencyEdges"`
	DataFlowEdges   map[string]int `json:"dataFlowEdges"`
}

// GetStats counts nodes and edges, dependency and data-flow edges broken
// down by kind.
func (g *Graph) GetStats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s := Stats{
		FunctionalEdges: len(g.functional),
		DependencyEdges: make(map[string]int),
		DataFlowEdges:   make(map[string]int),
	}
	for _, n := range g.nodes {
		if n.Kind == KindHigh {
			s.HighLevelNodes++
		} else {
			s.LowLevelNodes++
		}
	}
	for _, e := range g.dependency {
		s.DependencyEdges[string(e.Kind)]++
	}
	for _, e := range g.dataflow {
		s.DataFlowEdges[e.DataType]++
	}
	return s
}

// Revision digests node identities, descriptions and the functional
// structure into a 16 hex digit tag for optimistic concurrency.
func (g *Graph) Revision() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h := xxh3.New()
	for _, id := range ids {
		_, _ = h.WriteString(id)
		_, _ = h.WriteString("|")
		_, _ = h.WriteString(g.nodes[id].Description())
		_, _ = h.WriteString("\n")
	}
	edges := make([]string, 0, len(g.functional))
	for _, e := range g.functional {
		edges = append(edges, e.Source+">"+e.Target)
	}
	sort.Strings(edges)
	for _, e := range edges {
		_, _ = h.WriteString(e)
		_, _ = h.WriteString("\n")
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// VerifyRevision fails with ErrStaleRevision when revision no longer
// matches the graph.
func (g *Graph) VerifyRevision(revision string) error {
	if current := g.Revision(); current != revision {
		return fmt.Errorf("revision %s, current %s: %w", revision, current, ErrStaleRevision)
	}
	return nil
}
