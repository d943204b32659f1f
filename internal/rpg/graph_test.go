package rpg

import (
	"errors"
	"testing"

	"github.com/pleaseai/repograph/internal/semantic"
)

func lowNode(id string) *Node {
	return &Node{ID: id, Feature: &semantic.Feature{Description: "provide " + id + " operation"}}
}

func TestEdgeEndpointsMustExist(t *testing.T) {
	g := New(Config{Name: "t"})
	g.AddLowLevelNode(lowNode("a.py:file"))

	if err := g.AddDependencyEdge(DependencyEdge{Source: "a.py:file", Target: "missing", Kind: DepImport}); !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
	if err := g.AddFunctionalEdge("missing", "a.py:file"); !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
	if err := g.AddDataFlowEdge(DataFlowEdge{From: "a.py:file", To: "missing", DataID: "x", DataType: FlowImport}); !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestRemoveNodeCascades(t *testing.T) {
	g := New(Config{})
	for _, id := range []string{"a.py:file", "b.py:file", "c.py:file"} {
		g.AddLowLevelNode(lowNode(id))
	}
	if err := g.AddDependencyEdge(DependencyEdge{Source: "a.py:file", Target: "b.py:file", Kind: DepImport}); err != nil {
		t.Fatal(err)
	}
	if err := g.AddDependencyEdge(DependencyEdge{Source: "c.py:file", Target: "b.py:file", Kind: DepCall}); err != nil {
		t.Fatal(err)
	}
	if err := g.AddDataFlowEdge(DataFlowEdge{From: "b.py:file", To: "c.py:file", DataID: "cfg", DataType: FlowImport}); err != nil {
		t.Fatal(err)
	}

	if err := g.RemoveNode("b.py:file"); err != nil {
		t.Fatal(err)
	}
	for _, ref := range append(g.GetOutEdges("b.py:file"), g.GetInEdges("b.py:file")...) {
		t.Fatalf("edge incident to removed node survived: %+v", ref)
	}
	if len(g.GetDependencyEdges()) != 0 || len(g.GetDataFlowEdges()) != 0 {
		t.Fatalf("cascade left edges behind: %d dep, %d flow",
			len(g.GetDependencyEdges()), len(g.GetDataFlowEdges()))
	}

	// Remaining nodes still work.
	if err := g.AddDependencyEdge(DependencyEdge{Source: "a.py:file", Target: "c.py:file", Kind: DepCall}); err != nil {
		t.Fatal(err)
	}
}

func TestDependencyDedupImportPrecedence(t *testing.T) {
	g := New(Config{})
	g.AddLowLevelNode(lowNode("a.py:file"))
	g.AddLowLevelNode(lowNode("b.py:file"))

	must := func(e DependencyEdge) {
		t.Helper()
		if err := g.AddDependencyEdge(e); err != nil {
			t.Fatal(err)
		}
	}

	// call first, then import upgrades in place.
	must(DependencyEdge{Source: "a.py:file", Target: "b.py:file", Kind: DepCall})
	must(DependencyEdge{Source: "a.py:file", Target: "b.py:file", Kind: DepImport})
	edges := g.GetDependencyEdges()
	if len(edges) != 1 || edges[0].Kind != DepImport {
		t.Fatalf("expected single import edge, got %+v", edges)
	}

	// a later call yields to the existing import.
	must(DependencyEdge{Source: "a.py:file", Target: "b.py:file", Kind: DepInherit})
	edges = g.GetDependencyEdges()
	if len(edges) != 1 || edges[0].Kind != DepImport {
		t.Fatalf("import should win, got %+v", edges)
	}
}

func TestFunctionalSingleParent(t *testing.T) {
	g := New(Config{})
	g.AddHighLevelNode(&Node{ID: DomainNodeID("Auth")})
	g.AddHighLevelNode(&Node{ID: DomainNodeID("Storage")})
	g.AddLowLevelNode(lowNode("a.py:file"))

	if err := g.AddFunctionalEdge("domain:Auth", "a.py:file"); err != nil {
		t.Fatal(err)
	}
	// Duplicate insertion leaves one edge.
	if err := g.AddFunctionalEdge("domain:Auth", "a.py:file"); err != nil {
		t.Fatal(err)
	}
	if n := len(g.GetFunctionalEdges()); n != 1 {
		t.Fatalf("expected 1 functional edge, got %d", n)
	}
	// A second parent is rejected.
	if err := g.AddFunctionalEdge("domain:Storage", "a.py:file"); err == nil {
		t.Fatal("expected second-parent rejection")
	}
	if got := g.GetParent("a.py:file"); got != "domain:Auth" {
		t.Fatalf("parent = %q", got)
	}
}

func TestDomainIDGrammar(t *testing.T) {
	id := DomainNodeID("Auth", "validate credentials", "check token expiry")
	segs, err := DomainSegments(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 3 || segs[0] != "Auth" {
		t.Fatalf("segments = %v", segs)
	}
	if _, err := DomainSegments("a.py:file"); err == nil {
		t.Fatal("expected error for non-domain id")
	}
	if _, err := DomainSegments("domain:A/b/c/d"); err == nil {
		t.Fatal("expected error for 4 segments")
	}
}

func TestEntityNodeIDs(t *testing.T) {
	if got := FileNodeID("src/a.py"); got != "src/a.py:file" {
		t.Fatalf("file id = %q", got)
	}
	if got := EntityNodeID("src/a.py", EntityFunction, "login", 42); got != "src/a.py:function:login:42" {
		t.Fatalf("entity id = %q", got)
	}
	if got := EntityNodeID("src/a.py", EntityClass, "User", 0); got != "src/a.py:class:User" {
		t.Fatalf("entity id without line = %q", got)
	}
}

func TestRevisionAndStaleCheck(t *testing.T) {
	g := New(Config{})
	g.AddLowLevelNode(lowNode("a.py:file"))
	rev := g.Revision()
	if len(rev) != 16 {
		t.Fatalf("revision %q not 16 hex digits", rev)
	}
	if err := g.VerifyRevision(rev); err != nil {
		t.Fatal(err)
	}

	g.AddLowLevelNode(lowNode("b.py:file"))
	if err := g.VerifyRevision(rev); !errors.Is(err, ErrStaleRevision) {
		t.Fatalf("expected ErrStaleRevision, got %v", err)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	g := New(Config{
		Name:     "demo",
		RootPath: "/tmp/demo",
		Github:   &Github{Owner: "o", Repo: "r", Commit: "abc"},
	})
	g.AddHighLevelNode(&Node{
		ID:      DomainNodeID("Auth"),
		Feature: &semantic.Feature{Description: "authenticate users"},
	})
	g.AddLowLevelNode(&Node{
		ID:      "src/a.py:file",
		Feature: &semantic.Feature{Description: "validate login requests", Keywords: []string{"auth"}},
		Metadata: Metadata{
			EntityType: EntityFile,
			Path:       "src/a.py",
		},
	})
	if err := g.AddFunctionalEdge("domain:Auth", "src/a.py:file"); err != nil {
		t.Fatal(err)
	}
	if err := g.AddDataFlowEdge(DataFlowEdge{From: "src/a.py:file", To: "src/a.py:file", DataID: "req", DataType: FlowParameter}); err != nil {
		t.Fatal(err)
	}

	data, err := g.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	restored, err := FromJSON(data)
	if err != nil {
		t.Fatal(err)
	}

	if restored.Revision() != g.Revision() {
		t.Fatal("revision changed across round trip")
	}
	data2, err := restored.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(data2) {
		t.Fatal("serialization not stable across round trip")
	}
	if restored.Config().Github == nil || restored.Config().Github.Commit != "abc" {
		t.Fatalf("config lost: %+v", restored.Config())
	}
}

func TestStatsCountsByKind(t *testing.T) {
	g := New(Config{})
	g.AddHighLevelNode(&Node{ID: DomainNodeID("Auth")})
	g.AddLowLevelNode(lowNode("a.py:file"))
	g.AddLowLevelNode(lowNode("b.py:file"))
	if err := g.AddDependencyEdge(DependencyEdge{Source: "a.py:file", Target: "b.py:file", Kind: DepImport}); err != nil {
		t.Fatal(err)
	}
	if err := g.AddDataFlowEdge(DataFlowEdge{From: "a.py:file", To: "b.py:file", DataID: "x", DataType: FlowVariableChain}); err != nil {
		t.Fatal(err)
	}

	s := g.GetStats()
	if s.HighLevelNodes != 1 || s.LowLevelNodes != 2 {
		t.Fatalf("node counts: %+v", s)
	}
	if s.DependencyEdges["import"] != 1 || s.DataFlowEdges["variable_chain"] != 1 {
		t.Fatalf("edge counts: %+v", s)
	}
}
