package evolve

import (
	"context"
	"errors"
	"testing"

	"github.com/pleaseai/repograph/internal/rpg"
	"github.com/pleaseai/repograph/internal/semantic"
)

func newTestEvolver() *Evolver {
	return New(semantic.NewExtractor(nil, nil, semantic.Options{}), nil, nil)
}

// testGraph builds Core/manage records/store files -> {X: a/x.py, Y: a/y.py}.
func testGraph(t *testing.T) *rpg.Graph {
	t.Helper()
	g := rpg.New(rpg.Config{Name: "t"})
	area := rpg.DomainNodeID("Core")
	cat := rpg.DomainNodeID("Core", "manage records")
	sub := rpg.DomainNodeID("Core", "manage records", "store files")
	for _, id := range []string{area, cat, sub} {
		g.AddHighLevelNode(&rpg.Node{ID: id, Feature: &semantic.Feature{Description: "store records"}})
	}
	if err := g.AddFunctionalEdge(area, cat); err != nil {
		t.Fatal(err)
	}
	if err := g.AddFunctionalEdge(cat, sub); err != nil {
		t.Fatal(err)
	}
	for _, rel := range []string{"a/x.py", "a/y.py"} {
		n := &rpg.Node{
			ID:       rpg.FileNodeID(rel),
			Feature:  &semantic.Feature{Description: "persist " + rel + " records", Keywords: []string{"auth", "login"}},
			Metadata: rpg.Metadata{EntityType: rpg.EntityFile, Path: rel},
		}
		g.AddLowLevelNode(n)
		if err := g.AddFunctionalEdge(sub, n.ID); err != nil {
			t.Fatal(err)
		}
	}
	return g
}

func TestApplyEmptyDiffIsNoOp(t *testing.T) {
	g := testGraph(t)
	rev := g.Revision()

	res, err := newTestEvolver().Apply(context.Background(), g, &DiffResult{}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted+res.Deleted+res.Modified+res.Rerouted+res.PrunedNodes != 0 {
		t.Fatalf("counters moved: %+v", res)
	}
	if g.Revision() != rev {
		t.Fatal("graph mutated by empty diff")
	}
}

func TestApplyDeleteModifyInsertOrdering(t *testing.T) {
	g := testGraph(t)
	// A surviving sibling keeps the hierarchy from being pruned when x
	// and y leave it mid-run.
	leaf := rpg.DomainNodeID("Core", "manage records", "store files")
	keep := &rpg.Node{
		ID:       rpg.FileNodeID("a/keep.py"),
		Feature:  &semantic.Feature{Description: "persist keep records"},
		Metadata: rpg.Metadata{EntityType: rpg.EntityFile, Path: "a/keep.py"},
	}
	g.AddLowLevelNode(keep)
	if err := g.AddFunctionalEdge(leaf, keep.ID); err != nil {
		t.Fatal(err)
	}

	diff := &DiffResult{
		Deletions: []ChangedEntity{{
			ID: StableID("a/x.py", rpg.EntityFile, "x.py"), FilePath: "a/x.py", EntityType: rpg.EntityFile, Name: "x.py",
		}},
		Modifications: []Modification{{
			Old: ChangedEntity{ID: StableID("a/y.py", rpg.EntityFile, "y.py"), FilePath: "a/y.py", EntityType: rpg.EntityFile, Name: "y.py"},
			// The new shape has nothing in common with the stored
			// feature, so keyword drift forces a re-route.
			New: ChangedEntity{ID: StableID("a/y.py", rpg.EntityFile, "y.py"), FilePath: "a/y.py", EntityType: rpg.EntityFile, Name: "y.py", QualifiedName: "y.py"},
		}},
		Insertions: []ChangedEntity{{
			ID: StableID("a/z.py", rpg.EntityFile, "z.py"), FilePath: "a/z.py", EntityType: rpg.EntityFile, Name: "z.py", QualifiedName: "z.py",
		}},
	}
	// Ten low-level nodes would be needed to pass the 0.5 gate with 3
	// changes over 2 nodes; relax the threshold instead.
	res, err := newTestEvolver().Apply(context.Background(), g, diff, Options{ForceRegenerateThreshold: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("errors = %+v", res.Errors)
	}
	if res.Deleted != 1 || res.Rerouted != 1 || res.Inserted != 1 || res.Modified != 0 {
		t.Fatalf("counters = %+v", res)
	}
	if g.HasNode(rpg.FileNodeID("a/x.py")) {
		t.Fatal("deleted node survived")
	}
	if !g.HasNode(rpg.FileNodeID("a/y.py")) || !g.HasNode(rpg.FileNodeID("a/z.py")) {
		t.Fatal("rerouted or inserted node missing")
	}
	// Rerouted and inserted files land under the hierarchy leaf.
	if got := g.GetParent(rpg.FileNodeID("a/z.py")); got != leaf {
		t.Fatalf("z parent = %q", got)
	}
}

func TestApplyModifyInPlaceWhenDriftLow(t *testing.T) {
	g := testGraph(t)
	// Align the stored feature with what heuristic extraction will
	// produce for the new shape, so drift is zero.
	n, err := g.GetNode(rpg.FileNodeID("a/y.py"))
	if err != nil {
		t.Fatal(err)
	}
	input := semantic.EntityInput{Type: rpg.EntityFile, Name: "y.py", FilePath: "a/y.py"}
	n.Feature = semantic.HeuristicFeature(input)
	if err := g.UpdateNode(n); err != nil {
		t.Fatal(err)
	}

	diff := &DiffResult{
		Modifications: []Modification{{
			Old: ChangedEntity{FilePath: "a/y.py", EntityType: rpg.EntityFile, Name: "y.py"},
			New: ChangedEntity{FilePath: "a/y.py", EntityType: rpg.EntityFile, Name: "y.py", StartLine: 1, EndLine: 9},
		}},
	}
	res, err := newTestEvolver().Apply(context.Background(), g, diff, Options{ForceRegenerateThreshold: 100})
	if err != nil {
		t.Fatal(err)
	}
	if res.Modified != 1 || res.Rerouted != 0 {
		t.Fatalf("counters = %+v", res)
	}
	updated, err := g.GetNode(rpg.FileNodeID("a/y.py"))
	if err != nil {
		t.Fatal(err)
	}
	if updated.Metadata.EndLine != 9 {
		t.Fatalf("metadata not refreshed: %+v", updated.Metadata)
	}
	leaf := rpg.DomainNodeID("Core", "manage records", "store files")
	if got := g.GetParent(rpg.FileNodeID("a/y.py")); got != leaf {
		t.Fatalf("in-place modify moved the node: parent = %q", got)
	}
}

func TestApplyPrunesOrphanedAncestors(t *testing.T) {
	g := testGraph(t)
	diff := &DiffResult{
		Deletions: []ChangedEntity{
			{FilePath: "a/x.py", EntityType: rpg.EntityFile, Name: "x.py"},
			{FilePath: "a/y.py", EntityType: rpg.EntityFile, Name: "y.py"},
		},
	}
	res, err := newTestEvolver().Apply(context.Background(), g, diff, Options{ForceRegenerateThreshold: 100})
	if err != nil {
		t.Fatal(err)
	}
	if res.Deleted != 2 {
		t.Fatalf("deleted = %d", res.Deleted)
	}
	// Second deletion empties the leaf; the whole chain unwinds.
	if res.PrunedNodes != 3 {
		t.Fatalf("pruned = %d", res.PrunedNodes)
	}
	if g.HasNode(rpg.DomainNodeID("Core")) {
		t.Fatal("orphaned area survived")
	}
}

func TestApplyDeletionIdempotent(t *testing.T) {
	g := testGraph(t)
	diff := &DiffResult{
		Deletions: []ChangedEntity{{FilePath: "gone.py", EntityType: rpg.EntityFile, Name: "gone.py"}},
	}
	res, err := newTestEvolver().Apply(context.Background(), g, diff, Options{ForceRegenerateThreshold: 100})
	if err != nil {
		t.Fatal(err)
	}
	if res.Deleted != 0 || len(res.Errors) != 0 {
		t.Fatalf("res = %+v", res)
	}
}

func TestApplyChangeRatioGate(t *testing.T) {
	g := testGraph(t)
	rev := g.Revision()
	diff := &DiffResult{
		Insertions: []ChangedEntity{
			{FilePath: "n1.py", EntityType: rpg.EntityFile, Name: "n1.py"},
			{FilePath: "n2.py", EntityType: rpg.EntityFile, Name: "n2.py"},
		},
	}
	// 2 changes over 2 low-level nodes = 1.0 > 0.5.
	res, err := newTestEvolver().Apply(context.Background(), g, diff, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.RequiresFullEncode {
		t.Fatal("expected full-encode gate to trip")
	}
	if g.Revision() != rev {
		t.Fatal("gated run mutated the graph")
	}
}

func TestApplyStaleRevisionRejected(t *testing.T) {
	g := testGraph(t)
	diff := &DiffResult{
		Insertions: []ChangedEntity{{FilePath: "n.py", EntityType: rpg.EntityFile, Name: "n.py"}},
	}
	_, err := newTestEvolver().Apply(context.Background(), g, diff, Options{
		Revision:                 "0000000000000000",
		ForceRegenerateThreshold: 100,
	})
	if !errors.Is(err, rpg.ErrStaleRevision) {
		t.Fatalf("err = %v", err)
	}
	if g.HasNode(rpg.FileNodeID("n.py")) {
		t.Fatal("stale run mutated the graph")
	}
}

func TestResolveNodeIDPrefixMatch(t *testing.T) {
	g := rpg.New(rpg.Config{})
	id := rpg.EntityNodeID("a.py", "function", "login", 42)
	g.AddLowLevelNode(&rpg.Node{ID: id, Feature: &semantic.Feature{Description: "authenticate user"}})

	got := resolveNodeID(g, ChangedEntity{FilePath: "a.py", EntityType: "function", Name: "login"})
	if got != id {
		t.Fatalf("resolved %q, want %q", got, id)
	}
	if resolveNodeID(g, ChangedEntity{FilePath: "a.py", EntityType: "function", Name: "logout"}) != "" {
		t.Fatal("unexpected match for unknown entity")
	}
}

func TestParseNameStatus(t *testing.T) {
	tests := []struct {
		line                     string
		status, oldPath, newPath string
		ok                       bool
	}{
		{"M\tsrc/app.py", "M", "src/app.py", "src/app.py", true},
		{"A\tsrc/new.py", "A", "src/new.py", "src/new.py", true},
		// Paths with spaces are tab-delimited, not quoted.
		{"M\tmy mod.py", "M", "my mod.py", "my mod.py", true},
		{"R100\told name.py\tnew name.py", "R100", "old name.py", "new name.py", true},
		{"C75\ta.py\tcopies/a copy.py", "C75", "a.py", "copies/a copy.py", true},
		{"D\tgone.py\r", "D", "gone.py", "gone.py", true},
		{"", "", "", "", false},
		{"M", "", "", "", false},
		{"R100\tonly-old.py", "", "", "", false},
	}
	for _, tt := range tests {
		status, oldPath, newPath, ok := parseNameStatus(tt.line)
		if ok != tt.ok || status != tt.status || oldPath != tt.oldPath || newPath != tt.newPath {
			t.Errorf("parseNameStatus(%q) = (%q, %q, %q, %v), want (%q, %q, %q, %v)",
				tt.line, status, oldPath, newPath, ok, tt.status, tt.oldPath, tt.newPath, tt.ok)
		}
	}
}

func TestParseCommitRange(t *testing.T) {
	if _, _, err := parseCommitRange("HEAD~1..HEAD"); err != nil {
		t.Fatal(err)
	}
	for _, bad := range []string{"HEAD", "..HEAD", "a..", ""} {
		if _, _, err := parseCommitRange(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
