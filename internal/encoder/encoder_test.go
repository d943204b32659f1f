package encoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pleaseai/repograph/internal/rpg"
	"github.com/pleaseai/repograph/internal/semantic"
)

func writeFixture(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func encodeFixture(t *testing.T, root string, opts Options) *Result {
	t.Helper()
	enc := New(nil, nil, semantic.Options{})
	res, err := enc.Encode(context.Background(), rpg.Config{Name: "fixture", RootPath: root}, opts)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestEncodeBuildsFileAndEntityNodes(t *testing.T) {
	root := writeFixture(t, map[string]string{
		"app/main.js": "import { helper } from \"./util\";\n\nfunction run() {\n  return helper();\n}\n",
		"app/util.js": "function helper() {\n  return 1;\n}\n",
	})
	res := encodeFixture(t, root, Options{})

	if res.FilesProcessed != 2 {
		t.Fatalf("files = %d", res.FilesProcessed)
	}
	if res.EntitiesExtracted != 2 {
		t.Fatalf("entities = %d", res.EntitiesExtracted)
	}
	g := res.Graph

	mainID := rpg.FileNodeID("app/main.js")
	runID := rpg.EntityNodeID("app/main.js", "function", "run", 3)
	for _, id := range []string{mainID, rpg.FileNodeID("app/util.js"), runID} {
		if !g.HasNode(id) {
			t.Fatalf("missing node %q", id)
		}
	}
	if got := g.GetParent(runID); got != mainID {
		t.Fatalf("run parent = %q", got)
	}

	// Without an LLM the hierarchy phase is skipped entirely.
	if n := len(g.GetHighLevelNodes()); n != 0 {
		t.Fatalf("high-level nodes = %d", n)
	}
}

func TestEncodeInjectsImportEdges(t *testing.T) {
	root := writeFixture(t, map[string]string{
		"app/main.js": "import { helper } from \"./util\";\n\nfunction run() {\n  return helper();\n}\n",
		"app/util.js": "function helper() {\n  return 1;\n}\n",
	})
	g := encodeFixture(t, root, Options{}).Graph

	mainID := rpg.FileNodeID("app/main.js")
	utilID := rpg.FileNodeID("app/util.js")
	var found *rpg.DependencyEdge
	for _, e := range g.GetDependencyEdges() {
		if e.Source == mainID && e.Target == utilID {
			found = &e
			break
		}
	}
	if found == nil {
		t.Fatal("no dependency edge from main to util")
	}
	// The same file pair also carries a call; import wins the dedup.
	if found.Kind != rpg.DepImport {
		t.Fatalf("kind = %q", found.Kind)
	}

	// Import data flow runs from the defining file to the importer.
	var flow bool
	for _, e := range g.GetDataFlowEdges() {
		if e.From == utilID && e.To == mainID && e.DataID == "helper" && e.DataType == rpg.FlowImport {
			flow = true
		}
	}
	if !flow {
		t.Fatal("missing import data-flow edge util -> main")
	}
}

func TestEncodeDeterministicRevision(t *testing.T) {
	files := map[string]string{
		"app/main.js": "function run() {\n  return 1;\n}\n",
		"lib/util.js": "function helper() {\n  return 2;\n}\n",
	}
	first := encodeFixture(t, writeFixture(t, files), Options{}).Graph.Revision()
	second := encodeFixture(t, writeFixture(t, files), Options{}).Graph.Revision()
	if first != second {
		t.Fatalf("revisions differ: %q vs %q", first, second)
	}
}

func TestEncodeDedupesFileDescriptions(t *testing.T) {
	// Two empty files named util produce identical aggregate descriptions.
	root := writeFixture(t, map[string]string{
		"a/util.js": "",
		"b/util.js": "",
	})
	g := encodeFixture(t, root, Options{}).Graph

	a, err := g.GetNode(rpg.FileNodeID("a/util.js"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := g.GetNode(rpg.FileNodeID("b/util.js"))
	if err != nil {
		t.Fatal(err)
	}
	if a.Feature.Description == b.Feature.Description {
		t.Fatalf("descriptions not deduplicated: %q", a.Feature.Description)
	}
	// Path order decides who keeps the original.
	if !strings.HasSuffix(b.Feature.Description, "_1") {
		t.Fatalf("b description = %q", b.Feature.Description)
	}
}

func TestEncodeIncludeSource(t *testing.T) {
	source := "function run() {\n  return 1;\n}\n"
	root := writeFixture(t, map[string]string{"app/main.js": source})
	g := encodeFixture(t, root, Options{IncludeSource: true}).Graph

	n, err := g.GetNode(rpg.FileNodeID("app/main.js"))
	if err != nil {
		t.Fatal(err)
	}
	if n.SourceCode != source {
		t.Fatalf("file source = %q", n.SourceCode)
	}
	entity, err := g.GetNode(rpg.EntityNodeID("app/main.js", "function", "run", 1))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(entity.SourceCode, "function run()") {
		t.Fatalf("entity source = %q", entity.SourceCode)
	}
}

func TestEncodeRequireLLMWithoutClient(t *testing.T) {
	enc := New(nil, nil, semantic.Options{})
	_, err := enc.Encode(context.Background(), rpg.Config{RootPath: t.TempDir()}, Options{RequireLLM: true})
	if !errors.Is(err, ErrLLMRequired) {
		t.Fatalf("err = %v", err)
	}
}

func TestEncodeMissingRoot(t *testing.T) {
	enc := New(nil, nil, semantic.Options{})
	_, err := enc.Encode(context.Background(), rpg.Config{RootPath: filepath.Join(t.TempDir(), "nope")}, Options{})
	if err == nil {
		t.Fatal("expected an error for a missing root")
	}
}
