package discover

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func relPaths(t *testing.T, root string, files []string) []string {
	t.Helper()
	out := make([]string, len(files))
	for i, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			t.Fatal(err)
		}
		out[i] = filepath.ToSlash(rel)
	}
	return out
}

func TestDiscoverWalkFiltersAndSorts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.py")
	writeFile(t, root, "src/util.ts")
	writeFile(t, root, "README.md")
	writeFile(t, root, "node_modules/pkg/index.js")
	writeFile(t, root, "dist/bundle.js")

	res, err := Discover(root, Options{})
	if err != nil {
		t.Fatal(err)
	}
	got := relPaths(t, root, res.Files)
	want := []string{"src/app.py", "src/util.ts"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("files = %v, want %v", got, want)
	}
}

func TestDiscoverCustomIncludeExclude(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py")
	writeFile(t, root, "b.go")
	writeFile(t, root, "vendor/c.py")

	res, err := Discover(root, Options{
		Include: []string{"**/*.py"},
		Exclude: []string{"vendor/**"},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := relPaths(t, root, res.Files)
	if len(got) != 1 || got[0] != "a.py" {
		t.Fatalf("files = %v", got)
	}
}

func TestDiscoverMaxDepth(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py")
	writeFile(t, root, "one/two/three/deep.py")

	res, err := Discover(root, Options{MaxDepth: 2})
	if err != nil {
		t.Fatal(err)
	}
	got := relPaths(t, root, res.Files)
	if len(got) != 1 || got[0] != "a.py" {
		t.Fatalf("files = %v", got)
	}
}

func TestDiscoverMissingRoot(t *testing.T) {
	if _, err := Discover(filepath.Join(t.TempDir(), "absent"), Options{}); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestParseExcludedPaths(t *testing.T) {
	content := "# build output\ndist/**\n\n// editor junk\n*.swp\n  vendor/** \n"
	got := ParseExcludedPaths(content)
	want := []string{"dist/**", "*.swp", "vendor/**"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("globs = %v, want %v", got, want)
	}
}

func TestLoadIgnoreFileMissing(t *testing.T) {
	globs, err := LoadIgnoreFile(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if globs != nil {
		t.Fatalf("globs = %v", globs)
	}
}

func TestGitBinaryNeverUsesCwd(t *testing.T) {
	ResetGitBinary()
	t.Setenv("PATH", ".:"+os.Getenv("PATH"))
	if p := GitBinary(); p == "git" || strings.HasPrefix(p, "./") {
		t.Fatalf("git resolved relative to cwd: %q", p)
	}
	ResetGitBinary()
}
