// Package discover enumerates the source files an encode run will parse.
// It prefers git's index (respecting .gitignore) and falls back to a
// bounded directory walk.
package discover

import (
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/pleaseai/repograph/internal/lang"
)

// DefaultMaxDepth bounds directory recursion.
const DefaultMaxDepth = 10

// DefaultExcludes are always applied unless overridden.
var DefaultExcludes = []string{
	"**/node_modules/**",
	"**/dist/**",
	"**/.git/**",
}

// Options filters discovery.
type Options struct {
	Include          []string // doublestar globs; empty means all known source extensions
	Exclude          []string // doublestar globs; empty means DefaultExcludes
	MaxDepth         int      // 0 means DefaultMaxDepth
	RespectGitignore bool
}

// Result carries the discovered files and any non-fatal problems.
type Result struct {
	Files    []string // sorted absolute paths
	Warnings []string
}

// Discover lists source files under repoPath. Discovery failures degrade
// to warnings and an empty file list, never an error, except when
// repoPath itself is not a directory.
func Discover(repoPath string, opts Options) (*Result, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("resolve repo path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("repo path %s is not a directory", repoPath)
	}

	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if len(opts.Include) == 0 {
		opts.Include = defaultIncludes()
	}
	if len(opts.Exclude) == 0 {
		opts.Exclude = append([]string(nil), DefaultExcludes...)
	}

	res := &Result{}

	var rels []string
	if opts.RespectGitignore {
		rels, err = gitListFiles(abs)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("git discovery failed, walking directory: %v", err))
			slog.Warn("discover.git.fallback", "path", abs, "err", err)
			rels = nil
		}
	}
	if rels == nil {
		rels, err = walkFiles(abs, opts.MaxDepth)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("directory walk failed: %v", err))
			return res, nil
		}
	}

	for _, rel := range rels {
		rel = filepath.ToSlash(rel)
		if depthOf(rel) > opts.MaxDepth {
			continue
		}
		if !matchesAny(opts.Include, rel) || matchesAny(opts.Exclude, rel) {
			continue
		}
		res.Files = append(res.Files, filepath.Join(abs, filepath.FromSlash(rel)))
	}
	sort.Strings(res.Files)
	return res, nil
}

func defaultIncludes() []string {
	seen := map[string]bool{}
	var globs []string
	for _, l := range lang.AllLanguages() {
		spec := lang.ForLanguage(l)
		if spec == nil {
			continue
		}
		for _, ext := range spec.FileExtensions {
			if !seen[ext] {
				seen[ext] = true
				globs = append(globs, "**/*"+ext)
			}
		}
	}
	sort.Strings(globs)
	return globs
}

func depthOf(rel string) int {
	return strings.Count(rel, "/") + 1
}

func matchesAny(globs []string, rel string) bool {
	for _, g := range globs {
		if ok, err := doublestar.Match(g, rel); err == nil && ok {
			return true
		}
	}
	return false
}

var (
	gitPathOnce sync.Once
	gitPath     string
)

// GitBinary resolves the git executable by explicit PATH scan, skipping
// empty entries so the working directory is never searched. The result is
// cached for the process.
func GitBinary() string {
	gitPathOnce.Do(func() {
		for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
			if dir == "" || dir == "." {
				continue
			}
			candidate := filepath.Join(dir, "git")
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
				gitPath = candidate
				return
			}
		}
	})
	return gitPath
}

// ResetGitBinary clears the cached git path (for tests).
func ResetGitBinary() {
	gitPathOnce = sync.Once{}
	gitPath = ""
}

// gitListFiles returns tracked plus untracked-unignored files, relative
// to root.
func gitListFiles(root string) ([]string, error) {
	git := GitBinary()
	if git == "" {
		return nil, fmt.Errorf("git binary not found in PATH")
	}
	cmd := exec.Command(git, "ls-files", "--cached", "--others", "--exclude-standard", "-z")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}
	var rels []string
	for _, raw := range bytes.Split(out, []byte{0}) {
		if len(raw) == 0 {
			continue
		}
		rels = append(rels, string(raw))
	}
	return rels, nil
}

// walkFiles recursively lists files under root, stopping at maxDepth
// directory levels. Glob filtering happens later in Discover.
func walkFiles(root string, maxDepth int) ([]string, error) {
	var rels []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("discover.walk.skip", "path", path, "err", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if d.IsDir() {
			if rel != "." && depthOf(filepath.ToSlash(rel)) >= maxDepth {
				return fs.SkipDir
			}
			if d.Name() == ".git" {
				return fs.SkipDir
			}
			return nil
		}
		rels = append(rels, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rels, nil
}
