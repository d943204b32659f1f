package evolve

import (
	"fmt"
	"os/exec"
	"path"
	"sort"
	"strings"

	"github.com/pleaseai/repograph/internal/ast"
	"github.com/pleaseai/repograph/internal/discover"
	"github.com/pleaseai/repograph/internal/lang"
	"github.com/pleaseai/repograph/internal/rpg"
)

// ChangedEntity is one entity touched by a diff, keyed by a stable ID
// without line numbers so it survives moves within a file.
type ChangedEntity struct {
	ID            string // "{filePath}:{entityType}:{qualifiedName}"
	FilePath      string
	EntityType    string
	Name          string
	QualifiedName string
	StartLine     int
	EndLine       int
	Parent        string
	Parameters    string
	Source        string
	Documentation string
}

// Modification pairs the old and new shape of one entity.
type Modification struct {
	Old ChangedEntity
	New ChangedEntity
}

// DiffResult is the entity-level view of a commit range.
type DiffResult struct {
	Insertions    []ChangedEntity
	Deletions     []ChangedEntity
	Modifications []Modification
}

// Total counts all changed entities.
func (d *DiffResult) Total() int {
	return len(d.Insertions) + len(d.Deletions) + len(d.Modifications)
}

// StableID builds the diff key for an entity.
func StableID(filePath, entityType, qualifiedName string) string {
	return filePath + ":" + entityType + ":" + qualifiedName
}

// parseCommitRange splits "a..b" into endpoints.
func parseCommitRange(commitRange string) (from, to string, err error) {
	parts := strings.SplitN(commitRange, "..", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", fmt.Errorf("invalid commit range %q, want \"a..b\"", commitRange)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

// ComputeDiff parses both sides of every file changed in commitRange and
// reduces them to entity insertions, deletions and modifications.
func ComputeDiff(rootPath, commitRange string) (*DiffResult, error) {
	from, to, err := parseCommitRange(commitRange)
	if err != nil {
		return nil, err
	}
	git := discover.GitBinary()
	if git == "" {
		return nil, fmt.Errorf("git binary not found in PATH")
	}

	cmd := exec.Command(git, "diff", "--name-status", commitRange)
	cmd.Dir = rootPath
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff %s: %w", commitRange, err)
	}

	result := &DiffResult{}
	extractor := ast.NewExtractor()
	for _, line := range strings.Split(string(out), "\n") {
		status, oldPath, newPath, ok := parseNameStatus(line)
		if !ok {
			continue
		}
		if lang.ForExtension(path.Ext(newPath)) == nil && lang.ForExtension(path.Ext(oldPath)) == nil {
			continue
		}

		var oldEntities, newEntities map[string]ChangedEntity
		switch status[0] {
		case 'A':
			newEntities = parseRevision(git, rootPath, extractor, to, newPath)
		case 'D':
			oldEntities = parseRevision(git, rootPath, extractor, from, oldPath)
		default: // M, R, C, T
			oldEntities = parseRevision(git, rootPath, extractor, from, oldPath)
			newEntities = parseRevision(git, rootPath, extractor, to, newPath)
		}
		diffEntities(result, oldEntities, newEntities)
	}
	sortDiff(result)
	return result, nil
}

// parseNameStatus splits one git name-status line. Fields are
// tab-separated; paths may contain spaces. Rename and copy lines carry
// both paths, everything else repeats the single path.
func parseNameStatus(line string) (status, oldPath, newPath string, ok bool) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", "", "", false
	}
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", false
	}
	status = parts[0]
	oldPath = parts[1]
	newPath = oldPath
	if strings.HasPrefix(status, "R") || strings.HasPrefix(status, "C") {
		if len(parts) < 3 || parts[2] == "" {
			return "", "", "", false
		}
		newPath = parts[2]
	}
	return status, oldPath, newPath, true
}

func sortDiff(d *DiffResult) {
	sort.Slice(d.Insertions, func(i, j int) bool { return d.Insertions[i].ID < d.Insertions[j].ID })
	sort.Slice(d.Deletions, func(i, j int) bool { return d.Deletions[i].ID < d.Deletions[j].ID })
	sort.Slice(d.Modifications, func(i, j int) bool { return d.Modifications[i].Old.ID < d.Modifications[j].Old.ID })
}

// parseRevision extracts the entities of one file at one revision.
// Unreadable or unparsable revisions yield an empty set.
func parseRevision(git, rootPath string, extractor *ast.Extractor, rev, relPath string) map[string]ChangedEntity {
	cmd := exec.Command(git, "show", rev+":"+relPath)
	cmd.Dir = rootPath
	content, err := cmd.Output()
	if err != nil {
		return nil
	}
	language := lang.ForExtension(path.Ext(relPath))
	if language == nil {
		return nil
	}
	parsed, err := extractor.Parse(content, language.Language)
	if err != nil {
		return nil
	}

	lines := strings.Split(string(content), "\n")
	entities := map[string]ChangedEntity{}
	for _, e := range parsed.Entities {
		qualified := e.Name
		if e.Parent != "" {
			qualified = e.Parent + "." + e.Name
		}
		source := ""
		if e.StartLine >= 1 && e.EndLine <= len(lines) {
			source = strings.Join(lines[e.StartLine-1:e.EndLine], "\n")
		}
		ce := ChangedEntity{
			ID:            StableID(relPath, string(e.Type), qualified),
			FilePath:      relPath,
			EntityType:    string(e.Type),
			Name:          e.Name,
			QualifiedName: qualified,
			StartLine:     e.StartLine,
			EndLine:       e.EndLine,
			Parent:        e.Parent,
			Parameters:    e.Parameters,
			Source:        source,
			Documentation: e.Documentation,
		}
		entities[ce.ID] = ce
	}
	// The file itself participates so file nodes track renames and
	// wholesale adds or removals.
	entities[StableID(relPath, rpg.EntityFile, path.Base(relPath))] = ChangedEntity{
		ID:            StableID(relPath, rpg.EntityFile, path.Base(relPath)),
		FilePath:      relPath,
		EntityType:    rpg.EntityFile,
		Name:          path.Base(relPath),
		QualifiedName: path.Base(relPath),
		Source:        string(content),
	}
	return entities
}

// diffEntities classifies before vs after entity sets into the result.
func diffEntities(result *DiffResult, before, after map[string]ChangedEntity) {
	for id, o := range before {
		n, ok := after[id]
		if !ok {
			result.Deletions = append(result.Deletions, o)
			continue
		}
		if o.Source != n.Source {
			result.Modifications = append(result.Modifications, Modification{Old: o, New: n})
		}
	}
	for id, n := range after {
		if _, ok := before[id]; !ok {
			result.Insertions = append(result.Insertions, n)
		}
	}
}
