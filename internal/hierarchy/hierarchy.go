// Package hierarchy reorganizes file nodes under a three-level functional
// taxonomy discovered and assigned by an LLM, with a deterministic
// fallback bucket for everything the model cannot place.
package hierarchy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/pleaseai/repograph/internal/llm"
	"github.com/pleaseai/repograph/internal/rpg"
	"github.com/pleaseai/repograph/internal/semantic"
)

const (
	// DefaultVotes is how many discovery rounds are aggregated.
	DefaultVotes = 3
	// DefaultMaxRounds bounds the assignment loop.
	DefaultMaxRounds = 10
	// MaxAreas caps the discovered taxonomy width.
	MaxAreas = 8
)

// Fallback path segments for unassigned groups.
var fallbackPath = [3]string{"Uncategorized", "general purpose", "miscellaneous"}

// FileGroup is the unit of assignment: the files of one top-level
// directory with their file-level features.
type FileGroup struct {
	Label        string   // top-level directory, "." for root files
	Files        []string // relative paths
	Descriptions []string
	Keywords     []string
}

// GroupFiles buckets the graph's file nodes by top-level directory.
// Groups and their file lists come out sorted.
func GroupFiles(g *rpg.Graph) []FileGroup {
	byLabel := map[string]*FileGroup{}
	for _, n := range g.GetLowLevelNodes() {
		if n.Metadata.EntityType != rpg.EntityFile {
			continue
		}
		rel := n.Metadata.Path
		label := "."
		if i := strings.IndexByte(rel, '/'); i >= 0 {
			label = rel[:i]
		}
		grp, ok := byLabel[label]
		if !ok {
			grp = &FileGroup{Label: label}
			byLabel[label] = grp
		}
		grp.Files = append(grp.Files, rel)
		if n.Feature != nil {
			grp.Descriptions = append(grp.Descriptions, n.Feature.Description)
			grp.Keywords = append(grp.Keywords, n.Feature.Keywords...)
		}
	}

	labels := make([]string, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	groups := make([]FileGroup, 0, len(labels))
	for _, l := range labels {
		grp := byLabel[l]
		sort.Strings(grp.Files)
		groups = append(groups, *grp)
	}
	return groups
}

// Builder runs the two-step reorganization.
type Builder struct {
	client    llm.Client // nil: everything goes to the fallback bucket
	votes     int
	maxRounds int
}

// NewBuilder returns a Builder. client may be nil.
func NewBuilder(client llm.Client) *Builder {
	return &Builder{client: client, votes: DefaultVotes, maxRounds: DefaultMaxRounds}
}

// Build discovers areas, assigns groups and wires the functional
// hierarchy into g. Low-level nodes are never created or removed here.
func (b *Builder) Build(ctx context.Context, g *rpg.Graph, groups []FileGroup) (warnings []string, err error) {
	if len(groups) == 0 {
		return nil, nil
	}

	assigned := map[string][3]string{} // group label -> path segments

	if b.client != nil {
		areas, derr := b.discoverAreas(ctx, groups)
		if derr != nil {
			warnings = append(warnings, fmt.Sprintf("domain discovery failed: %v", derr))
		} else {
			slog.Info("hierarchy.discover.done", "areas", len(areas))
			roundWarnings := b.assignGroups(ctx, areas, groups, assigned)
			warnings = append(warnings, roundWarnings...)
		}
	}

	for _, grp := range groups {
		segs, ok := assigned[grp.Label]
		if !ok {
			segs = fallbackPath
		}
		if err := b.attachGroup(g, segs, grp); err != nil {
			return warnings, err
		}
	}
	return warnings, nil
}

// discoverAreas votes b.votes times and aggregates candidates by
// frequency, ties alphabetical, truncated to MaxAreas.
func (b *Builder) discoverAreas(ctx context.Context, groups []FileGroup) ([]string, error) {
	prompt := buildDiscoveryPrompt(groups)

	counts := map[string]int{}
	valid := 0
	for i := 0; i < b.votes; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		candidates, err := b.requestAreas(ctx, prompt)
		if err != nil {
			slog.Warn("hierarchy.discover.vote", "round", i, "err", err)
			continue
		}
		round := 0
		for _, c := range candidates {
			name := ToPascalCase(c)
			if name == "" {
				continue
			}
			counts[name]++
			round++
		}
		if round > 0 {
			valid++
		}
	}
	if valid == 0 {
		return nil, fmt.Errorf("no discovery round produced valid areas")
	}

	areas := make([]string, 0, len(counts))
	for a := range counts {
		areas = append(areas, a)
	}
	sort.Slice(areas, func(i, j int) bool {
		if counts[areas[i]] != counts[areas[j]] {
			return counts[areas[i]] > counts[areas[j]]
		}
		return areas[i] < areas[j]
	})
	if len(areas) > MaxAreas {
		areas = areas[:MaxAreas]
	}
	return areas, nil
}

// requestAreas makes one completion and accepts either a bare array or a
// {"areas": [...]} wrapper.
func (b *Builder) requestAreas(ctx context.Context, prompt string) ([]string, error) {
	completion, err := b.client.Complete(ctx, prompt, discoverySystemPrompt)
	if err != nil {
		return nil, err
	}
	var list []string
	if err := llm.DecodeJSON(completion.Content, &list); err == nil && len(list) > 0 {
		return list, nil
	}
	var wrapped struct {
		Areas []string `json:"areas"`
	}
	if err := llm.DecodeJSON(completion.Content, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Areas, nil
}

// assignGroups runs up to maxRounds assignment prompts, stopping when all
// groups are placed or a round makes no progress.
func (b *Builder) assignGroups(ctx context.Context, areas []string, groups []FileGroup, assigned map[string][3]string) []string {
	var warnings []string
	byLabel := map[string]FileGroup{}
	for _, grp := range groups {
		byLabel[grp.Label] = grp
	}

	for round := 0; round < b.maxRounds; round++ {
		if ctx.Err() != nil {
			return warnings
		}
		var unassigned []FileGroup
		for _, grp := range groups {
			if _, ok := assigned[grp.Label]; !ok {
				unassigned = append(unassigned, grp)
			}
		}
		if len(unassigned) == 0 {
			return warnings
		}

		mapping, err := b.requestAssignments(ctx, areas, unassigned)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("assignment round %d failed: %v", round, err))
			continue
		}

		progress := 0
		for p, labels := range mapping {
			segs, ok := acceptPath(p, areas)
			if !ok {
				continue
			}
			for _, label := range labels {
				if _, exists := byLabel[label]; !exists {
					continue
				}
				if _, done := assigned[label]; done {
					continue
				}
				assigned[label] = segs
				progress++
			}
		}
		slog.Info("hierarchy.assign.round", "round", round, "assigned", progress, "remaining", len(unassigned)-progress)
		if progress == 0 {
			warnings = append(warnings, fmt.Sprintf("assignment stuck after round %d with %d groups left", round, len(unassigned)))
			return warnings
		}
	}
	return warnings
}

// requestAssignments makes one completion and accepts either an
// {"assignments": {...}} wrapper or a bare path-to-labels object.
func (b *Builder) requestAssignments(ctx context.Context, areas []string, unassigned []FileGroup) (map[string][]string, error) {
	prompt := buildAssignmentPrompt(areas, unassigned)
	completion, err := b.client.Complete(ctx, prompt, assignmentSystemPrompt)
	if err != nil {
		return nil, err
	}
	var wrapped struct {
		Assignments map[string][]string `json:"assignments"`
	}
	if err := llm.DecodeJSON(completion.Content, &wrapped); err == nil && len(wrapped.Assignments) > 0 {
		return wrapped.Assignments, nil
	}
	var bare map[string][]string
	if err := llm.DecodeJSON(completion.Content, &bare); err != nil {
		return nil, err
	}
	return bare, nil
}

// acceptPath validates "Area/category/subcategory" and fuzzy-matches the
// area against the discovered set.
func acceptPath(p string, areas []string) ([3]string, bool) {
	segs := strings.Split(p, "/")
	if len(segs) != 3 {
		return [3]string{}, false
	}
	for _, s := range segs {
		if strings.TrimSpace(s) == "" {
			return [3]string{}, false
		}
	}
	area, ok := matchArea(segs[0], areas)
	if !ok {
		return [3]string{}, false
	}
	return [3]string{area, strings.TrimSpace(segs[1]), strings.TrimSpace(segs[2])}, true
}

// matchArea resolves name against areas: exact, then case-insensitive,
// then prefix, then substring.
func matchArea(name string, areas []string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, a := range areas {
		if a == name {
			return a, true
		}
	}
	lower := strings.ToLower(name)
	for _, a := range areas {
		if strings.ToLower(a) == lower {
			return a, true
		}
	}
	for _, a := range areas {
		if strings.HasPrefix(strings.ToLower(a), lower) || strings.HasPrefix(lower, strings.ToLower(a)) {
			return a, true
		}
	}
	for _, a := range areas {
		if strings.Contains(strings.ToLower(a), lower) || strings.Contains(lower, strings.ToLower(a)) {
			return a, true
		}
	}
	return "", false
}

// attachGroup materializes the three hierarchy nodes for segs and hangs
// the group's file nodes off the subcategory.
func (b *Builder) attachGroup(g *rpg.Graph, segs [3]string, grp FileGroup) error {
	ids := [3]string{
		rpg.DomainNodeID(segs[0]),
		rpg.DomainNodeID(segs[0], segs[1]),
		rpg.DomainNodeID(segs[0], segs[1], segs[2]),
	}
	descs := [3]string{
		strings.ToLower(semantic.Humanize(segs[0])),
		segs[1],
		segs[2],
	}
	for i, id := range ids {
		if !g.HasNode(id) {
			desc, _ := semantic.ValidateFeatureName(descs[i])
			g.AddHighLevelNode(&rpg.Node{
				ID:      id,
				Feature: &semantic.Feature{Description: desc},
			})
		}
		if i > 0 {
			if err := g.AddFunctionalEdge(ids[i-1], id); err != nil {
				return fmt.Errorf("link %s under %s: %w", id, ids[i-1], err)
			}
		}
	}
	for _, rel := range grp.Files {
		fileID := rpg.FileNodeID(rel)
		if !g.HasNode(fileID) {
			continue
		}
		if err := g.AddFunctionalEdge(ids[2], fileID); err != nil {
			return fmt.Errorf("attach %s: %w", fileID, err)
		}
	}
	return nil
}

// ToPascalCase normalizes a candidate area name: split on
// non-alphanumerics, title-case each token, join. Names that are already
// PascalCase pass through unchanged.
func ToPascalCase(s string) string {
	if isPascalCase(s) {
		return s
	}
	var b strings.Builder
	token := func(t string) {
		if t == "" {
			return
		}
		r := []rune(t)
		b.WriteRune(unicode.ToUpper(r[0]))
		b.WriteString(strings.ToLower(string(r[1:])))
	}
	start := -1
	for i, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			token(s[start:i])
			start = -1
		}
	}
	if start >= 0 {
		token(s[start:])
	}
	return b.String()
}

func isPascalCase(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 && !unicode.IsUpper(r) {
			return false
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

const discoverySystemPrompt = `You are a software architecture analyst. Given groups of files with their purposes, propose the functional areas of the system.
Respond with a JSON array of PascalCase area names, at most 8.`

const assignmentSystemPrompt = `You are a software architecture classifier. Assign each file group to a taxonomy path "Area/category/subcategory" where Area is one of the given areas and category and subcategory are lowercase verb+object phrases.
Respond with JSON: {"assignments": {"Area/category/subcategory": ["groupLabel", ...]}}`

func buildDiscoveryPrompt(groups []FileGroup) string {
	var b strings.Builder
	b.WriteString("File groups:\n")
	for _, grp := range groups {
		fmt.Fprintf(&b, "- %s (%d files)\n", grp.Label, len(grp.Files))
		for i, d := range grp.Descriptions {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "  - %s\n", d)
		}
	}
	return b.String()
}

func buildAssignmentPrompt(areas []string, unassigned []FileGroup) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Areas: %s\n", strings.Join(areas, ", "))
	b.WriteString("Unassigned groups:\n")
	for _, grp := range unassigned {
		fmt.Fprintf(&b, "- %s: %s\n", grp.Label, strings.Join(firstN(grp.Descriptions, 5), "; "))
		if len(grp.Files) > 0 {
			fmt.Fprintf(&b, "  files: %s\n", strings.Join(firstN(grp.Files, 8), ", "))
		}
	}
	return b.String()
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
