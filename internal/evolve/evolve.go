// Package evolve applies git-diff-driven incremental updates to an
// existing graph: deletions first, then modifications with drift-based
// re-routing, then insertions.
package evolve

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/pleaseai/repograph/internal/ast"
	"github.com/pleaseai/repograph/internal/embedding"
	"github.com/pleaseai/repograph/internal/lang"
	"github.com/pleaseai/repograph/internal/llm"
	"github.com/pleaseai/repograph/internal/rpg"
	"github.com/pleaseai/repograph/internal/semantic"
)

// Default thresholds.
const (
	DefaultDriftThreshold           = 0.3
	DefaultForceRegenerateThreshold = 0.5
)

// Phases reported in per-entity errors.
const (
	PhaseDeletion     = "deletion"
	PhaseModification = "modification"
	PhaseInsertion    = "insertion"
)

// Options tunes one evolve run.
type Options struct {
	CommitRange              string
	DriftThreshold           float64 // 0 means DefaultDriftThreshold
	ForceRegenerateThreshold float64 // 0 means DefaultForceRegenerateThreshold
	Revision                 string  // optional optimistic concurrency check
	IncludeSource            bool
}

// EntityError records a failure on one entity without aborting the batch.
type EntityError struct {
	Entity string
	Phase  string
	Err    error
}

// Result summarizes an evolve run.
type Result struct {
	Inserted           int
	Deleted            int
	Modified           int
	Rerouted           int
	PrunedNodes        int
	RequiresFullEncode bool
	Errors             []EntityError
}

// Evolver owns the write lock on the graph for the duration of a run.
type Evolver struct {
	extractor *semantic.Extractor
	embedder  embedding.Provider
	router    *Router
}

// New returns an Evolver. client and embedder may be nil.
func New(extractor *semantic.Extractor, client llm.Client, embedder embedding.Provider) *Evolver {
	return &Evolver{
		extractor: extractor,
		embedder:  embedder,
		router:    NewRouter(client, embedder),
	}
}

// RouterAttempts reports LLM routing calls made so far, including failed
// ones.
func (e *Evolver) RouterAttempts() int {
	return e.router.Attempts
}

// Evolve computes the diff for opts.CommitRange against the graph's root
// path and applies it.
func (e *Evolver) Evolve(ctx context.Context, g *rpg.Graph, opts Options) (*Result, error) {
	rootPath := g.Config().RootPath
	if info, err := os.Stat(rootPath); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("root path %q is not a directory", rootPath)
	}
	diff, err := ComputeDiff(rootPath, opts.CommitRange)
	if err != nil {
		return nil, err
	}
	return e.Apply(ctx, g, diff, opts)
}

// Apply runs the Delete, Modify, Insert schedule for a precomputed diff.
// Per-entity failures are collected; only revision staleness and context
// cancellation abort the run.
func (e *Evolver) Apply(ctx context.Context, g *rpg.Graph, diff *DiffResult, opts Options) (*Result, error) {
	if opts.DriftThreshold == 0 {
		opts.DriftThreshold = DefaultDriftThreshold
	}
	if opts.ForceRegenerateThreshold == 0 {
		opts.ForceRegenerateThreshold = DefaultForceRegenerateThreshold
	}
	if opts.Revision != "" {
		if err := g.VerifyRevision(opts.Revision); err != nil {
			return nil, err
		}
	}

	res := &Result{}
	nodeCount := len(g.GetLowLevelNodes())
	if nodeCount > 0 && float64(diff.Total())/float64(nodeCount) > opts.ForceRegenerateThreshold {
		slog.Info("evolve.gate.full-encode", "changes", diff.Total(), "nodes", nodeCount)
		res.RequiresFullEncode = true
		return res, nil
	}

	for _, del := range diff.Deletions {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		e.applyDeletion(g, del, res)
	}
	for _, mod := range diff.Modifications {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		e.applyModification(ctx, g, mod, opts, res)
	}
	for _, ins := range diff.Insertions {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		e.applyInsertion(ctx, g, ins, opts, res)
	}
	slog.Info("evolve.done",
		"inserted", res.Inserted, "deleted", res.Deleted,
		"modified", res.Modified, "rerouted", res.Rerouted,
		"pruned", res.PrunedNodes, "errors", len(res.Errors))
	return res, nil
}

// applyDeletion removes the node and prunes newly childless ancestors.
// Missing nodes are skipped, keeping deletion idempotent.
func (e *Evolver) applyDeletion(g *rpg.Graph, del ChangedEntity, res *Result) {
	id := resolveNodeID(g, del)
	if id == "" {
		return
	}
	parent := g.GetParent(id)
	if err := g.RemoveNode(id); err != nil {
		res.Errors = append(res.Errors, EntityError{Entity: del.ID, Phase: PhaseDeletion, Err: err})
		return
	}
	res.Deleted++
	res.PrunedNodes += pruneOrphans(g, parent)
}

// applyModification re-extracts the feature, measures drift, and either
// updates in place or re-routes the node under a fresh parent.
func (e *Evolver) applyModification(ctx context.Context, g *rpg.Graph, mod Modification, opts Options, res *Result) {
	id := resolveNodeID(g, mod.Old)
	if id == "" {
		// The node never existed; treat the new shape as an insertion.
		e.applyInsertion(ctx, g, mod.New, opts, res)
		return
	}
	node, err := g.GetNode(id)
	if err != nil {
		res.Errors = append(res.Errors, EntityError{Entity: mod.Old.ID, Phase: PhaseModification, Err: err})
		return
	}

	fresh := e.extractor.Extract(ctx, entityInput(mod.New))
	drift := ComputeDrift(ctx, e.embedder, node.Feature, fresh)

	if drift > opts.DriftThreshold {
		parent := g.GetParent(id)
		if err := g.RemoveNode(id); err != nil {
			res.Errors = append(res.Errors, EntityError{Entity: mod.Old.ID, Phase: PhaseModification, Err: err})
			return
		}
		res.PrunedNodes += pruneOrphans(g, parent)
		if err := e.insertEntity(ctx, g, mod.New, fresh, opts); err != nil {
			res.Errors = append(res.Errors, EntityError{Entity: mod.New.ID, Phase: PhaseModification, Err: err})
			return
		}
		res.Rerouted++
		slog.Debug("evolve.reroute", "entity", mod.New.ID, "drift", drift)
		return
	}

	node.Feature = fresh
	node.Metadata.StartLine = mod.New.StartLine
	node.Metadata.EndLine = mod.New.EndLine
	if opts.IncludeSource {
		node.SourceCode = mod.New.Source
	}
	if err := g.UpdateNode(node); err != nil {
		res.Errors = append(res.Errors, EntityError{Entity: mod.Old.ID, Phase: PhaseModification, Err: err})
		return
	}
	res.Modified++
}

func (e *Evolver) applyInsertion(ctx context.Context, g *rpg.Graph, ins ChangedEntity, opts Options, res *Result) {
	fresh := e.extractor.Extract(ctx, entityInput(ins))
	if err := e.insertEntity(ctx, g, ins, fresh, opts); err != nil {
		res.Errors = append(res.Errors, EntityError{Entity: ins.ID, Phase: PhaseInsertion, Err: err})
		return
	}
	res.Inserted++
}

// insertEntity adds the node, routes it under the best high-level parent,
// and wires import edges for new files.
func (e *Evolver) insertEntity(ctx context.Context, g *rpg.Graph, ce ChangedEntity, feature *semantic.Feature, opts Options) error {
	id := graphNodeID(ce)
	node := &rpg.Node{
		ID:      id,
		Feature: feature,
		Metadata: rpg.Metadata{
			EntityType:    ce.EntityType,
			Path:          ce.FilePath,
			StartLine:     ce.StartLine,
			EndLine:       ce.EndLine,
			QualifiedName: ce.QualifiedName,
		},
	}
	if opts.IncludeSource {
		node.SourceCode = ce.Source
	}
	g.AddLowLevelNode(node)

	if parent := e.router.FindBestParent(ctx, g, feature); parent != "" {
		if err := g.AddFunctionalEdge(parent, id); err != nil {
			return fmt.Errorf("route %s under %s: %w", id, parent, err)
		}
	}
	if ce.EntityType == rpg.EntityFile {
		e.injectFileImports(g, ce)
	}
	return nil
}

// injectFileImports best-effort wires import edges from a freshly
// inserted file to already-known files.
func (e *Evolver) injectFileImports(g *rpg.Graph, ce ChangedEntity) {
	language := lang.ForExtension(path.Ext(ce.FilePath))
	if language == nil || ce.Source == "" {
		return
	}
	parsed, err := ast.NewExtractor().Parse([]byte(ce.Source), language.Language)
	if err != nil {
		return
	}

	byBase := map[string][]string{}
	for _, n := range g.GetLowLevelNodes() {
		if n.Metadata.EntityType != rpg.EntityFile {
			continue
		}
		base := strings.TrimSuffix(path.Base(n.Metadata.Path), path.Ext(n.Metadata.Path))
		byBase[base] = append(byBase[base], n.ID)
	}
	sourceID := rpg.FileNodeID(ce.FilePath)
	for _, imp := range parsed.Imports {
		base := strings.TrimSuffix(path.Base(imp.Module), path.Ext(imp.Module))
		targets := byBase[base]
		if len(targets) == 0 || targets[0] == sourceID {
			continue
		}
		_ = g.AddDependencyEdge(rpg.DependencyEdge{
			Source: sourceID,
			Target: targets[0],
			Kind:   rpg.DepImport,
			Symbol: imp.Module,
		})
	}
}

// pruneOrphans removes high-level ancestors left childless, walking
// upward from parent. Returns the number removed.
func pruneOrphans(g *rpg.Graph, parent string) int {
	pruned := 0
	for parent != "" {
		n, err := g.GetNode(parent)
		if err != nil || n.Kind != rpg.KindHigh {
			break
		}
		if len(g.GetChildren(parent)) > 0 {
			break
		}
		grand := g.GetParent(parent)
		if err := g.RemoveNode(parent); err != nil {
			break
		}
		pruned++
		parent = grand
	}
	return pruned
}

// resolveNodeID maps a changed entity to an existing graph node: exact
// file or entity ID first, then the lexicographically first node whose ID
// extends "{filePath}:{entityType}:{name}".
func resolveNodeID(g *rpg.Graph, ce ChangedEntity) string {
	if ce.EntityType == rpg.EntityFile {
		id := rpg.FileNodeID(ce.FilePath)
		if g.HasNode(id) {
			return id
		}
		return ""
	}
	prefix := ce.FilePath + ":" + ce.EntityType + ":" + ce.Name
	if g.HasNode(prefix) {
		return prefix
	}
	var matches []string
	for _, n := range g.GetLowLevelNodes() {
		if strings.HasPrefix(n.ID, prefix+":") {
			matches = append(matches, n.ID)
		}
	}
	if len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	return matches[0]
}

// graphNodeID builds the graph ID for a changed entity.
func graphNodeID(ce ChangedEntity) string {
	if ce.EntityType == rpg.EntityFile {
		return rpg.FileNodeID(ce.FilePath)
	}
	return rpg.EntityNodeID(ce.FilePath, ce.EntityType, ce.Name, ce.StartLine)
}

// entityInput adapts a changed entity for semantic extraction.
func entityInput(ce ChangedEntity) semantic.EntityInput {
	return semantic.EntityInput{
		Type:          ce.EntityType,
		Name:          ce.Name,
		FilePath:      ce.FilePath,
		Parent:        ce.Parent,
		SourceCode:    ce.Source,
		Documentation: ce.Documentation,
	}
}
