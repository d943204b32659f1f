// Package encoder orchestrates the three encoding phases: semantic
// lifting, hierarchical reorganization, and grounding with edge
// injection.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pleaseai/repograph/internal/ast"
	"github.com/pleaseai/repograph/internal/discover"
	"github.com/pleaseai/repograph/internal/ground"
	"github.com/pleaseai/repograph/internal/hierarchy"
	"github.com/pleaseai/repograph/internal/inject"
	"github.com/pleaseai/repograph/internal/lang"
	"github.com/pleaseai/repograph/internal/llm"
	"github.com/pleaseai/repograph/internal/rpg"
	"github.com/pleaseai/repograph/internal/semantic"
	"github.com/pleaseai/repograph/internal/symbols"
)

// ErrLLMRequired is returned when the operator explicitly requested LLM
// assistance but no client is configured.
var ErrLLMRequired = errors.New("llm requested but no client configured")

// Options tunes one encode run.
type Options struct {
	Include          []string
	Exclude          []string
	MaxDepth         int
	RespectGitignore bool
	// RequireLLM marks the operator's explicit request: encoding fails
	// when no client is configured. Without it, LLM-dependent phases
	// are skipped silently.
	RequireLLM    bool
	IncludeSource bool
	CrossArea     bool
	// LLMFileFilter runs the three-round exclusion vote over the
	// discovered file list before lifting.
	LLMFileFilter bool
}

// Result is the outcome of an encode run.
type Result struct {
	Graph             *rpg.Graph
	FilesProcessed    int
	EntitiesExtracted int
	Duration          time.Duration
	Warnings          []string
}

// Encoder runs the pipeline. The graph is single-writer for the whole
// run; the encoder owns it.
type Encoder struct {
	client    llm.Client
	extractor *semantic.Extractor
}

// New returns an Encoder. client and cache may be nil.
func New(client llm.Client, cache semantic.FeatureCache, extractOpts semantic.Options) *Encoder {
	return &Encoder{
		client:    client,
		extractor: semantic.NewExtractor(client, cache, extractOpts),
	}
}

type fileExtraction struct {
	analysis inject.FileAnalysis
	feature  *semantic.Feature
	children []extractedEntity
}

type extractedEntity struct {
	entity  ast.CodeEntity
	feature *semantic.Feature
	source  string
}

// Encode builds a graph for config.RootPath.
func (e *Encoder) Encode(ctx context.Context, config rpg.Config, opts Options) (*Result, error) {
	start := time.Now()
	if opts.RequireLLM && e.client == nil {
		return nil, ErrLLMRequired
	}

	g := rpg.New(config)
	res := &Result{Graph: g}

	files, err := e.discoverPhase(config.RootPath, opts, res)
	if err != nil {
		return nil, err
	}
	if opts.LLMFileFilter {
		files = e.filterPhase(ctx, config.RootPath, files, res)
	}

	extractions, resolver, err := e.liftPhase(ctx, config.RootPath, files, opts, res)
	if err != nil {
		return nil, err
	}

	if err := e.reorganizePhase(ctx, g, res); err != nil {
		return nil, err
	}

	e.wirePhase(ctx, g, extractions, resolver, opts, res)

	res.Warnings = append(res.Warnings, e.extractor.Warnings()...)
	res.Duration = time.Since(start)
	slog.Info("encode.done",
		"files", res.FilesProcessed,
		"entities", res.EntitiesExtracted,
		"duration", res.Duration,
		"warnings", len(res.Warnings))
	return res, nil
}

func (e *Encoder) discoverPhase(rootPath string, opts Options, res *Result) ([]string, error) {
	exclude := opts.Exclude
	extra, err := discover.LoadIgnoreFile(rootPath)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("ignore file unreadable: %v", err))
	}
	if len(extra) > 0 {
		if len(exclude) == 0 {
			exclude = append(exclude, discover.DefaultExcludes...)
		}
		exclude = append(exclude, extra...)
	}

	dres, err := discover.Discover(rootPath, discover.Options{
		Include:          opts.Include,
		Exclude:          exclude,
		MaxDepth:         opts.MaxDepth,
		RespectGitignore: opts.RespectGitignore,
	})
	if err != nil {
		return nil, err
	}
	res.Warnings = append(res.Warnings, dres.Warnings...)
	slog.Info("encode.discover.done", "files", len(dres.Files))
	return dres.Files, nil
}

// filterPhase drops files voted out by the LLM exclusion rounds.
func (e *Encoder) filterPhase(ctx context.Context, rootPath string, files []string, res *Result) []string {
	rels := make([]string, len(files))
	for i, abs := range files {
		rel, err := filepath.Rel(rootPath, abs)
		if err != nil {
			rel = abs
		}
		rels[i] = filepath.ToSlash(rel)
	}
	excluded, warnings := voteFileExclusions(ctx, e.client, rels)
	res.Warnings = append(res.Warnings, warnings...)
	if len(excluded) == 0 {
		return files
	}
	kept := files[:0]
	for i, abs := range files {
		if !excluded[rels[i]] {
			kept = append(kept, abs)
		}
	}
	return kept
}

// liftPhase parses files in parallel, extracts entity and file features,
// dedupes file descriptions and populates the graph's low-level nodes.
func (e *Encoder) liftPhase(ctx context.Context, rootPath string, files []string, opts Options, res *Result) ([]inject.FileAnalysis, *symbols.Resolver, error) {
	phaseStart := time.Now()

	extractions := make([]*fileExtraction, len(files))
	var mu sync.Mutex

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(runtime.NumCPU())
	for i, abs := range files {
		grp.Go(func() error {
			fe, warn := parseOne(rootPath, abs)
			if warn != "" {
				mu.Lock()
				res.Warnings = append(res.Warnings, warn)
				mu.Unlock()
			}
			extractions[i] = fe
			return gctx.Err()
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, nil, err
	}

	// Resolver and entity batches are built after all parses land.
	resolver := symbols.NewResolver()
	var inputs []semantic.EntityInput
	var owners []*fileExtraction
	var ownerIdx []int
	for _, fe := range extractions {
		if fe == nil {
			continue
		}
		resolver.AddFile(fe.analysis.RelPath, fe.analysis.Result)
		for j, child := range fe.children {
			inputs = append(inputs, semantic.EntityInput{
				Type:          string(child.entity.Type),
				Name:          child.entity.Name,
				FilePath:      fe.analysis.RelPath,
				Parent:        child.entity.Parent,
				SourceCode:    child.source,
				Documentation: child.entity.Documentation,
			})
			owners = append(owners, fe)
			ownerIdx = append(ownerIdx, j)
		}
	}
	resolver.Build()

	features, err := e.extractor.ExtractAll(ctx, inputs)
	if err != nil {
		return nil, nil, err
	}
	for i, f := range features {
		owners[i].children[ownerIdx[i]].feature = f
	}

	// File-level aggregation, then description dedup across all files.
	for _, fe := range extractions {
		if fe == nil {
			continue
		}
		var childFeatures []*semantic.Feature
		for _, child := range fe.children {
			childFeatures = append(childFeatures, child.feature)
		}
		fe.feature = e.extractor.AggregateFileFeatures(ctx, fe.analysis.RelPath, childFeatures)
	}
	dedupeFileDescriptions(extractions)

	g := res.Graph
	analyses := make([]inject.FileAnalysis, 0, len(extractions))
	for _, fe := range extractions {
		if fe == nil {
			continue
		}
		e.addFileNodes(g, fe, opts)
		analyses = append(analyses, fe.analysis)
		res.FilesProcessed++
		res.EntitiesExtracted += len(fe.children)
	}
	slog.Info("encode.lift.done",
		"files", res.FilesProcessed,
		"entities", res.EntitiesExtracted,
		"elapsed", time.Since(phaseStart))
	return analyses, resolver, nil
}

// parseOne reads and parses a single file. Unsupported or unreadable
// files yield a nil extraction and a warning.
func parseOne(rootPath, abs string) (*fileExtraction, string) {
	rel, err := filepath.Rel(rootPath, abs)
	if err != nil {
		rel = abs
	}
	rel = filepath.ToSlash(rel)

	spec := lang.ForExtension(path.Ext(rel))
	if spec == nil {
		return nil, ""
	}
	source, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Sprintf("read %s: %v", rel, err)
	}
	parsed, err := ast.NewExtractor().Parse(source, spec.Language)
	if err != nil {
		return nil, fmt.Sprintf("parse %s: %v", rel, err)
	}

	fe := &fileExtraction{
		analysis: inject.FileAnalysis{
			RelPath:  rel,
			Language: spec.Language,
			Source:   source,
			Result:   parsed,
		},
	}
	lines := strings.Split(string(source), "\n")
	for _, entity := range parsed.Entities {
		src := ""
		if entity.StartLine >= 1 && entity.EndLine <= len(lines) {
			src = strings.Join(lines[entity.StartLine-1:entity.EndLine], "\n")
		}
		fe.children = append(fe.children, extractedEntity{entity: entity, source: src})
	}

	warn := ""
	if len(parsed.Errors) > 0 {
		warn = fmt.Sprintf("%s: %s", rel, strings.Join(parsed.Errors, "; "))
	}
	return fe, warn
}

// dedupeFileDescriptions appends _k suffixes to colliding file-level
// descriptions, in path order so reruns are stable.
func dedupeFileDescriptions(extractions []*fileExtraction) {
	ordered := make([]*fileExtraction, 0, len(extractions))
	for _, fe := range extractions {
		if fe != nil {
			ordered = append(ordered, fe)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].analysis.RelPath < ordered[j].analysis.RelPath
	})

	seen := map[string]int{}
	for _, fe := range ordered {
		desc := fe.feature.Description
		seen[desc]++
		if seen[desc] > 1 {
			fe.feature.Description = fmt.Sprintf("%s_%d", desc, seen[desc]-1)
		}
	}
}

// addFileNodes inserts the file node, its children and file-to-child
// functional edges, in that order.
func (e *Encoder) addFileNodes(g *rpg.Graph, fe *fileExtraction, opts Options) {
	rel := fe.analysis.RelPath
	fileID := rpg.FileNodeID(rel)
	fileNode := &rpg.Node{
		ID:       fileID,
		Feature:  fe.feature,
		Metadata: rpg.Metadata{EntityType: rpg.EntityFile, Path: rel},
	}
	if opts.IncludeSource {
		fileNode.SourceCode = string(fe.analysis.Source)
	}
	g.AddLowLevelNode(fileNode)

	for _, child := range fe.children {
		id := rpg.EntityNodeID(rel, string(child.entity.Type), child.entity.Name, child.entity.StartLine)
		qualified := child.entity.Name
		if child.entity.Parent != "" {
			qualified = child.entity.Parent + "." + child.entity.Name
		}
		node := &rpg.Node{
			ID:      id,
			Feature: child.feature,
			Metadata: rpg.Metadata{
				EntityType:    string(child.entity.Type),
				Path:          rel,
				StartLine:     child.entity.StartLine,
				EndLine:       child.entity.EndLine,
				QualifiedName: qualified,
			},
		}
		if opts.IncludeSource {
			node.SourceCode = child.source
		}
		g.AddLowLevelNode(node)
		if err := g.AddFunctionalEdge(fileID, id); err != nil {
			slog.Warn("encode.lift.edge", "file", fileID, "child", id, "err", err)
		}
	}
}

// reorganizePhase runs hierarchy building when an LLM is available.
// Without one it returns silently; the explicit-request case fails in
// Encode before any work starts.
func (e *Encoder) reorganizePhase(ctx context.Context, g *rpg.Graph, res *Result) error {
	if e.client == nil {
		return nil
	}
	groups := hierarchy.GroupFiles(g)
	if len(groups) == 0 {
		return nil
	}
	phaseStart := time.Now()
	warnings, err := hierarchy.NewBuilder(e.client).Build(ctx, g, groups)
	res.Warnings = append(res.Warnings, warnings...)
	if err != nil {
		return fmt.Errorf("reorganization: %w", err)
	}
	slog.Info("encode.reorganize.done", "groups", len(groups), "elapsed", time.Since(phaseStart))
	return nil
}

// wirePhase grounds the hierarchy and injects dependency, data-flow and
// optional cross-area edges. Sub-phase failures become warnings.
func (e *Encoder) wirePhase(ctx context.Context, g *rpg.Graph, analyses []inject.FileAnalysis, resolver *symbols.Resolver, opts Options, res *Result) {
	phaseStart := time.Now()
	if err := ground.Ground(g); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("grounding failed: %v", err))
	}

	in := inject.New(e.client)
	if warnings, err := in.InjectDependencies(ctx, g, analyses, resolver); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("dependency injection failed: %v", err))
	} else {
		res.Warnings = append(res.Warnings, warnings...)
	}
	if warnings, err := in.InjectDataFlow(ctx, g, analyses, resolver); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("data-flow injection failed: %v", err))
	} else {
		res.Warnings = append(res.Warnings, warnings...)
	}
	if opts.CrossArea {
		if warnings, err := in.InjectCrossArea(ctx, g); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("cross-area analysis failed: %v", err))
		} else {
			res.Warnings = append(res.Warnings, warnings...)
		}
	}
	slog.Info("encode.wire.done", "elapsed", time.Since(phaseStart))
}
