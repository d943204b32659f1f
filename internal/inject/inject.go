// Package inject wires dependency and data-flow edges into a graph whose
// file and entity nodes are already present.
package inject

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pleaseai/repograph/internal/ast"
	"github.com/pleaseai/repograph/internal/extract"
	"github.com/pleaseai/repograph/internal/lang"
	"github.com/pleaseai/repograph/internal/llm"
	"github.com/pleaseai/repograph/internal/rpg"
	"github.com/pleaseai/repograph/internal/symbols"
)

// FileAnalysis is one parsed file, as produced during semantic lifting.
type FileAnalysis struct {
	RelPath  string
	Language lang.Language
	Source   []byte
	Result   *ast.ParseResult
}

// Injector adds dependency and data-flow edges. The LLM client is only
// used for the optional cross-area pass and may be nil.
type Injector struct {
	client llm.Client
}

// New returns an Injector.
func New(client llm.Client) *Injector {
	return &Injector{client: client}
}

// InjectDependencies adds import, call and inherit/implement edges between
// file nodes. Per-file extraction failures degrade to warnings.
func (in *Injector) InjectDependencies(ctx context.Context, g *rpg.Graph, analyses []FileAnalysis, resolver *symbols.Resolver) ([]string, error) {
	var warnings []string
	index, inherits := buildClassIndex(analyses)
	inferrer := extract.NewTypeInferrer(index)

	for _, fa := range analyses {
		if err := ctx.Err(); err != nil {
			return warnings, err
		}
		fileID := rpg.FileNodeID(fa.RelPath)
		if !g.HasNode(fileID) {
			continue
		}

		// Imports: file to imported file.
		for name, target := range resolver.ImportsOf(fa.RelPath) {
			if target == fa.RelPath {
				continue
			}
			in.addDep(g, rpg.DependencyEdge{
				Source: fileID,
				Target: rpg.FileNodeID(target),
				Kind:   rpg.DepImport,
				Symbol: name,
			})
		}

		// Calls: receiver-aware first, plain symbol resolution second.
		calls, err := extract.NewCallExtractor().Extract(fa.Source, fa.Language, fa.RelPath)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("call extraction failed for %s: %v", fa.RelPath, err))
		}
		locals, lerr := extract.ExtractLocalTypes(fa.Source, fa.Language, index)
		if lerr != nil {
			locals = &extract.LocalTypes{ByFunc: map[string]map[string]string{}, Attrs: map[string]string{}}
		}
		for _, call := range calls {
			target, symbol := in.resolveCallTarget(call, fa.RelPath, resolver, inferrer, locals)
			if target == "" || target == fa.RelPath {
				continue
			}
			in.addDep(g, rpg.DependencyEdge{
				Source: fileID,
				Target: rpg.FileNodeID(target),
				Kind:   rpg.DepCall,
				Symbol: symbol,
				Line:   call.Line,
			})
		}

		// Inheritance.
		for _, rel := range inherits[fa.RelPath] {
			resolved := resolver.ResolveInheritance(rel)
			if resolved == nil || resolved.TargetFile == fa.RelPath {
				continue
			}
			kind := rpg.DepInherit
			if rel.Kind == extract.KindImplement {
				kind = rpg.DepImplement
			}
			in.addDep(g, rpg.DependencyEdge{
				Source:       fileID,
				Target:       rpg.FileNodeID(resolved.TargetFile),
				Kind:         kind,
				Symbol:       rel.ChildClass,
				TargetSymbol: rel.ParentClass,
			})
		}
	}
	return warnings, nil
}

// resolveCallTarget finds the defining file of a call, preferring
// receiver-type inference for self/super/variable receivers.
func (in *Injector) resolveCallTarget(call extract.CallSite, relPath string, resolver *symbols.Resolver, inferrer *extract.TypeInferrer, locals *extract.LocalTypes) (string, string) {
	if call.ReceiverKind != extract.ReceiverNone {
		callerClass := firstSegment(call.CallerEntity)
		funcLocals := locals.ByFunc[call.CallerEntity]
		if funcLocals == nil {
			funcLocals = locals.ByFunc[lastSegment(call.CallerEntity)]
		}
		if cls, ok := inferrer.Resolve(call, callerClass, funcLocals, locals.Attrs); ok {
			if files := resolver.Exporters(cls); len(files) > 0 {
				return files[0], cls + "." + call.CalleeSymbol
			}
		}
	}
	if resolved := resolver.ResolveCall(call); resolved != nil {
		return resolved.TargetFile, resolved.Symbol
	}
	return "", ""
}

// addDep inserts an edge when the target node exists; the graph dedups
// per (source, target) with import precedence.
func (in *Injector) addDep(g *rpg.Graph, e rpg.DependencyEdge) {
	if !g.HasNode(e.Target) {
		return
	}
	if err := g.AddDependencyEdge(e); err != nil {
		slog.Warn("inject.dep.skip", "source", e.Source, "target", e.Target, "err", err)
	}
}

// buildClassIndex assembles class info and per-file inheritance relations
// in one pass over the analyses.
func buildClassIndex(analyses []FileAnalysis) (*extract.ClassIndex, map[string][]extract.InheritanceRelation) {
	index := extract.NewClassIndex()
	inherits := map[string][]extract.InheritanceRelation{}

	for _, fa := range analyses {
		rels, err := extract.NewInheritanceExtractor().Extract(fa.Source, fa.Language, fa.RelPath)
		if err == nil {
			inherits[fa.RelPath] = rels
		}
		bases := map[string][]string{}
		for _, rel := range inherits[fa.RelPath] {
			bases[rel.ChildClass] = append(bases[rel.ChildClass], rel.ParentClass)
		}
		methods := map[string]map[string]bool{}
		for _, e := range fa.Result.Entities {
			if e.Type == ast.EntityMethod && e.Parent != "" {
				if methods[e.Parent] == nil {
					methods[e.Parent] = map[string]bool{}
				}
				methods[e.Parent][e.Name] = true
			}
		}
		for _, e := range fa.Result.Entities {
			if e.Type != ast.EntityClass {
				continue
			}
			index.Add(&extract.ClassInfo{
				Name:    e.Name,
				File:    fa.RelPath,
				Bases:   bases[e.Name],
				Methods: methods[e.Name],
			})
		}
	}
	return index, inherits
}

func firstSegment(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return s[:i]
		}
	}
	return s
}

func lastSegment(s string) string {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return s[i+1:]
		}
	}
	return s
}
