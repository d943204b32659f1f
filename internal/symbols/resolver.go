// Package symbols builds export/import tables over parsed files and
// resolves call and inheritance targets to defining files.
package symbols

import (
	"path"
	"sort"
	"strings"

	"github.com/pleaseai/repograph/internal/ast"
	"github.com/pleaseai/repograph/internal/extract"
)

// candidateExtensions are tried when resolving a relative import specifier
// against the known-files set.
var candidateExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".py", ""}

// ResolvedCall is a call site resolved to its defining file.
type ResolvedCall struct {
	SourceFile string
	TargetFile string
	Symbol     string
	Line       int
}

// ResolvedInheritance is an inheritance relation resolved to its defining file.
type ResolvedInheritance struct {
	SourceFile  string
	TargetFile  string
	ChildClass  string
	ParentClass string
	Kind        extract.InheritanceKind
}

// Resolver maps symbols to defining files in two passes: exports first,
// then per-file import resolution.
type Resolver struct {
	knownFiles map[string]bool
	// exports: symbol → defining files (sorted for deterministic pick).
	exports map[string][]string
	// lowerExports: lower-cased symbol → canonical symbol, for fuzzy retry.
	lowerExports map[string]string
	// imports: file → imported name → resolved file.
	imports map[string]map[string]string
	// rawImports holds unresolved imports until Build runs.
	rawImports map[string][]ast.Import
	// definedIn: file → set of symbols defined in it.
	definedIn map[string]map[string]bool
}

// NewResolver returns an empty Resolver.
func NewResolver() *Resolver {
	return &Resolver{
		knownFiles:   make(map[string]bool),
		exports:      make(map[string][]string),
		lowerExports: make(map[string]string),
		imports:      make(map[string]map[string]string),
		rawImports:   make(map[string][]ast.Import),
		definedIn:    make(map[string]map[string]bool),
	}
}

// AddFile registers a parsed file. relPath must be slash-separated and
// relative to the repository root.
func (r *Resolver) AddFile(relPath string, result *ast.ParseResult) {
	relPath = path.Clean(relPath)
	r.knownFiles[relPath] = true
	if r.definedIn[relPath] == nil {
		r.definedIn[relPath] = make(map[string]bool)
	}
	for _, e := range result.Entities {
		r.addExport(e.Name, relPath)
		r.definedIn[relPath][e.Name] = true
		if e.Type == ast.EntityMethod && e.Parent != "" {
			qualified := e.Parent + "." + e.Name
			r.addExport(qualified, relPath)
			r.definedIn[relPath][qualified] = true
		}
	}
	r.rawImports[relPath] = result.Imports
}

func (r *Resolver) addExport(symbol, file string) {
	for _, existing := range r.exports[symbol] {
		if existing == file {
			return
		}
	}
	r.exports[symbol] = append(r.exports[symbol], file)
	r.lowerExports[strings.ToLower(symbol)] = symbol
}

// Build resolves every file's import specifiers against the known-files set.
// Call after all files are added.
func (r *Resolver) Build() {
	for symbol := range r.exports {
		sort.Strings(r.exports[symbol])
	}
	for file, imports := range r.rawImports {
		table := make(map[string]string)
		for _, imp := range imports {
			resolved, ok := r.resolveSpecifier(file, imp.Module)
			if !ok {
				continue
			}
			if len(imp.Names) == 0 {
				// Path-only imports index the file under its module basename.
				base := strings.TrimSuffix(path.Base(imp.Module), path.Ext(imp.Module))
				table[base] = resolved
				continue
			}
			for _, name := range imp.Names {
				table[name] = resolved
			}
		}
		r.imports[file] = table
	}
}

// resolveSpecifier resolves an import specifier to a known file.
// Specifiers starting with "." or "/" are joined to the importer's
// directory; everything else is external and returns false.
func (r *Resolver) resolveSpecifier(importer, specifier string) (string, bool) {
	if specifier == "" {
		return "", false
	}
	if !strings.HasPrefix(specifier, ".") && !strings.HasPrefix(specifier, "/") {
		return "", false
	}
	base := path.Join(path.Dir(importer), specifier)
	base = strings.TrimPrefix(base, "/")

	for _, ext := range candidateExtensions {
		if candidate := base + ext; r.knownFiles[candidate] {
			return candidate, true
		}
	}
	for _, ext := range candidateExtensions {
		if ext == "" {
			continue
		}
		if candidate := path.Join(base, "index"+ext); r.knownFiles[candidate] {
			return candidate, true
		}
	}
	return "", false
}

// ImportsOf returns the resolved import table for a file.
func (r *Resolver) ImportsOf(file string) map[string]string {
	return r.imports[path.Clean(file)]
}

// Exporters returns the files defining a symbol, in deterministic order.
func (r *Resolver) Exporters(symbol string) []string {
	return r.exports[symbol]
}

// ResolveCall locates the defining file of a call's callee. Returns nil
// when the callee cannot be resolved; unresolved calls are dropped.
func (r *Resolver) ResolveCall(call extract.CallSite) *ResolvedCall {
	target, symbol := r.locate(call.CallerFile, call.CalleeSymbol)
	if target == "" {
		return nil
	}
	return &ResolvedCall{
		SourceFile: call.CallerFile,
		TargetFile: target,
		Symbol:     symbol,
		Line:       call.Line,
	}
}

// ResolveInheritance locates the defining file of a parent class.
func (r *Resolver) ResolveInheritance(rel extract.InheritanceRelation) *ResolvedInheritance {
	target, _ := r.locate(rel.ChildFile, rel.ParentClass)
	if target == "" {
		return nil
	}
	return &ResolvedInheritance{
		SourceFile:  rel.ChildFile,
		TargetFile:  target,
		ChildClass:  rel.ChildClass,
		ParentClass: rel.ParentClass,
		Kind:        rel.Kind,
	}
}

// locate finds the defining file of a symbol seen from sourceFile:
// direct import, then same-file definition, then any exporting file,
// then a case-insensitive retry.
func (r *Resolver) locate(sourceFile, symbol string) (file, resolvedSymbol string) {
	sourceFile = path.Clean(sourceFile)

	if table := r.imports[sourceFile]; table != nil {
		if target, ok := table[symbol]; ok {
			return target, symbol
		}
	}
	if r.definedIn[sourceFile][symbol] {
		return sourceFile, symbol
	}
	if exporters := r.exports[symbol]; len(exporters) > 0 {
		return exporters[0], symbol
	}
	if canonical, ok := r.lowerExports[strings.ToLower(symbol)]; ok {
		if exporters := r.exports[canonical]; len(exporters) > 0 {
			return exporters[0], canonical
		}
	}
	return "", ""
}
