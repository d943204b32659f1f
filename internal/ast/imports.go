package ast

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/pleaseai/repograph/internal/lang"
	"github.com/pleaseai/repograph/internal/parser"
)

// extractImports walks the tree collecting normalized imports.
// For languages where only the path is syntactically available
// (Rust use, Go import_spec, Java import, C/C++ include) Names is empty.
func extractImports(root *tree_sitter.Node, source []byte, language lang.Language, spec *lang.Spec) []Import {
	importTypes := toSet(spec.ImportNodeTypes)
	var imports []Import

	parser.Walk(root, func(node *tree_sitter.Node) bool {
		kind := node.Kind()

		// Ruby has no import node kind; require calls act as imports.
		if language == lang.Ruby && kind == "call" {
			if imp, ok := rubyRequire(node, source); ok {
				imports = append(imports, imp)
			}
			return true
		}

		if !importTypes[kind] {
			return true
		}
		if imp, ok := normalizeImport(node, source, language, kind); ok {
			imports = append(imports, imp)
		}
		return false
	})
	return imports
}

func normalizeImport(node *tree_sitter.Node, source []byte, language lang.Language, kind string) (Import, bool) {
	switch language {
	case lang.Python:
		return pythonImport(node, source, kind)
	case lang.JavaScript, lang.TypeScript, lang.TSX:
		return jsImport(node, source)
	case lang.Go:
		if path := node.ChildByFieldName("path"); path != nil {
			return Import{Module: unquote(parser.NodeText(path, source))}, true
		}
	case lang.Rust:
		if arg := node.ChildByFieldName("argument"); arg != nil {
			return Import{Module: parser.NodeText(arg, source)}, true
		}
	case lang.Java, lang.Kotlin, lang.CSharp:
		// import/using statements carry a dotted path; take the identifier text.
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			if child == nil {
				continue
			}
			switch child.Kind() {
			case "scoped_identifier", "identifier", "qualified_name", "name":
				return Import{Module: parser.NodeText(child, source)}, true
			}
		}
	case lang.C, lang.CPP:
		if path := node.ChildByFieldName("path"); path != nil {
			return Import{Module: trimIncludePath(parser.NodeText(path, source))}, true
		}
	}
	return Import{}, false
}

func pythonImport(node *tree_sitter.Node, source []byte, kind string) (Import, bool) {
	if kind == "import_from_statement" {
		moduleNode := node.ChildByFieldName("module_name")
		if moduleNode == nil {
			return Import{}, false
		}
		imp := Import{Module: parser.NodeText(moduleNode, source)}
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			if child == nil || child.Id() == moduleNode.Id() {
				continue
			}
			switch child.Kind() {
			case "dotted_name", "identifier":
				imp.Names = append(imp.Names, parser.NodeText(child, source))
			case "aliased_import":
				if n := child.ChildByFieldName("name"); n != nil {
					imp.Names = append(imp.Names, parser.NodeText(n, source))
				}
			}
		}
		return imp, true
	}

	// import a.b, c
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			return Import{Module: parser.NodeText(child, source)}, true
		case "aliased_import":
			if n := child.ChildByFieldName("name"); n != nil {
				return Import{Module: parser.NodeText(n, source)}, true
			}
		}
	}
	return Import{}, false
}

func jsImport(node *tree_sitter.Node, source []byte) (Import, bool) {
	sourceNode := node.ChildByFieldName("source")
	if sourceNode == nil {
		return Import{}, false
	}
	imp := Import{Module: unquote(parser.NodeText(sourceNode, source))}

	parser.Walk(node, func(child *tree_sitter.Node) bool {
		switch child.Kind() {
		case "import_specifier":
			// import { a as b }: the local binding is the alias if present.
			name := child.ChildByFieldName("alias")
			if name == nil {
				name = child.ChildByFieldName("name")
			}
			if name != nil {
				imp.Names = append(imp.Names, parser.NodeText(name, source))
			}
			return false
		case "namespace_import":
			for i := uint(0); i < child.NamedChildCount(); i++ {
				if id := child.NamedChild(i); id != nil && id.Kind() == "identifier" {
					imp.Names = append(imp.Names, parser.NodeText(id, source))
				}
			}
			return false
		case "import_clause":
			// Default import: a bare identifier directly under the clause.
			for i := uint(0); i < child.NamedChildCount(); i++ {
				if id := child.NamedChild(i); id != nil && id.Kind() == "identifier" {
					imp.Names = append(imp.Names, parser.NodeText(id, source))
				}
			}
			return true
		}
		return true
	})
	return imp, true
}

// rubyRequire detects require/require_relative call sites.
func rubyRequire(node *tree_sitter.Node, source []byte) (Import, bool) {
	methodNode := node.ChildByFieldName("method")
	if methodNode == nil {
		return Import{}, false
	}
	method := parser.NodeText(methodNode, source)
	if method != "require" && method != "require_relative" {
		return Import{}, false
	}
	args := node.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return Import{}, false
	}
	first := args.NamedChild(0)
	if first == nil || first.Kind() != "string" {
		return Import{}, false
	}
	return Import{Module: unquote(parser.NodeText(first, source))}, true
}

func unquote(s string) string {
	return strings.Trim(s, "\"'`")
}

func trimIncludePath(s string) string {
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	return strings.Trim(s, "\"")
}
