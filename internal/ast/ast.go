// Package ast extracts language-neutral code entities from source files.
package ast

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/pleaseai/repograph/internal/lang"
	"github.com/pleaseai/repograph/internal/parser"
)

// EntityType classifies an extracted code entity.
type EntityType string

const (
	EntityFunction EntityType = "function"
	EntityClass    EntityType = "class"
	EntityMethod   EntityType = "method"
)

// CodeEntity is an AST-level record of a function, class or method.
// Lines are 1-indexed and end-inclusive.
type CodeEntity struct {
	Type          EntityType
	Name          string
	StartLine     int
	EndLine       int
	StartColumn   int
	EndColumn     int
	Parameters    string
	Parent        string
	Documentation string
}

// Import is a normalized import statement. Names is empty for languages
// where only the path is syntactically available (Go, Rust, Java, ...).
type Import struct {
	Module string
	Names  []string
}

// ParseResult is the best-effort output of parsing one source file.
// Errors are non-fatal: a partial entity list is returned even when the
// tree contains syntax errors.
type ParseResult struct {
	Entities []CodeEntity
	Imports  []Import
	Errors   []string
}

// Extractor parses source into ParseResults. Language detection is by
// file extension.
type Extractor struct{}

// NewExtractor returns an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Parse extracts entities and imports from source in the given language.
func (e *Extractor) Parse(source []byte, language lang.Language) (*ParseResult, error) {
	spec := lang.ForLanguage(language)
	if spec == nil {
		return nil, fmt.Errorf("unsupported language: %s", language)
	}

	source = stripBOM(source)
	tree, err := parser.Parse(language, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", language, err)
	}
	defer tree.Close()

	result := &ParseResult{}
	root := tree.RootNode()
	result.Errors = parser.CollectErrors(root)

	w := &walker{
		source:   source,
		language: language,
		spec:     spec,
		result:   result,
	}
	w.walkScope(root, "")
	result.Imports = extractImports(root, source, language, spec)
	return result, nil
}

// ParseFile reads a file and extracts entities; the language is detected
// from the file extension.
func (e *Extractor) ParseFile(path string) (*ParseResult, error) {
	language, ok := lang.Detect(filepath.Ext(path))
	if !ok {
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return e.Parse(source, language)
}

// stripBOM removes a UTF-8 byte order mark (common in C#/Windows files).
func stripBOM(source []byte) []byte {
	return bytes.TrimPrefix(source, []byte{0xEF, 0xBB, 0xBF})
}

type walker struct {
	source   []byte
	language lang.Language
	spec     *lang.Spec
	result   *ParseResult

	funcTypes  map[string]bool
	classTypes map[string]bool
}

func (w *walker) sets() (funcTypes, classTypes map[string]bool) {
	if w.funcTypes == nil {
		w.funcTypes = toSet(w.spec.FunctionNodeTypes)
		w.classTypes = toSet(w.spec.ClassNodeTypes)
	}
	return w.funcTypes, w.classTypes
}

// walkScope traverses node's subtree, extracting entities. enclosingClass is
// the name of the innermost class, or "" at module level. Traversal is an
// explicit recursion so class membership needs no inherited state.
func (w *walker) walkScope(node *tree_sitter.Node, enclosingClass string) {
	funcTypes, classTypes := w.sets()

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		kind := child.Kind()

		switch {
		case classTypes[kind]:
			name := w.entityName(child, kind)
			if name == "" {
				w.walkScope(child, enclosingClass)
				continue
			}
			w.emit(child, EntityClass, name, enclosingClass)
			w.walkScope(child, name)

		case funcTypes[kind]:
			name := w.functionName(child)
			if name == "" {
				// Unnamed inline functions are skipped, but their bodies may
				// still declare named entities.
				w.walkScope(child, enclosingClass)
				continue
			}
			entityType := EntityFunction
			parent := enclosingClass
			if receiver := w.receiverType(child); receiver != "" {
				entityType = EntityMethod
				parent = receiver
			} else if enclosingClass != "" {
				entityType = EntityMethod
			}
			w.emit2(child, entityType, name, parent)
			// Nested definitions keep the enclosing class context.
			w.walkScope(child, enclosingClass)

		default:
			w.walkScope(child, enclosingClass)
		}
	}
}

// emit records a class entity.
func (w *walker) emit(node *tree_sitter.Node, t EntityType, name, parent string) {
	w.result.Entities = append(w.result.Entities, CodeEntity{
		Type:          t,
		Name:          name,
		StartLine:     int(node.StartPosition().Row) + 1,
		EndLine:       int(node.EndPosition().Row) + 1,
		StartColumn:   int(node.StartPosition().Column),
		EndColumn:     int(node.EndPosition().Column),
		Parent:        parent,
		Documentation: w.documentation(node),
	})
}

// emit2 records a function/method entity, including its parameter list.
func (w *walker) emit2(node *tree_sitter.Node, t EntityType, name, parent string) {
	entity := CodeEntity{
		Type:          t,
		Name:          name,
		StartLine:     int(node.StartPosition().Row) + 1,
		EndLine:       int(node.EndPosition().Row) + 1,
		StartColumn:   int(node.StartPosition().Column),
		EndColumn:     int(node.EndPosition().Column),
		Parent:        parent,
		Documentation: w.documentation(node),
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		entity.Parameters = parser.NodeText(params, w.source)
	}
	w.result.Entities = append(w.result.Entities, entity)
}

// entityName resolves a class-like node's name. Constructs without a name
// field (Rust impl blocks) fall back to the type field.
func (w *walker) entityName(node *tree_sitter.Node, kind string) string {
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return parser.NodeText(nameNode, w.source)
	}
	if typeNode := node.ChildByFieldName("type"); typeNode != nil {
		// Go type_spec carries the declared type in the "type" field and the
		// name in "name"; Rust impl blocks only have "type".
		if kind == "impl_item" {
			return parser.NodeText(typeNode, w.source)
		}
	}
	return ""
}

// functionName resolves a function node's name. Arrow functions bound to a
// variable adopt the variable's name; unnamed inline functions return "".
func (w *walker) functionName(node *tree_sitter.Node) string {
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return parser.NodeText(nameNode, w.source)
	}

	switch node.Kind() {
	case "arrow_function", "function_expression", "function":
		p := node.Parent()
		if p == nil {
			return ""
		}
		switch p.Kind() {
		case "variable_declarator":
			if n := p.ChildByFieldName("name"); n != nil {
				return parser.NodeText(n, w.source)
			}
		case "field_definition":
			if n := p.ChildByFieldName("property"); n != nil {
				return parser.NodeText(n, w.source)
			}
		case "public_field_definition":
			if n := p.ChildByFieldName("name"); n != nil {
				return parser.NodeText(n, w.source)
			}
		case "assignment_expression":
			if n := p.ChildByFieldName("left"); n != nil {
				return parser.NodeText(n, w.source)
			}
		}
	}
	return ""
}

// receiverType returns the Go receiver type name for a method_declaration,
// stripping any pointer prefix. Returns "" for other nodes.
func (w *walker) receiverType(node *tree_sitter.Node) string {
	if node.Kind() != "method_declaration" || w.language != lang.Go {
		return ""
	}
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	var typeName string
	for i := uint(0); i < recv.NamedChildCount(); i++ {
		param := recv.NamedChild(i)
		if param == nil || param.Kind() != "parameter_declaration" {
			continue
		}
		if tn := param.ChildByFieldName("type"); tn != nil {
			typeName = parser.NodeText(tn, w.source)
		}
	}
	if len(typeName) > 0 && typeName[0] == '*' {
		typeName = typeName[1:]
	}
	return typeName
}

// documentation extracts a docstring or adjacent comment for a definition.
func (w *walker) documentation(node *tree_sitter.Node) string {
	if w.language == lang.Python {
		return pythonDocstring(node, w.source)
	}
	// Line comments immediately above the definition.
	if prev := node.PrevNamedSibling(); prev != nil {
		switch prev.Kind() {
		case "comment", "line_comment", "block_comment":
			if int(node.StartPosition().Row)-int(prev.EndPosition().Row) <= 1 {
				return parser.NodeText(prev, w.source)
			}
		}
	}
	return ""
}

// pythonDocstring returns the first string expression in a function/class body.
func pythonDocstring(node *tree_sitter.Node, source []byte) string {
	body := node.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first == nil || first.Kind() != "expression_statement" {
		return ""
	}
	expr := first.NamedChild(0)
	if expr == nil || expr.Kind() != "string" {
		return ""
	}
	return parser.NodeText(expr, source)
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}
