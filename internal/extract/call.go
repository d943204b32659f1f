// Package extract derives call sites, inheritance relations and receiver
// types from parsed source files.
package extract

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/pleaseai/repograph/internal/lang"
	"github.com/pleaseai/repograph/internal/parser"
)

// ReceiverKind classifies the receiver of a call site.
type ReceiverKind string

const (
	ReceiverSelf     ReceiverKind = "self"
	ReceiverSuper    ReceiverKind = "super"
	ReceiverVariable ReceiverKind = "variable"
	ReceiverNone     ReceiverKind = "none"
)

// CallSite is one call/invocation/new-expression found in a file.
type CallSite struct {
	CallerFile   string
	CallerEntity string // dot-joined enclosing class/function names, "" at module level
	CalleeSymbol string
	Line         int
	Receiver     string // verbatim receiver text for ReceiverVariable
	ReceiverKind ReceiverKind
}

// CallExtractor walks parse trees emitting CallSites.
type CallExtractor struct{}

// NewCallExtractor returns a CallExtractor.
func NewCallExtractor() *CallExtractor {
	return &CallExtractor{}
}

// Extract parses source and returns every call site with its caller context.
func (ce *CallExtractor) Extract(source []byte, language lang.Language, filePath string) ([]CallSite, error) {
	spec := lang.ForLanguage(language)
	if spec == nil {
		return nil, nil
	}
	tree, err := parser.Parse(language, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	w := &callWalker{
		source:     source,
		language:   language,
		filePath:   filePath,
		callTypes:  toSet(spec.CallNodeTypes),
		scopeTypes: toSet(append(append([]string{}, spec.FunctionNodeTypes...), spec.ClassNodeTypes...)),
	}
	w.walk(tree.RootNode(), nil)
	return w.calls, nil
}

type callWalker struct {
	source     []byte
	language   lang.Language
	filePath   string
	callTypes  map[string]bool
	scopeTypes map[string]bool
	calls      []CallSite
}

// walk descends the tree keeping the enclosing entity names on a stack.
func (w *callWalker) walk(node *tree_sitter.Node, context []string) {
	kind := node.Kind()

	if w.scopeTypes[kind] {
		if name := scopeName(node, w.source); name != "" {
			context = append(context, name)
		}
	}

	if w.callTypes[kind] {
		if site, ok := w.dissect(node); ok {
			site.CallerFile = w.filePath
			site.CallerEntity = strings.Join(context, ".")
			site.Line = int(node.StartPosition().Row) + 1
			w.calls = append(w.calls, site)
		}
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			w.walk(child, context)
		}
	}
}

// scopeName resolves the name of a function/class scope node, if any.
func scopeName(node *tree_sitter.Node, source []byte) string {
	if n := node.ChildByFieldName("name"); n != nil {
		return parser.NodeText(n, source)
	}
	if node.Kind() == "impl_item" {
		if n := node.ChildByFieldName("type"); n != nil {
			return parser.NodeText(n, source)
		}
	}
	if node.Kind() == "arrow_function" {
		if p := node.Parent(); p != nil && p.Kind() == "variable_declarator" {
			if n := p.ChildByFieldName("name"); n != nil {
				return parser.NodeText(n, source)
			}
		}
	}
	return ""
}

// dissect splits a call node into callee symbol and receiver.
func (w *callWalker) dissect(node *tree_sitter.Node) (CallSite, bool) {
	switch w.language {
	case lang.Java:
		return w.dissectJava(node)
	case lang.CSharp:
		return w.dissectCSharp(node)
	case lang.Ruby:
		return w.dissectRuby(node)
	case lang.Kotlin:
		return w.dissectKotlin(node)
	}

	// Python / JS / TS / Go / Rust / C / C++ share a function-field shape.
	fn := node.ChildByFieldName("function")
	if fn == nil {
		fn = node.ChildByFieldName("constructor") // JS/TS new_expression
	}
	if fn == nil {
		return CallSite{}, false
	}

	switch fn.Kind() {
	case "identifier", "type_identifier":
		return w.classified(nil, parser.NodeText(fn, w.source)), true
	case "attribute": // Python obj.method
		return w.fieldCall(fn, "object", "attribute")
	case "member_expression": // JS/TS obj.method
		return w.fieldCall(fn, "object", "property")
	case "selector_expression": // Go pkg.Fn / recv.Method
		return w.fieldCall(fn, "operand", "field")
	case "field_expression": // Rust/C/C++ value.method
		site, ok := w.fieldCall(fn, "value", "field")
		if !ok {
			site, ok = w.fieldCall(fn, "argument", "field")
		}
		return site, ok
	case "scoped_identifier": // Rust path::fn
		if n := fn.ChildByFieldName("name"); n != nil {
			return w.classified(nil, parser.NodeText(n, w.source)), true
		}
	}
	return CallSite{}, false
}

func (w *callWalker) dissectJava(node *tree_sitter.Node) (CallSite, bool) {
	if node.Kind() == "object_creation_expression" {
		if t := node.ChildByFieldName("type"); t != nil {
			return w.classified(nil, parser.NodeText(t, w.source)), true
		}
		return CallSite{}, false
	}
	name := node.ChildByFieldName("name")
	if name == nil {
		return CallSite{}, false
	}
	return w.classified(node.ChildByFieldName("object"), parser.NodeText(name, w.source)), true
}

func (w *callWalker) dissectCSharp(node *tree_sitter.Node) (CallSite, bool) {
	if node.Kind() == "object_creation_expression" {
		if t := node.ChildByFieldName("type"); t != nil {
			return w.classified(nil, parser.NodeText(t, w.source)), true
		}
		return CallSite{}, false
	}
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return CallSite{}, false
	}
	switch fn.Kind() {
	case "identifier":
		return w.classified(nil, parser.NodeText(fn, w.source)), true
	case "member_access_expression":
		return w.fieldCall(fn, "expression", "name")
	}
	return CallSite{}, false
}

func (w *callWalker) dissectRuby(node *tree_sitter.Node) (CallSite, bool) {
	method := node.ChildByFieldName("method")
	if method == nil {
		return CallSite{}, false
	}
	return w.classified(node.ChildByFieldName("receiver"), parser.NodeText(method, w.source)), true
}

func (w *callWalker) dissectKotlin(node *tree_sitter.Node) (CallSite, bool) {
	if node.NamedChildCount() == 0 {
		return CallSite{}, false
	}
	callee := node.NamedChild(0)
	if callee == nil {
		return CallSite{}, false
	}
	switch callee.Kind() {
	case "simple_identifier", "identifier":
		return w.classified(nil, parser.NodeText(callee, w.source)), true
	case "navigation_expression":
		// target.member: the last navigation suffix holds the member name.
		var receiver *tree_sitter.Node
		var member string
		for i := uint(0); i < callee.NamedChildCount(); i++ {
			child := callee.NamedChild(i)
			if child == nil {
				continue
			}
			if child.Kind() == "navigation_suffix" {
				member = strings.TrimLeft(parser.NodeText(child, w.source), ".?")
			} else if receiver == nil {
				receiver = child
			}
		}
		if member == "" {
			return CallSite{}, false
		}
		return w.classified(receiver, member), true
	}
	return CallSite{}, false
}

// fieldCall builds a CallSite from a node with receiver/member field names.
func (w *callWalker) fieldCall(fn *tree_sitter.Node, recvField, memberField string) (CallSite, bool) {
	member := fn.ChildByFieldName(memberField)
	if member == nil {
		return CallSite{}, false
	}
	return w.classified(fn.ChildByFieldName(recvField), parser.NodeText(member, w.source)), true
}

// classified fills in the receiver classification for a call.
func (w *callWalker) classified(receiver *tree_sitter.Node, callee string) CallSite {
	site := CallSite{CalleeSymbol: callee, ReceiverKind: ReceiverNone}
	if receiver == nil {
		return site
	}
	text := parser.NodeText(receiver, w.source)
	switch {
	case text == "self" || text == "this":
		site.ReceiverKind = ReceiverSelf
	case text == "super" || strings.HasPrefix(text, "super("):
		site.ReceiverKind = ReceiverSuper
	default:
		site.ReceiverKind = ReceiverVariable
		site.Receiver = text
	}
	return site
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}
