package extract

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/pleaseai/repograph/internal/lang"
	"github.com/pleaseai/repograph/internal/parser"
)

// InheritanceKind distinguishes subclassing from interface implementation.
type InheritanceKind string

const (
	KindInherit   InheritanceKind = "inherit"
	KindImplement InheritanceKind = "implement"
)

// InheritanceRelation links a class to one of its bases.
type InheritanceRelation struct {
	ChildFile   string
	ChildClass  string
	ParentClass string
	Kind        InheritanceKind
}

// InheritanceExtractor walks parse trees emitting inheritance relations.
type InheritanceExtractor struct{}

// NewInheritanceExtractor returns an InheritanceExtractor.
func NewInheritanceExtractor() *InheritanceExtractor {
	return &InheritanceExtractor{}
}

// Extract parses source and returns inherit/implement relations using the
// language's conventions: C# first base inherits and the rest implement,
// Go embedded structs inherit, Rust `impl Trait for Type` implements,
// Java extends/implements map directly, Kotlin delegation specifiers with a
// constructor invocation inherit and all others implement.
func (ie *InheritanceExtractor) Extract(source []byte, language lang.Language, filePath string) ([]InheritanceRelation, error) {
	spec := lang.ForLanguage(language)
	if spec == nil {
		return nil, nil
	}
	tree, err := parser.Parse(language, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	w := &inheritWalker{source: source, language: language, filePath: filePath}
	classTypes := toSet(spec.ClassNodeTypes)

	parser.Walk(tree.RootNode(), func(node *tree_sitter.Node) bool {
		if !classTypes[node.Kind()] {
			return true
		}
		w.extractClass(node)
		return true
	})
	return w.relations, nil
}

type inheritWalker struct {
	source    []byte
	language  lang.Language
	filePath  string
	relations []InheritanceRelation
}

func (w *inheritWalker) add(child, parent string, kind InheritanceKind) {
	if child == "" || parent == "" {
		return
	}
	w.relations = append(w.relations, InheritanceRelation{
		ChildFile:   w.filePath,
		ChildClass:  child,
		ParentClass: parent,
		Kind:        kind,
	})
}

func (w *inheritWalker) extractClass(node *tree_sitter.Node) {
	switch w.language {
	case lang.Python:
		w.pythonBases(node)
	case lang.JavaScript, lang.TypeScript, lang.TSX:
		w.jsHeritage(node)
	case lang.Go:
		w.goEmbedded(node)
	case lang.Rust:
		w.rustImpl(node)
	case lang.Java:
		w.javaClauses(node)
	case lang.CPP:
		w.cppBases(node)
	case lang.CSharp:
		w.csharpBaseList(node)
	case lang.Ruby:
		w.rubySuperclass(node)
	case lang.Kotlin:
		w.kotlinDelegation(node)
	}
}

func (w *inheritWalker) className(node *tree_sitter.Node) string {
	if n := node.ChildByFieldName("name"); n != nil {
		return parser.NodeText(n, w.source)
	}
	return ""
}

// pythonBases handles class C(Base1, Base2); all bases inherit.
func (w *inheritWalker) pythonBases(node *tree_sitter.Node) {
	child := w.className(node)
	args := node.ChildByFieldName("superclasses")
	if args == nil {
		return
	}
	for i := uint(0); i < args.NamedChildCount(); i++ {
		base := args.NamedChild(i)
		if base == nil {
			continue
		}
		switch base.Kind() {
		case "identifier", "attribute":
			w.add(child, parser.NodeText(base, w.source), KindInherit)
		}
	}
}

// jsHeritage: extends → inherit; TS implements clause → implement.
func (w *inheritWalker) jsHeritage(node *tree_sitter.Node) {
	child := w.className(node)
	for i := uint(0); i < node.NamedChildCount(); i++ {
		clause := node.NamedChild(i)
		if clause == nil || clause.Kind() != "class_heritage" {
			continue
		}
		// JS: class_heritage wraps the extends expression directly.
		// TS: class_heritage contains extends_clause / implements_clause.
		handled := false
		for j := uint(0); j < clause.NamedChildCount(); j++ {
			inner := clause.NamedChild(j)
			if inner == nil {
				continue
			}
			switch inner.Kind() {
			case "extends_clause":
				handled = true
				w.addClauseTypes(child, inner, KindInherit)
			case "implements_clause":
				handled = true
				w.addClauseTypes(child, inner, KindImplement)
			}
		}
		if !handled {
			for j := uint(0); j < clause.NamedChildCount(); j++ {
				if inner := clause.NamedChild(j); inner != nil && inner.Kind() == "identifier" {
					w.add(child, parser.NodeText(inner, w.source), KindInherit)
				}
			}
		}
	}
	// TS interface extends.
	if node.Kind() == "interface_declaration" {
		for i := uint(0); i < node.NamedChildCount(); i++ {
			if clause := node.NamedChild(i); clause != nil && clause.Kind() == "extends_type_clause" {
				w.addClauseTypes(child, clause, KindInherit)
			}
		}
	}
}

func (w *inheritWalker) addClauseTypes(child string, clause *tree_sitter.Node, kind InheritanceKind) {
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		t := clause.NamedChild(i)
		if t == nil {
			continue
		}
		switch t.Kind() {
		case "identifier", "type_identifier", "nested_type_identifier", "generic_type", "member_expression":
			name := parser.NodeText(t, w.source)
			if idx := strings.IndexByte(name, '<'); idx > 0 {
				name = name[:idx]
			}
			w.add(child, name, kind)
		}
	}
}

// goEmbedded: a field declaration with no name inside a struct embeds a type.
func (w *inheritWalker) goEmbedded(node *tree_sitter.Node) {
	child := w.className(node)
	typeNode := node.ChildByFieldName("type")
	if typeNode == nil || typeNode.Kind() != "struct_type" {
		return
	}
	parser.Walk(typeNode, func(field *tree_sitter.Node) bool {
		if field.Kind() != "field_declaration" {
			return true
		}
		if field.ChildByFieldName("name") != nil {
			return false
		}
		if t := field.ChildByFieldName("type"); t != nil {
			name := strings.TrimPrefix(parser.NodeText(t, w.source), "*")
			w.add(child, name, KindInherit)
		}
		return false
	})
}

// rustImpl: impl Trait for Type → Type implements Trait.
func (w *inheritWalker) rustImpl(node *tree_sitter.Node) {
	if node.Kind() != "impl_item" {
		return
	}
	traitNode := node.ChildByFieldName("trait")
	typeNode := node.ChildByFieldName("type")
	if traitNode == nil || typeNode == nil {
		return
	}
	w.add(parser.NodeText(typeNode, w.source), parser.NodeText(traitNode, w.source), KindImplement)
}

// javaClauses: extends → inherit, implements → implement.
func (w *inheritWalker) javaClauses(node *tree_sitter.Node) {
	child := w.className(node)
	if sc := node.ChildByFieldName("superclass"); sc != nil {
		for i := uint(0); i < sc.NamedChildCount(); i++ {
			if t := sc.NamedChild(i); t != nil {
				w.add(child, baseTypeName(parser.NodeText(t, w.source)), KindInherit)
			}
		}
	}
	if ifaces := node.ChildByFieldName("interfaces"); ifaces != nil {
		parser.Walk(ifaces, func(t *tree_sitter.Node) bool {
			if t.Kind() == "type_identifier" {
				w.add(child, parser.NodeText(t, w.source), KindImplement)
				return false
			}
			return true
		})
	}
}

// cppBases: all bases in the base_class_clause inherit.
func (w *inheritWalker) cppBases(node *tree_sitter.Node) {
	child := w.className(node)
	for i := uint(0); i < node.NamedChildCount(); i++ {
		clause := node.NamedChild(i)
		if clause == nil || clause.Kind() != "base_class_clause" {
			continue
		}
		parser.Walk(clause, func(t *tree_sitter.Node) bool {
			if t.Kind() == "type_identifier" {
				w.add(child, parser.NodeText(t, w.source), KindInherit)
				return false
			}
			return true
		})
	}
}

// csharpBaseList: the first base inherits, the rest implement.
func (w *inheritWalker) csharpBaseList(node *tree_sitter.Node) {
	child := w.className(node)
	var bases *tree_sitter.Node
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if c := node.NamedChild(i); c != nil && c.Kind() == "base_list" {
			bases = c
			break
		}
	}
	if bases == nil {
		return
	}
	first := true
	for i := uint(0); i < bases.NamedChildCount(); i++ {
		t := bases.NamedChild(i)
		if t == nil {
			continue
		}
		name := baseTypeName(parser.NodeText(t, w.source))
		if name == "" {
			continue
		}
		kind := KindImplement
		if first {
			kind = KindInherit
			first = false
		}
		w.add(child, name, kind)
	}
}

// rubySuperclass: class C < Base.
func (w *inheritWalker) rubySuperclass(node *tree_sitter.Node) {
	child := w.className(node)
	sc := node.ChildByFieldName("superclass")
	if sc == nil {
		return
	}
	name := strings.TrimSpace(strings.TrimPrefix(parser.NodeText(sc, w.source), "<"))
	w.add(child, name, KindInherit)
}

// kotlinDelegation: a delegation specifier with a constructor invocation
// inherits; all other specifiers implement.
func (w *inheritWalker) kotlinDelegation(node *tree_sitter.Node) {
	child := w.className(node)
	parser.Walk(node, func(spec *tree_sitter.Node) bool {
		if spec.Kind() != "delegation_specifier" {
			return true
		}
		kind := KindImplement
		name := ""
		for i := uint(0); i < spec.NamedChildCount(); i++ {
			inner := spec.NamedChild(i)
			if inner == nil {
				continue
			}
			switch inner.Kind() {
			case "constructor_invocation":
				kind = KindInherit
				name = baseTypeName(parser.NodeText(inner, w.source))
			case "user_type", "simple_identifier":
				name = baseTypeName(parser.NodeText(inner, w.source))
			}
		}
		if name != "" {
			w.add(child, name, kind)
		}
		return false
	})
}

// baseTypeName strips generic arguments and call parentheses from a base name.
func baseTypeName(s string) string {
	if idx := strings.IndexByte(s, '<'); idx > 0 {
		s = s[:idx]
	}
	if idx := strings.IndexByte(s, '('); idx > 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
