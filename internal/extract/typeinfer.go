package extract

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/pleaseai/repograph/internal/lang"
	"github.com/pleaseai/repograph/internal/parser"
)

// commonMethodNames are method names too generic for the fuzzy fallback:
// a single defining class is not evidence when half the codebase has a
// method with the same name.
var commonMethodNames = map[string]bool{
	"get": true, "set": true, "add": true, "remove": true, "update": true,
	"delete": true, "create": true, "init": true, "run": true, "start": true,
	"stop": true, "close": true, "open": true, "read": true, "write": true,
	"load": true, "save": true, "reset": true, "clear": true, "size": true,
	"length": true, "toString": true, "equals": true, "copy": true,
	"clone": true, "next": true, "value": true, "name": true,
}

// ClassInfo records one class definition for type inference.
type ClassInfo struct {
	Name    string
	File    string
	Bases   []string
	Methods map[string]bool
}

// ClassIndex maps class names to their definitions across all parsed files.
type ClassIndex struct {
	classes map[string][]*ClassInfo
}

// NewClassIndex returns an empty ClassIndex.
func NewClassIndex() *ClassIndex {
	return &ClassIndex{classes: make(map[string][]*ClassInfo)}
}

// Add registers a class definition.
func (ix *ClassIndex) Add(info *ClassInfo) {
	if info.Methods == nil {
		info.Methods = make(map[string]bool)
	}
	ix.classes[info.Name] = append(ix.classes[info.Name], info)
}

// Lookup returns the first definition of a class name, or nil.
func (ix *ClassIndex) Lookup(name string) *ClassInfo {
	defs := ix.classes[name]
	if len(defs) == 0 {
		return nil
	}
	return defs[0]
}

// MRO returns the method resolution order starting at name: the class
// itself followed by its ancestors, depth-first. A visited set makes the
// walk safe on cyclic hierarchies.
func (ix *ClassIndex) MRO(name string) []string {
	var order []string
	visited := make(map[string]bool)
	var visit func(n string)
	visit = func(n string) {
		if visited[n] {
			return
		}
		visited[n] = true
		order = append(order, n)
		if info := ix.Lookup(n); info != nil {
			for _, base := range info.Bases {
				visit(base)
			}
		}
	}
	visit(name)
	return order
}

// TypeInferrer resolves variable receivers to qualified ClassName.method
// symbols using the class index.
type TypeInferrer struct {
	index *ClassIndex
}

// NewTypeInferrer returns a TypeInferrer over the given index.
func NewTypeInferrer(index *ClassIndex) *TypeInferrer {
	return &TypeInferrer{index: index}
}

// Resolve maps a call site to "ClassName.method". localTypes maps variable
// names (in the caller's function) to class names inferred from constructor
// assignments; attrTypes maps instance attribute names to class names.
// callerClass is the class enclosing the call, if any.
//
// Resolution order for variable receivers: local variable type, then
// instance-attribute type, then the fuzzy single-definer fallback.
// Self receivers walk the caller's MRO from index 0, super from index 1.
func (ti *TypeInferrer) Resolve(call CallSite, callerClass string, localTypes, attrTypes map[string]string) (string, bool) {
	switch call.ReceiverKind {
	case ReceiverSelf:
		return ti.resolveMRO(callerClass, call.CalleeSymbol, 0)
	case ReceiverSuper:
		return ti.resolveMRO(callerClass, call.CalleeSymbol, 1)
	case ReceiverVariable:
		recv := call.Receiver
		if cls, ok := localTypes[recv]; ok {
			if qualified, found := ti.resolveMRO(cls, call.CalleeSymbol, 0); found {
				return qualified, true
			}
		}
		attr := strings.TrimPrefix(strings.TrimPrefix(recv, "self."), "this.")
		if cls, ok := attrTypes[attr]; ok {
			if qualified, found := ti.resolveMRO(cls, call.CalleeSymbol, 0); found {
				return qualified, true
			}
		}
		return ti.fuzzyResolve(call.CalleeSymbol)
	}
	return "", false
}

// resolveMRO walks the MRO of cls starting at index start, returning the
// first class that defines the method.
func (ti *TypeInferrer) resolveMRO(cls, method string, start int) (string, bool) {
	if cls == "" {
		return "", false
	}
	order := ti.index.MRO(cls)
	if start >= len(order) {
		return "", false
	}
	for _, name := range order[start:] {
		info := ti.index.Lookup(name)
		if info != nil && info.Methods[method] {
			return name + "." + method, true
		}
	}
	return "", false
}

// fuzzyResolve accepts a method name only when exactly one class defines it
// and the name is not a common method name.
func (ti *TypeInferrer) fuzzyResolve(method string) (string, bool) {
	if commonMethodNames[method] {
		return "", false
	}
	var owner string
	for name, defs := range ti.index.classes {
		for _, info := range defs {
			if info.Methods[method] {
				if owner != "" && owner != name {
					return "", false
				}
				owner = name
			}
		}
	}
	if owner == "" {
		return "", false
	}
	return owner + "." + method, true
}

// LocalTypes holds per-file inferred variable and attribute types.
type LocalTypes struct {
	// ByFunc maps a function name to its local variable → class name map.
	ByFunc map[string]map[string]string
	// Attrs maps instance attribute names to class names, from
	// `self.x = Foo()` / `this.x = new Bar()` assignments.
	Attrs map[string]string
}

// ExtractLocalTypes walks a file collecting constructor-assignment type
// hints for the TypeInferrer.
func ExtractLocalTypes(source []byte, language lang.Language, index *ClassIndex) (*LocalTypes, error) {
	lt := &LocalTypes{
		ByFunc: make(map[string]map[string]string),
		Attrs:  make(map[string]string),
	}
	spec := lang.ForLanguage(language)
	if spec == nil {
		return lt, nil
	}
	tree, err := parser.Parse(language, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	funcTypes := toSet(spec.FunctionNodeTypes)
	root := tree.RootNode()

	parser.Walk(root, func(node *tree_sitter.Node) bool {
		varName, className := constructorAssignment(node, source, language)
		if className == "" || index.Lookup(className) == nil {
			return true
		}
		if strings.HasPrefix(varName, "self.") || strings.HasPrefix(varName, "this.") {
			attr := varName[strings.IndexByte(varName, '.')+1:]
			lt.Attrs[attr] = className
			return true
		}
		fn := enclosingFunctionName(node, source, funcTypes)
		if fn == "" {
			return true
		}
		if lt.ByFunc[fn] == nil {
			lt.ByFunc[fn] = make(map[string]string)
		}
		lt.ByFunc[fn][varName] = className
		return true
	})
	return lt, nil
}

// constructorAssignment recognizes `x = ClassName(...)`, `x := ClassName{...}`,
// `x = new ClassName(...)` shapes. Returns ("", "") for anything else.
func constructorAssignment(node *tree_sitter.Node, source []byte, language lang.Language) (varName, className string) {
	switch language {
	case lang.Python:
		if node.Kind() != "assignment" {
			return "", ""
		}
		left := node.ChildByFieldName("left")
		right := node.ChildByFieldName("right")
		if left == nil || right == nil || right.Kind() != "call" {
			return "", ""
		}
		fn := right.ChildByFieldName("function")
		if fn == nil || fn.Kind() != "identifier" {
			return "", ""
		}
		return parser.NodeText(left, source), parser.NodeText(fn, source)

	case lang.JavaScript, lang.TypeScript, lang.TSX:
		var left, right *tree_sitter.Node
		switch node.Kind() {
		case "variable_declarator":
			left = node.ChildByFieldName("name")
			right = node.ChildByFieldName("value")
		case "assignment_expression":
			left = node.ChildByFieldName("left")
			right = node.ChildByFieldName("right")
		default:
			return "", ""
		}
		if left == nil || right == nil || right.Kind() != "new_expression" {
			return "", ""
		}
		ctor := right.ChildByFieldName("constructor")
		if ctor == nil {
			return "", ""
		}
		return parser.NodeText(left, source), parser.NodeText(ctor, source)

	case lang.Go:
		if node.Kind() != "short_var_declaration" {
			return "", ""
		}
		left := node.ChildByFieldName("left")
		right := node.ChildByFieldName("right")
		if left == nil || right == nil {
			return "", ""
		}
		name := firstIdentifier(left, source)
		typeName := compositeLiteralType(right, source)
		if name == "" || typeName == "" {
			return "", ""
		}
		return name, typeName
	}
	return "", ""
}

func firstIdentifier(node *tree_sitter.Node, source []byte) string {
	if node.Kind() == "identifier" {
		return parser.NodeText(node, source)
	}
	if node.NamedChildCount() > 0 {
		if first := node.NamedChild(0); first != nil && first.Kind() == "identifier" {
			return parser.NodeText(first, source)
		}
	}
	return ""
}

// compositeLiteralType extracts the type from `StructName{...}` (possibly
// behind & or * or inside an expression list).
func compositeLiteralType(node *tree_sitter.Node, source []byte) string {
	if node.Kind() == "expression_list" && node.NamedChildCount() > 0 {
		node = node.NamedChild(0)
		if node == nil {
			return ""
		}
	}
	if node.Kind() == "unary_expression" && node.NamedChildCount() > 0 {
		node = node.NamedChild(0)
		if node == nil {
			return ""
		}
	}
	if node.Kind() != "composite_literal" {
		return ""
	}
	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		return ""
	}
	name := parser.NodeText(typeNode, source)
	name = strings.TrimPrefix(name, "&")
	return strings.TrimPrefix(name, "*")
}

// enclosingFunctionName walks up to the nearest function ancestor.
func enclosingFunctionName(node *tree_sitter.Node, source []byte, funcTypes map[string]bool) string {
	for current := node.Parent(); current != nil; current = current.Parent() {
		if funcTypes[current.Kind()] {
			return scopeName(current, source)
		}
	}
	return ""
}
