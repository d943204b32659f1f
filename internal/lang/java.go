package lang

func init() {
	Register(&Spec{
		Language:               Java,
		FileExtensions:         []string{".java"},
		FunctionNodeTypes:      []string{"method_declaration", "constructor_declaration"},
		ClassNodeTypes:         []string{"class_declaration", "interface_declaration", "enum_declaration"},
		CallNodeTypes:          []string{"method_invocation", "object_creation_expression"},
		ImportNodeTypes:        []string{"import_declaration"},
		InheritanceClauseTypes: []string{"superclass", "super_interfaces"},
	})
}
