package lang

func init() {
	Register(&Spec{
		Language:               Kotlin,
		FileExtensions:         []string{".kt", ".kts"},
		FunctionNodeTypes:      []string{"function_declaration"},
		ClassNodeTypes:         []string{"class_declaration", "object_declaration"},
		CallNodeTypes:          []string{"call_expression"},
		ImportNodeTypes:        []string{"import_header"},
		InheritanceClauseTypes: []string{"delegation_specifier"},
	})
}
