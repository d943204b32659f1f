package lang

func init() {
	Register(&Spec{
		Language:       CSharp,
		FileExtensions: []string{".cs"},
		FunctionNodeTypes: []string{
			"method_declaration", "constructor_declaration", "local_function_statement",
		},
		ClassNodeTypes: []string{
			"class_declaration", "interface_declaration", "struct_declaration", "enum_declaration",
		},
		CallNodeTypes:          []string{"invocation_expression", "object_creation_expression"},
		ImportNodeTypes:        []string{"using_directive"},
		InheritanceClauseTypes: []string{"base_list"},
	})
}
