package lang

func init() {
	Register(&Spec{
		Language:       JavaScript,
		FileExtensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		FunctionNodeTypes: []string{
			"function_declaration", "function_expression",
			"generator_function_declaration", "arrow_function", "method_definition",
		},
		ClassNodeTypes:         []string{"class_declaration", "class"},
		CallNodeTypes:          []string{"call_expression", "new_expression"},
		ImportNodeTypes:        []string{"import_statement"},
		InheritanceClauseTypes: []string{"class_heritage"},
	})
}
