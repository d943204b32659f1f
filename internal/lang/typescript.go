package lang

// TypeScript and TSX share node kinds; they differ only in grammar variant.
func init() {
	tsSpec := Spec{
		Language:       TypeScript,
		FileExtensions: []string{".ts", ".mts", ".cts"},
		FunctionNodeTypes: []string{
			"function_declaration", "function_expression",
			"generator_function_declaration", "arrow_function", "method_definition",
		},
		ClassNodeTypes: []string{
			"class_declaration", "class", "abstract_class_declaration", "interface_declaration",
		},
		CallNodeTypes:          []string{"call_expression", "new_expression"},
		ImportNodeTypes:        []string{"import_statement"},
		InheritanceClauseTypes: []string{"class_heritage", "extends_clause", "implements_clause"},
	}
	Register(&tsSpec)

	tsxSpec := tsSpec
	tsxSpec.Language = TSX
	tsxSpec.FileExtensions = []string{".tsx"}
	Register(&tsxSpec)
}
