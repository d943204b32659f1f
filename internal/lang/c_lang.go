package lang

func init() {
	Register(&Spec{
		Language:          C,
		FileExtensions:    []string{".c", ".h"},
		FunctionNodeTypes: []string{"function_definition"},
		ClassNodeTypes:    []string{"struct_specifier", "enum_specifier"},
		CallNodeTypes:     []string{"call_expression"},
		ImportNodeTypes:   []string{"preproc_include"},
	})
}
