package lang

func init() {
	Register(&Spec{
		Language:               CPP,
		FileExtensions:         []string{".cpp", ".cc", ".cxx", ".hpp", ".hh", ".hxx"},
		FunctionNodeTypes:      []string{"function_definition"},
		ClassNodeTypes:         []string{"class_specifier", "struct_specifier", "enum_specifier"},
		CallNodeTypes:          []string{"call_expression", "new_expression"},
		ImportNodeTypes:        []string{"preproc_include"},
		InheritanceClauseTypes: []string{"base_class_clause"},
	})
}
