package lang

func init() {
	Register(&Spec{
		Language:               Python,
		FileExtensions:         []string{".py", ".pyi"},
		FunctionNodeTypes:      []string{"function_definition"},
		ClassNodeTypes:         []string{"class_definition"},
		CallNodeTypes:          []string{"call"},
		ImportNodeTypes:        []string{"import_statement", "import_from_statement"},
		InheritanceClauseTypes: []string{"argument_list"},
	})
}
