package lang

func init() {
	Register(&Spec{
		Language:               Rust,
		FileExtensions:         []string{".rs"},
		FunctionNodeTypes:      []string{"function_item"},
		ClassNodeTypes:         []string{"struct_item", "enum_item", "trait_item", "impl_item"},
		CallNodeTypes:          []string{"call_expression"},
		ImportNodeTypes:        []string{"use_declaration"},
		InheritanceClauseTypes: []string{"impl_item"},
	})
}
