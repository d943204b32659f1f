package lang

func init() {
	Register(&Spec{
		Language:               Ruby,
		FileExtensions:         []string{".rb"},
		FunctionNodeTypes:      []string{"method", "singleton_method"},
		ClassNodeTypes:         []string{"class", "module"},
		CallNodeTypes:          []string{"call"},
		InheritanceClauseTypes: []string{"superclass"},
	})
}
