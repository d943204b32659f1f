package rpg

// DependencyKind classifies dependency edges.
type DependencyKind string

const (
	DepImport    DependencyKind = "import"
	DepCall      DependencyKind = "call"
	DepInherit   DependencyKind = "inherit"
	DepImplement DependencyKind = "implement"
)

// Data-flow edge types.
const (
	FlowImport        = "import"
	FlowParameter     = "parameter"
	FlowVariableChain = "variable_chain"
)

// FunctionalEdge is a containment edge: source contains target.
type FunctionalEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// DependencyEdge records that source depends on target. At most one
// dependency edge exists per (source, target) pair; import outranks the
// other kinds when both would be recorded.
type DependencyEdge struct {
	Source       string         `json:"source"`
	Target       string         `json:"target"`
	Kind         DependencyKind `json:"kind"`
	Symbol       string         `json:"symbol,omitempty"`
	TargetSymbol string         `json:"targetSymbol,omitempty"`
	Line         int            `json:"line,omitempty"`
}

// DataFlowEdge records data moving from one node to another.
type DataFlowEdge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	DataID   string `json:"dataId"`
	DataType string `json:"dataType"`
}

// EdgeCategory names the three edge families.
type EdgeCategory string

const (
	CategoryFunctional EdgeCategory = "functional"
	CategoryDependency EdgeCategory = "dependency"
	CategoryDataFlow   EdgeCategory = "dataflow"
)

// EdgeRef is a uniform view over any edge, used by in/out queries.
type EdgeRef struct {
	Category EdgeCategory
	Source   string
	Target   string
	// Kind holds the dependency kind or data-flow type; empty for
	// functional edges.
	Kind string
}
