package lang

// Language identifies a supported source language.
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	TSX        Language = "tsx"
	Go         Language = "go"
	Rust       Language = "rust"
	Java       Language = "java"
	C          Language = "c"
	CPP        Language = "cpp"
	CSharp     Language = "c-sharp"
	Ruby       Language = "ruby"
	Kotlin     Language = "kotlin"
)

// AllLanguages returns every language with a registered spec.
func AllLanguages() []Language {
	return []Language{Python, JavaScript, TypeScript, TSX, Go, Rust, Java, C, CPP, CSharp, Ruby, Kotlin}
}

// Spec defines the tree-sitter node kinds a language maps onto code entities.
type Spec struct {
	Language       Language
	FileExtensions []string

	// FunctionNodeTypes are kinds extracted as functions (or methods when a
	// class/receiver context encloses them).
	FunctionNodeTypes []string
	// ClassNodeTypes are kinds extracted as classes/types.
	ClassNodeTypes []string
	// CallNodeTypes are kinds that represent call sites (including new-expressions).
	CallNodeTypes []string
	// ImportNodeTypes are kinds that represent import/use/include statements.
	ImportNodeTypes []string
	// InheritanceClauseTypes are kinds carrying base class / interface lists.
	InheritanceClauseTypes []string
}

// registry maps file extensions to specs.
var registry = map[string]*Spec{}

// Register adds a Spec to the global registry.
func Register(spec *Spec) {
	for _, ext := range spec.FileExtensions {
		registry[ext] = spec
	}
}

// ForExtension returns the Spec for a file extension (e.g. ".go").
func ForExtension(ext string) *Spec {
	return registry[ext]
}

// ForLanguage returns the Spec for a language.
func ForLanguage(l Language) *Spec {
	for _, spec := range registry {
		if spec.Language == l {
			return spec
		}
	}
	return nil
}

// Detect returns the Language for a file extension.
func Detect(ext string) (Language, bool) {
	spec := registry[ext]
	if spec == nil {
		return "", false
	}
	return spec.Language, true
}
