package extractor

import sitter "github.com/smacker/go-tree-sitter"

// CodeUnit is one declaration found in a source file. Owner and Action use
// the same notation as the link graph, so a unit names the vertex its lines
// belong to.
type CodeUnit struct {
	ID        string `json:"id"`
	Filepath  string `json:"filepath"`
	Package   string `json:"package"`
	Language  string `json:"language"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	UnitType  string `json:"unit_type"` // class, interface, enum, record, annotation, method, constructor, initializer, field
	Name      string `json:"name"`
	Owner     string `json:"owner"`
	Action    string `json:"action"`
}

// FileContext is what a language extractor learned about a file before
// extracting its units.
type FileContext struct {
	Path    string
	Package string
	// Types maps simple names to binary names for imported and locally declared types.
	Types map[string]string
}

// LanguageExtractor defines the interface that each language parser must implement.
type LanguageExtractor interface {
	GetLanguage() *sitter.Language
	GetQuery() string
	Extensions() []string
	Prepare(root *sitter.Node, sourceCode []byte, filepath string) *FileContext
	ExtractUnits(captureName string, node *sitter.Node, sourceCode []byte, file *FileContext) []*CodeUnit
}
