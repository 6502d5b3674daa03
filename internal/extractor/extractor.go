package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"testimpact/internal/scope"
)

// Extractor orchestrates the extraction process using language-specific extractors.
type Extractor struct {
	langExtractor LanguageExtractor
	langName      string
}

// NewExtractor creates a new extractor for a given language.
func NewExtractor(lang string) (*Extractor, error) {
	var langExt LanguageExtractor
	switch lang {
	case "java":
		langExt = &JavaExtractor{}
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
	return &Extractor{langExtractor: langExt, langName: lang}, nil
}

// Supports reports whether path has an extension of the extractor's language.
func (e *Extractor) Supports(path string) bool {
	ext := filepath.Ext(path)
	for _, s := range e.langExtractor.Extensions() {
		if ext == s {
			return true
		}
	}
	return false
}

// ExtractFromFile parses a single source file and extracts all relevant code units.
func (e *Extractor) ExtractFromFile(path string) ([]*CodeUnit, error) {
	sourceCode, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return e.ExtractFromSource(path, sourceCode)
}

// ExtractFromSource extracts code units from in-memory source. Units are
// ordered by start line.
func (e *Extractor) ExtractFromSource(path string, sourceCode []byte) ([]*CodeUnit, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(e.langExtractor.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, sourceCode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", path, err)
	}

	root := tree.RootNode()
	file := e.langExtractor.Prepare(root, sourceCode, path)

	query, err := sitter.NewQuery([]byte(e.langExtractor.GetQuery()), e.langExtractor.GetLanguage())
	if err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}

	qc := sitter.NewQueryCursor()
	qc.Exec(query, root)

	var codeUnits []*CodeUnit
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			captureName := query.CaptureNameForId(c.Index)
			for _, unit := range e.langExtractor.ExtractUnits(captureName, c.Node, sourceCode, file) {
				unit.Filepath = path
				unit.Package = file.Package
				unit.Language = e.langName
				unit.ID = unit.Owner + "#" + unit.Action
				codeUnits = append(codeUnits, unit)
			}
		}
	}

	sort.SliceStable(codeUnits, func(i, j int) bool {
		return codeUnits[i].StartLine < codeUnits[j].StartLine
	})
	return codeUnits, nil
}

// Declarations implements scope.DeclarationSource. Files of other languages
// have no declarations.
func (e *Extractor) Declarations(path string) ([]scope.Declaration, error) {
	if !e.Supports(path) {
		return nil, nil
	}
	units, err := e.ExtractFromFile(path)
	if err != nil {
		return nil, err
	}
	out := make([]scope.Declaration, 0, len(units))
	for _, u := range units {
		out = append(out, scope.Declaration{
			Actor:     u.Owner,
			Action:    u.Action,
			StartLine: u.StartLine,
			EndLine:   u.EndLine,
		})
	}
	return out, nil
}

// binaryName joins a package and nested simple names the way class files name them.
func binaryName(pkg string, names []string) string {
	n := strings.Join(names, "$")
	if pkg == "" {
		return n
	}
	return pkg + "." + n
}
