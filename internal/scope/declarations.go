package scope

import (
	"log/slog"
	"path/filepath"
)

// DeclarationSource lists the declarations of a source file. It returns
// nil, nil for files it does not understand.
type DeclarationSource interface {
	Declarations(path string) ([]Declaration, error)
}

// Encloses reports whether line falls inside d.
func (d Declaration) Encloses(line int) bool {
	return line >= d.StartLine && line <= d.EndLine
}

// FromChangedFiles builds a scope from changes relative to root and
// annotates each change with the declarations enclosing its changed lines.
// Every declaration of an added file counts as changed; deleted files have no
// declarations left to read. A file src cannot read keeps its change without
// declarations.
func FromChangedFiles(root string, changes []Change, src DeclarationSource) *ChangeScope {
	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		c.Declarations = nil
		if src != nil && c.Type != Deleted {
			decls, err := src.Declarations(filepath.Join(root, filepath.FromSlash(c.Path)))
			if err != nil {
				slog.Warn("cannot read declarations", slog.String("path", c.Path), slog.Any("error", err))
			}
			c.Declarations = touched(decls, c)
		}
		out = append(out, c)
	}
	return &ChangeScope{changes: out}
}

func touched(decls []Declaration, c Change) []Declaration {
	if c.Type == Added {
		return decls
	}
	var out []Declaration
	for _, d := range decls {
		for _, line := range c.Lines {
			if d.Encloses(line) {
				out = append(out, d)
				break
			}
		}
	}
	return out
}
