// Package scope holds the change scope handed to an analysis run.
//
// The graph builder treats a ChangeScope as an opaque handle: it is attached to
// the execution context and passed through unchanged to whoever resolves tests.
package scope

// ChangeType tells how a source unit changed.
type ChangeType int

const (
	Modified ChangeType = iota
	Added
	Deleted
)

func (t ChangeType) String() string {
	switch t {
	case Added:
		return "added"
	case Deleted:
		return "deleted"
	default:
		return "modified"
	}
}

// Declaration is a class member enclosing at least one changed line.
type Declaration struct {
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// Change identifies one changed source unit.
type Change struct {
	Path         string        `json:"path"`
	Lines        []int         `json:"lines,omitempty"`
	Type         ChangeType    `json:"type"`
	Declarations []Declaration `json:"declarations,omitempty"`
}

// ChangeScope is an ordered collection of changes.
type ChangeScope struct {
	changes []Change
}

// New builds a scope preserving the order of changes.
func New(changes ...Change) *ChangeScope {
	cp := make([]Change, len(changes))
	copy(cp, changes)
	return &ChangeScope{changes: cp}
}

// Len is safe on a nil scope.
func (s *ChangeScope) Len() int {
	if s == nil {
		return 0
	}
	return len(s.changes)
}

// Changes returns a copy of the ordered changes.
func (s *ChangeScope) Changes() []Change {
	if s == nil {
		return nil
	}
	out := make([]Change, len(s.changes))
	copy(out, s.changes)
	return out
}

// Paths lists the changed paths in order.
func (s *ChangeScope) Paths() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.changes))
	for _, c := range s.changes {
		out = append(out, c.Path)
	}
	return out
}
