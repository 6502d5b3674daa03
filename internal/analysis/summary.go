package analysis

import (
	"iter"

	"testimpact/internal/graph"
)

// Summary describes the shape of a produced link graph.
type Summary struct {
	Links int
	// ByType counts links per type; types without links are absent.
	ByType map[graph.LinkType]int
	// EntryPoints counts distinct nodes linked from the start vertex.
	EntryPoints int
	// Tests and Scenarios count distinct test and scenario nodes anywhere in the graph.
	Tests     int
	Scenarios int
}

// Summarize walks links once and counts them.
func Summarize(links iter.Seq[graph.Link]) Summary {
	s := Summary{ByType: make(map[graph.LinkType]int)}

	entries := make(map[graph.Identity]struct{})
	tests := make(map[graph.Identity]struct{})
	scenarios := make(map[graph.Identity]struct{})

	classify := func(n graph.Node) {
		switch n.Kind() {
		case graph.KindTest:
			tests[n.Key()] = struct{}{}
		case graph.KindCucumber:
			scenarios[n.Key()] = struct{}{}
		}
	}

	for l := range links {
		s.Links++
		s.ByType[l.Type()]++
		if l.Caller().Equal(graph.StartVertex) {
			entries[l.Callee().Key()] = struct{}{}
		}
		classify(l.Caller())
		classify(l.Callee())
	}

	s.EntryPoints = len(entries)
	s.Tests = len(tests)
	s.Scenarios = len(scenarios)
	return s
}

// Types returns the link types present in s in declaration order.
func (s Summary) Types() []graph.LinkType {
	var out []graph.LinkType
	for _, t := range graph.AllLinkTypes() {
		if s.ByType[t] > 0 {
			out = append(out, t)
		}
	}
	return out
}
