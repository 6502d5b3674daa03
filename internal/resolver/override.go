package resolver

import (
	"testimpact/internal/graph"
	"testimpact/internal/sta"
)

// OverrideResolver lifts Override links up the type hierarchy. Given a
// supertype link A -> B and an override B.m -> C.m it adds A.m -> B.m, so a
// call through any ancestor reaches every implementation below it.
type OverrideResolver struct{}

func NewOverrideResolver() *OverrideResolver {
	return &OverrideResolver{}
}

func (r *OverrideResolver) Name() string {
	return "override"
}

func (r *OverrideResolver) Resolve(sc *sta.Context) (ResolveStats, error) {
	var stats ResolveStats
	if !sc.IsAdoptedLinkType(graph.Override) {
		return stats, nil
	}
	if !sc.IsAdoptedLinkType(graph.Inheritance) && !sc.IsAdoptedLinkType(graph.InterfaceImpl) {
		return stats, nil
	}

	parents := make(map[string][]string)
	var overrides []graph.Link
	for l := range sc.Links() {
		switch l.Type() {
		case graph.Inheritance, graph.InterfaceImpl:
			if l.Callee().Action() == graph.ClassAction {
				child := l.Callee().Actor()
				parents[child] = append(parents[child], l.Caller().Actor())
			}
		case graph.Override:
			overrides = append(overrides, l)
		}
	}

	for _, o := range overrides {
		base := o.Caller()
		for _, ancestor := range parents[base.Actor()] {
			stats.Attempted++
			lifted, err := graph.NewVertex(ancestor, base.Action())
			if err != nil {
				return stats, err
			}
			if sc.AddLink(graph.NewLink(lifted, base, graph.Override)) == 1 {
				stats.Resolved++
			} else {
				stats.Skipped++
			}
		}
	}
	return stats, nil
}
