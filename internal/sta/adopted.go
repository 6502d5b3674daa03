package sta

import (
	"sync/atomic"

	"testimpact/internal/graph"
)

// typeRegistry records link types observed at least once. It only grows.
type typeRegistry struct {
	bits atomic.Uint64
}

func (r *typeRegistry) adopt(t graph.LinkType) {
	r.bits.Or(1 << uint(t))
}

func (r *typeRegistry) has(t graph.LinkType) bool {
	if !t.Valid() {
		return false
	}
	return r.bits.Load()&(1<<uint(t)) != 0
}

func (r *typeRegistry) all() []graph.LinkType {
	bits := r.bits.Load()
	var out []graph.LinkType
	for _, t := range graph.AllLinkTypes() {
		if bits&(1<<uint(t)) != 0 {
			out = append(out, t)
		}
	}
	return out
}
