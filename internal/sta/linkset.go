package sta

import (
	"sync"

	"testimpact/internal/graph"
)

const linkShards = 64

type linkShard struct {
	mu    sync.Mutex
	links map[graph.LinkKey]graph.Link
}

// LinkSet is a concurrent set of links keyed by link identity.
//
// Add is linearizable per key: of several goroutines adding the same link,
// exactly one observes an insertion.
type LinkSet struct {
	shards [linkShards]linkShard
}

// NewLinkSet creates an empty set.
func NewLinkSet() *LinkSet {
	s := &LinkSet{}
	for i := range s.shards {
		s.shards[i].links = make(map[graph.LinkKey]graph.Link)
	}
	return s
}

func (s *LinkSet) shard(key graph.LinkKey) *linkShard {
	return &s.shards[key.Hash()%linkShards]
}

// Add inserts l unless an equal link is present, and reports whether it inserted.
func (s *LinkSet) Add(l graph.Link) bool {
	key := l.Key()
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.links[key]; ok {
		return false
	}
	sh.links[key] = l
	return true
}

// Contains reports whether an equal link is stored.
func (s *LinkSet) Contains(l graph.Link) bool {
	key := l.Key()
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	_, ok := sh.links[key]
	return ok
}

// Len counts stored links.
func (s *LinkSet) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.links)
		sh.mu.Unlock()
	}
	return n
}

// Snapshot copies the stored links. Order is unspecified.
func (s *LinkSet) Snapshot() []graph.Link {
	out := make([]graph.Link, 0, s.Len())
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for _, l := range sh.links {
			out = append(out, l)
		}
		sh.mu.Unlock()
	}
	return out
}
