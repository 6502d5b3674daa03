package graph

import "fmt"

// LinkKey is the deduplication identity of a link.
type LinkKey struct {
	Caller Identity
	Callee Identity
	Type   LinkType
}

// Link is a directed, typed relation between two nodes. It is immutable.
type Link struct {
	caller Node
	callee Node
	typ    LinkType
}

// NewLink builds a link from caller to callee.
func NewLink(caller, callee Node, typ LinkType) Link {
	return Link{caller: caller, callee: callee, typ: typ}
}

func (l Link) Caller() Node   { return l.caller }
func (l Link) Callee() Node   { return l.callee }
func (l Link) Type() LinkType { return l.typ }

// Key returns the comparable identity of the link.
func (l Link) Key() LinkKey {
	return LinkKey{Caller: l.caller.Key(), Callee: l.callee.Key(), Type: l.typ}
}

// Equal compares caller, callee and type.
func (l Link) Equal(other Link) bool { return l.Key() == other.Key() }

// Hash mixes the caller and callee hashes with the type.
func (l Link) Hash() uint64 { return l.Key().Hash() }

// Hash combines identity hashes; equal keys always hash equally.
func (k LinkKey) Hash() uint64 {
	h := k.Caller.Hash()
	h ^= k.Callee.Hash() + 0x9e3779b97f4a7c15 + (h << 6) + (h >> 2)
	h ^= uint64(k.Type) * 0xff51afd7ed558ccd
	return h
}

func (l Link) String() string {
	return fmt.Sprintf("%s -[%s]-> %s", l.caller, l.typ, l.callee)
}
