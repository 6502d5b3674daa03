package graph

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Identity is the comparable part of a node. Node equality and hashing are
// defined on Identity alone, and Kind takes part in it.
type Identity struct {
	Kind         Kind
	Actor        string
	Action       string
	FeaturePath  string
	ScenarioLine int
}

// annotation is the mutable, identity-irrelevant state of a node.
type annotation struct {
	mu     sync.RWMutex
	filter string
}

// Node is a vertex of the dependency graph.
//
// A Node is a small value: copies share the same annotation cell, so a filter
// set through one copy is visible through all of them. Nodes must be compared
// with Equal (or by Key), never with ==.
type Node struct {
	id       Identity
	special  bool
	location string
	ann      *annotation
}

// Option customises a node at construction time.
type Option func(*Node)

// Special marks synthetic nodes such as the canonical start vertex.
func Special() Option {
	return func(n *Node) { n.special = true }
}

// WithLocation records where a test node was declared. It is not part of identity.
func WithLocation(location string) Option {
	return func(n *Node) { n.location = location }
}

// WithFilter seeds the filter annotation.
func WithFilter(filter string) Option {
	return func(n *Node) { n.ann.filter = filter }
}

// NewVertex builds a generic code-location node.
func NewVertex(actor, action string, opts ...Option) (Node, error) {
	return build(Identity{Kind: KindVertex, Actor: actor, Action: action}, opts)
}

// NewTestVertex builds a test node.
func NewTestVertex(actor, action string, opts ...Option) (Node, error) {
	return build(Identity{Kind: KindTest, Actor: actor, Action: action}, opts)
}

// NewCucumberVertex builds a scenario node. The feature path and scenario line
// take part in identity for this kind only.
func NewCucumberVertex(actor, action, featurePath string, scenarioLine int, opts ...Option) (Node, error) {
	return build(Identity{
		Kind:         KindCucumber,
		Actor:        actor,
		Action:       action,
		FeaturePath:  featurePath,
		ScenarioLine: scenarioLine,
	}, opts)
}

// MustVertex is NewVertex for package-level well-known nodes.
func MustVertex(actor, action string, opts ...Option) Node {
	n, err := NewVertex(actor, action, opts...)
	if err != nil {
		panic(err)
	}
	return n
}

func build(id Identity, opts []Option) (Node, error) {
	if id.Kind > KindCucumber {
		return Node{}, fmt.Errorf("%w: unknown kind %d", ErrInvalidNode, id.Kind)
	}
	if id.Kind != KindCucumber {
		// scenario fields only identify cucumber nodes
		id.FeaturePath, id.ScenarioLine = "", 0
	}
	if strings.TrimSpace(id.Actor) == "" {
		return Node{}, fmt.Errorf("%w: %s node requires an actor", ErrInvalidNode, id.Kind)
	}
	if strings.TrimSpace(id.Action) == "" {
		return Node{}, fmt.Errorf("%w: %s node %q requires an action", ErrInvalidNode, id.Kind, id.Actor)
	}
	n := Node{id: id, ann: &annotation{}}
	for _, opt := range opts {
		opt(&n)
	}
	return n, nil
}

// FromIdentity rebuilds a node from a stored identity.
func FromIdentity(id Identity, opts ...Option) (Node, error) {
	return build(id, opts)
}

func (n Node) Kind() Kind          { return n.id.Kind }
func (n Node) Actor() string       { return n.id.Actor }
func (n Node) Action() string      { return n.id.Action }
func (n Node) FeaturePath() string { return n.id.FeaturePath }
func (n Node) ScenarioLine() int   { return n.id.ScenarioLine }
func (n Node) Location() string    { return n.location }
func (n Node) IsSpecial() bool     { return n.special }

// IsZero reports whether n was never built.
func (n Node) IsZero() bool { return n.ann == nil }

// Key returns the identity used for equality and as a map key.
func (n Node) Key() Identity { return n.id }

// Equal reports whether both nodes are the same kind with the same identity fields.
func (n Node) Equal(other Node) bool { return n.id == other.id }

// Hash is derived from the kind tag and identity fields only.
func (n Node) Hash() uint64 { return n.id.Hash() }

// Filter returns the diagnostic filter annotation.
func (n Node) Filter() string {
	if n.ann == nil {
		return ""
	}
	n.ann.mu.RLock()
	defer n.ann.mu.RUnlock()
	return n.ann.filter
}

// SetFilter updates the diagnostic annotation. It never affects identity.
func (n Node) SetFilter(filter string) {
	if n.ann == nil {
		return
	}
	n.ann.mu.Lock()
	n.ann.filter = filter
	n.ann.mu.Unlock()
}

// ID is a stable printable key, unique per identity. Unlike String it
// escapes the separator characters inside fields.
func (n Node) ID() string { return n.id.key() }

func (n Node) String() string { return n.id.String() }

// Hash returns an xxhash digest of the identity.
func (id Identity) Hash() uint64 {
	d := xxhash.New()
	_, _ = d.Write([]byte{byte(id.Kind)})
	writeField(d, id.Actor)
	writeField(d, id.Action)
	if id.Kind == KindCucumber {
		writeField(d, id.FeaturePath)
		writeField(d, strconv.Itoa(id.ScenarioLine))
	}
	return d.Sum64()
}

func writeField(d *xxhash.Digest, s string) {
	_, _ = d.WriteString(s)
	_, _ = d.Write([]byte{0})
}

var idEscaper = strings.NewReplacer(`\`, `\\`, "#", `\#`, "@", `\@`, ":", `\:`)

func (id Identity) key() string {
	s := id.Kind.String() + ":" + idEscaper.Replace(id.Actor) + "#" + idEscaper.Replace(id.Action)
	if id.Kind == KindCucumber {
		s += "@" + idEscaper.Replace(id.FeaturePath) + ":" + strconv.Itoa(id.ScenarioLine)
	}
	return s
}

func (id Identity) String() string {
	s := id.Kind.String() + ":" + id.Actor + "#" + id.Action
	if id.Kind == KindCucumber {
		s += "@" + id.FeaturePath + ":" + strconv.Itoa(id.ScenarioLine)
	}
	return s
}
