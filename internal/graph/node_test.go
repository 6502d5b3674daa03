package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScenario(t *testing.T, actor, action string) Node {
	t.Helper()
	n, err := NewCucumberVertex(actor, action, "feature", 10, Special())
	require.NoError(t, err)
	return n
}

func newGeneric(t *testing.T, actor, action string) Node {
	t.Helper()
	n, err := NewVertex(actor, action, Special())
	require.NoError(t, err)
	return n
}

func TestNode_EqualsSameKind(t *testing.T) {
	v1 := newScenario(t, "com.actor", "action")
	v2 := newScenario(t, "com.actor", "action")
	assert.True(t, v1.Equal(v2))
	assert.True(t, v2.Equal(v1))

	other := newScenario(t, "com.actor.2", "action.2")
	assert.False(t, v1.Equal(other))
	assert.False(t, other.Equal(v1))
}

func TestNode_NeverEqualAcrossKinds(t *testing.T) {
	generic := newGeneric(t, "com.actor", "action")
	scenario := newScenario(t, "com.actor", "action")
	test, err := NewTestVertex("com.actor", "action", Special())
	require.NoError(t, err)

	assert.False(t, generic.Equal(scenario))
	assert.False(t, scenario.Equal(generic))
	assert.False(t, generic.Equal(test))
	assert.False(t, test.Equal(generic))
	assert.False(t, test.Equal(scenario))
	assert.NotEqual(t, generic.Key(), test.Key())
}

func TestNode_Transitive(t *testing.T) {
	t.Run("same kind", func(t *testing.T) {
		v1 := newScenario(t, "com.actor", "action")
		v2 := newScenario(t, "com.actor", "action")
		v3 := newScenario(t, "com.actor", "action")
		assert.True(t, v1.Equal(v2))
		assert.True(t, v2.Equal(v3))
		assert.True(t, v1.Equal(v3))
		assert.True(t, v3.Equal(v1))
	})

	t.Run("mixed kinds", func(t *testing.T) {
		generic := newGeneric(t, "com.actor", "action")
		v2 := newScenario(t, "com.actor", "action")
		v3 := newScenario(t, "com.actor", "action")
		assert.False(t, generic.Equal(v2))
		assert.True(t, v2.Equal(v3))
		assert.False(t, generic.Equal(v3))
		assert.False(t, v3.Equal(generic))
	})
}

func TestNode_ConsistentAfterFilterUpdate(t *testing.T) {
	v1 := newScenario(t, "com.actor", "action")
	v2 := newScenario(t, "com.actor", "action")
	generic := newGeneric(t, "com.actor", "action")
	h1, h2, hg := v1.Hash(), v2.Hash(), generic.Hash()

	v1.SetFilter("Some filter")
	v2.SetFilter("Some other filter")
	generic.SetFilter("Some filter")

	assert.True(t, v1.Equal(v2))
	assert.True(t, v2.Equal(v1))
	assert.False(t, generic.Equal(v1))
	assert.False(t, v1.Equal(generic))

	assert.Equal(t, h1, v1.Hash())
	assert.Equal(t, h2, v2.Hash())
	assert.Equal(t, hg, generic.Hash())
	assert.Equal(t, v1.Hash(), v2.Hash())
	assert.NotEqual(t, generic.Hash(), v1.Hash())

	assert.Equal(t, "Some filter", v1.Filter())
	assert.Equal(t, "Some other filter", v2.Filter())
}

func TestNode_CopiesShareAnnotation(t *testing.T) {
	n := newGeneric(t, "a.B", "m()")
	cp := n
	cp.SetFilter("hit")
	assert.Equal(t, "hit", n.Filter())
}

func TestNode_ScenarioFieldsTakePartInIdentity(t *testing.T) {
	a, err := NewCucumberVertex("f", "s", "a.feature", 3)
	require.NoError(t, err)
	b, err := NewCucumberVertex("f", "s", "a.feature", 4)
	require.NoError(t, err)
	c, err := NewCucumberVertex("f", "s", "b.feature", 3)
	require.NoError(t, err)
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestNode_SpecialAndLocationAreNotIdentity(t *testing.T) {
	a, err := NewTestVertex("a.T", "t()", Special(), WithLocation("/tmp/a"))
	require.NoError(t, err)
	b, err := NewTestVertex("a.T", "t()")
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
	assert.True(t, a.IsSpecial())
	assert.False(t, b.IsSpecial())
	assert.Equal(t, "/tmp/a", a.Location())
}

func TestNode_BuildRequiresIdentity(t *testing.T) {
	_, err := NewVertex("", "action")
	assert.ErrorIs(t, err, ErrInvalidNode)

	_, err = NewTestVertex("a.B", "  ")
	assert.ErrorIs(t, err, ErrInvalidNode)

	_, err = NewCucumberVertex("", "", "f", 1)
	assert.ErrorIs(t, err, ErrInvalidNode)

	assert.Panics(t, func() { MustVertex("", "") })
}

func TestNode_ID(t *testing.T) {
	n, err := NewCucumberVertex("Feature", "Scenario", "x.feature", 7)
	require.NoError(t, err)
	assert.Equal(t, "cucumber:Feature#Scenario@x.feature:7", n.ID())
	assert.Equal(t, "vertex:VertexInitTypes#START_VERTEX", StartVertex.ID())
	assert.True(t, StartVertex.IsSpecial())
}

func TestNode_IDIsInjective(t *testing.T) {
	a, err := NewTestVertex("Checkout#guest", "pays()")
	require.NoError(t, err)
	b, err := NewTestVertex("Checkout", "guest#pays()")
	require.NoError(t, err)
	require.False(t, a.Equal(b))
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, `test:Checkout\#guest#pays()`, a.ID())

	c, err := NewCucumberVertex("Cart", "pay@1", "a:b.feature", 2)
	require.NoError(t, err)
	d, err := NewCucumberVertex("Cart", "pay", "1@a:b.feature", 2)
	require.NoError(t, err)
	assert.NotEqual(t, c.ID(), d.ID())

	e, err := NewVertex(`a\`, "#b()")
	require.NoError(t, err)
	f, err := NewVertex(`a\#`, "b()")
	require.NoError(t, err)
	assert.NotEqual(t, e.ID(), f.ID())
}

func TestFromIdentity_Normalises(t *testing.T) {
	n, err := FromIdentity(Identity{Kind: KindVertex, Actor: "a.B", Action: "m()", FeaturePath: "x.feature", ScenarioLine: 3})
	require.NoError(t, err)
	assert.True(t, n.Equal(MustVertex("a.B", "m()")))
	assert.Empty(t, n.FeaturePath())
	assert.Zero(t, n.ScenarioLine())

	s, err := FromIdentity(Identity{Kind: KindCucumber, Actor: "F", Action: "S", FeaturePath: "x.feature", ScenarioLine: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, s.ScenarioLine())

	_, err = FromIdentity(Identity{Kind: KindCucumber + 1, Actor: "a", Action: "b"})
	assert.ErrorIs(t, err, ErrInvalidNode)
}
