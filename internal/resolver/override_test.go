package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testimpact/internal/graph"
)

func TestOverrideResolver(t *testing.T) {
	sc := newContext(t)
	class := func(name string) graph.Node { return v(name, graph.ClassAction) }

	// Base <- Middle <- Leaf, Leaf overrides run(); Middle does not declare it.
	sc.AddLinks(
		graph.NewLink(class("a.Base"), class("a.Middle"), graph.Inheritance),
		graph.NewLink(class("a.Middle"), class("a.Leaf"), graph.Inheritance),
		graph.NewLink(class("a.Runnable"), class("a.Base"), graph.InterfaceImpl),
		graph.NewLink(v("a.Middle", "run()"), v("a.Leaf", "run()"), graph.Override),
	)

	results := NewDefaultChain().Run(context.Background(), sc)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "override", results[0].Resolver)
	assert.Equal(t, 3, results[0].Rounds, "two lifting rounds and one quiet round")

	assert.True(t, sc.HasLink(graph.NewLink(v("a.Base", "run()"), v("a.Middle", "run()"), graph.Override)))
	assert.True(t, sc.HasLink(graph.NewLink(v("a.Runnable", "run()"), v("a.Base", "run()"), graph.Override)))
	assert.Equal(t, 6, sc.LinkCount())
}

func TestOverrideResolver_NothingAdopted(t *testing.T) {
	sc := newContext(t)
	sc.AddLink(graph.NewLink(v("a.A", "run()"), v("a.B", "run()"), graph.Override))

	stats, err := NewOverrideResolver().Resolve(sc)
	require.NoError(t, err)
	assert.Equal(t, ResolveStats{}, stats)
}
