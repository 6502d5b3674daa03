package analysis

import (
	"slices"
	"testing"

	"testimpact/internal/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	test, err := graph.NewTestVertex("com.acme.CartTest", "adds()")
	require.NoError(t, err)
	forced, err := graph.NewTestVertex("com.acme.SmokeTest", "boots()")
	require.NoError(t, err)
	scenario, err := graph.NewCucumberVertex("Cart", "adds items", "cart.feature", 3)
	require.NoError(t, err)
	add := graph.MustVertex("com.acme.Cart", "add(int)")
	step := graph.MustVertex(graph.StepDefinitionsActor, "I add {int} items")

	links := []graph.Link{
		graph.NewLink(graph.StartVertex, test, graph.EntryPoint),
		graph.NewLink(graph.StartVertex, forced, graph.ForceRun),
		graph.NewLink(graph.StartVertex, scenario, graph.CucumberTest),
		graph.NewLink(test, add, graph.TestExecution),
		graph.NewLink(scenario, step, graph.CucumberMap),
		graph.NewLink(step, add, graph.CucumberMap),
	}

	s := Summarize(slices.Values(links))

	assert.Equal(t, 6, s.Links)
	assert.Equal(t, 3, s.EntryPoints)
	assert.Equal(t, 2, s.Tests)
	assert.Equal(t, 1, s.Scenarios)
	assert.Equal(t, 2, s.ByType[graph.CucumberMap])
	assert.Equal(t, []graph.LinkType{
		graph.EntryPoint, graph.TestExecution, graph.ForceRun, graph.CucumberTest, graph.CucumberMap,
	}, s.Types())
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(slices.Values([]graph.Link(nil)))
	assert.Zero(t, s.Links)
	assert.Empty(t, s.Types())
}
