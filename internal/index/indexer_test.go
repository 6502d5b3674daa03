package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"testimpact/internal/graph"
	"testimpact/internal/sta"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFinder struct {
	name  string
	links []graph.Link
	err   error
	calls *[]string
}

func (f fakeFinder) Name() string { return f.name }

func (f fakeFinder) FindSafe(_ context.Context, sc *sta.Context) error {
	*f.calls = append(*f.calls, f.name)
	sc.AddLinks(f.links...)
	return f.err
}

func newContext(t *testing.T) *sta.Context {
	t.Helper()
	sc, err := sta.NewContext(sta.Options{})
	require.NoError(t, err)
	return sc
}

func TestIndexer_Build(t *testing.T) {
	test, err := graph.NewTestVertex("a.T", "t()")
	require.NoError(t, err)
	callee := graph.MustVertex("a.C", "c()")

	var calls []string
	ix := NewIndexer(nil,
		fakeFinder{name: "first", calls: &calls, links: []graph.Link{graph.NewLink(graph.StartVertex, test, graph.EntryPoint)}},
		fakeFinder{name: "second", calls: &calls, links: []graph.Link{graph.NewLink(test, callee, graph.TestExecution)}},
	)

	sc := newContext(t)
	require.NoError(t, ix.Build(context.Background(), sc))
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, 2, sc.LinkCount())
}

func TestIndexer_BuildAbortsOnFinderError(t *testing.T) {
	boom := errors.New("boom")
	var calls []string
	ix := NewIndexer(nil,
		fakeFinder{name: "broken", calls: &calls, err: boom},
		fakeFinder{name: "never", calls: &calls},
	)

	err := ix.Build(context.Background(), newContext(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFinderFailed)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, []string{"broken"}, calls)
}

func TestIndexer_BuildCancelled(t *testing.T) {
	var calls []string
	ix := NewIndexer(nil, fakeFinder{name: "never", calls: &calls})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ix.Build(ctx, newContext(t)), context.Canceled)
	assert.Empty(t, calls)
}

func TestSaveLoadLinks(t *testing.T) {
	test, err := graph.NewTestVertex("a.T", "t()", graph.WithLocation("/src/test"))
	require.NoError(t, err)
	scenario, err := graph.NewCucumberVertex("Cart", "adds", "cart.feature", 7)
	require.NoError(t, err)
	links := []graph.Link{
		graph.NewLink(graph.StartVertex, test, graph.EntryPoint),
		graph.NewLink(graph.StartVertex, scenario, graph.CucumberTest),
	}

	path := filepath.Join(t.TempDir(), "links.json")
	require.NoError(t, SaveLinks(path, "run-1", links))

	runID, loaded, err := LoadLinks(path)
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)
	require.Len(t, loaded, 2)
	for i := range links {
		assert.True(t, links[i].Equal(loaded[i]))
	}
	assert.True(t, loaded[0].Caller().IsSpecial())
	assert.Equal(t, "/src/test", loaded[0].Callee().Location())
	assert.Equal(t, 7, loaded[1].Callee().ScenarioLine())
}

func TestLoadLinks_Errors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := LoadLinks(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"links":[{"caller":{"kind":"vertex","actor":"a","action":"b()"},"callee":{"kind":"vertex","actor":"c","action":"d()"},"type":"NOPE"}]}`), 0o644))
	_, _, err = LoadLinks(bad)
	assert.ErrorIs(t, err, graph.ErrUnknownLinkType)

	noActor := filepath.Join(dir, "no_actor.json")
	require.NoError(t, os.WriteFile(noActor, []byte(`{"links":[{"caller":{"kind":"test","action":"b()"},"callee":{"kind":"vertex","actor":"c","action":"d()"},"type":"ENTRY_POINT"}]}`), 0o644))
	_, _, err = LoadLinks(noActor)
	assert.ErrorIs(t, err, graph.ErrInvalidNode)
}
