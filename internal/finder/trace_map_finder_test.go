package finder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testimpact/internal/graph"
	"testimpact/internal/sta"
)

const traceMapYAML = `tests:
  - actor: com.acme.e2e.CheckoutIT
    action: checkout()
    location: e2e/checkout.robot
    covers:
      - actor: com.acme.Checkout
        action: pay(com.acme.Card)
      - actor: com.acme.Cart
        action: total()
  - actor: com.acme.e2e.BrowseIT
    action: browse()
`

func writeTraceMap(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace-map.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTraceMapFinder(t *testing.T) {
	sc := newTestContext(t, sta.Options{TraceMapPath: writeTraceMap(t, traceMapYAML)})
	require.NoError(t, NewTraceMapFinder(nil).FindSafe(context.Background(), sc))

	checkout := testVertex(t, "com.acme.e2e.CheckoutIT", "checkout()")
	assert.True(t, sc.HasLink(link(graph.StartVertex, checkout, graph.EntryPoint)))
	assert.True(t, sc.HasLink(link(graph.StartVertex, testVertex(t, "com.acme.e2e.BrowseIT", "browse()"), graph.EntryPoint)))
	assert.True(t, sc.HasLink(link(checkout, vertex(t, "com.acme.Checkout", "pay(com.acme.Card)"), graph.ExternalTrace)))
	assert.True(t, sc.HasLink(link(checkout, vertex(t, "com.acme.Cart", "total()"), graph.ExternalTrace)))
	assert.Equal(t, 4, sc.LinkCount())

	for l := range sc.Links() {
		if l.Type() == graph.EntryPoint && l.Callee().Actor() == "com.acme.e2e.CheckoutIT" {
			assert.Equal(t, "e2e/checkout.robot", l.Callee().Location())
		}
	}
}

func TestTraceMapFinder_Errors(t *testing.T) {
	t.Run("no path configured", func(t *testing.T) {
		sc := newTestContext(t, sta.Options{})
		assert.NoError(t, NewTraceMapFinder(nil).FindSafe(context.Background(), sc))
		assert.Zero(t, sc.LinkCount())
	})

	t.Run("missing file", func(t *testing.T) {
		sc := newTestContext(t, sta.Options{TraceMapPath: filepath.Join(t.TempDir(), "absent.yaml")})
		err := NewTraceMapFinder(nil).FindSafe(context.Background(), sc)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid entries", func(t *testing.T) {
		sc := newTestContext(t, sta.Options{TraceMapPath: writeTraceMap(t, "tests:\n  - actor: a.B\n")})
		err := NewTraceMapFinder(nil).FindSafe(context.Background(), sc)
		assert.ErrorIs(t, err, ErrInvalidTraceMap)
		assert.Zero(t, sc.LinkCount())
	})

	t.Run("malformed yaml", func(t *testing.T) {
		sc := newTestContext(t, sta.Options{TraceMapPath: writeTraceMap(t, "tests: [unclosed")})
		err := NewTraceMapFinder(nil).FindSafe(context.Background(), sc)
		assert.ErrorIs(t, err, ErrInvalidTraceMap)
	})
}
