package sta

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"testimpact/internal/graph"
)

func TestContext_MetricsCountRunGraphOnce(t *testing.T) {
	c := newTestContext(t, "")
	typ := graph.FieldPut.String()
	submitted := testutil.ToFloat64(linksSubmitted.WithLabelValues(typ))
	inserted := testutil.ToFloat64(linksInserted.WithLabelValues(typ))

	local := c.LocalContextAt("Cart.class")
	l := callLink(t, "a.Metrics", graph.FieldPut)
	local.AddLink(l)
	local.AddLink(l)
	assert.Equal(t, submitted, testutil.ToFloat64(linksSubmitted.WithLabelValues(typ)), "local contexts are not counted")

	assert.Equal(t, 1, c.Merge(local))
	assert.Equal(t, 0, c.Merge(local))
	assert.Equal(t, 1, c.LinkCount())

	assert.Equal(t, submitted+2, testutil.ToFloat64(linksSubmitted.WithLabelValues(typ)))
	assert.Equal(t, inserted+1, testutil.ToFloat64(linksInserted.WithLabelValues(typ)))
}
