package sta

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	linksSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "testimpact_links_submitted_total",
		Help: "Links submitted to a run context, duplicates included",
	}, []string{"type"})

	linksInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "testimpact_links_inserted_total",
		Help: "Links newly inserted into a run context",
	}, []string{"type"})
)
