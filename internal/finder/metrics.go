package finder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Skip reasons reported on artifactsSkipped.
const (
	skipRead    = "read"
	skipParse   = "parse"
	skipScope   = "scope"
	skipVisitor = "visitor"
	skipPanic   = "panic"
)

var (
	artifactsScanned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "testimpact_artifacts_scanned_total",
		Help: "Artifacts whose links were merged into the run context",
	}, []string{"finder"})

	artifactsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "testimpact_artifacts_skipped_total",
		Help: "Artifacts dropped by a finder, by reason",
	}, []string{"finder", "reason"})
)
