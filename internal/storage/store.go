package storage

import (
	"context"
	"errors"

	"testimpact/internal/graph"
)

// ErrNoSnapshot is returned when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no stored snapshot")

// Store persists the link graph produced by a run.
type Store interface {
	LinkStore
	Close() error
}

// LinkStore defines operations for persisting the link graph.
type LinkStore interface {
	// SaveGraph replaces the stored snapshot with the given run's links and the nodes they reference.
	SaveGraph(ctx context.Context, runID string, links []graph.Link) error

	// LoadLinks returns every stored link.
	LoadLinks(ctx context.Context) ([]graph.Link, error)

	// LinksByType returns the stored links of one type.
	LinksByType(ctx context.Context, typ graph.LinkType) ([]graph.Link, error)

	// RunID returns the id of the run that produced the stored snapshot.
	RunID(ctx context.Context) (string, error)
}
