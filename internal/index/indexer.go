package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"testimpact/internal/graph"
	"testimpact/internal/sta"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("testimpact.index")

// ErrFinderFailed wraps the error of the finder that aborted a build.
var ErrFinderFailed = errors.New("finder failed")

// Finder is the part of finder.Finder the indexer depends on.
type Finder interface {
	Name() string
	FindSafe(ctx context.Context, sc *sta.Context) error
}

// Indexer runs a fixed sequence of finders into one execution context.
type Indexer struct {
	finders []Finder
	logger  *slog.Logger
}

// NewIndexer creates a new indexer. Finders run in the given order, so a
// finder reading links of an earlier one must come after it.
func NewIndexer(logger *slog.Logger, finders ...Finder) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{finders: finders, logger: logger}
}

// Build runs every finder into sc. The first finder error aborts the run;
// links recorded before it stay in sc.
func (i *Indexer) Build(ctx context.Context, sc *sta.Context) error {
	ctx, span := tracer.Start(ctx, "index.Build")
	defer span.End()

	for _, f := range i.finders {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		before := sc.LinkCount()
		if err := f.FindSafe(ctx, sc); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("%w: %s: %w", ErrFinderFailed, f.Name(), err)
		}
		i.logger.Info("finder done",
			slog.String("run", sc.RunID()),
			slog.String("finder", f.Name()),
			slog.Int("new_links", sc.LinkCount()-before),
		)
	}

	span.SetAttributes(attribute.Int("links", sc.LinkCount()))
	span.SetStatus(codes.Ok, "")
	return nil
}

type nodeRecord struct {
	Kind         string `json:"kind"`
	Actor        string `json:"actor"`
	Action       string `json:"action"`
	FeaturePath  string `json:"feature_path,omitempty"`
	ScenarioLine int    `json:"scenario_line,omitempty"`
	Location     string `json:"location,omitempty"`
	Special      bool   `json:"special,omitempty"`
}

type linkRecord struct {
	Caller nodeRecord `json:"caller"`
	Callee nodeRecord `json:"callee"`
	Type   string     `json:"type"`
}

type linksFile struct {
	RunID string       `json:"run_id"`
	Links []linkRecord `json:"links"`
}

func toRecord(n graph.Node) nodeRecord {
	return nodeRecord{
		Kind:         n.Kind().String(),
		Actor:        n.Actor(),
		Action:       n.Action(),
		FeaturePath:  n.FeaturePath(),
		ScenarioLine: n.ScenarioLine(),
		Location:     n.Location(),
		Special:      n.IsSpecial(),
	}
}

func (r nodeRecord) node() (graph.Node, error) {
	kind, err := graph.ParseKind(r.Kind)
	if err != nil {
		return graph.Node{}, err
	}
	opts := []graph.Option{graph.WithLocation(r.Location)}
	if r.Special {
		opts = append(opts, graph.Special())
	}
	return graph.FromIdentity(graph.Identity{
		Kind:         kind,
		Actor:        r.Actor,
		Action:       r.Action,
		FeaturePath:  r.FeaturePath,
		ScenarioLine: r.ScenarioLine,
	}, opts...)
}

// SaveLinks writes links to a JSON file.
func SaveLinks(path, runID string, links []graph.Link) error {
	out := linksFile{RunID: runID, Links: make([]linkRecord, 0, len(links))}
	for _, l := range links {
		out.Links = append(out.Links, linkRecord{
			Caller: toRecord(l.Caller()),
			Callee: toRecord(l.Callee()),
			Type:   l.Type().String(),
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create links file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return fmt.Errorf("failed to encode links: %w", err)
	}
	return nil
}

// LoadLinks reads a file written by SaveLinks.
func LoadLinks(path string) (string, []graph.Link, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open links file: %w", err)
	}
	defer f.Close()

	var in linksFile
	if err := json.NewDecoder(f).Decode(&in); err != nil {
		return "", nil, fmt.Errorf("failed to decode links: %w", err)
	}

	links := make([]graph.Link, 0, len(in.Links))
	for i, r := range in.Links {
		caller, err := r.Caller.node()
		if err != nil {
			return "", nil, fmt.Errorf("link %d caller: %w", i, err)
		}
		callee, err := r.Callee.node()
		if err != nil {
			return "", nil, fmt.Errorf("link %d callee: %w", i, err)
		}
		typ, err := graph.ParseLinkType(r.Type)
		if err != nil {
			return "", nil, fmt.Errorf("link %d: %w", i, err)
		}
		links = append(links, graph.NewLink(caller, callee, typ))
	}
	return in.RunID, links, nil
}
