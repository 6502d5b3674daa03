// Package sta holds the execution context of one static test-impact analysis run:
// the run configuration and the deduplicated link graph scanners feed into.
package sta

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"testimpact/internal/graph"
	"testimpact/internal/scope"
)

const (
	// DefaultApplicationID is used when no application id is configured.
	DefaultApplicationID = "testimpact.default.AppId"
	// DefaultAlwaysRunAnnotation marks tests that run regardless of impact.
	DefaultAlwaysRunAnnotation = "AlwaysRun"

	classPathEnv = "CLASSPATH"
)

// ErrInvalidOptions wraps validation failures of Options.
var ErrInvalidOptions = errors.New("invalid context options")

var validate = validator.New()

// Options is the configuration surface of a run.
type Options struct {
	ApplicationID       string   `validate:"max=256"`
	SrcLocations        []string `validate:"dive,required"`
	TestLocations       []string `validate:"dive,required"`
	DependencyJars      []string `validate:"dive,required"`
	Filter              string
	ChangeScope         *scope.ChangeScope
	AlwaysRunAnnotation string
	TraceMapPath        string
	EnablePreview       bool
}

// config is written once by NewContext and shared read-only by every derived context.
type config struct {
	runID               string
	applicationID       string
	srcLocations        []string
	testLocations       []string
	dependencyJars      []string
	classPath           string
	filters             []string
	changeScope         *scope.ChangeScope
	alwaysRunAnnotation string
	traceMapPath        string
	enablePreview       bool
}

// Context is the graph accumulator of a run. It is safe for concurrent use.
type Context struct {
	cfg             *config
	currentLocation string
	links           *LinkSet
	adopted         *typeRegistry
	// root is set on the run context only; link metrics count there.
	root bool
}

// NewContext validates opts, normalises locations to deduplicated absolute
// paths and merges them with the ambient CLASSPATH into one search path.
func NewContext(opts Options) (*Context, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}

	src, err := absSet(opts.SrcLocations)
	if err != nil {
		return nil, err
	}
	test, err := absSet(opts.TestLocations)
	if err != nil {
		return nil, err
	}
	deps, err := absSet(opts.DependencyJars)
	if err != nil {
		return nil, err
	}

	appID := strings.TrimSpace(opts.ApplicationID)
	if appID == "" {
		appID = DefaultApplicationID
	}
	alwaysRun := strings.TrimSpace(opts.AlwaysRunAnnotation)
	if alwaysRun == "" {
		alwaysRun = DefaultAlwaysRunAnnotation
	}

	cfg := &config{
		runID:               uuid.NewString(),
		applicationID:       appID,
		srcLocations:        src,
		testLocations:       test,
		dependencyJars:      deps,
		classPath:           executionClassPath(src, test, deps),
		filters:             parseFilters(opts.Filter),
		changeScope:         opts.ChangeScope,
		alwaysRunAnnotation: alwaysRun,
		traceMapPath:        opts.TraceMapPath,
		enablePreview:       opts.EnablePreview,
	}

	slog.Debug("execution context created",
		slog.String("run_id", cfg.runID),
		slog.String("application_id", cfg.applicationID),
		slog.Int("filters", len(cfg.filters)),
		slog.String("class_path", cfg.classPath),
	)

	c := newContext(cfg, "")
	c.root = true
	return c, nil
}

func newContext(cfg *config, location string) *Context {
	return &Context{
		cfg:             cfg,
		currentLocation: location,
		links:           NewLinkSet(),
		adopted:         &typeRegistry{},
	}
}

func absSet(locations []string) ([]string, error) {
	seen := make(map[string]struct{}, len(locations))
	for _, l := range locations {
		abs, err := filepath.Abs(l)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve location %s: %w", l, err)
		}
		seen[abs] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out, nil
}

func executionClassPath(groups ...[]string) string {
	ambient := os.Getenv(classPathEnv)
	slog.Debug("ambient class path", slog.String("class_path", ambient))

	seen := make(map[string]struct{})
	for _, entry := range filepath.SplitList(ambient) {
		if entry != "" {
			seen[entry] = struct{}{}
		}
	}
	for _, g := range groups {
		for _, entry := range g {
			seen[entry] = struct{}{}
		}
	}
	entries := make([]string, 0, len(seen))
	for e := range seen {
		entries = append(entries, e)
	}
	sort.Strings(entries)
	return strings.Join(entries, string(os.PathListSeparator))
}

// AddLink submits one link and returns 1 if it was not stored yet, 0 otherwise.
// The link type is recorded as adopted either way.
func (c *Context) AddLink(l graph.Link) int {
	c.adopted.adopt(l.Type())
	if c.root {
		linksSubmitted.WithLabelValues(l.Type().String()).Inc()
	}
	if !c.links.Add(l) {
		return 0
	}
	if c.root {
		linksInserted.WithLabelValues(l.Type().String()).Inc()
	}
	return 1
}

// AddLinks submits links and returns how many were newly inserted.
func (c *Context) AddLinks(links ...graph.Link) int {
	n := 0
	for _, l := range links {
		n += c.AddLink(l)
	}
	return n
}

// AddLinkSeq drains seq into the context and returns how many links were newly inserted.
func (c *Context) AddLinkSeq(seq iter.Seq[graph.Link]) int {
	n := 0
	for l := range seq {
		n += c.AddLink(l)
	}
	return n
}

// Links yields the links stored at call time. Each call takes a fresh
// snapshot, so the sequence is finite and can be consumed concurrently with
// further submissions.
func (c *Context) Links() iter.Seq[graph.Link] {
	snapshot := c.links.Snapshot()
	return func(yield func(graph.Link) bool) {
		for _, l := range snapshot {
			if !yield(l) {
				return
			}
		}
	}
}

// LinkSlice returns a snapshot of the stored links.
func (c *Context) LinkSlice() []graph.Link {
	return c.links.Snapshot()
}

// LinkCount is the number of distinct stored links.
func (c *Context) LinkCount() int {
	return c.links.Len()
}

// HasLink reports whether an equal link is stored.
func (c *Context) HasLink(l graph.Link) bool {
	return c.links.Contains(l)
}

// IsAdoptedLinkType reports whether every given type has been submitted at least once.
func (c *Context) IsAdoptedLinkType(types ...graph.LinkType) bool {
	for _, t := range types {
		if !c.adopted.has(t) {
			return false
		}
	}
	return true
}

// AdoptedLinkTypes lists the types observed so far.
func (c *Context) AdoptedLinkTypes() []graph.LinkType {
	return c.adopted.all()
}

// InScope reports whether name matches the configured filters. With no
// filters everything is in scope; an empty name never matches a filter.
func (c *Context) InScope(name string) bool {
	return matchesAny(name, c.cfg.filters)
}

// LocalContext derives a context with the same configuration and location
// but its own empty link accumulator.
func (c *Context) LocalContext() *Context {
	return newContext(c.cfg, c.currentLocation)
}

// LocalContextAt is LocalContext with a different current location.
func (c *Context) LocalContextAt(location string) *Context {
	return newContext(c.cfg, location)
}

// Merge re-submits every link of child into c and returns how many were new.
func (c *Context) Merge(child *Context) int {
	if child == nil || child == c {
		return 0
	}
	return c.AddLinkSeq(child.Links())
}

func (c *Context) RunID() string                  { return c.cfg.runID }
func (c *Context) ApplicationID() string          { return c.cfg.applicationID }
func (c *Context) CurrentLocation() string        { return c.currentLocation }
func (c *Context) ClassPath() string              { return c.cfg.classPath }
func (c *Context) ChangeScope() *scope.ChangeScope { return c.cfg.changeScope }
func (c *Context) AlwaysRunAnnotation() string    { return c.cfg.alwaysRunAnnotation }
func (c *Context) TraceMapPath() string           { return c.cfg.traceMapPath }
func (c *Context) EnablePreview() bool            { return c.cfg.enablePreview }

// SrcLocations returns a copy of the absolute source locations.
func (c *Context) SrcLocations() []string { return clone(c.cfg.srcLocations) }

// TestLocations returns a copy of the absolute test locations.
func (c *Context) TestLocations() []string { return clone(c.cfg.testLocations) }

// DependencyJars returns a copy of the absolute dependency archive paths.
func (c *Context) DependencyJars() []string { return clone(c.cfg.dependencyJars) }

// Filters returns a copy of the expanded filter tokens.
func (c *Context) Filters() []string { return clone(c.cfg.filters) }

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
