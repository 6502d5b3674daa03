package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"testimpact/internal/analysis"
	"testimpact/internal/config"
	"testimpact/internal/extractor"
	"testimpact/internal/finder"
	"testimpact/internal/git"
	"testimpact/internal/index"
	"testimpact/internal/resolver"
	"testimpact/internal/scope"
	"testimpact/internal/sta"
	"testimpact/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("testimpact.pipeline")

// Result is what a completed run produced.
type Result struct {
	RunID     string
	Changes   *scope.ChangeScope
	Summary   analysis.Summary
	Resolvers []resolver.StageResult
	Duration  time.Duration
}

// Pipeline runs changes -> context -> scan -> resolve -> save.
type Pipeline struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
}

type Option func(*Pipeline)

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithOutput sets where progress lines go. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) {
		if w != nil {
			p.out = w
		}
	}
}

func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg, logger: slog.Default(), out: os.Stdout}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run builds and stores the link graph described by cfg.
func Run(ctx context.Context, cfg *config.Config, opts ...Option) (*Result, error) {
	return New(cfg, opts...).Run(ctx)
}

func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Run")
	defer span.End()
	start := time.Now()

	res, err := p.run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	res.Duration = time.Since(start)
	span.SetAttributes(attribute.String("run_id", res.RunID), attribute.Int("links", res.Summary.Links))
	span.SetStatus(codes.Ok, "")
	return res, nil
}

func (p *Pipeline) run(ctx context.Context) (*Result, error) {
	changes, err := p.changesStage(ctx)
	if err != nil {
		return nil, err
	}

	sc, err := p.contextStage(changes)
	if err != nil {
		return nil, err
	}
	logger := p.logger.With(slog.String("run", sc.RunID()))

	if err := p.scanStage(ctx, logger, sc); err != nil {
		return nil, err
	}

	stages, err := p.resolveStage(ctx, logger, sc)
	if err != nil {
		return nil, err
	}

	if err := p.saveStage(ctx, sc); err != nil {
		return nil, err
	}

	return &Result{
		RunID:     sc.RunID(),
		Changes:   changes,
		Summary:   analysis.Summarize(sc.Links()),
		Resolvers: stages,
	}, nil
}

// ChangeScope computes the change scope alone, for callers that only report it.
func (p *Pipeline) ChangeScope(ctx context.Context) (*scope.ChangeScope, error) {
	return p.changesStage(ctx)
}

func (p *Pipeline) changesStage(ctx context.Context) (*scope.ChangeScope, error) {
	if p.cfg.Project.BaseRef == "" {
		return nil, nil
	}
	ctx, span := p.stage(ctx, "changes")
	defer span.End()

	files, err := git.ChangedFiles(ctx, p.cfg.Project.Root, p.cfg.Project.BaseRef)
	if err != nil {
		return nil, p.fail(span, fmt.Errorf("failed to get git changes: %w", err))
	}

	ext, err := extractor.NewExtractor("java")
	if err != nil {
		return nil, p.fail(span, err)
	}
	changes := scope.FromChangedFiles(p.cfg.Project.Root, files, ext)
	fmt.Fprintf(p.out, "📝 Detected %d changed files against %s.\n", changes.Len(), p.cfg.Project.BaseRef)
	return changes, nil
}

func (p *Pipeline) contextStage(changes *scope.ChangeScope) (*sta.Context, error) {
	sc, err := sta.NewContext(sta.Options{
		ApplicationID:       p.cfg.ApplicationID,
		SrcLocations:        p.resolve(p.cfg.Scan.SrcLocations),
		TestLocations:       p.resolve(p.cfg.Scan.TestLocations),
		DependencyJars:      p.resolve(p.cfg.Scan.DependencyJars),
		Filter:              p.cfg.Scan.Filter,
		ChangeScope:         changes,
		AlwaysRunAnnotation: p.cfg.Scan.AlwaysRunAnnotation,
		TraceMapPath:        p.resolvePath(p.cfg.Scan.TraceMap),
		EnablePreview:       p.cfg.Scan.EnablePreview,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	return sc, nil
}

func (p *Pipeline) scanStage(ctx context.Context, logger *slog.Logger, sc *sta.Context) error {
	ctx, span := p.stage(ctx, "scan")
	defer span.End()

	fmt.Fprintln(p.out, "🚀 Scanning compiled classes...")
	start := time.Now()
	idx := index.NewIndexer(logger,
		finder.NewClassFinder(finder.DefaultVisitors(),
			finder.WithWorkers(p.cfg.Scan.Workers),
			finder.WithLogger(logger),
		),
		// step definitions come from the class scan
		finder.NewFeatureFinder(logger),
		finder.NewTraceMapFinder(logger),
	)
	if err := idx.Build(ctx, sc); err != nil {
		return p.fail(span, fmt.Errorf("scan failed: %w", err))
	}
	fmt.Fprintf(p.out, "✅ Scan finished in %v. Found %d links.\n", time.Since(start), sc.LinkCount())
	return nil
}

func (p *Pipeline) resolveStage(ctx context.Context, logger *slog.Logger, sc *sta.Context) ([]resolver.StageResult, error) {
	ctx, span := p.stage(ctx, "resolve")
	defer span.End()

	stages := resolver.NewDefaultChain().WithLogger(logger).Run(ctx, sc)
	for _, st := range stages {
		if st.Err != nil {
			return stages, p.fail(span, fmt.Errorf("resolver %s failed: %w", st.Resolver, st.Err))
		}
		fmt.Fprintf(p.out, "  -> %s: rounds=%d resolved=%d links=%d\n", st.Resolver, st.Rounds, st.Stats.Resolved, st.LinksAfter)
	}
	return stages, nil
}

func (p *Pipeline) saveStage(ctx context.Context, sc *sta.Context) (err error) {
	ctx, span := p.stage(ctx, "save")
	defer span.End()

	fmt.Fprintln(p.out, "💾 Saving to local database...")
	store, err := storage.NewSQLiteStore(p.cfg.Storage.DBPath)
	if err != nil {
		return p.fail(span, fmt.Errorf("failed to initialize database: %w", err))
	}
	defer func() {
		err = errors.Join(err, store.Close())
	}()

	links := sc.LinkSlice()
	if err := store.SaveGraph(ctx, sc.RunID(), links); err != nil {
		return p.fail(span, fmt.Errorf("failed to save graph: %w", err))
	}
	if p.cfg.Storage.Export != "" {
		if err := index.SaveLinks(p.cfg.Storage.Export, sc.RunID(), links); err != nil {
			return p.fail(span, err)
		}
	}
	return nil
}

func (p *Pipeline) stage(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "pipeline."+name)
}

func (p *Pipeline) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// resolve anchors relative locations at the project root.
func (p *Pipeline) resolve(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, path := range paths {
		out = append(out, p.resolvePath(path))
	}
	return out
}

func (p *Pipeline) resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.cfg.Project.Root, path)
}
