package finder

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"testimpact/internal/classfile"
	"testimpact/internal/crawler"
	"testimpact/internal/sta"
)

// ClassFinder parses every class under the source and test locations and
// runs its visitors over each one. Dependency jars only contribute to the
// class path and are not scanned.
type ClassFinder struct {
	visitors []Visitor
	crawler  *crawler.Crawler
	workers  int
	logger   *slog.Logger
}

type ClassFinderOption func(*ClassFinder)

// WithWorkers bounds the number of classes visited concurrently.
func WithWorkers(n int) ClassFinderOption {
	return func(f *ClassFinder) {
		if n > 0 {
			f.workers = n
		}
	}
}

func WithLogger(l *slog.Logger) ClassFinderOption {
	return func(f *ClassFinder) { f.logger = l }
}

func NewClassFinder(visitors []Visitor, opts ...ClassFinderOption) *ClassFinder {
	f := &ClassFinder{
		visitors: visitors,
		workers:  runtime.GOMAXPROCS(0),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = loggerOr(f.logger)
	f.crawler = crawler.NewCrawler([]string{".class"},
		crawler.WithSkippedNames("module-info.class", "package-info.class"),
		crawler.WithLogger(f.logger),
	)
	return f
}

// DefaultVisitors is the visitor set of a full scan.
func DefaultVisitors() []Visitor {
	return []Visitor{
		&TestClassVisitor{},
		&TestSuiteVisitor{},
		&AlwaysRunVisitor{},
		&CallGraphVisitor{},
		&InheritanceVisitor{},
		&CucumberStepVisitor{},
	}
}

func (f *ClassFinder) Name() string { return "classes" }

func (f *ClassFinder) FindSafe(ctx context.Context, sc *sta.Context) error {
	locations := append(sc.SrcLocations(), sc.TestLocations()...)

	ctx, span := tracer.Start(ctx, "finder.ClassFinder",
		trace.WithAttributes(
			attribute.String("run_id", sc.RunID()),
			attribute.Int("locations", len(locations)),
			attribute.Int("visitors", len(f.visitors)),
		),
	)
	defer span.End()

	logger := f.logger.With(slog.String("run_id", sc.RunID()), slog.String("finder", f.Name()))

	var g errgroup.Group
	g.SetLimit(f.workers)

	var merged, skipped atomic.Int64
	for _, loc := range locations {
		err := f.crawler.Scan(loc, func(a crawler.Artifact) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := a.Path()
			// archive members must be read while the crawler holds the archive open
			data, err := a.ReadAll()
			if err != nil {
				f.skip(logger, &skipped, path, skipRead, err)
				return nil
			}
			g.Go(func() error {
				if f.visit(logger, sc, path, data, &skipped) {
					merged.Add(1)
				}
				return nil
			})
			return nil
		})
		if err != nil {
			_ = g.Wait()
			err = fmt.Errorf("scan %s: %w", loc, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	_ = g.Wait()

	span.SetAttributes(
		attribute.Int64("artifacts.merged", merged.Load()),
		attribute.Int64("artifacts.skipped", skipped.Load()),
	)
	span.SetStatus(codes.Ok, "")
	logger.Info("class scan finished",
		slog.Int64("merged", merged.Load()),
		slog.Int64("skipped", skipped.Load()),
		slog.Int("links", sc.LinkCount()),
	)
	return nil
}

// visit parses one class and runs every visitor into a context local to the
// artifact. The local links reach sc only when all visitors succeed.
func (f *ClassFinder) visit(logger *slog.Logger, sc *sta.Context, path string, data []byte, skipped *atomic.Int64) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			f.skip(logger, skipped, path, skipPanic, fmt.Errorf("panic: %v", r))
			ok = false
		}
	}()

	c, err := classfile.ParseBytes(data)
	if err != nil {
		f.skip(logger, skipped, path, skipParse, err)
		return false
	}
	if !sc.InScope(c.Name) {
		artifactsSkipped.WithLabelValues(f.Name(), skipScope).Inc()
		return false
	}

	local := sc.LocalContextAt(path)
	for _, v := range f.visitors {
		if err := v.Visit(local, c); err != nil {
			f.skip(logger, skipped, path, skipVisitor, fmt.Errorf("%s: %w", v.Name(), err))
			return false
		}
	}
	sc.Merge(local)
	artifactsScanned.WithLabelValues(f.Name()).Inc()
	return true
}

func (f *ClassFinder) skip(logger *slog.Logger, skipped *atomic.Int64, path, reason string, err error) {
	skipped.Add(1)
	artifactsSkipped.WithLabelValues(f.Name(), reason).Inc()
	logger.Warn("skipping artifact",
		slog.String("artifact", path),
		slog.String("reason", reason),
		slog.Any("error", err),
	)
}
