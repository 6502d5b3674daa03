package finder

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"testimpact/internal/crawler"
	"testimpact/internal/gherkin"
	"testimpact/internal/graph"
	"testimpact/internal/sta"
)

// FeatureFinder links Cucumber scenarios found under the test locations to
// the step definitions their steps match. Step definitions are read from
// the CucumberMap links already in the context, so it runs after ClassFinder.
type FeatureFinder struct {
	crawler *crawler.Crawler
	logger  *slog.Logger
}

func NewFeatureFinder(logger *slog.Logger) *FeatureFinder {
	logger = loggerOr(logger)
	return &FeatureFinder{
		crawler: crawler.NewCrawler([]string{".feature"}, crawler.WithLogger(logger)),
		logger:  logger,
	}
}

func (f *FeatureFinder) Name() string { return "features" }

func (f *FeatureFinder) FindSafe(ctx context.Context, sc *sta.Context) error {
	ctx, span := tracer.Start(ctx, "finder.FeatureFinder",
		trace.WithAttributes(attribute.String("run_id", sc.RunID())),
	)
	defer span.End()

	logger := f.logger.With(slog.String("run_id", sc.RunID()), slog.String("finder", f.Name()))
	patterns := f.stepPatterns(logger, sc)

	var features int
	for _, loc := range sc.TestLocations() {
		err := f.crawler.Scan(loc, func(a crawler.Artifact) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if f.visit(logger, sc, a, patterns) {
				features++
			}
			return nil
		})
		if err != nil {
			err = fmt.Errorf("scan %s: %w", loc, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	span.SetAttributes(
		attribute.Int("features", features),
		attribute.Int("step_patterns", len(patterns)),
	)
	span.SetStatus(codes.Ok, "")
	logger.Info("feature scan finished", slog.Int("features", features), slog.Int("step_patterns", len(patterns)))
	return nil
}

// stepPatterns compiles the step definition patterns known to sc.
func (f *FeatureFinder) stepPatterns(logger *slog.Logger, sc *sta.Context) []*gherkin.StepPattern {
	if !sc.IsAdoptedLinkType(graph.CucumberMap) {
		return nil
	}
	seen := make(map[string]bool)
	var out []*gherkin.StepPattern
	for l := range sc.Links() {
		if l.Type() != graph.CucumberMap || l.Caller().Actor() != graph.StepDefinitionsActor {
			continue
		}
		src := l.Caller().Action()
		if seen[src] {
			continue
		}
		seen[src] = true
		p, err := gherkin.CompileStepPattern(src)
		if err != nil {
			logger.Warn("ignoring step definition", slog.String("pattern", src), slog.Any("error", err))
			continue
		}
		out = append(out, p)
	}
	return out
}

func (f *FeatureFinder) visit(logger *slog.Logger, sc *sta.Context, a crawler.Artifact, patterns []*gherkin.StepPattern) bool {
	artifact := a.Path()
	// feature files are scoped by their package-like path, e.g. com/acme/cart.feature
	if !sc.InScope(a.Name) {
		artifactsSkipped.WithLabelValues(f.Name(), skipScope).Inc()
		logger.Debug("feature out of scope", slog.String("artifact", artifact))
		return false
	}
	rc, err := a.Open()
	if err != nil {
		f.skip(logger, artifact, skipRead, err)
		return false
	}
	defer rc.Close()

	feature, err := gherkin.Parse(rc)
	if err != nil {
		f.skip(logger, artifact, skipParse, err)
		return false
	}

	actor := strings.TrimSpace(feature.Name)
	if actor == "" {
		actor = strings.TrimSuffix(path.Base(a.Name), ".feature")
	}

	local := sc.LocalContextAt(artifact)
	for _, s := range feature.Scenarios {
		action := strings.TrimSpace(s.Name)
		if action == "" {
			action = fmt.Sprintf("scenario at line %d", s.Line)
		}
		scenario, err := graph.NewCucumberVertex(actor, action, artifact, s.Line, graph.WithLocation(artifact))
		if err != nil {
			f.skip(logger, artifact, skipParse, err)
			return false
		}
		local.AddLink(graph.NewLink(graph.StartVertex, scenario, graph.CucumberTest))

		for _, run := range s.Expanded() {
			for _, text := range run {
				matched := false
				for _, p := range patterns {
					if !p.Match(text) {
						continue
					}
					matched = true
					step, err := graph.NewVertex(graph.StepDefinitionsActor, p.Source)
					if err != nil {
						continue
					}
					local.AddLink(graph.NewLink(scenario, step, graph.CucumberMap))
				}
				if !matched {
					logger.Debug("undefined step",
						slog.String("feature", artifact),
						slog.Int("scenario_line", s.Line),
						slog.String("step", text),
					)
				}
			}
		}
	}
	sc.Merge(local)
	artifactsScanned.WithLabelValues(f.Name()).Inc()
	return true
}

func (f *FeatureFinder) skip(logger *slog.Logger, artifact, reason string, err error) {
	artifactsSkipped.WithLabelValues(f.Name(), reason).Inc()
	logger.Warn("skipping artifact",
		slog.String("artifact", artifact),
		slog.String("reason", reason),
		slog.Any("error", err),
	)
}
