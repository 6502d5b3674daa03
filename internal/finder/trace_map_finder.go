package finder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"testimpact/internal/graph"
	"testimpact/internal/sta"
)

var ErrInvalidTraceMap = errors.New("invalid trace map")

var validate = validator.New()

// TraceMap records which code externally executed tests were observed to reach.
type TraceMap struct {
	Tests []TracedTest `yaml:"tests" validate:"dive"`
}

type TracedTest struct {
	Actor    string         `yaml:"actor" validate:"required"`
	Action   string         `yaml:"action" validate:"required"`
	Location string         `yaml:"location"`
	Covers   []TracedTarget `yaml:"covers" validate:"dive"`
}

type TracedTarget struct {
	Actor  string `yaml:"actor" validate:"required"`
	Action string `yaml:"action" validate:"required"`
}

// LoadTraceMap reads and validates a YAML trace map.
func LoadTraceMap(path string) (*TraceMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tm TraceMap
	if err := yaml.Unmarshal(data, &tm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTraceMap, err)
	}
	if err := validate.Struct(tm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTraceMap, err)
	}
	return &tm, nil
}

// TraceMapFinder adds the tests of the context's trace map as entry points
// linked to the code they covered. Without a trace map path it does nothing.
type TraceMapFinder struct {
	logger *slog.Logger
}

func NewTraceMapFinder(logger *slog.Logger) *TraceMapFinder {
	return &TraceMapFinder{logger: loggerOr(logger)}
}

func (f *TraceMapFinder) Name() string { return "trace-map" }

func (f *TraceMapFinder) FindSafe(ctx context.Context, sc *sta.Context) error {
	path := sc.TraceMapPath()
	if path == "" {
		return nil
	}

	_, span := tracer.Start(ctx, "finder.TraceMapFinder",
		trace.WithAttributes(attribute.String("run_id", sc.RunID()), attribute.String("path", path)),
	)
	defer span.End()

	tm, err := LoadTraceMap(path)
	if err != nil {
		err = fmt.Errorf("trace map %s: %w", path, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	local := sc.LocalContextAt(path)
	for _, t := range tm.Tests {
		test, err := graph.NewTestVertex(t.Actor, t.Action, graph.WithLocation(t.Location))
		if err != nil {
			return fmt.Errorf("trace map %s: %w", path, err)
		}
		local.AddLink(graph.NewLink(graph.StartVertex, test, graph.EntryPoint))
		for _, c := range t.Covers {
			target, err := graph.NewVertex(c.Actor, c.Action)
			if err != nil {
				return fmt.Errorf("trace map %s: %w", path, err)
			}
			local.AddLink(graph.NewLink(test, target, graph.ExternalTrace))
		}
	}
	added := sc.Merge(local)

	span.SetAttributes(attribute.Int("tests", len(tm.Tests)), attribute.Int("links", added))
	span.SetStatus(codes.Ok, "")
	f.logger.Info("trace map loaded",
		slog.String("run_id", sc.RunID()),
		slog.String("path", path),
		slog.Int("tests", len(tm.Tests)),
		slog.Int("links", added),
	)
	return nil
}
