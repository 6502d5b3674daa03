package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"testimpact/internal/sta"
)

var tracer = otel.Tracer("testimpact.resolver")

// DefaultMaxRounds bounds how often one resolver is repeated while it keeps adding links.
const DefaultMaxRounds = 32

type ResolveStats struct {
	Attempted int
	Resolved  int
	Skipped   int
}

func (s *ResolveStats) add(o ResolveStats) {
	s.Attempted += o.Attempted
	s.Resolved += o.Resolved
	s.Skipped += o.Skipped
}

// LinkResolver derives links from the links already in a context.
// Resolved counts newly inserted links.
type LinkResolver interface {
	Name() string
	Resolve(sc *sta.Context) (ResolveStats, error)
}

type StageResult struct {
	Resolver    string
	Stats       ResolveStats
	Rounds      int
	LinksBefore int
	LinksAfter  int
	Err         error
}

type ResolverChain struct {
	resolvers []LinkResolver
	maxRounds int
	logger    *slog.Logger
}

func NewResolverChain(resolvers ...LinkResolver) *ResolverChain {
	return &ResolverChain{resolvers: resolvers, maxRounds: DefaultMaxRounds, logger: slog.Default()}
}

func NewDefaultChain() *ResolverChain {
	return NewResolverChain(NewOverrideResolver())
}

// WithMaxRounds replaces the per-resolver round limit.
func (c *ResolverChain) WithMaxRounds(n int) *ResolverChain {
	if n > 0 {
		c.maxRounds = n
	}
	return c
}

func (c *ResolverChain) WithLogger(l *slog.Logger) *ResolverChain {
	if l != nil {
		c.logger = l
	}
	return c
}

// Run applies the resolvers in order. Each one is repeated until a round
// inserts nothing or the round limit is hit. The chain stops at the first error.
func (c *ResolverChain) Run(ctx context.Context, sc *sta.Context) []StageResult {
	if sc == nil {
		return nil
	}

	_, span := tracer.Start(ctx, "resolver.Chain",
		trace.WithAttributes(
			attribute.String("run_id", sc.RunID()),
			attribute.Int("resolvers", len(c.resolvers)),
		),
	)
	defer span.End()

	var out []StageResult
	for _, r := range c.resolvers {
		res := StageResult{Resolver: r.Name(), LinksBefore: sc.LinkCount()}
		for res.Rounds < c.maxRounds {
			res.Rounds++
			stats, err := r.Resolve(sc)
			res.Stats.add(stats)
			if err != nil {
				res.Err = fmt.Errorf("%s round %d: %w", r.Name(), res.Rounds, err)
				break
			}
			if stats.Resolved == 0 {
				break
			}
		}
		res.LinksAfter = sc.LinkCount()
		out = append(out, res)

		c.logger.Debug("resolver finished",
			slog.String("run_id", sc.RunID()),
			slog.String("resolver", res.Resolver),
			slog.Int("rounds", res.Rounds),
			slog.Int("resolved", res.Stats.Resolved),
		)
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			return out
		}
	}
	span.SetStatus(codes.Ok, "")
	return out
}
