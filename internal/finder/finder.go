// Package finder discovers links by scanning compiled classes, feature files
// and external trace maps, and submits them to an execution context.
package finder

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"

	"testimpact/internal/classfile"
	"testimpact/internal/graph"
	"testimpact/internal/sta"
)

var tracer = otel.Tracer("testimpact.finder")

// Finder scans one kind of input into a context.
//
// FindSafe isolates per-artifact failures: a corrupt class or a failing
// visitor is logged and skipped. Only systemic failures, such as an
// unreadable scan location, are returned.
type Finder interface {
	Name() string
	FindSafe(ctx context.Context, sc *sta.Context) error
}

// Visitor derives links from one parsed class. sc is a context local to the
// artifact being visited.
type Visitor interface {
	Name() string
	Visit(sc *sta.Context, c *classfile.Class) error
}

// linker builds nodes and links for one visit and keeps the first
// construction error, so visitors can stay linear.
type linker struct {
	sc  *sta.Context
	err error
}

func newLinker(sc *sta.Context) *linker {
	return &linker{sc: sc}
}

func (l *linker) vertex(actor, action string, opts ...graph.Option) graph.Node {
	n, err := graph.NewVertex(actor, action, opts...)
	l.keep(err)
	return n
}

func (l *linker) test(actor, action string) graph.Node {
	n, err := graph.NewTestVertex(actor, action, graph.WithLocation(l.sc.CurrentLocation()))
	l.keep(err)
	return n
}

func (l *linker) link(caller, callee graph.Node, typ graph.LinkType) {
	if l.err != nil || caller.IsZero() || callee.IsZero() {
		return
	}
	l.sc.AddLink(graph.NewLink(caller, callee, typ))
}

func (l *linker) keep(err error) {
	if err != nil && l.err == nil {
		l.err = err
	}
}

var platformPrefixes = []string{"java.", "javax.", "jdk.", "sun.", "com.sun.", "kotlin.", "scala."}

// isPlatform reports whether a class belongs to the runtime rather than the
// application. Platform classes never change with the code under test.
func isPlatform(className string) bool {
	for _, p := range platformPrefixes {
		if strings.HasPrefix(className, p) {
			return true
		}
	}
	return false
}

// inAppScope is the callee filter shared by visitors linking to other classes.
func inAppScope(sc *sta.Context, className string) bool {
	return className != "" && !isPlatform(className) && sc.InScope(className)
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
