package finder

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"testimpact/internal/classfile"
	"testimpact/internal/classfile/classfiletest"
	"testimpact/internal/graph"
	"testimpact/internal/sta"
)

func newTestContext(t *testing.T, opts sta.Options) *sta.Context {
	t.Helper()
	sc, err := sta.NewContext(opts)
	require.NoError(t, err)
	return sc
}

func parse(t *testing.T, b *classfiletest.Builder) *classfile.Class {
	t.Helper()
	c, err := classfile.ParseBytes(b.Bytes())
	require.NoError(t, err)
	return c
}

// writeClasses stores builders under root using their package layout.
func writeClasses(t *testing.T, root string, classes map[string]*classfiletest.Builder) {
	t.Helper()
	for name, b := range classes {
		path := filepath.Join(root, filepath.FromSlash(strings.ReplaceAll(name, ".", "/"))+".class")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))
	}
}

func writeJar(t *testing.T, path string, classes map[string]*classfiletest.Builder) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, b := range classes {
		w, err := zw.Create(strings.ReplaceAll(name, ".", "/") + ".class")
		require.NoError(t, err)
		_, err = w.Write(b.Bytes())
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func vertex(t *testing.T, actor, action string) graph.Node {
	t.Helper()
	n, err := graph.NewVertex(actor, action)
	require.NoError(t, err)
	return n
}

func testVertex(t *testing.T, actor, action string) graph.Node {
	t.Helper()
	n, err := graph.NewTestVertex(actor, action)
	require.NoError(t, err)
	return n
}

func link(caller, callee graph.Node, typ graph.LinkType) graph.Link {
	return graph.NewLink(caller, callee, typ)
}

func linksOfType(sc *sta.Context, typ graph.LinkType) []graph.Link {
	var out []graph.Link
	for l := range sc.Links() {
		if l.Type() == typ {
			out = append(out, l)
		}
	}
	return out
}

func testClass(name string) *classfiletest.Builder {
	b := classfiletest.New(name)
	b.Method("print", "()V").Annotate(classfiletest.Ann("org.junit.Test"))
	return b
}
