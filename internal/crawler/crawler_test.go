package crawler

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeJar(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func collect(t *testing.T, c *Crawler, location string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := c.Scan(location, func(a Artifact) error {
		data, err := a.ReadAll()
		require.NoError(t, err)
		out[a.Name] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestCrawler_ScanDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pkg", "A.class"), "a")
	writeFile(t, filepath.Join(root, "pkg", "sub", "B.class"), "b")
	writeFile(t, filepath.Join(root, "pkg", "notes.txt"), "ignored")
	writeFile(t, filepath.Join(root, "module-info.class"), "skipped")
	writeFile(t, filepath.Join(root, ".git", "C.class"), "ignored dir")

	c := NewCrawler([]string{".class"}, WithSkippedNames("module-info.class", "package-info.class"))
	got := collect(t, c, root)

	assert.Equal(t, map[string]string{
		"pkg/A.class":     "a",
		"pkg/sub/B.class": "b",
	}, got)
}

func TestCrawler_ScanArchive(t *testing.T) {
	jar := filepath.Join(t.TempDir(), "app.jar")
	writeJar(t, jar, map[string]string{
		"META-INF/MANIFEST.MF":        "Manifest-Version: 1.0",
		"com/acme/App.class":          "app",
		"com/acme/package-info.class": "skipped",
	})

	c := NewCrawler([]string{".class"}, WithSkippedNames("package-info.class"))

	var paths []string
	err := c.Scan(jar, func(a Artifact) error {
		paths = append(paths, a.Path())
		assert.Equal(t, jar, a.Location)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{jar + "!/com/acme/App.class"}, paths)

	assert.Equal(t, map[string]string{"com/acme/App.class": "app"}, collect(t, c, jar))
}

func TestCrawler_SingleFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "login.feature")
	writeFile(t, file, "Feature: Login")

	c := NewCrawler([]string{".feature"})
	var got []string
	require.NoError(t, c.Scan(file, func(a Artifact) error {
		got = append(got, a.Path())
		return nil
	}))
	assert.Equal(t, []string{file}, got)
}

func TestCrawler_Errors(t *testing.T) {
	c := NewCrawler([]string{".class"})

	t.Run("missing root", func(t *testing.T) {
		err := c.Scan(filepath.Join(t.TempDir(), "missing"), func(Artifact) error { return nil })
		assert.ErrorIs(t, err, ErrUnreadableLocation)
	})

	t.Run("corrupt archive", func(t *testing.T) {
		jar := filepath.Join(t.TempDir(), "broken.jar")
		writeFile(t, jar, "not a zip")
		err := c.Scan(jar, func(Artifact) error { return nil })
		assert.ErrorIs(t, err, ErrUnreadableLocation)
	})

	t.Run("callback error stops the walk", func(t *testing.T) {
		root := t.TempDir()
		for _, n := range []string{"A", "B", "C"} {
			writeFile(t, filepath.Join(root, n+".class"), n)
		}
		stop := errors.New("stop")
		var seen []string
		err := c.Scan(root, func(a Artifact) error {
			seen = append(seen, a.Name)
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Len(t, seen, 1)
	})
}
