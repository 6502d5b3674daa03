// Package crawler enumerates artifacts under scan locations. A location is
// either a directory tree or a jar/zip archive.
package crawler

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrUnreadableLocation is returned when a scan root cannot be opened.
var ErrUnreadableLocation = errors.New("unreadable location")

// Artifact is one matching file found under a location.
type Artifact struct {
	// Location is the scan root the artifact was found under.
	Location string
	// Name is the slash separated path relative to Location.
	Name string

	open func() (io.ReadCloser, error)
}

// Path identifies the artifact for logs and local contexts.
// Archive members are rendered as archive!/member.
func (a Artifact) Path() string {
	if isArchive(a.Location) {
		return a.Location + "!/" + a.Name
	}
	return filepath.Join(a.Location, filepath.FromSlash(a.Name))
}

func (a Artifact) Open() (io.ReadCloser, error) {
	return a.open()
}

// ReadAll returns the artifact contents.
func (a Artifact) ReadAll() ([]byte, error) {
	rc, err := a.open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Crawler scans locations for files with the configured suffixes.
type Crawler struct {
	suffixes []string
	ignored  []string
	skipped  []string
	logger   *slog.Logger
}

type Option func(*Crawler)

// WithLogger sets the logger used for entries that are skipped mid-walk.
func WithLogger(l *slog.Logger) Option {
	return func(c *Crawler) { c.logger = l }
}

// WithSkippedNames excludes files by base name, e.g. module-info.class.
func WithSkippedNames(names ...string) Option {
	return func(c *Crawler) { c.skipped = append(c.skipped, names...) }
}

// NewCrawler creates a crawler matching any of suffixes.
func NewCrawler(suffixes []string, opts ...Option) *Crawler {
	c := &Crawler{
		suffixes: suffixes,
		ignored:  []string{".git", ".idea", ".gradle", "node_modules"},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Scan walks location and calls onArtifact for every match. An error from
// onArtifact stops the walk and is returned. Unreadable entries below the
// root are logged and skipped; an unreadable root is an error.
//
// Archive members can only be opened while onArtifact runs.
func (c *Crawler) Scan(location string, onArtifact func(Artifact) error) error {
	info, err := os.Stat(location)
	if err != nil {
		return fmt.Errorf("%w %s: %v", ErrUnreadableLocation, location, err)
	}
	if info.IsDir() {
		return c.scanDir(location, onArtifact)
	}
	if isArchive(location) {
		return c.scanArchive(location, onArtifact)
	}
	if c.matches(filepath.Base(location)) {
		return onArtifact(Artifact{
			Location: filepath.Dir(location),
			Name:     filepath.Base(location),
			open:     func() (io.ReadCloser, error) { return os.Open(location) },
		})
	}
	return nil
}

func (c *Crawler) scanDir(root string, onArtifact func(Artifact) error) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return fmt.Errorf("%w %s: %v", ErrUnreadableLocation, root, err)
			}
			c.logger.Warn("skipping unreadable entry", slog.String("path", p), slog.Any("error", err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			for _, ign := range c.ignored {
				if d.Name() == ign && p != root {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if !c.matches(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		return onArtifact(Artifact{
			Location: root,
			Name:     filepath.ToSlash(rel),
			open:     func() (io.ReadCloser, error) { return os.Open(p) },
		})
	})
}

func (c *Crawler) scanArchive(archive string, onArtifact func(Artifact) error) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("%w %s: %v", ErrUnreadableLocation, archive, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !c.matches(path.Base(f.Name)) {
			continue
		}
		if err := onArtifact(Artifact{
			Location: archive,
			Name:     f.Name,
			open:     f.Open,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Crawler) matches(name string) bool {
	for _, s := range c.skipped {
		if name == s {
			return false
		}
	}
	for _, s := range c.suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

func isArchive(p string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	return ext == ".jar" || ext == ".zip"
}
