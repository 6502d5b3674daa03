// Package git turns a git diff into change records.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"testimpact/internal/scope"
)

const devNull = "/dev/null"

var ErrDiffFailed = errors.New("git diff failed")

// ChangedFiles runs git diff -U0 against baseRef in repoDir and returns one
// change per touched file, with the new-side line numbers that changed.
func ChangedFiles(ctx context.Context, repoDir, baseRef string) ([]scope.Change, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "-U0", "--no-color", "--no-ext-diff", baseRef)
	cmd.Dir = repoDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %s", ErrDiffFailed, err, strings.TrimSpace(stderr.String()))
	}
	return ParseDiff(output)
}

// ParseDiff reads unified diff output as produced by git diff -U0.
func ParseDiff(output []byte) ([]scope.Change, error) {
	if len(bytes.TrimSpace(output)) == 0 {
		return nil, nil
	}
	files, err := diff.ParseMultiFileDiff(output)
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}

	changes := make([]scope.Change, 0, len(files))
	for _, fd := range files {
		c := scope.Change{Path: stripPrefix(fd.NewName), Type: scope.Modified}
		switch {
		case fd.OrigName == devNull:
			c.Type = scope.Added
		case fd.NewName == devNull:
			c.Type = scope.Deleted
			c.Path = stripPrefix(fd.OrigName)
		}
		if c.Type != scope.Deleted {
			c.Lines = changedLines(fd.Hunks)
		}
		changes = append(changes, c)
	}
	return changes, nil
}

func changedLines(hunks []*diff.Hunk) []int {
	var lines []int
	for _, h := range hunks {
		if h.NewLines == 0 {
			// pure deletion: mark the line the removed block followed
			lines = append(lines, max(int(h.NewStartLine), 1))
			continue
		}
		for i := int32(0); i < h.NewLines; i++ {
			lines = append(lines, int(h.NewStartLine+i))
		}
	}
	return lines
}

func stripPrefix(name string) string {
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}
