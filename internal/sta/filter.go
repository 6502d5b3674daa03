package sta

import (
	"path/filepath"
	"sort"
	"strings"
)

// parseFilters splits a comma separated filter string and adds the
// path-separator form of every token, so "a.b" matches both "a.b.C" and "a/b/C".
func parseFilters(filter string) []string {
	seen := make(map[string]struct{})
	for _, raw := range strings.Split(filter, ",") {
		token := strings.TrimSpace(raw)
		if token == "" {
			continue
		}
		seen[token] = struct{}{}
		seen[strings.ReplaceAll(token, ".", "/")] = struct{}{}
		if filepath.Separator != '/' {
			seen[strings.ReplaceAll(token, ".", string(filepath.Separator))] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for token := range seen {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

func matchesAny(name string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	if name == "" {
		return false
	}
	for _, f := range filters {
		if strings.Contains(name, f) {
			return true
		}
	}
	return false
}
