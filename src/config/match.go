package config

import (
	"path/filepath"
	"strings"
)

// MatchRefPatterns evaluates a list of ref patterns against a branch or tag
// name (OR logic). Patterns prefixed with "!" exclude and are checked first:
// any exclude match rejects the value. With only excludes present, every
// value not excluded is allowed.
func MatchRefPatterns(patterns []string, value string) bool {
	if value == "" {
		return false
	}

	var includes []string
	for _, p := range patterns {
		if strings.HasPrefix(p, "!") {
			if MatchGlob(p[1:], value) {
				return false
			}
			continue
		}
		includes = append(includes, p)
	}

	// No includes = exclude-only mode
	if len(includes) == 0 {
		return true
	}

	for _, p := range includes {
		if MatchGlob(p, value) {
			return true
		}
	}
	return false
}

// MatchGlob matches a glob pattern supporting ** against a forward-slash path.
// Patterns and paths should use "/" separators.
func MatchGlob(pattern, path string) bool { return matchGlob(pattern, path) }

// matchGlob extends filepath.Match with support for "**" (zero or more path
// segments). Patterns without "**" delegate directly to filepath.Match.
func matchGlob(pattern, path string) bool {
	if !strings.Contains(pattern, "**") {
		matched, _ := filepath.Match(pattern, path)
		return matched
	}

	// Split at the first "**".
	idx := strings.Index(pattern, "**")
	prefix := pattern[:idx]
	suffix := strings.TrimLeft(pattern[idx+2:], "/")

	if prefix != "" {
		prefix = strings.TrimRight(prefix, "/")
		if !strings.HasPrefix(path, prefix) {
			return false
		}
		path = strings.TrimPrefix(path, prefix)
		path = strings.TrimLeft(path, "/")
	}

	// ** at end matches everything remaining.
	if suffix == "" {
		return true
	}

	// Try the suffix against every tail: "a/b/c", "b/c", "c".
	parts := strings.Split(path, "/")
	for i := 0; i <= len(parts); i++ {
		tail := strings.Join(parts[i:], "/")
		if matchGlob(suffix, tail) {
			return true
		}
	}

	return false
}
