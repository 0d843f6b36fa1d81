// Package provision sets up the language runtime and installs the package
// under test with a selected set of optional dependency groups.
package provision

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ErrUnknownExtra is returned when an extra is not declared by the package.
var ErrUnknownExtra = errors.New("unknown extra")

// Extras is a canonical (sorted, de-duplicated) set of optional
// dependency group names.
type Extras []string

// NewExtras canonicalizes names.
func NewExtras(names ...string) Extras {
	seen := make(map[string]bool, len(names))
	out := make(Extras, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ParseExtras parses a comma-separated list such as "deep,test".
func ParseExtras(s string) Extras {
	return NewExtras(strings.Split(s, ",")...)
}

// String renders the set as "deep,test"; the empty set renders as "".
func (e Extras) String() string { return strings.Join(e, ",") }

// Has reports whether name is in the set.
func (e Extras) Has(name string) bool {
	for _, x := range e {
		if x == name {
			return true
		}
	}
	return false
}

// Requirement returns the pip requirement for an editable install of dir,
// e.g. ".[deep,test]".
func (e Extras) Requirement(dir string) string {
	if len(e) == 0 {
		return dir
	}
	return fmt.Sprintf("%s[%s]", dir, e)
}

// pyproject is the slice of pyproject.toml needed to validate extras.
type pyproject struct {
	Project struct {
		Name                 string              `toml:"name"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
	} `toml:"project"`
}

// DeclaredExtras reads the optional dependency groups declared in a
// pyproject.toml file.
func DeclaredExtras(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p pyproject
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return p.Project.OptionalDependencies, nil
}

// Validate checks that every extra is declared in declared.
// Extra names compare case-insensitively with runs of "-", "_" and "."
// folded, following packaging name normalization.
func (e Extras) Validate(declared map[string][]string) error {
	known := make(map[string]bool, len(declared))
	for name := range declared {
		known[normalizeName(name)] = true
	}
	var missing []string
	for _, x := range e {
		if !known[normalizeName(x)] {
			missing = append(missing, x)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownExtra, strings.Join(missing, ", "))
	}
	return nil
}

func normalizeName(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	sep := false
	for _, r := range s {
		if r == '-' || r == '_' || r == '.' {
			sep = true
			continue
		}
		if sep && b.Len() > 0 {
			b.WriteByte('-')
		}
		sep = false
		b.WriteRune(r)
	}
	return b.String()
}
