package tools

import (
	"fmt"

	"github.com/gobwas/glob"
)

// DefaultIgnorePatterns are the tooling and dependency directories skipped by
// list, glob and grep unless configured otherwise.
func DefaultIgnorePatterns() []string {
	return []string{
		".git",
		".hg",
		".svn",
		"node_modules",
		"dist",
		"build",
		"target",
		".next",
		".venv",
		"__pycache__",
		".cache",
	}
}

// IgnoreSet matches entry names that traversals skip. The zero value ignores
// nothing.
type IgnoreSet struct {
	patterns []string
	globs    []glob.Glob
}

// NewIgnoreSet compiles name patterns such as ".git" or "*.egg-info".
func NewIgnoreSet(patterns []string) (*IgnoreSet, error) {
	s := &IgnoreSet{}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
		s.patterns = append(s.patterns, p)
		s.globs = append(s.globs, g)
	}
	return s, nil
}

// Match reports whether an entry with the given base name is ignored.
func (s *IgnoreSet) Match(name string) bool {
	if s == nil {
		return false
	}
	for _, g := range s.globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Patterns returns the source patterns.
func (s *IgnoreSet) Patterns() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.patterns))
	copy(out, s.patterns)
	return out
}
