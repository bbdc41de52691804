package trust

import (
	"fmt"
	"path"
	"slices"
	"strings"
)

// Names is an immutable set of trusted name patterns. A pattern is an exact
// name or a glob using path.Match syntax (*, ?, [classes]).
type Names struct {
	patterns []string
}

// NoNames trusts nothing.
var NoNames = &Names{}

// NewNames validates and stores patterns. Blank patterns are dropped.
func NewNames(patterns ...string) (*Names, error) {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if err := validatePattern(p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return &Names{patterns: out}, nil
}

// MustNames is NewNames that panics on invalid patterns.
func MustNames(patterns ...string) *Names {
	n, err := NewNames(patterns...)
	if err != nil {
		panic(err)
	}
	return n
}

// Current lets a static *Names act as a NameSource.
func (n *Names) Current() *Names { return n }

// Patterns returns a copy of the patterns.
func (n *Names) Patterns() []string { return slices.Clone(n.patterns) }

// Len returns the number of patterns.
func (n *Names) Len() int { return len(n.patterns) }

// Match returns the first (pattern, name) pair where name matches pattern.
// Patterns are tried in order.
func (n *Names) Match(names []string) (pattern, name string, ok bool) {
	for _, p := range n.patterns {
		for _, candidate := range names {
			if matched, _ := path.Match(p, candidate); matched {
				return p, candidate, true
			}
		}
	}
	return "", "", false
}

func (n *Names) String() string {
	return "[" + strings.Join(n.patterns, ", ") + "]"
}

// validatePattern rejects unterminated character classes and dangling
// escapes, which path.Match only reports when matching reaches them.
func validatePattern(p string) error {
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '\\':
			i++
			if i >= len(p) {
				return fmt.Errorf("trust: invalid pattern %q: trailing escape", p)
			}
		case '[':
			j := i + 1
			if j < len(p) && p[j] == '^' {
				j++
			}
			closed := false
			for first := true; j < len(p); j++ {
				if p[j] == '\\' {
					j++
					continue
				}
				if p[j] == ']' && !first {
					closed = true
					break
				}
				first = false
			}
			if !closed {
				return fmt.Errorf("trust: invalid pattern %q: unterminated character class", p)
			}
			if _, err := path.Match(p[i:j+1], "x"); err != nil {
				return fmt.Errorf("trust: invalid pattern %q: %w", p, err)
			}
			i = j
		}
	}
	return nil
}
