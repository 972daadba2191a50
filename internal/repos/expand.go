// Package repos resolves the repository selection given on the command
// line or in a request.
package repos

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IsPattern reports whether name contains glob syntax.
func IsPattern(name string) bool {
	return strings.ContainsAny(name, "*?[{")
}

// Expand resolves patterns against the known repository names. Literal
// names are kept even when unknown; a glob adds the known names it matches
// in known order. The result has no duplicates and keeps first-seen order.
// A pattern that matches nothing contributes nothing.
func Expand(known, patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !IsPattern(p) {
			add(p)
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid repository pattern %q: %w", p, doublestar.ErrBadPattern)
		}
		for _, name := range known {
			if ok, _ := doublestar.Match(p, name); ok {
				add(name)
			}
		}
	}
	return out, nil
}

// HasPatterns reports whether any entry needs known names to resolve.
func HasPatterns(patterns []string) bool {
	for _, p := range patterns {
		if IsPattern(p) {
			return true
		}
	}
	return false
}
