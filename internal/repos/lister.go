package repos

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoLister is returned when patterns need expanding but nothing can
// list the known repositories.
var ErrNoLister = errors.New("repository patterns need a repository source")

// Lister lists every known repository name.
type Lister interface {
	Repositories(ctx context.Context) ([]string, error)
}

// Static is a Lister over a fixed name list.
type Static []string

// Repositories returns the list.
func (s Static) Repositories(context.Context) ([]string, error) {
	return s, nil
}

// Resolve expands patterns against l. Plain names pass through without
// consulting l, which may then be nil.
func Resolve(ctx context.Context, l Lister, patterns []string) ([]string, error) {
	if !HasPatterns(patterns) {
		return patterns, nil
	}
	if l == nil {
		return nil, ErrNoLister
	}
	known, err := l.Repositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	return Expand(known, patterns)
}
