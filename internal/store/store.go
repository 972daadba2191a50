// Package store keeps a history of generated plans.
package store

import (
	"context"
	"time"

	"github.com/joss/mplan/internal/planning"
)

// Record is one saved plan. List leaves Plan nil; Get fills it.
type Record struct {
	ID            string         `json:"id" yaml:"id"`
	CreatedAt     time.Time      `json:"created_at" yaml:"created_at"`
	Repositories  []string       `json:"repositories" yaml:"repositories"`
	Slices        int            `json:"slices" yaml:"slices"`
	CouplingIndex float64        `json:"coupling_index" yaml:"coupling_index"`
	RiskScore     float64        `json:"risk_score" yaml:"risk_score"`
	EffortScore   float64        `json:"effort_score" yaml:"effort_score"`
	Degraded      int            `json:"degraded" yaml:"degraded"`
	Plan          *planning.Plan `json:"plan,omitempty" yaml:"plan,omitempty"`
}

// Filter narrows List results.
type Filter struct {
	Limit      int    // Maximum results (0 = no limit)
	Repository string // Only plans covering this repository
}

// DefaultFilter returns the filter used by the history command.
func DefaultFilter() Filter {
	return Filter{Limit: 20}
}

// WithLimit returns a copy of the filter with a new limit.
func (f Filter) WithLimit(n int) Filter {
	f.Limit = n
	return f
}

// WithRepository returns a copy of the filter restricted to repo.
func (f Filter) WithRepository(repo string) Filter {
	f.Repository = repo
	return f
}

// PlanStore persists plans. Implementations are safe for concurrent use.
type PlanStore interface {
	Save(ctx context.Context, plan *planning.Plan) (*Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, filter Filter) ([]*Record, error)
	Ping(ctx context.Context) error
	Close() error
}
