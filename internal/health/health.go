// Package health checks the components mplan depends on.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/joss/mplan/internal/logging"
)

// Component states.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// Overall states.
const (
	Healthy   = "healthy"
	Degraded  = "degraded"
	Unhealthy = "unhealthy"
)

const (
	defaultTimeout = 5 * time.Second
	slowThreshold  = 100 * time.Millisecond
)

// Pinger is anything that can report reachability. graph.Driver and
// store.PlanStore both satisfy it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check is one named component probe. A failing Optional check only
// degrades the overall status; planning still works without it.
type Check struct {
	Name     string
	Optional bool
	Probe    func(ctx context.Context) error
}

// PingCheck wraps p as a Check. A nil p always fails.
func PingCheck(name string, optional bool, p Pinger) Check {
	return Check{Name: name, Optional: optional, Probe: func(ctx context.Context) error {
		if p == nil {
			return fmt.Errorf("%s not configured", name)
		}
		return p.Ping(ctx)
	}}
}

// ComponentStatus represents health of a single component
type ComponentStatus struct {
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
	Latency  int64  `json:"latency_ms"`
	Error    string `json:"error,omitempty"`
}

// Status represents overall health
type Status struct {
	Status     string                     `json:"status"`
	Uptime     string                     `json:"uptime"`
	Components map[string]ComponentStatus `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Names returns the component names in sorted order.
func (s *Status) Names() []string {
	names := make([]string, 0, len(s.Components))
	for name := range s.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Checker runs a fixed set of checks concurrently.
type Checker struct {
	checks   []Check
	timeout  time.Duration
	started  time.Time
	now      func() time.Time
	recovery *logging.RecoveryHandler
}

// NewChecker creates a checker over checks.
func NewChecker(checks ...Check) *Checker {
	return &Checker{
		checks:   checks,
		timeout:  defaultTimeout,
		started:  time.Now(),
		now:      time.Now,
		recovery: logging.NewRecoveryHandler("health", nil),
	}
}

// WithLogger logs recovered probe panics to logger.
func (c *Checker) WithLogger(logger *logging.Logger) *Checker {
	c.recovery = logging.NewRecoveryHandler("health", logger)
	return c
}

// Check performs every check and aggregates the result.
func (c *Checker) Check(ctx context.Context) *Status {
	status := &Status{
		Status:     Healthy,
		Uptime:     formatUptime(c.now().Sub(c.started)),
		Components: make(map[string]ComponentStatus, len(c.checks)),
		Timestamp:  c.now().UTC().Format(time.RFC3339),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, chk := range c.checks {
		wg.Add(1)
		go func(chk Check) {
			defer wg.Done()
			result := c.run(ctx, chk)
			mu.Lock()
			defer mu.Unlock()
			status.Components[chk.Name] = result
			switch {
			case result.Status == StatusError && !chk.Optional:
				status.Status = Unhealthy
			case result.Status != StatusOK && status.Status == Healthy:
				status.Status = Degraded
			}
		}(chk)
	}

	wg.Wait()
	return status
}

func (c *Checker) run(ctx context.Context, chk Check) ComponentStatus {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	// A panicking probe reports as a failed component.
	err := c.recovery.WrapError(func() error { return chk.Probe(ctx) })
	latency := time.Since(start)

	result := ComponentStatus{Status: StatusOK, Optional: chk.Optional, Latency: latency.Milliseconds()}
	switch {
	case err != nil:
		result.Status = StatusError
		result.Error = err.Error()
	case latency > slowThreshold:
		result.Status = StatusDegraded
	}
	return result
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd%dh%dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// Handler serves the detailed status as JSON. Unhealthy answers 503.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if status.Status == Unhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(status)
	}
}
