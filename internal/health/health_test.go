package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{30 * time.Second, "30s"},
		{5*time.Minute + 30*time.Second, "5m30s"},
		{2*time.Hour + 15*time.Minute + 30*time.Second, "2h15m30s"},
		{3*24*time.Hour + 5*time.Hour + 30*time.Minute, "3d5h30m"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got := formatUptime(tt.duration)
			if got != tt.expected {
				t.Errorf("formatUptime(%v) = %s, want %s", tt.duration, got, tt.expected)
			}
		})
	}
}

func TestCheck_Aggregation(t *testing.T) {
	down := errors.New("connection refused")

	tests := []struct {
		name   string
		checks []Check
		want   string
	}{
		{"all ok", []Check{PingCheck("graph", true, pinger{}), PingCheck("history", false, pinger{})}, Healthy},
		{"optional down", []Check{PingCheck("graph", true, pinger{err: down}), PingCheck("history", false, pinger{})}, Degraded},
		{"required down", []Check{PingCheck("graph", true, pinger{}), PingCheck("history", false, pinger{err: down})}, Unhealthy},
		{"no checks", nil, Healthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := NewChecker(tt.checks...).Check(context.Background())
			if status.Status != tt.want {
				t.Errorf("Status = %s, want %s", status.Status, tt.want)
			}
			if len(status.Components) != len(tt.checks) {
				t.Errorf("got %d components, want %d", len(status.Components), len(tt.checks))
			}
		})
	}
}

func TestCheck_ComponentDetail(t *testing.T) {
	c := NewChecker(
		PingCheck("graph", true, pinger{err: errors.New("no route")}),
		PingCheck("history", false, nil),
	)
	status := c.Check(context.Background())

	graph := status.Components["graph"]
	if graph.Status != StatusError || graph.Error != "no route" || !graph.Optional {
		t.Errorf("graph = %+v", graph)
	}
	if got := status.Components["history"].Error; got != "history not configured" {
		t.Errorf("history error = %q", got)
	}
	if names := status.Names(); len(names) != 2 || names[0] != "graph" || names[1] != "history" {
		t.Errorf("Names() = %v", names)
	}
}

func TestCheck_SlowProbeDegrades(t *testing.T) {
	c := NewChecker(Check{Name: "slow", Probe: func(ctx context.Context) error {
		time.Sleep(slowThreshold + 20*time.Millisecond)
		return nil
	}})
	status := c.Check(context.Background())
	if status.Components["slow"].Status != StatusDegraded {
		t.Errorf("slow component = %+v", status.Components["slow"])
	}
	if status.Status != Degraded {
		t.Errorf("Status = %s, want degraded", status.Status)
	}
}

func TestCheck_PanickingProbeFails(t *testing.T) {
	c := NewChecker(
		Check{Name: "graph", Optional: true, Probe: func(ctx context.Context) error {
			panic("driver bug")
		}},
		PingCheck("history", false, pinger{}),
	)
	status := c.Check(context.Background())

	graph := status.Components["graph"]
	if graph.Status != StatusError {
		t.Errorf("graph = %+v", graph)
	}
	if graph.Error != "panic in health: driver bug" {
		t.Errorf("graph error = %q", graph.Error)
	}
	if status.Status != Degraded {
		t.Errorf("Status = %s, want degraded", status.Status)
	}
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name     string
		checker  *Checker
		wantCode int
	}{
		{"healthy", NewChecker(PingCheck("history", false, pinger{})), http.StatusOK},
		{"degraded", NewChecker(PingCheck("graph", true, pinger{err: errors.New("down")})), http.StatusOK},
		{"unhealthy", NewChecker(PingCheck("history", false, pinger{err: errors.New("down")})), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.checker.Handler()(rec, httptest.NewRequest(http.MethodGet, "/health/detail", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			var status Status
			if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if status.Status != tt.name {
				t.Errorf("status = %s, want %s", status.Status, tt.name)
			}
		})
	}
}
