// Package metrics exposes planner counters in the Prometheus text format.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joss/mplan/internal/graph"
	"github.com/joss/mplan/internal/planning"
)

// Metrics holds runtime counters for mplan.
type Metrics struct {
	// Planning
	PlansBuilt          atomic.Int64
	PlansRejected       atomic.Int64
	DegradedCalls       atomic.Int64
	CyclicFallbacks     atomic.Int64
	LastPlanDurationMs  atomic.Int64
	HistorySaves        atomic.Int64
	HistorySaveFailures atomic.Int64

	// HTTP
	Requests      atomic.Int64
	RequestErrors atomic.Int64

	// Graph writes (ingest)
	GraphWrites      atomic.Int64
	GraphWriteErrors atomic.Int64

	cacheMu sync.RWMutex
	cache   *graph.QueryCache

	startTime time.Time
}

var _ planning.Observer = (*Metrics)(nil)

// New creates an empty metrics set.
func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// Global returns the process-wide metrics instance.
func Global() *Metrics {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

// PlanBuilt records a successful Build.
func (m *Metrics) PlanBuilt(s planning.BuildStats) {
	m.PlansBuilt.Add(1)
	m.DegradedCalls.Add(int64(s.Degraded))
	if s.Cyclic > 0 {
		m.CyclicFallbacks.Add(1)
	}
	m.LastPlanDurationMs.Store(s.Duration.Milliseconds())
}

// PlanRejected records a Build refused for an empty repository set.
func (m *Metrics) PlanRejected() {
	m.PlansRejected.Add(1)
}

// RecordHistorySave records a plan history write.
func (m *Metrics) RecordHistorySave(success bool) {
	m.HistorySaves.Add(1)
	if !success {
		m.HistorySaveFailures.Add(1)
	}
}

// RecordRequest records an HTTP request; status >= 400 counts as an error.
func (m *Metrics) RecordRequest(status int) {
	m.Requests.Add(1)
	if status >= 400 {
		m.RequestErrors.Add(1)
	}
}

// RecordGraphWrites records an ingest run.
func (m *Metrics) RecordGraphWrites(written, failed int) {
	m.GraphWrites.Add(int64(written + failed))
	m.GraphWriteErrors.Add(int64(failed))
}

// TrackCache includes c's statistics in the exposition.
func (m *Metrics) TrackCache(c *graph.QueryCache) {
	m.cacheMu.Lock()
	m.cache = c
	m.cacheMu.Unlock()
}

func writeMetric(w io.Writer, name, kind, help string, value any) {
	fmt.Fprintf(w, "# HELP mplan_%s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE mplan_%s %s\n", name, kind)
	switch v := value.(type) {
	case float64:
		fmt.Fprintf(w, "mplan_%s %.2f\n\n", name, v)
	default:
		fmt.Fprintf(w, "mplan_%s %v\n\n", name, v)
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		writeMetric(w, "uptime_seconds", "gauge", "Time since mplan started", time.Since(m.startTime).Seconds())

		writeMetric(w, "plans_built_total", "counter", "Plans built", m.PlansBuilt.Load())
		writeMetric(w, "plans_rejected_total", "counter", "Plan requests rejected by validation", m.PlansRejected.Load())
		writeMetric(w, "degraded_calls_total", "counter", "Collaborator calls that degraded to empty data", m.DegradedCalls.Load())
		writeMetric(w, "cyclic_fallbacks_total", "counter", "Plans whose slice order used the cycle fallback", m.CyclicFallbacks.Load())
		writeMetric(w, "last_plan_duration_ms", "gauge", "Duration of the last plan build", m.LastPlanDurationMs.Load())
		writeMetric(w, "history_saves_total", "counter", "Plan history writes", m.HistorySaves.Load())
		writeMetric(w, "history_save_errors_total", "counter", "Failed plan history writes", m.HistorySaveFailures.Load())

		writeMetric(w, "http_requests_total", "counter", "HTTP requests served", m.Requests.Load())
		writeMetric(w, "http_request_errors_total", "counter", "HTTP requests answered with an error status", m.RequestErrors.Load())

		writeMetric(w, "graph_writes_total", "counter", "Graph write operations", m.GraphWrites.Load())
		writeMetric(w, "graph_write_errors_total", "counter", "Graph write failures", m.GraphWriteErrors.Load())

		m.cacheMu.RLock()
		cache := m.cache
		m.cacheMu.RUnlock()
		if cache != nil {
			stats := cache.Stats()
			writeMetric(w, "query_cache_entries", "gauge", "Cached graph query results", stats.Size)
			writeMetric(w, "query_cache_hits_total", "counter", "Graph query cache hits", stats.Hits)
			writeMetric(w, "query_cache_misses_total", "counter", "Graph query cache misses", stats.Misses)
		}
	}
}
