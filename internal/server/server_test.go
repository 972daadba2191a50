package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/mplan/internal/facts"
	"github.com/joss/mplan/internal/health"
	"github.com/joss/mplan/internal/metrics"
	"github.com/joss/mplan/internal/planning"
	"github.com/joss/mplan/internal/repos"
	"github.com/joss/mplan/internal/store"
)

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, *metrics.Metrics) {
	t.Helper()
	b, err := facts.Load(filepath.Join("..", "facts", "testdata", "shop.yaml"))
	require.NoError(t, err)

	m := metrics.New()
	engine := planning.NewEngine(b, planning.WithObserver(m))
	opts = append([]Option{WithMetrics(m), WithLister(repos.Static(b.Known()))}, opts...)
	ts := httptest.NewServer(New(":0", engine, opts...).Handler())
	t.Cleanup(ts.Close)
	return ts, m
}

func post(t *testing.T, url, body string) (*http.Response, Response) {
	t.Helper()
	resp, err := http.Post(url+"/v1/plan", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func get(t *testing.T, url string) (*http.Response, Response) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestHealthDetail(t *testing.T) {
	ts, _ := newTestServer(t, WithHealth(health.NewChecker(health.PingCheck("graph", true, nil))))
	resp, err := http.Get(ts.URL + "/health/detail")
	require.NoError(t, err)
	defer resp.Body.Close()

	var status health.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, health.Degraded, status.Status)
	assert.Equal(t, health.StatusError, status.Components["graph"].Status)
}

func TestPlan_Success(t *testing.T) {
	ts, m := newTestServer(t)

	resp, out := post(t, ts.URL, `{"repositories":["storefront","checkout","billing"]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", out.Status)
	assert.NotEmpty(t, out.RequestID)
	assert.Equal(t, out.RequestID, resp.Header.Get("X-Request-ID"))
	require.NotNil(t, out.Plan)
	assert.Equal(t, []string{"storefront", "checkout", "billing"}, out.Plan.Scope.Repositories)
	assert.Empty(t, out.PlanID)

	assert.Equal(t, int64(1), m.PlansBuilt.Load())
	assert.Equal(t, int64(1), m.Requests.Load())
}

func TestPlan_RequestIDHeader(t *testing.T) {
	ts, _ := newTestServer(t)
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/plan", strings.NewReader(`{"repositories":["billing"]}`))
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "req-42", out.RequestID)
}

func TestPlan_GlobExpansion(t *testing.T) {
	ts, _ := newTestServer(t)
	_, out := post(t, ts.URL, `{"repositories":["c*"]}`)
	require.NotNil(t, out.Plan)
	assert.Equal(t, []string{"checkout", "catalog"}, out.Plan.Scope.Repositories)
}

func TestPlan_Errors(t *testing.T) {
	ts, m := newTestServer(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", `{"repositories":[]}`, "at least one repository"},
		{"blank names", `{"repositories":["  "]}`, "at least one repository"},
		{"malformed", `{"repositories":`, "invalid request body"},
		{"bad pattern", `{"repositories":["[abc"]}`, "pattern"},
		{"save without history", `{"repositories":["billing"],"save":true}`, "history is not enabled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := post(t, ts.URL, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "error", out.Status)
			assert.Contains(t, out.Error, tt.want)
			assert.Nil(t, out.Plan)
		})
	}
	assert.Equal(t, int64(2), m.PlansRejected.Load())
	assert.Equal(t, int64(len(tests)), m.RequestErrors.Load())
}

func TestPlan_WrongMethod(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/plan")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHistoryEndpoints(t *testing.T) {
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "plans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ts, m := newTestServer(t, WithHistory(db))

	_, saved := post(t, ts.URL, `{"repositories":["checkout","billing"],"save":true}`)
	require.Equal(t, "success", saved.Status)
	require.Len(t, saved.PlanID, 26)
	assert.Equal(t, int64(1), m.HistorySaves.Load())

	resp, out := get(t, ts.URL+"/v1/plans/"+saved.PlanID)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, out.Record)
	require.NotNil(t, out.Record.Plan)
	assert.Equal(t, []string{"checkout", "billing"}, out.Record.Plan.Scope.Repositories)

	_, out = get(t, ts.URL+"/v1/plans")
	assert.Len(t, out.Records, 1)
	_, out = get(t, ts.URL+"/v1/plans?repository=storefront")
	assert.Empty(t, out.Records)

	resp, _ = get(t, ts.URL+"/v1/plans/not-a-ulid")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = get(t, ts.URL+"/v1/plans/01ARZ3NDEKTSV4RRFFQ69G5FAV")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHistoryDisabled(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, out := get(t, ts.URL+"/v1/plans")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "error", out.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	post(t, ts.URL, `{"repositories":["billing"]}`)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "mplan_plans_built_total 1")
	assert.Contains(t, string(body), "mplan_http_requests_total 1")
}

type panicBuilder struct{}

func (panicBuilder) Build(context.Context, []string) (*planning.Plan, error) {
	panic("boom")
}

func TestPanicRecovered(t *testing.T) {
	ts := httptest.NewServer(New(":0", panicBuilder{}, WithMetrics(metrics.New())).Handler())
	defer ts.Close()

	resp, out := post(t, ts.URL, `{"repositories":["a"]}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal error", out.Error)
}

func TestStartStop(t *testing.T) {
	s := New("127.0.0.1:0", panicBuilder{}, WithMetrics(metrics.New()))
	addr, err := s.Start()
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
