package planning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/mplan/internal/logging"
)

var fixedClock = func() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestBuild_EmptyRepositories(t *testing.T) {
	src := &fakeSource{}
	engine := NewEngine(src)

	for _, repos := range [][]string{nil, {}, {"", "  "}} {
		plan, err := engine.Build(context.Background(), repos)
		require.Error(t, err)
		assert.Nil(t, plan)
		assert.True(t, errors.Is(err, ErrNoRepositories))
		assert.True(t, IsValidation(err))
	}
	assert.Zero(t, src.calls.Load(), "no collaborator call before validation")
}

func TestBuild_ReciprocalPair(t *testing.T) {
	src := &fakeSource{
		edges: []RawRecord{edge("repoA", "repoB", 3), edge("repoB", "repoA", 1)},
	}
	plan, err := NewEngine(src, WithClock(fixedClock)).Build(context.Background(), []string{"repoA", "repoB"})
	require.NoError(t, err)

	require.Len(t, plan.Slices.Items, 1)
	assert.Equal(t, []string{"repoA", "repoB"}, plan.Slices.Items[0].Repos)
	assert.Equal(t, 4.0, plan.Summary.Complexity.CouplingIndex)
	assert.Equal(t, []string{"slice-1"}, plan.Slices.Sequence)
	assert.Equal(t, 2, plan.Summary.Complexity.Hotspots)
	assert.Equal(t, "2026-03-01T12:00:00Z", plan.Diagnostics.GeneratedAt)
	assert.True(t, plan.Diagnostics.DataSources.Graph)
	assert.False(t, plan.Diagnostics.DataSources.Entities)
	assert.Empty(t, plan.Diagnostics.Degraded)
}

func TestBuild_NoEdges(t *testing.T) {
	plan, err := NewEngine(&fakeSource{}).Build(context.Background(), []string{"x", "y", "z"})
	require.NoError(t, err)

	require.Len(t, plan.Slices.Items, 3)
	assert.Equal(t, 0.0, plan.Summary.Complexity.CouplingIndex)
	assert.ElementsMatch(t, []string{"slice-1", "slice-2", "slice-3"}, plan.Slices.Sequence)
	for _, s := range plan.Slices.Items {
		assert.Equal(t, 1, s.Effort)
		assert.Equal(t, 1, s.Risk)
	}
	assert.Equal(t, 1.0, plan.Summary.RiskScore)
	assert.Equal(t, 1.0, plan.Summary.EffortScore)
}

func TestBuild_SingleRepoArtifactDropped(t *testing.T) {
	src := &fakeSource{
		artifacts: []RawRecord{
			{"artifact_name": "audit_log", "repos": []any{"a"}, "type": "table"},
			{"artifact_name": "orders", "repos": []any{"a", "b"}, "type": "table"},
		},
	}
	plan, err := NewEngine(src).Build(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	require.Len(t, plan.CrossRepo.SharedArtifacts, 1)
	assert.Equal(t, "orders", plan.CrossRepo.SharedArtifacts[0].Name)
}

func TestBuild_EntityInferenceFails(t *testing.T) {
	src := &fullSource{fakeSource: &fakeSource{}, entitiesErr: errors.New("vector store down")}
	plan, err := NewEngine(src).Build(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.Equal(t, []string{"Entity"}, plan.GraphQL.RecommendedTypes)
	assert.False(t, plan.Diagnostics.DataSources.Entities)
	assert.Contains(t, plan.Diagnostics.Degraded, "entities")
}

func TestBuild_OptionalSources(t *testing.T) {
	src := &fullSource{
		fakeSource: &fakeSource{},
		entities:   []Entity{{Name: "invoice"}},
		indexed:    7,
		cyclomatic: 4.25,
	}
	plan, err := NewEngine(src).Build(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Invoice"}, plan.GraphQL.RecommendedTypes)
	assert.True(t, plan.Diagnostics.DataSources.Entities)
	assert.Equal(t, Coverage{IndexedCount: 2, TotalRepos: 2}, plan.Scope.Coverage, "indexed count capped")
	assert.Equal(t, 4.25, plan.Summary.Complexity.AvgCyclomatic)
}

func TestBuild_EdgeSourceFails(t *testing.T) {
	src := &fakeSource{
		edgesErr:  errors.New("connection refused"),
		artifacts: []RawRecord{{"artifact_name": "orders", "repos": []any{"a", "b"}}},
	}
	plan, err := NewEngine(src).Build(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Empty(t, plan.CrossRepo.Dependencies)
	assert.NotNil(t, plan.CrossRepo.Dependencies)
	assert.Len(t, plan.CrossRepo.SharedArtifacts, 1)
	assert.False(t, plan.Diagnostics.DataSources.Graph)
	assert.Equal(t, []string{"edges"}, plan.Diagnostics.Degraded)
	assert.Len(t, plan.Slices.Items, 2)
}

func TestBuild_CountsFailSoft(t *testing.T) {
	src := &fakeSource{
		counts: map[Category]int{
			CategoryActions:    12,
			CategoryForms:      -3,
			CategoryServices:   4,
			CategoryDataModels: 9,
		},
		countErr: map[Category]error{CategoryInterfaces: errors.New("timeout")},
		panicOn:  CategoryPageTemplates,
	}
	plan, err := NewEngine(src).Build(context.Background(), []string{"a"})
	require.NoError(t, err)

	assert.Equal(t, Totals{Actions: 12, Forms: 0, PageTemplates: 0, Services: 4, Interfaces: 0, DataModels: 9}, plan.Summary.Totals)
	assert.ElementsMatch(t, []string{"count:page_templates", "count:interfaces"}, plan.Diagnostics.Degraded)
	assert.True(t, plan.Diagnostics.DataSources.Graph)
}

func TestBuild_NilSource(t *testing.T) {
	plan, err := NewEngine(nil).Build(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.False(t, plan.Diagnostics.DataSources.Graph)
	assert.Len(t, plan.Slices.Items, 2)
	assert.Equal(t, []string{"Entity"}, plan.GraphQL.RecommendedTypes)
}

func TestBuild_CancelledContextDegrades(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeSource{edges: []RawRecord{edge("a", "b", 1)}}
	plan, err := NewEngine(src).Build(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Empty(t, plan.CrossRepo.Dependencies)
	assert.Zero(t, src.calls.Load())
}

func TestBuild_CyclicSlicesFallBack(t *testing.T) {
	var logs bytes.Buffer
	src := &fakeSource{edges: []RawRecord{edge("a", "b", 1), edge("b", "a", 1)}}
	engine := NewEngine(src,
		WithMinClusterWeight(2),
		WithLogger(logging.NewWithWriter("planning", &logs, logging.LevelWarn)),
	)

	plan, err := engine.Build(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	require.Len(t, plan.Slices.Items, 2)
	assert.Equal(t, []string{"slice-1", "slice-2"}, plan.Slices.Sequence)
	assert.Contains(t, logs.String(), "slice_cycle_fallback")
}

func TestBuild_Deterministic(t *testing.T) {
	src := &fakeSource{
		edges: []RawRecord{
			edge("svc-a", "svc-b", 2), edge("svc-c", "svc-d", 6), edge("svc-e", "svc-a", 1),
			{"source": "svc-f", "target": "svc-g", "count": "3", "types": "grpc"},
		},
		artifacts: []RawRecord{
			{"artifact_name": "users", "repos": []any{"svc-a", "svc-c", "svc-f"}, "type": "table"},
			{"name": "FEATURE_X", "repositories": []any{"svc-b", "svc-g"}, "kind": "config"},
		},
		counts: map[Category]int{CategoryServices: 7},
	}
	repos := []string{"svc-a", "svc-b", "svc-c", "svc-d", "svc-e", "svc-f", "svc-g", "svc-h"}
	engine := NewEngine(src, WithClock(fixedClock))

	first, err := engine.Build(context.Background(), repos)
	require.NoError(t, err)
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := engine.Build(context.Background(), repos)
		require.NoError(t, err)
		againJSON, err := json.Marshal(again)
		require.NoError(t, err)
		assert.JSONEq(t, string(firstJSON), string(againJSON))
	}
}

func TestBuild_Invariants(t *testing.T) {
	src := &fakeSource{
		edges: []RawRecord{
			edge("a", "b", 40), edge("b", "c", 50), edge("d", "e", 30),
			edge("f", "outside", 2), edge("outside", "g", 9),
		},
		artifacts: []RawRecord{{"artifact_name": "t", "repos": []any{"a", "d", "g"}}},
	}
	repos := []string{"a", "b", "c", "d", "e", "f", "g"}
	plan, err := NewEngine(src).Build(context.Background(), repos)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, plan.Summary.Complexity.CouplingIndex, 0.0)
	assert.LessOrEqual(t, plan.Summary.Complexity.CouplingIndex, 100.0)
	assert.LessOrEqual(t, len(plan.CrossRepo.Hotspots), 10)

	covered := map[string]bool{}
	for _, s := range plan.Slices.Items {
		assert.NotEmpty(t, s.Repos)
		assert.GreaterOrEqual(t, s.Effort, 1)
		assert.LessOrEqual(t, s.Effort, 5)
		assert.GreaterOrEqual(t, s.Risk, 1)
		assert.LessOrEqual(t, s.Risk, 5)
		for _, r := range s.Repos {
			assert.False(t, covered[r], "repo %s in two slices", r)
			covered[r] = true
		}
	}
	assert.Len(t, covered, len(repos))
	assert.Len(t, plan.Slices.Sequence, len(plan.Slices.Items))
	assert.Len(t, plan.Roadmap.Steps, len(plan.Slices.Items))
}

func TestBuild_ConcurrentCalls(t *testing.T) {
	src := &fakeSource{edges: []RawRecord{edge("r0", "r1", 1), edge("r2", "r3", 1)}}
	engine := NewEngine(src)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			repos := []string{"r0", "r1", "r2", "r3", fmt.Sprintf("extra-%d", n)}
			plan, err := engine.Build(context.Background(), repos)
			if err != nil {
				errs <- err
				return
			}
			if len(plan.Slices.Items) != 3 {
				errs <- fmt.Errorf("run %d: expected 3 slices, got %d", n, len(plan.Slices.Items))
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

type countingObserver struct {
	mu       sync.Mutex
	built    []BuildStats
	rejected int
}

func (o *countingObserver) PlanBuilt(s BuildStats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.built = append(o.built, s)
}

func (o *countingObserver) PlanRejected() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected++
}

func TestBuild_Observer(t *testing.T) {
	obs := &countingObserver{}
	src := &fakeSource{
		edges:    []RawRecord{edge("a", "b", 1), edge("b", "a", 1)},
		countErr: map[Category]error{CategoryForms: errors.New("timeout")},
	}
	engine := NewEngine(src, WithObserver(obs), WithMinClusterWeight(2))

	_, err := engine.Build(context.Background(), nil)
	require.Error(t, err)
	_, err = engine.Build(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, 1, obs.rejected)
	require.Len(t, obs.built, 1)
	assert.Equal(t, 2, obs.built[0].Slices)
	assert.Equal(t, 1, obs.built[0].Degraded)
	assert.Equal(t, 2, obs.built[0].Cyclic)
}

func TestBuild_DeriveStagePanicsFallBack(t *testing.T) {
	var logs bytes.Buffer
	src := &fullSource{
		fakeSource: &fakeSource{edges: []RawRecord{edge("a", "b", 2)}},
		entities:   []Entity{{Name: "Invoice"}},
	}
	engine := NewEngine(src, WithLogger(logging.NewWithWriter("planning", &logs, logging.LevelWarn)))
	engine.deriveGraphQL = func(Outcome[[]Entity]) GraphQL { panic("bad entity") }
	engine.deriveRoadmap = func([]Slice, []string) Roadmap { panic("bad sequence") }

	plan, err := engine.Build(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Entity"}, plan.GraphQL.RecommendedTypes)
	require.Len(t, plan.GraphQL.Notes, 1)
	assert.Equal(t, DefaultPhases(), plan.Roadmap.Phases)
	assert.Empty(t, plan.Roadmap.Steps)
	assert.NotEmpty(t, plan.Slices.Sequence)
	assert.Contains(t, logs.String(), "panic_recovered")
}
