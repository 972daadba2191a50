package planning

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/joss/mplan/internal/logging"
)

// ErrSourceUnavailable marks a collaborator that was not configured.
var ErrSourceUnavailable = errors.New("data source unavailable")

// Engine builds migration plans. It keeps no state between Build calls and
// is safe for concurrent use.
type Engine struct {
	facts      FactSource
	entities   EntitySource
	coverage   CoverageSource
	complexity ComplexitySource

	logger           *logging.Logger
	observer         Observer
	now              func() time.Time
	minClusterWeight float64

	deriveGraphQL func(Outcome[[]Entity]) GraphQL
	deriveRoadmap func([]Slice, []string) Roadmap
}

// BuildStats summarises one successful Build for an Observer.
type BuildStats struct {
	Duration time.Duration
	Slices   int
	Degraded int
	Cyclic   int
}

// Observer is told about every Build outcome. Implementations must be safe
// for concurrent use.
type Observer interface {
	PlanBuilt(stats BuildStats)
	PlanRejected()
}

type nopObserver struct{}

func (nopObserver) PlanBuilt(BuildStats) {}
func (nopObserver) PlanRejected()        {}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the clock used for diagnostics.generated_at.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithObserver reports build outcomes to o.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithMinClusterWeight keeps edges lighter than w from merging slices.
func WithMinClusterWeight(w float64) Option {
	return func(e *Engine) {
		e.minClusterWeight = math.Max(0, w)
	}
}

// NewEngine creates an engine reading facts from src. Optional
// collaborators are picked up when src also implements EntitySource,
// CoverageSource or ComplexitySource. A nil src plans with no facts.
func NewEngine(src FactSource, opts ...Option) *Engine {
	if src == nil {
		src = unavailableSource{}
	}
	e := &Engine{
		facts:    src,
		logger:   logging.Discard(),
		observer: nopObserver{},
		now:      time.Now,

		deriveGraphQL: DeriveGraphQL,
		deriveRoadmap: DeriveRoadmap,
	}
	if s, ok := src.(EntitySource); ok {
		e.entities = s
	}
	if s, ok := src.(CoverageSource); ok {
		e.coverage = s
	}
	if s, ok := src.(ComplexitySource); ok {
		e.complexity = s
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Build produces a plan for repositories. The only error is a
// *ValidationError for an empty repository set; every collaborator failure
// degrades to empty data recorded in Diagnostics.
func (e *Engine) Build(ctx context.Context, repositories []string) (*Plan, error) {
	repos := NormalizeRepositories(repositories)
	if len(repos) == 0 {
		e.observer.PlanRejected()
		return nil, &ValidationError{Field: "repositories", Err: ErrNoRepositories}
	}
	start := time.Now()
	degraded := make([]string, 0)
	note := func(name string, err error) {
		degraded = append(degraded, name)
		e.logger.Warn("source_degraded", map[string]any{"call": name, "repos": len(repos)}, err)
	}

	edgesOut := fetch(ctx, func(ctx context.Context) ([]RawRecord, error) {
		return e.facts.DependencyEdges(ctx, repos)
	})
	if !edgesOut.OK() {
		note("edges", edgesOut.Err)
	}
	artifactsOut := fetch(ctx, func(ctx context.Context) ([]RawRecord, error) {
		return e.facts.SharedArtifacts(ctx, repos)
	})
	if !artifactsOut.OK() {
		note("artifacts", artifactsOut.Err)
	}
	totals, failed := CountTotals(ctx, e.facts, repos)
	for _, cat := range failed {
		note("count:"+string(cat), nil)
	}

	indexed := 0
	if e.coverage != nil {
		out := fetch(ctx, func(ctx context.Context) (int, error) {
			return e.coverage.IndexedCount(ctx, repos)
		})
		if !out.OK() {
			note("coverage", out.Err)
		}
		indexed = min(max(out.Or(0), 0), len(repos))
	}
	cyclomatic := 0.0
	if e.complexity != nil {
		out := fetch(ctx, func(ctx context.Context) (float64, error) {
			return e.complexity.AverageCyclomatic(ctx, repos)
		})
		if !out.OK() {
			note("complexity", out.Err)
		}
		cyclomatic = math.Max(0, out.Or(0))
	}

	edges := NormalizeEdges(edgesOut.Or(nil))
	artifacts := NormalizeArtifacts(artifactsOut.Or(nil))
	hotspots := Hotspots(edges, artifacts)

	slices := ClusterSlices(repos, edges, artifacts, e.minClusterWeight)
	sequence, cyclic := SequenceSlices(slices, edges)
	if len(cyclic) > 0 {
		e.logger.Warn("slice_cycle_fallback", map[string]any{"slices": cyclic}, nil)
	}

	entitiesOut := Outcome[[]Entity]{Err: ErrSourceUnavailable}
	if e.entities != nil {
		entitiesOut = fetch(ctx, func(ctx context.Context) ([]Entity, error) {
			return e.entities.InferredEntities(ctx, repos)
		})
		if !entitiesOut.OK() {
			note("entities", entitiesOut.Err)
		}
	}
	gql, roadmap := e.derive(entitiesOut, slices, sequence)

	riskScore, effortScore := meanScores(slices)
	plan := &Plan{
		Scope: Scope{
			Repositories: repos,
			Coverage:     Coverage{IndexedCount: indexed, TotalRepos: len(repos)},
		},
		Summary: Summary{
			Totals: totals,
			Complexity: Complexity{
				CouplingIndex: CouplingIndex(edges),
				Hotspots:      len(hotspots),
				AvgCyclomatic: cyclomatic,
			},
			RiskScore:   riskScore,
			EffortScore: effortScore,
		},
		CrossRepo: CrossRepo{
			Dependencies:    edges,
			SharedArtifacts: artifacts,
			Hotspots:        hotspots,
		},
		Slices:  Slices{Items: slices, Sequence: sequence},
		GraphQL: gql,
		Roadmap: roadmap,
		Diagnostics: Diagnostics{
			DataSources: DataSources{
				Graph:    edgesOut.OK() && artifactsOut.OK(),
				Entities: entitiesOut.OK(),
			},
			Degraded:    degraded,
			GeneratedAt: e.now().UTC().Format(time.RFC3339),
		},
	}

	e.observer.PlanBuilt(BuildStats{
		Duration: time.Since(start),
		Slices:   len(slices),
		Degraded: len(degraded),
		Cyclic:   len(cyclic),
	})
	e.logger.TimedEvent("plan_built", start, map[string]any{
		"repos":    len(repos),
		"edges":    len(edges),
		"slices":   len(slices),
		"degraded": len(degraded),
	})
	return plan, nil
}

// derive runs the advisory stage; a panic there yields the defaults.
func (e *Engine) derive(entities Outcome[[]Entity], slices []Slice, sequence []string) (GraphQL, Roadmap) {
	recovery := logging.NewRecoveryHandler("planning.derive", e.logger)

	var gql GraphQL
	if err := recovery.WrapError(func() error {
		gql = e.deriveGraphQL(entities)
		return nil
	}); err != nil {
		gql = defaultGraphQL("API suggestions could not be derived; suggesting a generic Entity type")
	}

	var roadmap Roadmap
	if err := recovery.WrapError(func() error {
		roadmap = e.deriveRoadmap(slices, sequence)
		return nil
	}); err != nil {
		roadmap = Roadmap{Phases: DefaultPhases(), Steps: []Step{}}
	}
	return gql, roadmap
}

func meanScores(slices []Slice) (risk, effort float64) {
	if len(slices) == 0 {
		return 0, 0
	}
	for _, s := range slices {
		risk += float64(s.Risk)
		effort += float64(s.Effort)
	}
	n := float64(len(slices))
	return roundTenth(risk / n), roundTenth(effort / n)
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

type unavailableSource struct{}

func (unavailableSource) DependencyEdges(context.Context, []string) ([]RawRecord, error) {
	return nil, ErrSourceUnavailable
}

func (unavailableSource) SharedArtifacts(context.Context, []string) ([]RawRecord, error) {
	return nil, ErrSourceUnavailable
}

func (unavailableSource) CategoryCount(context.Context, Category, []string) (int, error) {
	return 0, ErrSourceUnavailable
}
