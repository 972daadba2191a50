package planning

import (
	"context"
	"sync/atomic"
)

// fakeSource is an in-memory FactSource.
type fakeSource struct {
	edges        []RawRecord
	edgesErr     error
	artifacts    []RawRecord
	artifactsErr error
	counts       map[Category]int
	countErr     map[Category]error
	panicOn      Category

	calls atomic.Int32
}

func (f *fakeSource) DependencyEdges(ctx context.Context, repos []string) ([]RawRecord, error) {
	f.calls.Add(1)
	return f.edges, f.edgesErr
}

func (f *fakeSource) SharedArtifacts(ctx context.Context, repos []string) ([]RawRecord, error) {
	f.calls.Add(1)
	return f.artifacts, f.artifactsErr
}

func (f *fakeSource) CategoryCount(ctx context.Context, category Category, repos []string) (int, error) {
	f.calls.Add(1)
	if f.panicOn != "" && category == f.panicOn {
		panic("count exploded")
	}
	if err := f.countErr[category]; err != nil {
		return 0, err
	}
	return f.counts[category], nil
}

// fullSource adds the optional collaborators.
type fullSource struct {
	*fakeSource
	entities    []Entity
	entitiesErr error
	indexed     int
	cyclomatic  float64
}

func (f *fullSource) InferredEntities(ctx context.Context, repos []string) ([]Entity, error) {
	return f.entities, f.entitiesErr
}

func (f *fullSource) IndexedCount(ctx context.Context, repos []string) (int, error) {
	return f.indexed, nil
}

func (f *fullSource) AverageCyclomatic(ctx context.Context, repos []string) (float64, error) {
	return f.cyclomatic, nil
}

func edge(from, to string, weight float64) RawRecord {
	return RawRecord{"from_repo": from, "to_repo": to, "weight": weight}
}
