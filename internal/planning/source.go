package planning

import "context"

// FactSource supplies raw dependency facts for a repository set.
// Implementations may fail; the engine degrades rather than aborting.
type FactSource interface {
	DependencyEdges(ctx context.Context, repos []string) ([]RawRecord, error)
	SharedArtifacts(ctx context.Context, repos []string) ([]RawRecord, error)
	CategoryCount(ctx context.Context, category Category, repos []string) (int, error)
}

// EntitySource optionally supplies inferred domain entities. A FactSource
// that also implements it is used for API suggestions.
type EntitySource interface {
	InferredEntities(ctx context.Context, repos []string) ([]Entity, error)
}

// CoverageSource optionally reports how many of the repositories are indexed.
type CoverageSource interface {
	IndexedCount(ctx context.Context, repos []string) (int, error)
}

// ComplexitySource optionally reports average cyclomatic complexity.
type ComplexitySource interface {
	AverageCyclomatic(ctx context.Context, repos []string) (float64, error)
}
