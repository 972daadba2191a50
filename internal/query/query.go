// Package query reads repository facts from the graph database.
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/joss/mplan/internal/graph"
	"github.com/joss/mplan/internal/planning"
)

// Querier answers the planning engine's fact queries with Cypher. It
// implements planning.FactSource, EntitySource, CoverageSource and
// ComplexitySource.
type Querier struct {
	db graph.GraphReader
}

// NewQuerier creates a querier over db.
func NewQuerier(db graph.GraphReader) *Querier {
	return &Querier{db: db}
}

var (
	_ planning.FactSource       = (*Querier)(nil)
	_ planning.EntitySource     = (*Querier)(nil)
	_ planning.CoverageSource   = (*Querier)(nil)
	_ planning.ComplexitySource = (*Querier)(nil)
)

// DependencyEdges returns DEPENDS_ON edges touching any of repos. Edges to
// repositories outside the set are kept; the clusterer treats them as
// external dependencies.
func (q *Querier) DependencyEdges(ctx context.Context, repos []string) ([]planning.RawRecord, error) {
	query := `
		MATCH (a:Repository)-[d:DEPENDS_ON]->(b:Repository)
		WHERE a.name IN $repos OR b.name IN $repos
		RETURN a.name AS from_repo, b.name AS to_repo, d.weight AS weight, d.types AS types
		ORDER BY from_repo, to_repo
	`
	records, err := q.db.Execute(ctx, query, map[string]any{"repos": repos})
	if err != nil {
		return nil, fmt.Errorf("dependency edges: %w", err)
	}
	return toRaw(records), nil
}

// SharedArtifacts returns artifacts referenced by more than one of repos.
func (q *Querier) SharedArtifacts(ctx context.Context, repos []string) ([]planning.RawRecord, error) {
	query := `
		MATCH (r:Repository)-[:REFERENCES]->(a:Artifact)
		WHERE r.name IN $repos
		WITH a, collect(DISTINCT r.name) AS repos
		WHERE size(repos) > 1
		RETURN a.name AS artifact_name, a.type AS type, repos
		ORDER BY artifact_name
	`
	records, err := q.db.Execute(ctx, query, map[string]any{"repos": repos})
	if err != nil {
		return nil, fmt.Errorf("shared artifacts: %w", err)
	}
	return toRaw(records), nil
}

// CategoryCount counts components of one category across repos. A
// component node carrying a count property stands for that many
// components; ingested fact bundles store per-repository totals that way.
func (q *Querier) CategoryCount(ctx context.Context, category planning.Category, repos []string) (int, error) {
	query := `
		MATCH (c:Component {category: $category})-[:IN_REPO]->(r:Repository)
		WHERE r.name IN $repos
		RETURN sum(coalesce(c.count, 1)) AS total
	`
	return q.count(ctx, query, map[string]any{"category": string(category), "repos": repos})
}

// InferredEntities returns the entities defined in repos with their fields.
func (q *Querier) InferredEntities(ctx context.Context, repos []string) ([]planning.Entity, error) {
	query := `
		MATCH (e:Entity)-[:IN_REPO]->(r:Repository)
		WHERE r.name IN $repos
		OPTIONAL MATCH (e)-[:HAS_FIELD]->(f:Field)
		WITH e, collect(DISTINCT {name: f.name, type: f.type}) AS fields
		RETURN e.name AS name, fields
		ORDER BY name
	`
	records, err := q.db.Execute(ctx, query, map[string]any{"repos": repos})
	if err != nil {
		return nil, fmt.Errorf("inferred entities: %w", err)
	}

	entities := make([]planning.Entity, 0, len(records))
	for _, r := range records {
		name := strings.TrimSpace(graph.GetString(r, "name"))
		if name == "" {
			continue
		}
		ent := planning.Entity{Name: name, Fields: []planning.EntityField{}}
		for _, f := range graph.GetMapSlice(r, "fields") {
			field := graph.Record(f)
			// OPTIONAL MATCH with no fields yields one all-null map.
			if fname := graph.GetString(field, "name"); fname != "" {
				ent.Fields = append(ent.Fields, planning.EntityField{Name: fname, Type: graph.GetString(field, "type")})
			}
		}
		entities = append(entities, ent)
	}
	return entities, nil
}

// IndexedCount counts repositories marked as indexed.
func (q *Querier) IndexedCount(ctx context.Context, repos []string) (int, error) {
	query := `
		MATCH (r:Repository)
		WHERE r.name IN $repos AND r.indexed = true
		RETURN count(r) AS total
	`
	return q.count(ctx, query, map[string]any{"repos": repos})
}

// AverageCyclomatic averages Repository.avg_cyclomatic over repos that
// carry it.
func (q *Querier) AverageCyclomatic(ctx context.Context, repos []string) (float64, error) {
	query := `
		MATCH (r:Repository)
		WHERE r.name IN $repos AND r.avg_cyclomatic IS NOT NULL
		RETURN avg(r.avg_cyclomatic) AS avg
	`
	records, err := q.db.Execute(ctx, query, map[string]any{"repos": repos})
	if err != nil {
		return 0, fmt.Errorf("average cyclomatic: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}
	return graph.GetFloat(records[0], "avg"), nil
}

// Repositories lists every known repository name, sorted.
func (q *Querier) Repositories(ctx context.Context) ([]string, error) {
	records, err := q.db.Execute(ctx, `MATCH (r:Repository) RETURN r.name AS name ORDER BY name`, nil)
	if err != nil {
		return nil, fmt.Errorf("repositories: %w", err)
	}
	names := make([]string, 0, len(records))
	for _, r := range records {
		if name := graph.GetString(r, "name"); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// GraphStats summarises what the graph holds.
type GraphStats struct {
	Repositories int `json:"repositories" yaml:"repositories"`
	Dependencies int `json:"dependencies" yaml:"dependencies"`
	Artifacts    int `json:"artifacts" yaml:"artifacts"`
	Components   int `json:"components" yaml:"components"`
	Entities     int `json:"entities" yaml:"entities"`
}

// Stats counts the planning nodes and edges in the graph.
func (q *Querier) Stats(ctx context.Context) (*GraphStats, error) {
	query := `
		OPTIONAL MATCH (r:Repository) WITH count(r) AS repositories
		OPTIONAL MATCH (:Repository)-[d:DEPENDS_ON]->(:Repository) WITH repositories, count(d) AS dependencies
		OPTIONAL MATCH (a:Artifact) WITH repositories, dependencies, count(a) AS artifacts
		OPTIONAL MATCH (c:Component) WITH repositories, dependencies, artifacts, count(c) AS components
		OPTIONAL MATCH (e:Entity)
		RETURN repositories, dependencies, artifacts, components, count(e) AS entities
	`
	records, err := q.db.Execute(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("graph stats: %w", err)
	}
	stats := &GraphStats{}
	if len(records) > 0 {
		r := records[0]
		stats.Repositories = graph.GetInt(r, "repositories")
		stats.Dependencies = graph.GetInt(r, "dependencies")
		stats.Artifacts = graph.GetInt(r, "artifacts")
		stats.Components = graph.GetInt(r, "components")
		stats.Entities = graph.GetInt(r, "entities")
	}
	return stats, nil
}

func (q *Querier) count(ctx context.Context, query string, params map[string]any) (int, error) {
	records, err := q.db.Execute(ctx, query, params)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	return graph.GetInt(records[0], "total"), nil
}

func toRaw(records []graph.Record) []planning.RawRecord {
	out := make([]planning.RawRecord, len(records))
	for i, r := range records {
		out[i] = planning.RawRecord(r)
	}
	return out
}
