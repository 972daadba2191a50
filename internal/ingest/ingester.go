// Package ingest writes repository fact bundles into the graph.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/joss/mplan/internal/facts"
	"github.com/joss/mplan/internal/graph"
	"github.com/joss/mplan/internal/logging"
	"github.com/joss/mplan/internal/planning"
)

// Ingester builds the planning graph from fact bundles. Every write is a
// MERGE, so ingesting the same bundle twice leaves the graph unchanged.
type Ingester struct {
	db     graph.GraphWriter
	logger *logging.Logger
}

// NewIngester creates an ingester writing to db.
func NewIngester(db graph.GraphWriter, logger *logging.Logger) *Ingester {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Ingester{db: db, logger: logger}
}

// Stats tracks ingestion results.
type Stats struct {
	Repositories int `json:"repositories" yaml:"repositories"`
	Dependencies int `json:"dependencies" yaml:"dependencies"`
	Artifacts    int `json:"artifacts" yaml:"artifacts"`
	Components   int `json:"components" yaml:"components"`
	Entities     int `json:"entities" yaml:"entities"`
	Errors       int `json:"errors" yaml:"errors"`
}

// Ingest writes b into the graph. Individual write failures are counted
// and skipped; the first one is returned once everything else is written.
func (i *Ingester) Ingest(ctx context.Context, b *facts.Bundle) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}
	var firstErr error
	record := func(counter *int, err error) {
		if err == nil {
			*counter++
			return
		}
		stats.Errors++
		if firstErr == nil {
			firstErr = err
		}
		i.logger.Warn("ingest_write_failed", nil, err)
	}

	known := b.Known()
	indexed := make(map[string]bool, len(b.Indexed))
	for _, r := range b.Indexed {
		indexed[r] = true
	}
	for _, repo := range known {
		record(&stats.Repositories, i.storeRepository(ctx, repo, indexed[repo], b.AvgCyclomatic))
	}

	for _, e := range planning.NormalizeEdges(b.Edges) {
		record(&stats.Dependencies, i.storeDependency(ctx, e))
	}
	for _, a := range planning.NormalizeArtifacts(b.Artifacts) {
		record(&stats.Artifacts, i.storeArtifact(ctx, a))
	}

	for _, repo := range sortedRepos(b.Counts) {
		for _, cat := range planning.Categories {
			n, ok := b.Counts[repo][string(cat)]
			if !ok || n <= 0 {
				continue
			}
			record(&stats.Components, i.storeComponents(ctx, repo, cat, n))
		}
	}

	for _, e := range b.Entities {
		repos := []string{e.Repo}
		if e.Repo == "" {
			repos = known
		}
		for _, repo := range repos {
			record(&stats.Entities, i.storeEntity(ctx, repo, e))
		}
	}

	i.logger.TimedEvent("bundle_ingested", start, map[string]any{
		"repositories": stats.Repositories,
		"dependencies": stats.Dependencies,
		"errors":       stats.Errors,
	})
	if firstErr != nil {
		return stats, fmt.Errorf("%d graph writes failed: %w", stats.Errors, firstErr)
	}
	return stats, nil
}

func (i *Ingester) storeRepository(ctx context.Context, repo string, indexed bool, cyclomatic map[string]float64) error {
	params := map[string]any{"name": repo, "indexed": indexed}
	query := `
		MERGE (r:Repository {name: $name})
		SET r.indexed = $indexed
	`
	if cc, ok := cyclomatic[repo]; ok {
		query += `, r.avg_cyclomatic = $cyclomatic`
		params["cyclomatic"] = cc
	}
	return i.db.ExecuteWrite(ctx, query, params)
}

func (i *Ingester) storeDependency(ctx context.Context, e planning.Edge) error {
	query := `
		MERGE (a:Repository {name: $from})
		MERGE (b:Repository {name: $to})
		MERGE (a)-[d:DEPENDS_ON]->(b)
		SET d.weight = $weight, d.types = $types
	`
	return i.db.ExecuteWrite(ctx, query, map[string]any{
		"from":   e.FromRepo,
		"to":     e.ToRepo,
		"weight": e.Weight,
		"types":  e.Types,
	})
}

func (i *Ingester) storeArtifact(ctx context.Context, a planning.Artifact) error {
	query := `
		MERGE (a:Artifact {name: $name})
		SET a.type = $type
		WITH a
		UNWIND $repos AS repo
		MERGE (r:Repository {name: repo})
		MERGE (r)-[:REFERENCES]->(a)
	`
	return i.db.ExecuteWrite(ctx, query, map[string]any{
		"name":  a.Name,
		"type":  a.Type,
		"repos": a.Repos,
	})
}

// storeComponents records a per-repository category total as one
// Component node with a count property.
func (i *Ingester) storeComponents(ctx context.Context, repo string, cat planning.Category, n int) error {
	query := `
		MERGE (r:Repository {name: $repo})
		MERGE (c:Component {key: $key})
		SET c.category = $category, c.count = $count
		MERGE (c)-[:IN_REPO]->(r)
	`
	return i.db.ExecuteWrite(ctx, query, map[string]any{
		"repo":     repo,
		"key":      repo + "/" + string(cat),
		"category": string(cat),
		"count":    n,
	})
}

func (i *Ingester) storeEntity(ctx context.Context, repo string, e facts.EntityFact) error {
	fields := make([]map[string]any, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Name != "" {
			fields = append(fields, map[string]any{"name": f.Name, "type": f.Type})
		}
	}
	query := `
		MERGE (r:Repository {name: $repo})
		MERGE (e:Entity {key: $key})
		SET e.name = $name
		MERGE (e)-[:IN_REPO]->(r)
		WITH e
		UNWIND $fields AS field
		MERGE (f:Field {key: $key + '.' + field.name})
		SET f.name = field.name, f.type = field.type
		MERGE (e)-[:HAS_FIELD]->(f)
	`
	return i.db.ExecuteWrite(ctx, query, map[string]any{
		"repo":   repo,
		"key":    repo + "/" + e.Name,
		"name":   e.Name,
		"fields": fields,
	})
}

func sortedRepos(counts map[string]map[string]int) []string {
	repos := make([]string, 0, len(counts))
	for r := range counts {
		repos = append(repos, r)
	}
	sort.Strings(repos)
	return repos
}
