// Package facts loads repository fact bundles from YAML or JSON files.
// A Bundle answers the planning engine's fact queries without a graph
// database, and is the input format for graph ingestion.
package facts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joss/mplan/internal/planning"
)

// ErrEmptyBundle is returned for a file that holds no facts at all.
var ErrEmptyBundle = errors.New("fact bundle is empty")

// EntityFact is an inferred entity and the repository defining it. An
// empty Repo applies to every repository.
type EntityFact struct {
	Name   string                 `json:"name" yaml:"name"`
	Repo   string                 `json:"repo,omitempty" yaml:"repo,omitempty"`
	Fields []planning.EntityField `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Bundle is the on-disk fact format. Edge and artifact records stay raw;
// the planning normalizer accepts the same loose key spellings the graph
// queries produce.
//
//	repositories: [billing, payments-api]
//	edges:
//	  - {from_repo: billing, to_repo: payments-api, weight: 3, types: [http]}
//	artifacts:
//	  - {artifact_name: orders, repos: [billing, payments-api], type: table}
//	counts:
//	  billing: {actions: 12, forms: 3}
//	entities:
//	  - {name: invoice, repo: billing, fields: [{name: total, type: decimal}]}
//	indexed: [billing]
//	avg_cyclomatic: {billing: 4.2}
type Bundle struct {
	Repositories  []string                  `json:"repositories" yaml:"repositories"`
	Edges         []planning.RawRecord      `json:"edges" yaml:"edges"`
	Artifacts     []planning.RawRecord      `json:"artifacts" yaml:"artifacts"`
	Counts        map[string]map[string]int `json:"counts" yaml:"counts"`
	Entities      []EntityFact              `json:"entities" yaml:"entities"`
	Indexed       []string                  `json:"indexed" yaml:"indexed"`
	AvgCyclomatic map[string]float64        `json:"avg_cyclomatic" yaml:"avg_cyclomatic"`
}

var (
	_ planning.FactSource       = (*Bundle)(nil)
	_ planning.EntitySource     = (*Bundle)(nil)
	_ planning.CoverageSource   = (*Bundle)(nil)
	_ planning.ComplexitySource = (*Bundle)(nil)
)

// Load reads a bundle from path. JSON files load through the YAML decoder.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fact bundle: %w", err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Parse decodes a bundle from YAML or JSON bytes.
func Parse(data []byte) (*Bundle, error) {
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("unmarshal fact bundle: %w", err)
	}
	if b.empty() {
		return nil, ErrEmptyBundle
	}
	return &b, nil
}

func (b *Bundle) empty() bool {
	return len(b.Repositories) == 0 && len(b.Edges) == 0 && len(b.Artifacts) == 0 &&
		len(b.Counts) == 0 && len(b.Entities) == 0
}

// Known returns every repository the bundle mentions: the declared list
// first, then edge endpoints in file order.
func (b *Bundle) Known() []string {
	names := slices.Clone(b.Repositories)
	for _, e := range b.Edges {
		from, to := planning.EdgeEndpoints(e)
		names = append(names, from, to)
	}
	return planning.NormalizeRepositories(names)
}

// DependencyEdges returns edges with at least one endpoint in repos.
func (b *Bundle) DependencyEdges(ctx context.Context, repos []string) ([]planning.RawRecord, error) {
	in := memberOf(repos)
	out := make([]planning.RawRecord, 0)
	for _, e := range b.Edges {
		from, to := planning.EdgeEndpoints(e)
		if in(from) || in(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

// SharedArtifacts returns artifacts with their repository lists cut down
// to repos.
func (b *Bundle) SharedArtifacts(ctx context.Context, repos []string) ([]planning.RawRecord, error) {
	in := memberOf(repos)
	out := make([]planning.RawRecord, 0)
	for _, a := range b.Artifacts {
		out = append(out, planning.RestrictArtifact(a, in))
	}
	return out, nil
}

// CategoryCount sums a category's per-repository counts over repos.
func (b *Bundle) CategoryCount(ctx context.Context, category planning.Category, repos []string) (int, error) {
	total := 0
	for _, r := range repos {
		total += b.Counts[r][string(category)]
	}
	return total, nil
}

// InferredEntities returns entities defined in repos or in no repository.
func (b *Bundle) InferredEntities(ctx context.Context, repos []string) ([]planning.Entity, error) {
	in := memberOf(repos)
	out := make([]planning.Entity, 0, len(b.Entities))
	for _, e := range b.Entities {
		if strings.TrimSpace(e.Name) == "" || (e.Repo != "" && !in(e.Repo)) {
			continue
		}
		out = append(out, planning.Entity{Name: e.Name, Fields: e.Fields})
	}
	return out, nil
}

// IndexedCount counts repos listed as indexed.
func (b *Bundle) IndexedCount(ctx context.Context, repos []string) (int, error) {
	indexed := memberOf(b.Indexed)
	n := 0
	for _, r := range repos {
		if indexed(r) {
			n++
		}
	}
	return n, nil
}

// AverageCyclomatic averages the values recorded for repos; repos without
// a value are left out.
func (b *Bundle) AverageCyclomatic(ctx context.Context, repos []string) (float64, error) {
	sum, n := 0.0, 0
	for _, r := range repos {
		if v, ok := b.AvgCyclomatic[r]; ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

func memberOf(names []string) func(string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}
