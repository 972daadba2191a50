package planning

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Accepted key spellings, in lookup priority order.
var (
	fromKeys   = []string{"from_repo", "source_repo", "source", "from"}
	toKeys     = []string{"to_repo", "target_repo", "target", "to"}
	weightKeys = []string{"weight", "count", "dependency_count"}
	typesKeys  = []string{"types", "edge_types"}

	artifactNameKeys  = []string{"artifact_name", "name", "artifact", "table"}
	artifactReposKeys = []string{"repos", "repositories", "referenced_by"}
	artifactTypeKeys  = []string{"type", "artifact_type", "kind"}
)

const defaultArtifactType = "resource"

// NormalizeEdges converts raw edge records into Edges. Records without
// both endpoints, or pointing at themselves, are dropped.
func NormalizeEdges(records []RawRecord) []Edge {
	edges := make([]Edge, 0, len(records))
	for _, r := range records {
		from := lookupString(r, fromKeys)
		to := lookupString(r, toKeys)
		if from == "" || to == "" || from == to {
			continue
		}
		edges = append(edges, Edge{
			FromRepo: from,
			ToRepo:   to,
			Weight:   coerceWeight(lookup(r, weightKeys)),
			Types:    coerceStrings(lookup(r, typesKeys)),
		})
	}
	return edges
}

// NormalizeArtifacts converts raw artifact records into Artifacts. An
// artifact referenced by fewer than two distinct repositories is not
// shared and is dropped.
func NormalizeArtifacts(records []RawRecord) []Artifact {
	artifacts := make([]Artifact, 0, len(records))
	for _, r := range records {
		name := lookupString(r, artifactNameKeys)
		if name == "" {
			continue
		}
		repos := coerceStrings(lookup(r, artifactReposKeys))
		if len(repos) < 2 {
			continue
		}
		kind := lookupString(r, artifactTypeKeys)
		if kind == "" {
			kind = defaultArtifactType
		}
		artifacts = append(artifacts, Artifact{Name: name, Repos: repos, Type: kind})
	}
	return artifacts
}

// NormalizeRepositories trims names, drops blanks and duplicates, and keeps
// the caller's order.
func NormalizeRepositories(repos []string) []string {
	seen := make(map[string]bool, len(repos))
	out := make([]string, 0, len(repos))
	for _, r := range repos {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// EdgeEndpoints returns the endpoints named by a raw edge record, with ""
// for a missing side.
func EdgeEndpoints(r RawRecord) (from, to string) {
	return lookupString(r, fromKeys), lookupString(r, toKeys)
}

// RestrictArtifact returns a copy of a raw artifact record whose
// repository list only names repositories accepted by keep.
func RestrictArtifact(r RawRecord, keep func(string) bool) RawRecord {
	out := make(RawRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	for _, k := range artifactReposKeys {
		delete(out, k)
	}
	repos := make([]string, 0)
	for _, repo := range coerceStrings(lookup(r, artifactReposKeys)) {
		if keep(repo) {
			repos = append(repos, repo)
		}
	}
	out[artifactReposKeys[0]] = repos
	return out
}

func lookup(r RawRecord, keys []string) any {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func lookupString(r RawRecord, keys []string) string {
	for _, k := range keys {
		if s, ok := r[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func coerceWeight(v any) float64 {
	const fallback = 1.0
	var w float64
	switch n := v.(type) {
	case float64:
		w = n
	case float32:
		w = float64(n)
	case int:
		w = float64(n)
	case int32:
		w = float64(n)
	case int64:
		w = float64(n)
	case uint:
		w = float64(n)
	case uint32:
		w = float64(n)
	case uint64:
		w = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return fallback
		}
		w = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return fallback
		}
		w = f
	default:
		return fallback
	}
	if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
		return fallback
	}
	return w
}

// coerceStrings turns a list or scalar into a deduplicated string list.
func coerceStrings(v any) []string {
	var items []string
	switch s := v.(type) {
	case nil:
	case []string:
		items = s
	case []any:
		for _, item := range s {
			if item == nil {
				continue
			}
			if str, ok := item.(string); ok {
				items = append(items, str)
			} else {
				items = append(items, fmt.Sprint(item))
			}
		}
	case string:
		items = []string{s}
	default:
		items = []string{fmt.Sprint(s)}
	}

	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
