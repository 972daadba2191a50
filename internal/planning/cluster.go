package planning

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	minScore = 1
	maxScore = 5
)

// repoStats holds the per-repository inputs of the slice heuristics.
type repoStats struct {
	inbound  float64
	outbound float64
	shared   int
}

// ClusterSlices partitions repos into weakly-connected components of the
// dependency graph. Traversal follows the order of repos, so identical
// input yields identical slices. Every repository lands in exactly one
// slice; isolated repositories become singletons.
//
// Edges lighter than minWeight, and edges leaving the repository set, do
// not join components but still feed the scores and dependencies.
func ClusterSlices(repos []string, edges []Edge, artifacts []Artifact, minWeight float64) []Slice {
	position := make(map[string]int, len(repos))
	for i, r := range repos {
		position[r] = i
	}

	adjacency := make(map[string][]string, len(repos))
	stats := make(map[string]*repoStats, len(repos))
	statsFor := func(repo string) *repoStats {
		s, ok := stats[repo]
		if !ok {
			s = &repoStats{}
			stats[repo] = s
		}
		return s
	}
	for _, e := range edges {
		statsFor(e.FromRepo).outbound += e.Weight
		statsFor(e.ToRepo).inbound += e.Weight

		_, fromIn := position[e.FromRepo]
		_, toIn := position[e.ToRepo]
		if fromIn && toIn && e.Weight >= minWeight {
			adjacency[e.FromRepo] = append(adjacency[e.FromRepo], e.ToRepo)
			adjacency[e.ToRepo] = append(adjacency[e.ToRepo], e.FromRepo)
		}
	}
	for _, a := range artifacts {
		for _, r := range a.Repos {
			statsFor(r).shared++
		}
	}

	visited := make(map[string]bool, len(repos))
	var slices []Slice
	for _, start := range repos {
		if visited[start] {
			continue
		}
		visited[start] = true
		component := []string{start}
		for queue := []string{start}; len(queue) > 0; {
			current := queue[0]
			queue = queue[1:]
			for _, next := range adjacency[current] {
				if visited[next] {
					continue
				}
				visited[next] = true
				component = append(component, next)
				queue = append(queue, next)
			}
		}
		sort.Slice(component, func(i, j int) bool {
			return position[component[i]] < position[component[j]]
		})

		name := fmt.Sprintf("slice-%d", len(slices)+1)
		slices = append(slices, buildSlice(name, component, edges, stats))
	}
	return slices
}

func buildSlice(name string, members []string, edges []Edge, stats map[string]*repoStats) Slice {
	inSlice := make(map[string]bool, len(members))
	for _, m := range members {
		inSlice[m] = true
	}

	var inbound, outbound float64
	shared := 0
	for _, m := range members {
		if s, ok := stats[m]; ok {
			inbound += s.inbound
			outbound += s.outbound
			shared += s.shared
		}
	}

	deps := make(map[string]bool)
	features := make(map[string]bool)
	internal := 0
	for _, e := range edges {
		fromIn, toIn := inSlice[e.FromRepo], inSlice[e.ToRepo]
		if !fromIn && !toIn {
			continue
		}
		for _, t := range e.Types {
			features[t] = true
		}
		switch {
		case fromIn && toIn:
			internal++
		case toIn:
			deps[e.FromRepo] = true
		}
	}

	size := float64(len(members))
	effort := clampScore(math.Round((size + inbound/size) / 2))
	risk := clampScore(math.Round((float64(shared) + outbound/size) / 3))

	return Slice{
		Name:         name,
		Repos:        members,
		Features:     sortedKeys(features),
		Dependencies: sortedKeys(deps),
		Effort:       effort,
		Risk:         risk,
		Rationale:    rationale(members, internal, len(deps), shared),
	}
}

func rationale(members []string, internal, deps, shared int) string {
	var parts []string
	if len(members) == 1 {
		parts = append(parts, fmt.Sprintf("%s has no coupling to the other selected repositories", members[0]))
	} else {
		parts = append(parts, fmt.Sprintf("%d repositories (%s) connected by %d internal dependencies",
			len(members), strings.Join(members, ", "), internal))
	}
	if deps > 0 {
		parts = append(parts, fmt.Sprintf("%d external repositories depend on it", deps))
	}
	if shared > 0 {
		parts = append(parts, fmt.Sprintf("%d shared artifact references", shared))
	}
	return strings.Join(parts, "; ")
}

func clampScore(v float64) int {
	return int(math.Max(minScore, math.Min(maxScore, v)))
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
