package planning

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	maxCouplingIndex   = 100.0
	hotspotLimit       = 5
	highSeverityWeight = 5.0
)

// CouplingIndex is the total edge weight capped at 100.
func CouplingIndex(edges []Edge) float64 {
	sum := 0.0
	for _, e := range edges {
		sum += e.Weight
	}
	return math.Min(maxCouplingIndex, sum)
}

// Hotspots ranks the heaviest edges and the most widely shared artifacts.
// Equal scores keep input order, so the list is reproducible.
func Hotspots(edges []Edge, artifacts []Artifact) []Hotspot {
	byWeight := make([]Edge, len(edges))
	copy(byWeight, edges)
	sort.SliceStable(byWeight, func(i, j int) bool {
		return byWeight[i].Weight > byWeight[j].Weight
	})

	byReach := make([]Artifact, len(artifacts))
	copy(byReach, artifacts)
	sort.SliceStable(byReach, func(i, j int) bool {
		return len(byReach[i].Repos) > len(byReach[j].Repos)
	})

	hotspots := make([]Hotspot, 0, 2*hotspotLimit)
	for _, e := range byWeight[:min(hotspotLimit, len(byWeight))] {
		severity := SeverityMedium
		if e.Weight >= highSeverityWeight {
			severity = SeverityHigh
		}
		reason := fmt.Sprintf("%s depends on %s with weight %g", e.FromRepo, e.ToRepo, e.Weight)
		if len(e.Types) > 0 {
			reason += fmt.Sprintf(" (%s)", strings.Join(e.Types, ", "))
		}
		hotspots = append(hotspots, Hotspot{
			Kind:     HotspotDependency,
			Label:    e.FromRepo + " -> " + e.ToRepo,
			Repos:    []string{e.FromRepo, e.ToRepo},
			Severity: severity,
			Reason:   reason,
			Score:    e.Weight,
		})
	}
	for _, a := range byReach[:min(hotspotLimit, len(byReach))] {
		hotspots = append(hotspots, Hotspot{
			Kind:     HotspotArtifact,
			Label:    strings.Join(a.Repos, ", "),
			Repos:    append([]string(nil), a.Repos...),
			Severity: SeverityMedium,
			Reason:   fmt.Sprintf("%s %q is shared by %d repositories", a.Type, a.Name, len(a.Repos)),
			Score:    float64(len(a.Repos)),
		})
	}
	return hotspots
}
