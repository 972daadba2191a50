package planning

import "sort"

// SequenceSlices orders slices so that for every cross-slice edge A -> B,
// A comes before B. Among ready slices the lowest (risk, effort, name)
// goes first. Slices caught in a cycle never become ready; they are
// appended in (risk, effort, name) order and also returned as cyclic.
func SequenceSlices(slices []Slice, edges []Edge) (sequence, cyclic []string) {
	owner := make(map[string]string)
	byName := make(map[string]Slice, len(slices))
	for _, s := range slices {
		byName[s.Name] = s
		for _, r := range s.Repos {
			owner[r] = s.Name
		}
	}

	successors := make(map[string][]string, len(slices))
	inDegree := make(map[string]int, len(slices))
	seen := make(map[[2]string]bool)
	for _, e := range edges {
		from, okFrom := owner[e.FromRepo]
		to, okTo := owner[e.ToRepo]
		if !okFrom || !okTo || from == to {
			continue
		}
		key := [2]string{from, to}
		if seen[key] {
			continue
		}
		seen[key] = true
		successors[from] = append(successors[from], to)
		inDegree[to]++
	}

	less := func(names []string) func(i, j int) bool {
		return func(i, j int) bool {
			a, b := byName[names[i]], byName[names[j]]
			if a.Risk != b.Risk {
				return a.Risk < b.Risk
			}
			if a.Effort != b.Effort {
				return a.Effort < b.Effort
			}
			return a.Name < b.Name
		}
	}

	var frontier []string
	for _, s := range slices {
		if inDegree[s.Name] == 0 {
			frontier = append(frontier, s.Name)
		}
	}

	placed := make(map[string]bool, len(slices))
	sequence = make([]string, 0, len(slices))
	for len(frontier) > 0 {
		sort.Slice(frontier, less(frontier))
		current := frontier[0]
		frontier = frontier[1:]
		sequence = append(sequence, current)
		placed[current] = true

		for _, next := range successors[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				frontier = append(frontier, next)
			}
		}
	}

	for _, s := range slices {
		if !placed[s.Name] {
			cyclic = append(cyclic, s.Name)
		}
	}
	sort.Slice(cyclic, less(cyclic))
	return append(sequence, cyclic...), cyclic
}
