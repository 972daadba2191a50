package planning

import (
	"fmt"
	"strings"
	"unicode"
)

const genericEntity = "Entity"

// Roadmap phase names, in execution order.
const (
	PhaseDiscovery   = "Discovery Hardening"
	PhaseFirstSlices = "First Slices"
	PhaseParallel    = "Parallel Tracks"
	PhaseCore        = "Core Refactors"
	PhaseCutover     = "Cutover"
)

// parallelRiskCeiling is the highest risk still scheduled as a parallel track.
const parallelRiskCeiling = 2

// DeriveGraphQL suggests API types and operations from inferred entities.
// Without usable entities it falls back to a single generic type.
func DeriveGraphQL(entities Outcome[[]Entity]) GraphQL {
	if !entities.OK() {
		return defaultGraphQL("entity inference unavailable; suggesting a generic Entity type")
	}

	var types []string
	fields := make(map[string][]EntityField)
	for _, ent := range entities.Value {
		name := pascalCase(ent.Name)
		if name == "" {
			continue
		}
		if _, dup := fields[name]; dup {
			fields[name] = append(fields[name], ent.Fields...)
			continue
		}
		types = append(types, name)
		fields[name] = ent.Fields
	}
	if len(types) == 0 {
		return defaultGraphQL("no entities were inferred; suggesting a generic Entity type")
	}

	gql := operationsFor(types)
	gql.SDLPreview = renderSDL(types, fields)
	gql.Notes = []string{
		fmt.Sprintf("%d types inferred from indexed data models", len(types)),
		"suggestions are advisory; review field types before publishing a schema",
	}
	return gql
}

func defaultGraphQL(note string) GraphQL {
	types := []string{genericEntity}
	gql := operationsFor(types)
	gql.SDLPreview = renderSDL(types, nil)
	gql.Notes = []string{note}
	return gql
}

func operationsFor(types []string) GraphQL {
	gql := GraphQL{RecommendedTypes: types}
	for _, t := range types {
		gql.RecommendedQueries = append(gql.RecommendedQueries, "get"+t, "list"+plural(t))
		gql.RecommendedMutations = append(gql.RecommendedMutations, "create"+t, "update"+t, "delete"+t)
	}
	return gql
}

func renderSDL(types []string, fields map[string][]EntityField) string {
	var sb strings.Builder
	for _, t := range types {
		fmt.Fprintf(&sb, "type %s {\n  id: ID!\n", t)
		seen := map[string]bool{"id": true}
		for _, f := range fields[t] {
			name := camelCase(f.Name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			fmt.Fprintf(&sb, "  %s: %s\n", name, scalarFor(f.Type))
		}
		sb.WriteString("}\n\n")
	}

	sb.WriteString("type Query {\n")
	for _, t := range types {
		fmt.Fprintf(&sb, "  get%s(id: ID!): %s\n", t, t)
		fmt.Fprintf(&sb, "  list%s: [%s!]!\n", plural(t), t)
	}
	sb.WriteString("}\n\ntype Mutation {\n")
	for _, t := range types {
		fmt.Fprintf(&sb, "  create%s(input: %sInput!): %s!\n", t, t, t)
		fmt.Fprintf(&sb, "  update%s(id: ID!, input: %sInput!): %s!\n", t, t, t)
		fmt.Fprintf(&sb, "  delete%s(id: ID!): Boolean!\n", t)
	}
	sb.WriteString("}\n")
	return sb.String()
}

func scalarFor(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "int", "integer", "long", "bigint", "smallint", "int32", "int64":
		return "Int"
	case "float", "double", "decimal", "number", "numeric", "float64", "real":
		return "Float"
	case "bool", "boolean":
		return "Boolean"
	case "id", "uuid", "guid":
		return "ID"
	}
	return "String"
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func pascalCase(s string) string {
	var sb strings.Builder
	for _, w := range words(s) {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		sb.WriteString(string(runes))
	}
	out := sb.String()
	if out != "" && unicode.IsDigit([]rune(out)[0]) {
		return "T" + out
	}
	return out
}

func camelCase(s string) string {
	p := pascalCase(s)
	if p == "" {
		return ""
	}
	runes := []rune(p)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

func plural(s string) string {
	lower := strings.ToLower(s)
	switch {
	case strings.HasSuffix(lower, "s"), strings.HasSuffix(lower, "x"),
		strings.HasSuffix(lower, "ch"), strings.HasSuffix(lower, "sh"):
		return s + "es"
	case strings.HasSuffix(lower, "y") && len(lower) > 1 && !strings.ContainsRune("aeiou", rune(lower[len(lower)-2])):
		return s[:len(s)-1] + "ies"
	}
	return s + "s"
}

// DefaultPhases returns the fixed roadmap skeleton.
func DefaultPhases() []Phase {
	return []Phase{
		{
			Name:         PhaseDiscovery,
			Goals:        []string{"Confirm repository inventory and dependency facts", "Close gaps in indexing coverage"},
			ExitCriteria: []string{"All selected repositories indexed", "Hotspots reviewed with owning teams"},
		},
		{
			Name:         PhaseFirstSlices,
			Goals:        []string{"Migrate the lowest-risk slices end to end", "Establish the target API contract"},
			ExitCriteria: []string{"First slice running on the target platform", "Rollback procedure exercised"},
		},
		{
			Name:         PhaseParallel,
			Goals:        []string{"Migrate independent low-risk slices concurrently"},
			ExitCriteria: []string{"Parallel slices cut over without cross-slice regressions"},
		},
		{
			Name:         PhaseCore,
			Goals:        []string{"Refactor high-risk slices and shared artifacts", "Decouple shared data ownership"},
			ExitCriteria: []string{"Shared artifacts owned by a single slice or service", "High-severity hotspots resolved"},
		},
		{
			Name:         PhaseCutover,
			Goals:        []string{"Retire legacy entry points", "Switch remaining traffic to the target platform"},
			ExitCriteria: []string{"Legacy repositories archived", "No traffic on legacy paths"},
		},
	}
}

// DeriveRoadmap schedules slices, in sequence order, into roadmap phases.
func DeriveRoadmap(slices []Slice, sequence []string) Roadmap {
	byName := make(map[string]Slice, len(slices))
	for _, s := range slices {
		byName[s.Name] = s
	}

	steps := make([]Step, 0, len(sequence))
	for i, name := range sequence {
		s, ok := byName[name]
		if !ok {
			continue
		}
		phase := PhaseCore
		switch {
		case i == 0:
			phase = PhaseFirstSlices
		case s.Risk <= parallelRiskCeiling:
			phase = PhaseParallel
		}
		steps = append(steps, Step{
			Order: len(steps) + 1,
			Slice: name,
			Repos: append([]string(nil), s.Repos...),
			Phase: phase,
		})
	}
	return Roadmap{Phases: DefaultPhases(), Steps: steps}
}
