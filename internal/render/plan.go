package render

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/joss/mplan/internal/planning"
)

// Renderer formats plans as text. Pretty output adds color and rules.
type Renderer struct {
	pretty bool
}

// New creates a new renderer.
func New(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

func (r *Renderer) title(sb *strings.Builder, s string) {
	if r.pretty {
		sb.WriteString(color.CyanString(s) + "\n")
		sb.WriteString(strings.Repeat("─", 60) + "\n")
		return
	}
	sb.WriteString(s + "\n")
}

func (r *Renderer) section(sb *strings.Builder, s string) {
	sb.WriteString("\n")
	if r.pretty {
		sb.WriteString(color.New(color.Bold).Sprint(s) + "\n")
		return
	}
	sb.WriteString(s + ":\n")
}

func (r *Renderer) dim(s string) string {
	if r.pretty {
		return color.HiBlackString(s)
	}
	return s
}

func (r *Renderer) severity(s planning.Severity) string {
	icon := SeverityIcon(s)
	if !r.pretty {
		return icon
	}
	if s == planning.SeverityHigh {
		return color.RedString(icon)
	}
	return color.YellowString(icon)
}

// Plan formats a complete plan.
func (r *Renderer) Plan(p *planning.Plan) string {
	var sb strings.Builder

	r.title(&sb, fmt.Sprintf("Migration plan: %d repositories, %d slices",
		len(p.Scope.Repositories), len(p.Slices.Items)))
	fmt.Fprintf(&sb, "Repositories: %s\n", strings.Join(p.Scope.Repositories, ", "))
	fmt.Fprintf(&sb, "Coverage:     %d/%d indexed\n", p.Scope.Coverage.IndexedCount, p.Scope.Coverage.TotalRepos)
	fmt.Fprintf(&sb, "Components:   %d\n", p.Summary.Totals.Sum())
	fmt.Fprintf(&sb, "Coupling:     %.1f (%d hotspots)\n", p.Summary.Complexity.CouplingIndex, p.Summary.Complexity.Hotspots)
	if p.Summary.Complexity.AvgCyclomatic > 0 {
		fmt.Fprintf(&sb, "Cyclomatic:   %.1f avg\n", p.Summary.Complexity.AvgCyclomatic)
	}
	fmt.Fprintf(&sb, "Risk/Effort:  %.1f / %.1f\n", p.Summary.RiskScore, p.Summary.EffortScore)

	t := p.Summary.Totals
	r.section(&sb, "TOTALS")
	fmt.Fprintf(&sb, "  actions %d  forms %d  templates %d  services %d  interfaces %d  models %d\n",
		t.Actions, t.Forms, t.PageTemplates, t.Services, t.Interfaces, t.DataModels)

	if len(p.CrossRepo.Hotspots) > 0 {
		r.section(&sb, "HOTSPOTS")
		for _, h := range p.CrossRepo.Hotspots {
			fmt.Fprintf(&sb, "  %s %-40s %s\n", r.severity(h.Severity), Truncate(h.Label, 40), r.dim(h.Reason))
		}
	}

	r.section(&sb, "SLICES")
	bySlice := make(map[string]planning.Slice, len(p.Slices.Items))
	for _, s := range p.Slices.Items {
		bySlice[s.Name] = s
	}
	if len(p.Slices.Sequence) == 0 {
		sb.WriteString("  (none)\n")
	}
	for i, name := range p.Slices.Sequence {
		s := bySlice[name]
		fmt.Fprintf(&sb, "  %d. %s  risk %d  effort %d\n", i+1, name, s.Risk, s.Effort)
		fmt.Fprintf(&sb, "     repos: %s\n", strings.Join(s.Repos, ", "))
		if len(s.Dependencies) > 0 {
			fmt.Fprintf(&sb, "     after: %s\n", strings.Join(s.Dependencies, ", "))
		}
		if s.Rationale != "" {
			fmt.Fprintf(&sb, "     └─ %s\n", r.dim(s.Rationale))
		}
	}

	g := p.GraphQL
	r.section(&sb, "GRAPHQL")
	fmt.Fprintf(&sb, "  types:     %s\n", strings.Join(g.RecommendedTypes, ", "))
	fmt.Fprintf(&sb, "  queries:   %s\n", strings.Join(g.RecommendedQueries, ", "))
	fmt.Fprintf(&sb, "  mutations: %s\n", strings.Join(g.RecommendedMutations, ", "))
	for _, n := range g.Notes {
		fmt.Fprintf(&sb, "  note: %s\n", n)
	}

	r.section(&sb, "ROADMAP")
	for i, ph := range p.Roadmap.Phases {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, ph.Name)
		for _, goal := range ph.Goals {
			fmt.Fprintf(&sb, "     - %s\n", goal)
		}
	}

	r.section(&sb, "DIAGNOSTICS")
	ds := p.Diagnostics.DataSources
	fmt.Fprintf(&sb, "  graph %s  entities %s\n", BoolIcon(ds.Graph), BoolIcon(ds.Entities))
	if len(p.Diagnostics.Degraded) > 0 {
		deg := strings.Join(p.Diagnostics.Degraded, ", ")
		if r.pretty {
			deg = color.YellowString(deg)
		}
		fmt.Fprintf(&sb, "  degraded: %s\n", deg)
	}
	fmt.Fprintf(&sb, "  generated %s\n", p.Diagnostics.GeneratedAt)

	return sb.String()
}

// SDL returns the plan's GraphQL schema preview.
func (r *Renderer) SDL(p *planning.Plan) string {
	return p.GraphQL.SDLPreview
}
