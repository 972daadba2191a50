// Package tui provides an interactive plan browser using Bubble Tea.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joss/mplan/internal/planning"
	"github.com/joss/mplan/internal/render"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

// View represents the current view mode
type View int

const (
	ViewSlices View = iota
	ViewDetail
	ViewSchema
	ViewHelp
)

// Model browses the slices of one plan in sequence order.
type Model struct {
	plan     *planning.Plan
	slices   []planning.Slice
	view     View
	selected int
	ready    bool
	quitting bool

	viewport viewport.Model
	width    int
	height   int
}

// New creates a model for p. Slices are listed in migration order.
func New(p *planning.Plan) Model {
	byName := make(map[string]planning.Slice, len(p.Slices.Items))
	for _, s := range p.Slices.Items {
		byName[s.Name] = s
	}
	ordered := make([]planning.Slice, 0, len(p.Slices.Sequence))
	for _, name := range p.Slices.Sequence {
		if s, ok := byName[name]; ok {
			ordered = append(ordered, s)
		}
	}
	return Model{plan: p, slices: ordered, view: ViewSlices}
}

// Init initializes the TUI
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.view == ViewSlices || msg.String() == "ctrl+c" {
				m.quitting = true
				return m, tea.Quit
			}
			m.view = ViewSlices
			return m, nil
		case "esc":
			m.view = ViewSlices
			return m, nil
		case "?":
			if m.view == ViewHelp {
				m.view = ViewSlices
			} else {
				m.view = ViewHelp
			}
			return m, nil
		case "g":
			if m.view == ViewSlices {
				m.view = ViewSchema
				m.viewport.SetContent(m.plan.GraphQL.SDLPreview)
				m.viewport.GotoTop()
				return m, nil
			}
		case "enter":
			if m.view == ViewSlices && len(m.slices) > 0 {
				m.view = ViewDetail
				m.viewport.SetContent(m.detail(m.slices[m.selected]))
				m.viewport.GotoTop()
				return m, nil
			}
		case "up", "k":
			if m.view == ViewSlices {
				if m.selected > 0 {
					m.selected--
				}
				return m, nil
			}
		case "down", "j":
			if m.view == ViewSlices {
				if m.selected < len(m.slices)-1 {
					m.selected++
				}
				return m, nil
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		headerHeight := 4
		footerHeight := 3
		m.viewport = viewport.New(max(msg.Width-4, 10), max(msg.Height-headerHeight-footerHeight, 3))
	}

	if m.view == ViewDetail || m.view == ViewSchema {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "\n  Loading..."
	}

	switch m.view {
	case ViewDetail:
		return m.viewBox(m.slices[m.selected].Name)
	case ViewSchema:
		return m.viewBox("GraphQL schema preview")
	case ViewHelp:
		return m.viewHelp()
	default:
		return m.viewSlices()
	}
}

func (m Model) viewSlices() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Migration plan") + "\n")
	s := m.plan.Summary
	status := fmt.Sprintf("%d repos │ coupling %.1f │ risk %.1f │ effort %.1f",
		len(m.plan.Scope.Repositories), s.Complexity.CouplingIndex, s.RiskScore, s.EffortScore)
	b.WriteString(infoStyle.Render("  "+status) + "\n")
	if deg := m.plan.Diagnostics.Degraded; len(deg) > 0 {
		b.WriteString(warnStyle.Render("  degraded: "+strings.Join(deg, ", ")) + "\n")
	}
	b.WriteString("\n")

	if len(m.slices) == 0 {
		b.WriteString(infoStyle.Render("  No slices") + "\n")
	}
	for i, sl := range m.slices {
		cursor := "  "
		style := infoStyle
		if i == m.selected {
			cursor = "▶ "
			style = activeStyle
		}
		line := fmt.Sprintf("%s%2d. %-12s risk %d effort %d  %s",
			cursor, i+1, sl.Name, sl.Risk, sl.Effort,
			render.Truncate(strings.Join(sl.Repos, ", "), 40))
		b.WriteString(style.Render(line) + "\n")
	}

	b.WriteString(helpStyle.Render("  enter: details │ g: schema │ j/k: navigate │ ?: help │ q: quit"))
	return b.String()
}

func (m Model) viewBox(title string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title) + "\n\n")
	b.WriteString(boxStyle.Width(max(m.width-4, 10)).Render(m.viewport.View()) + "\n")
	b.WriteString(helpStyle.Render("  esc: back │ scroll: ↑/↓"))
	return b.String()
}

func (m Model) viewHelp() string {
	help := `
  SLICES
    j/k       Navigate up/down
    enter     Show slice details
    g         Show GraphQL schema preview
    q         Quit

  DETAILS
    ↑/↓       Scroll
    esc       Back to slices
`
	return titleStyle.Render("Help") + "\n" + infoStyle.Render(help) + helpStyle.Render("\n  press ? to return")
}

func (m Model) detail(s planning.Slice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Risk %d  Effort %d\n\n", s.Risk, s.Effort)
	fmt.Fprintf(&b, "Repositories:\n")
	for _, r := range s.Repos {
		fmt.Fprintf(&b, "  - %s\n", r)
	}
	if len(s.Dependencies) > 0 {
		fmt.Fprintf(&b, "\nMigrate after:\n")
		for _, d := range s.Dependencies {
			fmt.Fprintf(&b, "  - %s\n", d)
		}
	}
	if len(s.Features) > 0 {
		fmt.Fprintf(&b, "\nFeatures: %s\n", strings.Join(s.Features, ", "))
	}
	if s.Rationale != "" {
		fmt.Fprintf(&b, "\n%s\n", s.Rationale)
	}
	for _, h := range m.plan.CrossRepo.Hotspots {
		if touches(h.Repos, s.Repos) {
			fmt.Fprintf(&b, "\n%s %s (%s)", render.SeverityIcon(h.Severity), h.Label, h.Reason)
		}
	}
	return b.String()
}

func touches(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// Run starts the browser for p.
func Run(p *planning.Plan) error {
	_, err := tea.NewProgram(New(p), tea.WithAltScreen()).Run()
	return err
}
