package render

import (
	"io"
	"strings"

	"github.com/joss/mplan/internal/store"
)

// History renders saved plan records.
type History struct {
	*Writer
}

// NewHistory creates a History renderer writing to w.
func NewHistory(w io.Writer) *History {
	return &History{Writer: NewWriter(w)}
}

// List renders a table of saved plans, newest first.
func (h *History) List(records []*store.Record) {
	if len(records) == 0 {
		h.Empty("No saved plans")
		return
	}

	h.Header("PLAN HISTORY (%d)", len(records))
	for _, r := range records {
		h.Println("%s  %s  %d slices  coupling %.1f  risk %.1f  effort %.1f",
			r.ID,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.Slices,
			r.CouplingIndex,
			r.RiskScore,
			r.EffortScore,
		)
		h.Nested("%s", Truncate(strings.Join(r.Repositories, ", "), 70))
	}
}

// Show renders one record header followed by its plan.
func (h *History) Show(r *store.Record, pretty bool) {
	h.Println("Plan %s (saved %s)", r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"))
	if r.Degraded > 0 {
		h.Item("%d degraded data sources", r.Degraded)
	}
	if r.Plan == nil {
		return
	}
	h.Section("Plan")
	io.WriteString(h.out, New(pretty).Plan(r.Plan))
}
