package planning

import "context"

// CountTotals asks the source for every category count. A failed category
// contributes 0 and its name is returned in failed.
func CountTotals(ctx context.Context, src FactSource, repos []string) (totals Totals, failed []Category) {
	for _, cat := range Categories {
		out := fetch(ctx, func(ctx context.Context) (int, error) {
			return src.CategoryCount(ctx, cat, repos)
		})
		if !out.OK() {
			failed = append(failed, cat)
		}
		totals.set(cat, max(out.Or(0), 0))
	}
	return totals, failed
}

func (t *Totals) set(cat Category, n int) {
	switch cat {
	case CategoryActions:
		t.Actions = n
	case CategoryForms:
		t.Forms = n
	case CategoryPageTemplates:
		t.PageTemplates = n
	case CategoryServices:
		t.Services = n
	case CategoryInterfaces:
		t.Interfaces = n
	case CategoryDataModels:
		t.DataModels = n
	}
}

// Get returns the count for a category.
func (t Totals) Get(cat Category) int {
	switch cat {
	case CategoryActions:
		return t.Actions
	case CategoryForms:
		return t.Forms
	case CategoryPageTemplates:
		return t.PageTemplates
	case CategoryServices:
		return t.Services
	case CategoryInterfaces:
		return t.Interfaces
	case CategoryDataModels:
		return t.DataModels
	}
	return 0
}

// Sum returns the total number of counted components.
func (t Totals) Sum() int {
	n := 0
	for _, cat := range Categories {
		n += t.Get(cat)
	}
	return n
}
