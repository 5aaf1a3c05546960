package core

import "sort"

// CategoryTotal is the per-category group produced by the store.
type CategoryTotal struct {
	Category    string `json:"category"`
	TotalAmount Money  `json:"totalAmount"`
	TotalCount  int64  `json:"totalCount"`
}

// Report is the spending summary of one owner over one window.
type Report struct {
	Categories   []CategoryTotal `json:"categories"`
	OverallTotal Money           `json:"overallTotal"`
	OverallCount int64           `json:"overallCount"`
}

// NewReport folds per-category groups into a Report. Groups sharing a
// category are merged, the result is ordered by category, and the overall
// figures are the exact sums of the category figures. A total that does
// not fit in int64 cents yields ErrAmountOverflow.
func NewReport(groups []CategoryTotal) (Report, error) {
	merged := make(map[string]*CategoryTotal, len(groups))
	for _, g := range groups {
		if m, ok := merged[g.Category]; ok {
			total, err := m.TotalAmount.Add(g.TotalAmount)
			if err != nil {
				return Report{}, err
			}
			m.TotalAmount = total
			m.TotalCount += g.TotalCount
			continue
		}
		g := g
		merged[g.Category] = &g
	}

	r := Report{Categories: make([]CategoryTotal, 0, len(merged))}
	for _, m := range merged {
		r.Categories = append(r.Categories, *m)
		total, err := r.OverallTotal.Add(m.TotalAmount)
		if err != nil {
			return Report{}, err
		}
		r.OverallTotal = total
		r.OverallCount += m.TotalCount
	}
	sort.Slice(r.Categories, func(i, j int) bool {
		return r.Categories[i].Category < r.Categories[j].Category
	})
	return r, nil
}
