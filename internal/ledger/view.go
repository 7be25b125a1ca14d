package ledger

import (
	"errors"

	"registri/internal/core"
)

// ErrStaleView is returned when a fetch resolves after its view was torn
// down or superseded; the result is discarded.
var ErrStaleView = errors.New("view superseded before fetch completed")

// Row is a movement annotated with its running balance over the filtered set.
type Row struct {
	core.Movement
	Balance core.Money
	CanEdit bool
}

// View is the display-ready ledger of one account. Rows are filtered and
// ordered; Totals always cover the full, unfiltered history.
type View struct {
	Rows   []Row
	Totals core.Totals
}

// BuildView filters, computes balances over the filtered set, orders for
// display and attaches the balances by id. Totals are computed over all.
func BuildView(all []core.Movement, criteria Criteria, ascending bool) View {
	filtered := ApplyFilters(all, criteria)
	balances := ComputeRunningBalances(filtered)

	rows := make([]Row, len(filtered))
	for i, m := range filtered {
		rows[i] = Row{Movement: m, Balance: balances[m.ID], CanEdit: m.Editable()}
	}

	return View{
		Rows:   SortRowsForDisplay(rows, ascending),
		Totals: ComputeTotals(all),
	}
}

// ComputeTotals sums inflows and outflows over every movement.
func ComputeTotals(all []core.Movement) core.Totals {
	var t core.Totals
	for _, m := range all {
		if m.Type == core.Inflow {
			t.Inflow = t.Inflow.Add(m.Amount)
		} else {
			t.Outflow = t.Outflow.Add(m.Amount)
		}
	}
	t.Net = t.Inflow.Sub(t.Outflow)
	return t
}

// Movements returns the rows' movements in display order.
func (v View) Movements() []core.Movement {
	out := make([]core.Movement, len(v.Rows))
	for i, r := range v.Rows {
		out[i] = r.Movement
	}
	return out
}
