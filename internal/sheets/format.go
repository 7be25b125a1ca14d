package sheets

import (
	"registri/internal/core"
)

const (
	statusLocked  = "bloccato"
	statusOpening = "saldo iniziale"
)

// Grid renders an export as rows of cells: the header, one row per movement
// in display order, an empty separator and the account totals. Amounts are
// decimal euro strings so the sheet never sees floating point.
func Grid(e Export) [][]string {
	rows := make([][]string, 0, len(e.View.Rows)+5)
	rows = append(rows, append([]string(nil), Header...))

	for _, r := range e.View.Rows {
		in, out := "", ""
		if r.Type == core.Inflow {
			in = r.Amount.Decimal().StringFixed(2)
		} else {
			out = r.Amount.Decimal().StringFixed(2)
		}
		rows = append(rows, []string{
			r.Date.String(),
			string(r.Type),
			r.CategoryLabel,
			r.Note,
			in,
			out,
			r.Balance.Decimal().StringFixed(2),
			status(r.Movement),
		})
	}

	t := e.View.Totals
	rows = append(rows,
		[]string{},
		[]string{"Totale entrate", "", "", "", t.Inflow.Decimal().StringFixed(2)},
		[]string{"Totale uscite", "", "", "", "", t.Outflow.Decimal().StringFixed(2)},
		[]string{"Saldo", "", "", "", "", "", t.Net.Decimal().StringFixed(2)},
	)
	return rows
}

func status(m core.Movement) string {
	switch {
	case m.IsOpeningBalance():
		return statusOpening
	case m.Locked:
		return statusLocked
	}
	return ""
}
