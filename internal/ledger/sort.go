package ledger

import (
	"sort"

	"registri/internal/core"
)

// SortForDisplay orders movements by date, breaking ties on creation time.
// One direction flag drives both comparisons: descending inverts the date
// and the tie-break together. The opening-balance record is the earliest
// entry in either direction. The input slice is not modified.
func SortForDisplay(movements []core.Movement, ascending bool) []core.Movement {
	return sortByDisplay(movements, func(m core.Movement) core.Movement { return m }, ascending)
}

func compareForDisplay(a, b core.Movement) int {
	oa, ob := a.IsOpeningBalance(), b.IsOpeningBalance()
	switch {
	case oa && !ob:
		return -1
	case ob && !oa:
		return 1
	}
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	return a.CreatedAt.Compare(b.CreatedAt)
}

// SortRowsForDisplay applies SortForDisplay to annotated rows without
// touching their balances.
func SortRowsForDisplay(rows []Row, ascending bool) []Row {
	return sortByDisplay(rows, func(r Row) core.Movement { return r.Movement }, ascending)
}

func sortByDisplay[T any](items []T, movement func(T) core.Movement, ascending bool) []T {
	out := append([]T(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		c := compareForDisplay(movement(out[i]), movement(out[j]))
		if ascending {
			return c < 0
		}
		return c > 0
	})
	return out
}
