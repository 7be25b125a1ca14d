package ledger

import (
	"sort"

	"registri/internal/core"
)

// Balances maps movement id to the running balance after that movement.
type Balances map[string]core.Money

// ComputeRunningBalances walks movements in chronological order and records
// the accumulator after each one. Locked movements do not contribute to the
// accumulator and report a zero balance. The caller's ordering is ignored:
// a working copy is stable-sorted by date, so same-day movements keep their
// input order.
func ComputeRunningBalances(movements []core.Movement) Balances {
	chrono := chronological(movements)

	out := make(Balances, len(chrono))
	var acc core.Money
	for _, m := range chrono {
		if m.Locked {
			out[m.ID] = core.Money{}
			continue
		}
		acc = acc.Add(m.Signed())
		out[m.ID] = acc
	}
	return out
}

// FinalBalance returns the accumulator after the last unlocked movement.
func FinalBalance(movements []core.Movement) core.Money {
	var acc core.Money
	for _, m := range movements {
		if !m.Locked {
			acc = acc.Add(m.Signed())
		}
	}
	return acc
}

// chronological returns a stable date-ascending copy. The opening-balance
// record is always first whatever its date says.
func chronological(movements []core.Movement) []core.Movement {
	out := append([]core.Movement(nil), movements...)
	sort.SliceStable(out, func(i, j int) bool {
		oi, oj := out[i].IsOpeningBalance(), out[j].IsOpeningBalance()
		if oi != oj {
			return oi
		}
		return out[i].Date.Compare(out[j].Date) < 0
	})
	return out
}
