package ledger

import (
	"fmt"
	"math/rand"
	"time"

	"registri/internal/core"
)

var baseTime = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func mov(id string, y, m, d int, t core.MovementType, cents int64) core.Movement {
	return core.Movement{
		ID:        id,
		AccountID: "acc1",
		Date:      core.NewDate(y, m, d),
		Type:      t,
		Amount:    core.Cents(cents),
		CreatedAt: baseTime,
	}
}

func opening(id string, y, m, d int, cents int64) core.Movement {
	o := mov(id, y, m, d, core.Inflow, cents)
	o.Locked = true
	o.SpecialKind = core.OpeningBalance
	return o
}

// randomMovements builds a deterministic set with distinct (date, createdAt)
// pairs.
func randomMovements(seed int64, n int) []core.Movement {
	r := rand.New(rand.NewSource(seed))
	out := make([]core.Movement, 0, n)
	for i := 0; i < n; i++ {
		t := core.Inflow
		if r.Intn(2) == 0 {
			t = core.Outflow
		}
		m := mov(fmt.Sprintf("m%d", i), 2024, 1+r.Intn(12), 1+r.Intn(28), t, int64(1+r.Intn(100000)))
		m.CreatedAt = baseTime.Add(time.Duration(i) * time.Minute)
		m.Locked = r.Intn(5) == 0
		m.Note = fmt.Sprintf("note %d", r.Intn(10))
		m.CategoryID = fmt.Sprintf("cat%d", r.Intn(3))
		out = append(out, m)
	}
	return out
}

func ids(ms []core.Movement) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}
