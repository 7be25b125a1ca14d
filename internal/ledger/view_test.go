package ledger

import (
	"reflect"
	"testing"

	"registri/internal/core"
)

func TestBuildViewScenario(t *testing.T) {
	all := []core.Movement{
		mov("out", 2024, 1, 10, core.Outflow, 3000),
		mov("in", 2024, 1, 5, core.Inflow, 10000),
		opening("open", 2024, 1, 1, 0),
	}
	v := BuildView(all, Criteria{}, false)

	wantIDs := []string{"out", "in", "open"}
	wantBalances := []int64{7000, 10000, 0}
	if got := ids(v.Movements()); !reflect.DeepEqual(got, wantIDs) {
		t.Fatalf("rows = %v, want %v", got, wantIDs)
	}
	for i, r := range v.Rows {
		if r.Balance.Cents != wantBalances[i] {
			t.Errorf("row %s balance = %d, want %d", r.ID, r.Balance.Cents, wantBalances[i])
		}
	}
	if v.Rows[2].CanEdit {
		t.Error("opening balance must not be editable")
	}
	if !v.Rows[0].CanEdit {
		t.Error("unlocked movement should be editable")
	}
	if v.Totals.Inflow.Cents != 10000 || v.Totals.Outflow.Cents != 3000 || v.Totals.Net.Cents != 7000 {
		t.Errorf("unexpected totals: %+v", v.Totals)
	}
}

func TestBuildViewBalancesFollowFilteredSet(t *testing.T) {
	all := []core.Movement{
		mov("a", 2024, 1, 1, core.Inflow, 10000),
		mov("b", 2024, 1, 2, core.Outflow, 2500),
		mov("c", 2024, 1, 3, core.Inflow, 700),
	}
	v := BuildView(all, Criteria{Type: core.Inflow}, true)
	if got := ids(v.Movements()); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Fatalf("rows = %v", got)
	}
	if v.Rows[1].Balance.Cents != 10700 {
		t.Fatalf("balance over filtered set = %d, want 10700", v.Rows[1].Balance.Cents)
	}
	// Totals ignore the filter.
	if v.Totals.Outflow.Cents != 2500 || v.Totals.Net.Cents != 8200 {
		t.Fatalf("totals must cover the unfiltered set: %+v", v.Totals)
	}
}

func TestBuildViewHideLocked(t *testing.T) {
	locked := mov("locked", 2024, 1, 3, core.Outflow, 400)
	locked.Locked = true
	all := []core.Movement{
		opening("open", 2024, 1, 1, 0),
		mov("a", 2024, 1, 2, core.Inflow, 1000),
		locked,
		mov("b", 2024, 1, 4, core.Outflow, 100),
	}

	shown := BuildView(all, Criteria{}, true)
	if len(shown.Rows) != 4 {
		t.Fatalf("expected all rows, got %v", ids(shown.Movements()))
	}
	hidden := BuildView(all, Criteria{HideLocked: true}, true)
	if got := ids(hidden.Movements()); !reflect.DeepEqual(got, []string{"open", "a", "b"}) {
		t.Fatalf("rows = %v", got)
	}
	// Locked rows never move the accumulator, so hiding them changes nothing.
	if hidden.Rows[2].Balance.Cents != 900 || shown.Rows[3].Balance.Cents != 900 {
		t.Fatalf("unexpected balances: %d / %d", hidden.Rows[2].Balance.Cents, shown.Rows[3].Balance.Cents)
	}
	if shown.Totals.Outflow.Cents != 500 {
		t.Fatalf("totals include locked movements: %+v", shown.Totals)
	}
}

func TestBuildViewIsIdempotent(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		all := randomMovements(seed, 50)
		c := Criteria{HideLocked: seed%2 == 0, Type: core.Outflow}
		a := BuildView(all, c, seed%3 == 0)
		b := BuildView(all, c, seed%3 == 0)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("seed %d: BuildView not idempotent", seed)
		}
	}
}
