package sheets

import (
	"reflect"
	"testing"

	"registri/internal/core"
	"registri/internal/ledger"
)

func TestGrid(t *testing.T) {
	open := core.Movement{ID: "o", Date: core.NewDate(2024, 1, 1), Type: core.Inflow, Amount: core.Cents(5000),
		SpecialKind: core.OpeningBalance, Locked: true, Note: "Saldo iniziale"}
	out := core.Movement{ID: "u", Date: core.NewDate(2024, 1, 3), Type: core.Outflow, Amount: core.Cents(1234),
		CategoryLabel: "Uscite: Utenze", Note: "luce"}
	view := ledger.BuildView([]core.Movement{open, out}, ledger.Criteria{}, false)

	got := Grid(Export{AccountName: "Cassa", View: view})

	want := [][]string{
		Header,
		{"2024-01-03", "uscita", "Uscite: Utenze", "luce", "", "12.34", "-12.34", ""},
		{"2024-01-01", "entrata", "", "Saldo iniziale", "50.00", "", "0.00", "saldo iniziale"},
		{},
		{"Totale entrate", "", "", "", "50.00"},
		{"Totale uscite", "", "", "", "", "12.34"},
		{"Saldo", "", "", "", "", "", "37.66"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Grid() =\n%v\nwant\n%v", got, want)
	}
}

func TestGridNegativeBalance(t *testing.T) {
	out := core.Movement{ID: "u", Date: core.NewDate(2024, 1, 3), Type: core.Outflow, Amount: core.Cents(5)}
	got := Grid(Export{View: ledger.BuildView([]core.Movement{out}, ledger.Criteria{}, true)})
	if got[1][6] != "-0.05" {
		t.Errorf("balance cell = %q", got[1][6])
	}
	if got[len(got)-1][6] != "-0.05" {
		t.Errorf("net cell = %q", got[len(got)-1][6])
	}
}

func TestGridMarksLockedRows(t *testing.T) {
	m := core.Movement{ID: "l", Date: core.NewDate(2024, 2, 1), Type: core.Inflow, Amount: core.Cents(100), Locked: true}
	got := Grid(Export{View: ledger.BuildView([]core.Movement{m}, ledger.Criteria{}, false)})
	if got[1][7] != "bloccato" || got[1][6] != "0.00" {
		t.Errorf("locked row = %v", got[1])
	}
}
