package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"registri/internal/books/memory"
	"registri/internal/core"
	"registri/internal/log"
)

var scope = core.Scope{TenantID: "ente-1", Token: "secret-token"}

// newBooks returns a memory backend with two accounts: Cassa (opening 5000)
// and Banca (opening 0).
func newBooks(t *testing.T) (*memory.Store, string, string) {
	t.Helper()
	s := memory.New(memory.DefaultCategories())
	tick := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})
	ctx := context.Background()
	cassa, err := s.CreateAccount(ctx, scope, core.Account{Name: "Cassa", Type: core.AccountCash, OpeningBalance: core.Cents(5000)}, core.NewDate(2024, 1, 1))
	if err != nil {
		t.Fatal(err)
	}
	banca, err := s.CreateAccount(ctx, scope, core.Account{Name: "Banca", Type: core.AccountBank}, core.NewDate(2024, 1, 1))
	if err != nil {
		t.Fatal(err)
	}
	return s, cassa, banca
}

func payload(account string, day int, typ core.MovementType, cents int64) core.MovementPayload {
	return core.MovementPayload{
		AccountID:  account,
		Date:       core.NewDate(2024, 1, day),
		Type:       typ,
		Amount:     core.Cents(cents),
		CategoryID: "ute",
		Note:       "bolletta",
	}
}

func testLogger() (*log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg := log.DefaultConfig()
	cfg.Output = &buf
	return log.New(cfg), &buf
}
