package adapters

import (
	"context"
	"path/filepath"
	"testing"

	"registri/internal/amqp"
	"registri/internal/books/memory"
	"registri/internal/core"
	"registri/internal/services"
	"registri/internal/storage"
)

type capture struct{ kinds []amqp.EventKind }

func (c *capture) PublishLedgerEvent(_ context.Context, e *amqp.LedgerEvent) error {
	c.kinds = append(c.kinds, e.Kind)
	return nil
}

func TestSQLiteAdapterRoutesWritesThroughService(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "registri.db"))
	if err != nil {
		t.Fatal(err)
	}
	pub := &capture{}
	a := NewSQLiteAdapter(repo, services.NewLedgerService(repo, pub))
	defer a.Close()

	ctx := context.Background()
	scope := core.Scope{TenantID: "ente-1"}
	if err := a.Seed(ctx, scope, memory.DefaultCategories()); err != nil {
		t.Fatal(err)
	}
	acc, err := a.CreateAccount(ctx, scope, core.Account{Name: "Cassa", Type: core.AccountCash}, core.NewDate(2024, 1, 1))
	if err != nil {
		t.Fatal(err)
	}
	id, err := a.CreateMovement(ctx, scope, core.MovementPayload{
		AccountID: acc, Date: core.NewDate(2024, 1, 2), Type: core.Inflow, Amount: core.Cents(100), CategoryID: "off",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Lock(ctx, scope, id); err != nil {
		t.Fatal(err)
	}

	l, err := a.ListMovements(ctx, scope, acc)
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Movements) != 2 || !l.Movements[1].Locked {
		t.Fatalf("unexpected ledger: %+v", l.Movements)
	}
	if len(pub.kinds) != 2 || pub.kinds[0] != amqp.AccountCreated || pub.kinds[1] != amqp.MovementCreated {
		t.Errorf("events = %v", pub.kinds)
	}
}
