package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"registri/internal/books"
	"registri/internal/core"
)

var scope = core.Scope{TenantID: "ente-1", Token: "secret"}

var seed = []core.Category{
	{ID: "ent", Name: "Entrate"},
	{ID: "off", Name: "Offerte", ParentID: "ent"},
	{ID: "usc", Name: "Uscite"},
	{ID: "ute", Name: "Utenze", ParentID: "usc"},
}

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	r, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "registri.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { r.Close() })

	tick := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	if err := r.EnsureCategories(context.Background(), scope, seed); err != nil {
		t.Fatalf("seed categories: %v", err)
	}
	return r
}

func mustCreateAccount(t *testing.T, r *SQLiteRepository, name string, opening int64) string {
	t.Helper()
	id, err := r.CreateAccount(context.Background(), scope,
		core.Account{Name: name, Type: core.AccountBank, OpeningBalance: core.Cents(opening)},
		core.NewDate(2024, 1, 1))
	if err != nil {
		t.Fatalf("create account %s: %v", name, err)
	}
	return id
}

func movement(account string, day int, typ core.MovementType, cents int64) core.MovementPayload {
	return core.MovementPayload{
		AccountID:  account,
		Date:       core.NewDate(2024, 1, day),
		Type:       typ,
		Amount:     core.Cents(cents),
		CategoryID: "ute",
		Note:       "bolletta",
	}
}

func TestEnsureCategoriesIsIdempotent(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	if err := r.EnsureCategories(ctx, scope, seed); err != nil {
		t.Fatal(err)
	}
	cats, err := r.ListCategories(ctx, scope)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != len(seed) {
		t.Fatalf("expected %d categories, got %d", len(seed), len(cats))
	}
	if cats[1].ParentID != "ent" {
		t.Errorf("parent lost: %+v", cats[1])
	}

	other := core.Scope{TenantID: "ente-2"}
	if err := r.EnsureCategories(ctx, other, seed); err != nil {
		t.Fatalf("same ids for another tenant: %v", err)
	}
}

func TestCreateAccountWritesOpeningRecord(t *testing.T) {
	r := newRepo(t)
	id := mustCreateAccount(t, r, "Banca", -2500)

	l, err := r.ListMovements(context.Background(), scope, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Movements) != 1 {
		t.Fatalf("expected opening record only, got %d", len(l.Movements))
	}
	o := l.Movements[0]
	if !o.IsOpeningBalance() || !o.Locked {
		t.Fatalf("opening record should be locked: %+v", o)
	}
	if o.Type != core.Outflow || o.Amount.Cents != 2500 {
		t.Errorf("negative opening should be an outflow of 2500, got %s %d", o.Type, o.Amount.Cents)
	}
	if l.Totals == nil || l.Totals.Net.Cents != -2500 {
		t.Errorf("unexpected totals: %+v", l.Totals)
	}
}

func TestMovementLifecycle(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	acc := mustCreateAccount(t, r, "Cassa", 0)

	in, err := r.CreateMovement(ctx, scope, movement(acc, 2, core.Inflow, 10000))
	if err != nil {
		t.Fatal(err)
	}
	out, err := r.CreateMovement(ctx, scope, movement(acc, 3, core.Outflow, 7000))
	if err != nil {
		t.Fatal(err)
	}

	l, err := r.ListMovements(ctx, scope, acc)
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Movements) != 3 {
		t.Fatalf("expected 3 movements, got %d", len(l.Movements))
	}
	if got := l.Movements[2].RunningBalance.Cents; got != 3000 {
		t.Errorf("final balance = %d, want 3000", got)
	}
	if got := l.Movements[1].CategoryLabel; got != "Uscite: Utenze" {
		t.Errorf("label = %q", got)
	}
	if l.Totals.Inflow.Cents != 10000 || l.Totals.Outflow.Cents != 7000 {
		t.Errorf("unexpected totals: %+v", l.Totals)
	}

	edit := movement(acc, 3, core.Outflow, 2000)
	if err := r.UpdateMovement(ctx, scope, out, edit); err != nil {
		t.Fatal(err)
	}
	if err := r.DeleteMovement(ctx, scope, in); err != nil {
		t.Fatal(err)
	}
	l, _ = r.ListMovements(ctx, scope, acc)
	if len(l.Movements) != 2 || l.Movements[1].Amount.Cents != 2000 {
		t.Fatalf("unexpected movements after edit and delete: %+v", l.Movements)
	}
}

func TestLockedMovementsRejectMutation(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	acc := mustCreateAccount(t, r, "Cassa", 100)

	id, err := r.CreateMovement(ctx, scope, movement(acc, 2, core.Inflow, 500))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.LockMovement(ctx, scope, id); err != nil {
		t.Fatal(err)
	}

	var locked *core.LockedRecordError
	if err := r.UpdateMovement(ctx, scope, id, movement(acc, 2, core.Inflow, 600)); !errors.As(err, &locked) {
		t.Errorf("update: expected LockedRecordError, got %v", err)
	}
	if err := r.DeleteMovement(ctx, scope, id); !errors.Is(err, core.ErrLocked) {
		t.Errorf("delete: expected ErrLocked, got %v", err)
	}

	l, _ := r.ListMovements(ctx, scope, acc)
	if err := r.DeleteMovement(ctx, scope, l.Movements[0].ID); !errors.Is(err, core.ErrLocked) {
		t.Errorf("opening record must not be deletable, got %v", err)
	}
	if err := r.DeleteMovement(ctx, scope, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateMovementValidation(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	acc := mustCreateAccount(t, r, "Cassa", 0)

	tests := []struct {
		name   string
		mutate func(*core.MovementPayload)
		field  string
	}{
		{"unknown category", func(p *core.MovementPayload) { p.CategoryID = "nope" }, "category"},
		{"before opening", func(p *core.MovementPayload) { p.Date = core.NewDate(2023, 12, 31) }, "date"},
		{"opening kind", func(p *core.MovementPayload) { p.SpecialKind = core.OpeningBalance }, "type"},
		{"zero amount", func(p *core.MovementPayload) { p.Amount = core.Cents(0) }, "amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := movement(acc, 2, core.Inflow, 100)
			tt.mutate(&p)
			_, err := r.CreateMovement(ctx, scope, p)
			var ve *core.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("field = %q, want %q", ve.Field, tt.field)
			}
		})
	}

	if _, err := r.CreateMovement(ctx, scope, movement("missing", 2, core.Inflow, 100)); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown account: expected ErrNotFound, got %v", err)
	}
}

func TestCreateTransfer(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	src := mustCreateAccount(t, r, "Cassa", 10000)
	dst := mustCreateAccount(t, r, "Banca", 0)

	leg := func(account string, typ core.MovementType) core.MovementPayload {
		return core.MovementPayload{
			AccountID:    account,
			Date:         core.NewDate(2024, 1, 5),
			Type:         typ,
			Amount:       core.Cents(4000),
			Note:         "versamento",
			SpecialKind:  core.Transfer,
			TransferLink: "link-1",
		}
	}
	receipt, err := r.CreateTransfer(ctx, scope, leg(src, core.Outflow), leg(dst, core.Inflow))
	if err != nil {
		t.Fatal(err)
	}
	if receipt.OutflowID == "" || receipt.InflowID == "" {
		t.Fatalf("both legs should be accepted: %+v", receipt)
	}

	sl, _ := r.ListMovements(ctx, scope, src)
	dl, _ := r.ListMovements(ctx, scope, dst)
	out, in := sl.Movements[1], dl.Movements[1]
	if out.Note != "Giroconto per C/C Banca - versamento" || in.Note != "Giroconto da C/C Cassa - versamento" {
		t.Errorf("unexpected notes: %q / %q", out.Note, in.Note)
	}
	if out.TransferLink != "link-1" || in.TransferLink != "link-1" {
		t.Errorf("legs should share the link id")
	}
	if out.CategoryLabel != books.TransferCategoryName {
		t.Errorf("label = %q", out.CategoryLabel)
	}

	cats, _ := r.ListCategories(ctx, scope)
	for _, c := range cats {
		if c.Name == books.TransferCategoryName {
			t.Errorf("system category should not be listed")
		}
	}
}

func TestCreateTransferIsAtomic(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	src := mustCreateAccount(t, r, "Cassa", 0)

	out := core.MovementPayload{AccountID: src, Date: core.NewDate(2024, 1, 5), Type: core.Outflow, Amount: core.Cents(100), SpecialKind: core.Transfer}
	in := out
	in.AccountID, in.Type = "missing", core.Inflow
	receipt, err := r.CreateTransfer(ctx, scope, out, in)
	if err == nil {
		t.Fatal("expected error for unknown destination")
	}
	if receipt != (core.TransferReceipt{}) {
		t.Errorf("no leg should be reported: %+v", receipt)
	}
	l, _ := r.ListMovements(ctx, scope, src)
	if len(l.Movements) != 1 {
		t.Errorf("outflow leg should have been rolled back, got %d movements", len(l.Movements))
	}
}

func TestAttachments(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	acc := mustCreateAccount(t, r, "Cassa", 0)
	id, err := r.CreateMovement(ctx, scope, movement(acc, 2, core.Outflow, 100))
	if err != nil {
		t.Fatal(err)
	}

	file := core.AttachmentUpload{FileName: "ricevuta.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")}
	a, err := r.UploadAttachment(ctx, scope, id, file)
	if err != nil {
		t.Fatal(err)
	}
	if a.Size != int64(len(file.Data)) {
		t.Errorf("size = %d", a.Size)
	}

	list, err := r.ListAttachments(ctx, scope, id)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one attachment, got %v %v", list, err)
	}
	_, data, err := r.DownloadAttachment(ctx, scope, a.ID)
	if err != nil || string(data) != "%PDF-1.4" {
		t.Fatalf("download = %q, %v", data, err)
	}

	if _, err := r.UploadAttachment(ctx, scope, id, core.AttachmentUpload{FileName: "x.exe", ContentType: "application/x-msdownload", Data: []byte{1}}); !core.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}

	if err := r.DeleteMovement(ctx, scope, id); err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.DownloadAttachment(ctx, scope, a.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("attachment should go with its movement, got %v", err)
	}
}
