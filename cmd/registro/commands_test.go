package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"registri/internal/books/memory"
	"registri/internal/core"
	"registri/internal/log"
)

var scope = core.Scope{TenantID: "ente-1", Token: "secret"}

func newApp(t *testing.T) (*app, *bytes.Buffer, *memory.Store) {
	t.Helper()
	store := memory.New(memory.DefaultCategories())
	tick := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})
	cfg := log.DefaultConfig()
	cfg.Output = &bytes.Buffer{}
	var out bytes.Buffer
	return &app{
		books:      store,
		categories: store,
		scope:      scope,
		openedOn:   core.NewDate(2024, 1, 1),
		logger:     log.New(cfg),
		out:        &out,
	}, &out, store
}

// mustRun runs args and returns the trimmed output.
func mustRun(t *testing.T, a *app, out *bytes.Buffer, args ...string) string {
	t.Helper()
	out.Reset()
	if err := a.run(context.Background(), args); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out.String())
	}
	return strings.TrimSpace(out.String())
}

func TestAccountsAddAndList(t *testing.T) {
	a, out, _ := newApp(t)

	id := mustRun(t, a, out, "accounts", "add", "-name", "Cassa", "-type", "cassa", "-opening", "-12,50")
	if id == "" {
		t.Fatal("expected account id")
	}
	list := mustRun(t, a, out, "accounts")
	if !strings.Contains(list, "Cassa") || !strings.Contains(list, "-€12,50") {
		t.Errorf("accounts output:\n%s", list)
	}
}

func TestAddAndView(t *testing.T) {
	a, out, _ := newApp(t)
	acc := mustRun(t, a, out, "accounts", "add", "-name", "Cassa", "-type", "cassa", "-opening", "50")

	mustRun(t, a, out, "add", "-account", acc, "-date", "2024-01-05", "-type", "uscita", "-amount", "20", "-category", "ute", "-note", "luce")
	view := mustRun(t, a, out, "view", "-account", acc)

	for _, want := range []string{"Cassa", "Uscite: Utenze", "luce", "saldo iniziale", "-€20,00", "Saldo righe sbloccate"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "filtri attivi") {
		t.Errorf("unfiltered view reports active filters:\n%s", view)
	}

	filtered := mustRun(t, a, out, "view", "-account", acc, "-search", "gas")
	if strings.Contains(filtered, "luce") {
		t.Errorf("search filter not applied:\n%s", filtered)
	}
	if !strings.Contains(filtered, "filtri attivi") {
		t.Errorf("filtered view missing active filter hint:\n%s", filtered)
	}
}

func TestAddRejectsNonLeafCategory(t *testing.T) {
	a, out, _ := newApp(t)
	acc := mustRun(t, a, out, "accounts", "add", "-name", "Cassa", "-type", "cassa")

	err := a.run(context.Background(), []string{"add", "-account", acc, "-date", "2024-01-05", "-type", "entrata", "-amount", "5", "-category", "off"})
	if !core.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if exitCode(err) != 3 {
		t.Errorf("exitCode = %d, want 3", exitCode(err))
	}
}

func TestEditAndDelete(t *testing.T) {
	a, out, store := newApp(t)
	acc := mustRun(t, a, out, "accounts", "add", "-name", "Cassa", "-type", "cassa")
	id := mustRun(t, a, out, "add", "-account", acc, "-date", "2024-01-05", "-type", "entrata", "-amount", "5", "-category", "mat")

	mustRun(t, a, out, "edit", "-account", acc, "-id", id, "-amount", "7,5")
	book, _ := store.ListMovements(context.Background(), scope, acc)
	var found bool
	for _, m := range book.Movements {
		if m.ID == id {
			found = true
			if m.Amount.Cents != 750 || m.CategoryID != "mat" {
				t.Errorf("edited movement = %+v", m)
			}
		}
	}
	if !found {
		t.Fatal("movement missing after edit")
	}

	store.Lock(id)
	err := a.run(context.Background(), []string{"delete", "-account", acc, "-id", id})
	if !errors.Is(err, core.ErrLocked) {
		t.Errorf("delete locked = %v, want ErrLocked", err)
	}
}

func TestTransfer(t *testing.T) {
	a, out, _ := newApp(t)
	cassa := mustRun(t, a, out, "accounts", "add", "-name", "Cassa", "-type", "cassa", "-opening", "100")
	banca := mustRun(t, a, out, "accounts", "add", "-name", "Banca", "-type", "banca")

	ids := mustRun(t, a, out, "transfer", "-from", cassa, "-to", banca, "-date", "2024-02-01", "-amount", "40", "-note", "versamento")
	if len(strings.Fields(ids)) != 2 {
		t.Errorf("transfer output = %q, want two leg ids", ids)
	}
	view := mustRun(t, a, out, "view", "-account", banca)
	if !strings.Contains(view, "Giroconto da C/C Cassa - versamento") {
		t.Errorf("destination view:\n%s", view)
	}

	err := a.run(context.Background(), []string{"transfer", "-from", cassa, "-to", cassa, "-date", "2024-02-01", "-amount", "1"})
	if !core.IsValidation(err) {
		t.Errorf("same-account transfer err = %v", err)
	}
}

func TestAttachments(t *testing.T) {
	a, out, _ := newApp(t)
	acc := mustRun(t, a, out, "accounts", "add", "-name", "Cassa", "-type", "cassa")
	mov := mustRun(t, a, out, "add", "-account", acc, "-date", "2024-01-05", "-type", "uscita", "-amount", "3", "-category", "man")

	dir := t.TempDir()
	src := filepath.Join(dir, "ricevuta.pdf")
	if err := os.WriteFile(src, []byte("%PDF-1.4 ricevuta"), 0o644); err != nil {
		t.Fatal(err)
	}
	att := mustRun(t, a, out, "attachments", "upload", "-movement", mov, "-file", src)

	if list := mustRun(t, a, out, "attachments", "list", "-movement", mov); !strings.Contains(list, "ricevuta.pdf") {
		t.Errorf("list output:\n%s", list)
	}

	dest := filepath.Join(dir, "copia.pdf")
	mustRun(t, a, out, "attachments", "download", "-id", att, "-file", dest)
	if data, err := os.ReadFile(dest); err != nil || !strings.HasPrefix(string(data), "%PDF") {
		t.Errorf("downloaded %q, %v", data, err)
	}

	mustRun(t, a, out, "attachments", "delete", "-id", att)
	err := a.run(context.Background(), []string{"attachments", "delete", "-id", att})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestCategoriesAndUsage(t *testing.T) {
	a, out, _ := newApp(t)

	tree := mustRun(t, a, out, "categories")
	if !strings.Contains(tree, "    mat  Matrimoni") {
		t.Errorf("categories output:\n%s", tree)
	}

	if err := a.run(context.Background(), []string{"bogus"}); !errors.Is(err, errUsage) {
		t.Errorf("unknown command err = %v", err)
	}
	if exitCode(errUsage) != 2 {
		t.Error("usage errors exit 2")
	}
}
