package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"registri/internal/amqp"
	"registri/internal/books"
	"registri/internal/core"
	"registri/internal/services"
	"registri/internal/sheets"
)

// ExportWorker keeps exported account views current. On every ledger event
// it refetches the touched accounts, rebuilds their views and exports them.
type ExportWorker struct {
	books       books.Books
	categories  books.CategoryLister
	exporter    sheets.ViewExporter
	scope       core.Scope
	accounts    map[string]bool // empty means every active account
	concurrency int
}

type Option func(*ExportWorker)

// WithAccounts restricts exports to the given account ids.
func WithAccounts(ids ...string) Option {
	return func(w *ExportWorker) {
		for _, id := range ids {
			if id != "" {
				w.accounts[id] = true
			}
		}
	}
}

// WithCategorySource reads categories through src, typically a cache.
func WithCategorySource(src books.CategoryLister) Option {
	return func(w *ExportWorker) {
		if src != nil {
			w.categories = src
		}
	}
}

// WithConcurrency bounds how many accounts are exported at once.
func WithConcurrency(n int) Option {
	return func(w *ExportWorker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

func NewExportWorker(b books.Books, exporter sheets.ViewExporter, scope core.Scope, opts ...Option) *ExportWorker {
	w := &ExportWorker{
		books:       b,
		categories:  b,
		exporter:    exporter,
		scope:       scope,
		accounts:    make(map[string]bool),
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleLedgerEvent exports every configured account the event touches.
// Events of other tenants are acknowledged and ignored. A non-nil error
// asks the broker to redeliver.
func (w *ExportWorker) HandleLedgerEvent(ctx context.Context, e *amqp.LedgerEvent) error {
	if e.TenantID != w.scope.TenantID {
		slog.DebugContext(ctx, "Ignoring event of another tenant", "component", "worker", "kind", e.Kind, "tenant_id", e.TenantID)
		return nil
	}

	var targets []string
	if len(e.AccountIDs) == 0 {
		all, err := w.targetAccounts(ctx)
		if err != nil {
			return err
		}
		targets = all
	} else {
		for _, id := range e.AccountIDs {
			if len(w.accounts) == 0 || w.accounts[id] {
				targets = append(targets, id)
			}
		}
	}

	slog.InfoContext(ctx, "Processing ledger event",
		"component", "worker",
		"kind", e.Kind,
		"tenant_id", e.TenantID,
		"targets", len(targets))

	return w.exportAll(ctx, targets)
}

// StartupExport exports every configured account once, so the sheet is
// current even if events were missed while the worker was down.
func (w *ExportWorker) StartupExport(ctx context.Context) error {
	ids, err := w.targetAccounts(ctx)
	if err != nil {
		return fmt.Errorf("startup export: %w", err)
	}
	if len(ids) == 0 {
		slog.InfoContext(ctx, "No accounts to export on startup", "component", "worker")
		return nil
	}
	err = w.exportAll(ctx, ids)
	slog.InfoContext(ctx, "Startup export completed", "component", "worker", "accounts", len(ids), "error", err)
	return err
}

// ExportAccount refetches one account and exports its full view.
func (w *ExportWorker) ExportAccount(ctx context.Context, accountID string) (string, error) {
	session := services.NewAccountSession(w.books, w.scope, services.WithCategorySource(w.categories))
	defer session.Close()

	view, err := session.Open(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("load account %s: %w", accountID, err)
	}

	ref, err := w.exporter.ExportView(ctx, sheets.Export{
		TenantID:    w.scope.TenantID,
		AccountID:   accountID,
		AccountName: session.AccountName(),
		View:        view,
	})
	if err != nil {
		return "", fmt.Errorf("export account %s: %w", accountID, err)
	}
	return ref, nil
}

func (w *ExportWorker) exportAll(ctx context.Context, ids []string) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			ref, err := w.ExportAccount(gctx, id)
			if errors.Is(err, core.ErrNotFound) {
				slog.WarnContext(gctx, "Skipping missing account", "component", "worker", "account_id", id)
				return nil
			}
			if err != nil {
				slog.ErrorContext(gctx, "Failed to export account", "component", "worker", "account_id", id, "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			slog.InfoContext(gctx, "Exported account", "component", "worker", "account_id", id, "ref", ref)
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}

func (w *ExportWorker) targetAccounts(ctx context.Context) ([]string, error) {
	accounts, err := w.books.ListAccounts(ctx, w.scope)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	var ids []string
	for _, a := range accounts {
		if len(w.accounts) == 0 || w.accounts[a.ID] {
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}
