package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"registri/internal/books"
	"registri/internal/core"
	"registri/internal/ledger"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

var _ books.Books = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// EnsureCategories seeds the tenant's chart of accounts when it has none.
func (r *SQLiteRepository) EnsureCategories(ctx context.Context, scope core.Scope, defaults []core.Category) error {
	n, err := r.queries.CountCategories(ctx, scope.TenantID)
	if err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	if n > 0 {
		return nil
	}
	return r.inTx(ctx, func(q *Queries) error {
		for i, c := range defaults {
			if err := q.CreateCategory(ctx, CreateCategoryParams{
				ID:       c.ID,
				TenantID: scope.TenantID,
				Name:     c.Name,
				ParentID: c.ParentID,
				Position: int64(i),
			}); err != nil {
				return fmt.Errorf("create category %s: %w", c.ID, err)
			}
		}
		slog.InfoContext(ctx, "Seeded categories", "tenant_id", scope.TenantID, "count", len(defaults))
		return nil
	})
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, scope core.Scope) ([]core.Account, error) {
	rows, err := r.queries.ListActiveAccounts(ctx, scope.TenantID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]core.Account, len(rows))
	for i, a := range rows {
		out[i] = accountToCore(a)
	}
	return out, nil
}

// CreateAccount stores the account and its locked opening-balance movement in
// one transaction.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, scope core.Scope, a core.Account, openedOn core.Date) (string, error) {
	if err := validateAccount(a, openedOn); err != nil {
		return "", err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := r.timestamp()
	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.CreateAccount(ctx, CreateAccountParams{
			ID:                  a.ID,
			TenantID:            scope.TenantID,
			Name:                a.Name,
			Type:                string(a.Type),
			Code:                a.Code,
			OpeningBalanceCents: a.OpeningBalance.Cents,
			CreatedAt:           now,
		}); err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		opening := openingMovement(a, openedOn)
		opening.ID = uuid.NewString()
		opening.TenantID = scope.TenantID
		opening.CreatedAt = now
		if err := q.CreateMovement(ctx, opening); err != nil {
			return fmt.Errorf("create opening balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Account saved to SQLite",
		"tenant_id", scope.TenantID,
		"account_id", a.ID,
		"type", a.Type,
		"opening_balance_cents", a.OpeningBalance.Cents)
	return a.ID, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, scope core.Scope) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx, scope.TenantID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, 0, len(rows))
	for _, c := range rows {
		if !c.IsSystem {
			out = append(out, categoryToCore(c))
		}
	}
	return out, nil
}

func (r *SQLiteRepository) ListMovements(ctx context.Context, scope core.Scope, accountID string) (core.AccountLedger, error) {
	acc, err := r.queries.GetAccount(ctx, scope.TenantID, accountID)
	if isNoRows(err) {
		return core.AccountLedger{}, fmt.Errorf("account %s: %w", accountID, core.ErrNotFound)
	}
	if err != nil {
		return core.AccountLedger{}, fmt.Errorf("get account: %w", err)
	}

	cats, err := r.queries.ListCategories(ctx, scope.TenantID)
	if err != nil {
		return core.AccountLedger{}, fmt.Errorf("list categories: %w", err)
	}
	all := make([]core.Category, len(cats))
	for i, c := range cats {
		all[i] = categoryToCore(c)
	}
	tree := ledger.NewCategoryTree(all)

	rows, err := r.queries.ListMovementsByAccount(ctx, scope.TenantID, accountID)
	if err != nil {
		return core.AccountLedger{}, fmt.Errorf("list movements: %w", err)
	}
	ms := make([]core.Movement, 0, len(rows))
	for _, row := range rows {
		m, err := movementToCore(row)
		if err != nil {
			return core.AccountLedger{}, err
		}
		m.CategoryLabel = tree.Label(m.CategoryID)
		ms = append(ms, m)
	}
	balances := ledger.ComputeRunningBalances(ms)
	for i := range ms {
		ms[i].RunningBalance = balances[ms[i].ID]
	}

	t, err := r.queries.GetAccountTotals(ctx, scope.TenantID, accountID)
	if err != nil {
		return core.AccountLedger{}, fmt.Errorf("get account totals: %w", err)
	}
	totals := core.Totals{
		Inflow:  core.Cents(t.InflowCents),
		Outflow: core.Cents(t.OutflowCents),
		Net:     core.Cents(t.InflowCents - t.OutflowCents),
	}

	return core.AccountLedger{
		AccountID:   acc.ID,
		AccountName: acc.Name,
		Movements:   ms,
		Totals:      &totals,
	}, nil
}

func (r *SQLiteRepository) CreateMovement(ctx context.Context, scope core.Scope, p core.MovementPayload) (string, error) {
	if err := r.checkPayload(ctx, r.queries, scope, p); err != nil {
		return "", err
	}
	m := payloadToRow(scope, p, p.Note, p.CategoryID)
	m.ID = uuid.NewString()
	m.CreatedAt = r.timestamp()
	if err := r.queries.CreateMovement(ctx, m); err != nil {
		return "", fmt.Errorf("create movement: %w", err)
	}

	slog.InfoContext(ctx, "Movement saved to SQLite",
		"tenant_id", scope.TenantID,
		"movement_id", m.ID,
		"account_id", m.AccountID,
		"type", m.Type,
		"amount_cents", m.AmountCents,
		"date", m.Date)
	return m.ID, nil
}

func (r *SQLiteRepository) UpdateMovement(ctx context.Context, scope core.Scope, id string, p core.MovementPayload) error {
	if err := r.mutable(ctx, scope, id, "update"); err != nil {
		return err
	}
	if err := r.checkPayload(ctx, r.queries, scope, p); err != nil {
		return err
	}
	m := payloadToRow(scope, p, p.Note, p.CategoryID)
	m.ID = id
	n, err := r.queries.UpdateMovement(ctx, m)
	if err != nil {
		return fmt.Errorf("update movement: %w", err)
	}
	if n == 0 {
		// Locked between the check and the write.
		return &core.LockedRecordError{MovementID: id, Operation: "update"}
	}
	slog.InfoContext(ctx, "Movement updated", "tenant_id", scope.TenantID, "movement_id", id)
	return nil
}

func (r *SQLiteRepository) DeleteMovement(ctx context.Context, scope core.Scope, id string) error {
	if err := r.mutable(ctx, scope, id, "delete"); err != nil {
		return err
	}
	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.DeleteAttachmentsByMovement(ctx, scope.TenantID, id); err != nil {
			return fmt.Errorf("delete attachments: %w", err)
		}
		n, err := q.DeleteMovement(ctx, scope.TenantID, id)
		if err != nil {
			return fmt.Errorf("delete movement: %w", err)
		}
		if n == 0 {
			return &core.LockedRecordError{MovementID: id, Operation: "delete"}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Movement deleted", "tenant_id", scope.TenantID, "movement_id", id)
	return nil
}

// LockMovement marks a movement as included in a submitted reconciliation.
func (r *SQLiteRepository) LockMovement(ctx context.Context, scope core.Scope, id string) error {
	n, err := r.queries.LockMovement(ctx, scope.TenantID, id)
	if err != nil {
		return fmt.Errorf("lock movement: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("movement %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// CreateTransfer writes both legs in one transaction: either both exist
// afterwards or neither does.
func (r *SQLiteRepository) CreateTransfer(ctx context.Context, scope core.Scope, outflow, inflow core.MovementPayload) (core.TransferReceipt, error) {
	link := outflow.TransferLink
	if link == "" {
		link = uuid.NewString()
	}
	var receipt core.TransferReceipt
	err := r.inTx(ctx, func(q *Queries) error {
		src, err := q.GetAccount(ctx, scope.TenantID, outflow.AccountID)
		if err != nil {
			return accountLookupError(outflow.AccountID, err)
		}
		dst, err := q.GetAccount(ctx, scope.TenantID, inflow.AccountID)
		if err != nil {
			return accountLookupError(inflow.AccountID, err)
		}
		for _, p := range []core.MovementPayload{outflow, inflow} {
			if err := r.checkPayload(ctx, q, scope, p); err != nil {
				return err
			}
		}
		category, err := r.transferCategory(ctx, q, scope)
		if err != nil {
			return err
		}

		outNote, inNote := books.TransferNotes(src.Name, dst.Name, outflow.Note)
		now := r.timestamp()
		out := payloadToRow(scope, outflow, outNote, category)
		out.ID, out.SpecialKind, out.TransferLink, out.CreatedAt = uuid.NewString(), string(core.Transfer), link, now
		in := payloadToRow(scope, inflow, inNote, category)
		in.ID, in.SpecialKind, in.TransferLink, in.CreatedAt = uuid.NewString(), string(core.Transfer), link, now

		if err := q.CreateMovement(ctx, out); err != nil {
			return fmt.Errorf("create outflow leg: %w", err)
		}
		if err := q.CreateMovement(ctx, in); err != nil {
			return fmt.Errorf("create inflow leg: %w", err)
		}
		receipt = core.TransferReceipt{OutflowID: out.ID, InflowID: in.ID}
		return nil
	})
	if err != nil {
		return core.TransferReceipt{}, err
	}

	slog.InfoContext(ctx, "Transfer saved to SQLite",
		"tenant_id", scope.TenantID,
		"link_id", link,
		"outflow_id", receipt.OutflowID,
		"inflow_id", receipt.InflowID,
		"amount_cents", outflow.Amount.Cents)
	return receipt, nil
}

func (r *SQLiteRepository) ListAttachments(ctx context.Context, scope core.Scope, movementID string) ([]core.Attachment, error) {
	rows, err := r.queries.ListAttachments(ctx, scope.TenantID, movementID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	out := make([]core.Attachment, len(rows))
	for i, a := range rows {
		out[i] = attachmentToCore(a)
	}
	return out, nil
}

func (r *SQLiteRepository) UploadAttachment(ctx context.Context, scope core.Scope, movementID string, file core.AttachmentUpload) (core.Attachment, error) {
	if err := file.Validate(); err != nil {
		return core.Attachment{}, err
	}
	if _, err := r.queries.GetMovement(ctx, scope.TenantID, movementID); err != nil {
		if isNoRows(err) {
			return core.Attachment{}, fmt.Errorf("movement %s: %w", movementID, core.ErrNotFound)
		}
		return core.Attachment{}, fmt.Errorf("get movement: %w", err)
	}
	row := Attachment{
		ID:          uuid.NewString(),
		TenantID:    scope.TenantID,
		MovementID:  movementID,
		FileName:    file.FileName,
		ContentType: file.ContentType,
		Size:        int64(len(file.Data)),
		Data:        file.Data,
		UploadedAt:  r.timestamp(),
	}
	if err := r.queries.CreateAttachment(ctx, row); err != nil {
		return core.Attachment{}, fmt.Errorf("create attachment: %w", err)
	}
	slog.InfoContext(ctx, "Attachment saved to SQLite",
		"tenant_id", scope.TenantID, "movement_id", movementID, "attachment_id", row.ID, "size", row.Size)
	return attachmentToCore(row), nil
}

func (r *SQLiteRepository) DownloadAttachment(ctx context.Context, scope core.Scope, attachmentID string) (core.Attachment, []byte, error) {
	row, err := r.queries.GetAttachment(ctx, scope.TenantID, attachmentID)
	if isNoRows(err) {
		return core.Attachment{}, nil, fmt.Errorf("attachment %s: %w", attachmentID, core.ErrNotFound)
	}
	if err != nil {
		return core.Attachment{}, nil, fmt.Errorf("get attachment: %w", err)
	}
	return attachmentToCore(row), row.Data, nil
}

func (r *SQLiteRepository) DeleteAttachment(ctx context.Context, scope core.Scope, attachmentID string) error {
	n, err := r.queries.DeleteAttachment(ctx, scope.TenantID, attachmentID)
	if err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("attachment %s: %w", attachmentID, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Failed to roll back transaction", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) mutable(ctx context.Context, scope core.Scope, id, op string) error {
	row, err := r.queries.GetMovement(ctx, scope.TenantID, id)
	if isNoRows(err) {
		return fmt.Errorf("movement %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get movement: %w", err)
	}
	if row.Locked || row.SpecialKind == string(core.OpeningBalance) {
		return &core.LockedRecordError{MovementID: id, Operation: op}
	}
	return nil
}

// checkPayload validates p against the account, category and opening-date
// rules using q, so it can run inside a transaction.
func (r *SQLiteRepository) checkPayload(ctx context.Context, q *Queries, scope core.Scope, p core.MovementPayload) error {
	if p.SpecialKind == core.OpeningBalance {
		return core.NewValidationError("type", "opening-balance records are created with the account")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if _, err := q.GetAccount(ctx, scope.TenantID, p.AccountID); err != nil {
		return accountLookupError(p.AccountID, err)
	}
	if p.CategoryID != "" {
		ok, err := q.CategoryExists(ctx, scope.TenantID, p.CategoryID)
		if err != nil {
			return fmt.Errorf("check category: %w", err)
		}
		if !ok {
			return core.NewValidationError("category", "unknown category %s", p.CategoryID)
		}
	}
	opened, err := q.GetOpeningDate(ctx, scope.TenantID, p.AccountID)
	if err != nil && !isNoRows(err) {
		return fmt.Errorf("get opening date: %w", err)
	}
	if opened != "" && p.Date.String() < opened {
		return core.NewValidationError("date",
			"movements cannot be dated before %s, when the account was opened", opened)
	}
	return nil
}

func (r *SQLiteRepository) transferCategory(ctx context.Context, q *Queries, scope core.Scope) (string, error) {
	id, err := q.GetSystemCategory(ctx, scope.TenantID, books.TransferCategoryName)
	if err == nil {
		return id, nil
	}
	if !isNoRows(err) {
		return "", fmt.Errorf("get transfer category: %w", err)
	}
	id = uuid.NewString()
	if err := q.CreateCategory(ctx, CreateCategoryParams{
		ID:       id,
		TenantID: scope.TenantID,
		Name:     books.TransferCategoryName,
		IsSystem: true,
	}); err != nil {
		return "", fmt.Errorf("create transfer category: %w", err)
	}
	slog.InfoContext(ctx, "Created system category", "tenant_id", scope.TenantID, "name", books.TransferCategoryName)
	return id, nil
}

func (r *SQLiteRepository) timestamp() string {
	return r.now().UTC().Format(time.RFC3339Nano)
}

func accountLookupError(id string, err error) error {
	if isNoRows(err) {
		return fmt.Errorf("account %s: %w", id, core.ErrNotFound)
	}
	return fmt.Errorf("get account %s: %w", id, err)
}

func validateAccount(a core.Account, openedOn core.Date) error {
	var errs core.ValidationErrors
	if strings.TrimSpace(a.Name) == "" {
		errs = append(errs, core.ValidationError{Field: "name", Message: "account name is required"})
	}
	if !a.Type.Valid() {
		errs = append(errs, core.ValidationError{Field: "type", Message: fmt.Sprintf("unknown account type %q", a.Type)})
	}
	if openedOn.IsZero() {
		errs = append(errs, core.ValidationError{Field: "date", Message: "opening date is required"})
	}
	return errs.OrNil()
}
