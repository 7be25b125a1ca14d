package storage

import (
	"context"
	"database/sql"
	"errors"
)

const createAccount = `INSERT INTO accounts (id, tenant_id, name, type, code, opening_balance_cents, active, created_at)
VALUES (?, ?, ?, ?, ?, ?, 1, ?)`

type CreateAccountParams struct {
	ID                  string
	TenantID            string
	Name                string
	Type                string
	Code                string
	OpeningBalanceCents int64
	CreatedAt           string
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) error {
	_, err := q.db.ExecContext(ctx, createAccount,
		arg.ID, arg.TenantID, arg.Name, arg.Type, arg.Code, arg.OpeningBalanceCents, arg.CreatedAt)
	return err
}

const listActiveAccounts = `SELECT id, tenant_id, name, type, code, opening_balance_cents, active, created_at
FROM accounts WHERE tenant_id = ? AND active = 1 ORDER BY name`

func (q *Queries) ListActiveAccounts(ctx context.Context, tenantID string) ([]Account, error) {
	rows, err := q.db.QueryContext(ctx, listActiveAccounts, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Account
	for rows.Next() {
		var i Account
		if err := rows.Scan(&i.ID, &i.TenantID, &i.Name, &i.Type, &i.Code, &i.OpeningBalanceCents, &i.Active, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getAccount = `SELECT id, tenant_id, name, type, code, opening_balance_cents, active, created_at
FROM accounts WHERE tenant_id = ? AND id = ?`

func (q *Queries) GetAccount(ctx context.Context, tenantID, id string) (Account, error) {
	var i Account
	err := q.db.QueryRowContext(ctx, getAccount, tenantID, id).Scan(
		&i.ID, &i.TenantID, &i.Name, &i.Type, &i.Code, &i.OpeningBalanceCents, &i.Active, &i.CreatedAt)
	return i, err
}

const listCategories = `SELECT id, tenant_id, name, COALESCE(parent_id, ''), is_system, position
FROM categories WHERE tenant_id = ? ORDER BY position, rowid`

// ListCategories returns every category of the tenant, system ones included.
func (q *Queries) ListCategories(ctx context.Context, tenantID string) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var i Category
		if err := rows.Scan(&i.ID, &i.TenantID, &i.Name, &i.ParentID, &i.IsSystem, &i.Position); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createCategory = `INSERT INTO categories (id, tenant_id, name, parent_id, is_system, position)
VALUES (?, ?, ?, NULLIF(?, ''), ?, ?)`

type CreateCategoryParams struct {
	ID       string
	TenantID string
	Name     string
	ParentID string
	IsSystem bool
	Position int64
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) error {
	_, err := q.db.ExecContext(ctx, createCategory, arg.ID, arg.TenantID, arg.Name, arg.ParentID, arg.IsSystem, arg.Position)
	return err
}

const countCategories = `SELECT COUNT(*) FROM categories WHERE tenant_id = ? AND is_system = 0`

func (q *Queries) CountCategories(ctx context.Context, tenantID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countCategories, tenantID).Scan(&n)
	return n, err
}

const getSystemCategory = `SELECT id FROM categories WHERE tenant_id = ? AND is_system = 1 AND name = ? LIMIT 1`

func (q *Queries) GetSystemCategory(ctx context.Context, tenantID, name string) (string, error) {
	var id string
	err := q.db.QueryRowContext(ctx, getSystemCategory, tenantID, name).Scan(&id)
	return id, err
}

const categoryExists = `SELECT COUNT(*) FROM categories WHERE tenant_id = ? AND id = ?`

func (q *Queries) CategoryExists(ctx context.Context, tenantID, id string) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, categoryExists, tenantID, id).Scan(&n)
	return n > 0, err
}

const movementColumns = `id, tenant_id, account_id, date, type, amount_cents, COALESCE(category_id, ''),
note, locked, special_kind, transfer_link, created_at`

func scanMovement(row interface{ Scan(...any) error }) (Movement, error) {
	var i Movement
	err := row.Scan(&i.ID, &i.TenantID, &i.AccountID, &i.Date, &i.Type, &i.AmountCents, &i.CategoryID,
		&i.Note, &i.Locked, &i.SpecialKind, &i.TransferLink, &i.CreatedAt)
	return i, err
}

const createMovement = `INSERT INTO movements (id, tenant_id, account_id, date, type, amount_cents, category_id,
note, locked, special_kind, transfer_link, created_at)
VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?)`

func (q *Queries) CreateMovement(ctx context.Context, m Movement) error {
	_, err := q.db.ExecContext(ctx, createMovement, m.ID, m.TenantID, m.AccountID, m.Date, m.Type, m.AmountCents,
		m.CategoryID, m.Note, m.Locked, m.SpecialKind, m.TransferLink, m.CreatedAt)
	return err
}

const getMovement = `SELECT ` + movementColumns + ` FROM movements WHERE tenant_id = ? AND id = ?`

func (q *Queries) GetMovement(ctx context.Context, tenantID, id string) (Movement, error) {
	return scanMovement(q.db.QueryRowContext(ctx, getMovement, tenantID, id))
}

const listMovementsByAccount = `SELECT ` + movementColumns + ` FROM movements
WHERE tenant_id = ? AND account_id = ? ORDER BY date ASC, created_at ASC, id ASC`

func (q *Queries) ListMovementsByAccount(ctx context.Context, tenantID, accountID string) ([]Movement, error) {
	rows, err := q.db.QueryContext(ctx, listMovementsByAccount, tenantID, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Movement
	for rows.Next() {
		i, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const updateMovement = `UPDATE movements SET account_id = ?, date = ?, type = ?, amount_cents = ?,
category_id = NULLIF(?, ''), note = ? WHERE tenant_id = ? AND id = ? AND locked = 0`

func (q *Queries) UpdateMovement(ctx context.Context, m Movement) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateMovement, m.AccountID, m.Date, m.Type, m.AmountCents,
		m.CategoryID, m.Note, m.TenantID, m.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteMovement = `DELETE FROM movements WHERE tenant_id = ? AND id = ? AND locked = 0`

func (q *Queries) DeleteMovement(ctx context.Context, tenantID, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteMovement, tenantID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const lockMovement = `UPDATE movements SET locked = 1 WHERE tenant_id = ? AND id = ?`

func (q *Queries) LockMovement(ctx context.Context, tenantID, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, lockMovement, tenantID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getOpeningDate = `SELECT date FROM movements
WHERE tenant_id = ? AND account_id = ? AND special_kind = 'saldo_iniziale' LIMIT 1`

func (q *Queries) GetOpeningDate(ctx context.Context, tenantID, accountID string) (string, error) {
	var d string
	err := q.db.QueryRowContext(ctx, getOpeningDate, tenantID, accountID).Scan(&d)
	return d, err
}

const getAccountTotals = `SELECT
    COALESCE(SUM(CASE WHEN type = 'entrata' THEN amount_cents ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN type = 'uscita' THEN amount_cents ELSE 0 END), 0)
FROM movements WHERE tenant_id = ? AND account_id = ?`

func (q *Queries) GetAccountTotals(ctx context.Context, tenantID, accountID string) (AccountTotals, error) {
	var t AccountTotals
	err := q.db.QueryRowContext(ctx, getAccountTotals, tenantID, accountID).Scan(&t.InflowCents, &t.OutflowCents)
	return t, err
}

const createAttachment = `INSERT INTO attachments (id, tenant_id, movement_id, file_name, content_type, size, data, uploaded_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateAttachment(ctx context.Context, a Attachment) error {
	_, err := q.db.ExecContext(ctx, createAttachment, a.ID, a.TenantID, a.MovementID, a.FileName, a.ContentType, a.Size, a.Data, a.UploadedAt)
	return err
}

const listAttachments = `SELECT id, tenant_id, movement_id, file_name, content_type, size, uploaded_at
FROM attachments WHERE tenant_id = ? AND movement_id = ? ORDER BY uploaded_at DESC, id`

func (q *Queries) ListAttachments(ctx context.Context, tenantID, movementID string) ([]Attachment, error) {
	rows, err := q.db.QueryContext(ctx, listAttachments, tenantID, movementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Attachment
	for rows.Next() {
		var i Attachment
		if err := rows.Scan(&i.ID, &i.TenantID, &i.MovementID, &i.FileName, &i.ContentType, &i.Size, &i.UploadedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getAttachment = `SELECT id, tenant_id, movement_id, file_name, content_type, size, data, uploaded_at
FROM attachments WHERE tenant_id = ? AND id = ?`

func (q *Queries) GetAttachment(ctx context.Context, tenantID, id string) (Attachment, error) {
	var i Attachment
	err := q.db.QueryRowContext(ctx, getAttachment, tenantID, id).Scan(
		&i.ID, &i.TenantID, &i.MovementID, &i.FileName, &i.ContentType, &i.Size, &i.Data, &i.UploadedAt)
	return i, err
}

const deleteAttachment = `DELETE FROM attachments WHERE tenant_id = ? AND id = ?`

func (q *Queries) DeleteAttachment(ctx context.Context, tenantID, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteAttachment, tenantID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteAttachmentsByMovement = `DELETE FROM attachments WHERE tenant_id = ? AND movement_id = ?`

func (q *Queries) DeleteAttachmentsByMovement(ctx context.Context, tenantID, movementID string) error {
	_, err := q.db.ExecContext(ctx, deleteAttachmentsByMovement, tenantID, movementID)
	return err
}

// isNoRows reports whether err is sql.ErrNoRows.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
