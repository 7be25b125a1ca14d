package adapters

import (
	"context"

	"registri/internal/books"
	"registri/internal/core"
	"registri/internal/services"
	"registri/internal/storage"
)

// SQLiteAdapter serves reads straight from SQLiteRepository and routes writes
// through LedgerService so every mutation is announced on the event bus.
type SQLiteAdapter struct {
	storage *storage.SQLiteRepository
	service *services.LedgerService
}

var _ books.Books = (*SQLiteAdapter)(nil)

func NewSQLiteAdapter(storage *storage.SQLiteRepository, service *services.LedgerService) *SQLiteAdapter {
	return &SQLiteAdapter{
		storage: storage,
		service: service,
	}
}

// Seed gives a tenant the default chart of categories if it has none.
func (a *SQLiteAdapter) Seed(ctx context.Context, scope core.Scope, defaults []core.Category) error {
	return a.storage.EnsureCategories(ctx, scope, defaults)
}

// Lock marks a movement as part of a submitted reconciliation.
func (a *SQLiteAdapter) Lock(ctx context.Context, scope core.Scope, movementID string) error {
	return a.storage.LockMovement(ctx, scope, movementID)
}

func (a *SQLiteAdapter) ListAccounts(ctx context.Context, scope core.Scope) ([]core.Account, error) {
	return a.storage.ListAccounts(ctx, scope)
}

func (a *SQLiteAdapter) ListCategories(ctx context.Context, scope core.Scope) ([]core.Category, error) {
	return a.storage.ListCategories(ctx, scope)
}

func (a *SQLiteAdapter) ListMovements(ctx context.Context, scope core.Scope, accountID string) (core.AccountLedger, error) {
	return a.storage.ListMovements(ctx, scope, accountID)
}

func (a *SQLiteAdapter) ListAttachments(ctx context.Context, scope core.Scope, movementID string) ([]core.Attachment, error) {
	return a.storage.ListAttachments(ctx, scope, movementID)
}

func (a *SQLiteAdapter) DownloadAttachment(ctx context.Context, scope core.Scope, attachmentID string) (core.Attachment, []byte, error) {
	return a.storage.DownloadAttachment(ctx, scope, attachmentID)
}

func (a *SQLiteAdapter) UploadAttachment(ctx context.Context, scope core.Scope, movementID string, file core.AttachmentUpload) (core.Attachment, error) {
	return a.storage.UploadAttachment(ctx, scope, movementID, file)
}

func (a *SQLiteAdapter) DeleteAttachment(ctx context.Context, scope core.Scope, attachmentID string) error {
	return a.storage.DeleteAttachment(ctx, scope, attachmentID)
}

func (a *SQLiteAdapter) CreateAccount(ctx context.Context, scope core.Scope, acc core.Account, openedOn core.Date) (string, error) {
	return a.service.CreateAccount(ctx, scope, acc, openedOn)
}

func (a *SQLiteAdapter) CreateMovement(ctx context.Context, scope core.Scope, p core.MovementPayload) (string, error) {
	return a.service.CreateMovement(ctx, scope, p)
}

func (a *SQLiteAdapter) UpdateMovement(ctx context.Context, scope core.Scope, id string, p core.MovementPayload) error {
	return a.service.UpdateMovement(ctx, scope, id, p)
}

func (a *SQLiteAdapter) DeleteMovement(ctx context.Context, scope core.Scope, id string) error {
	return a.service.DeleteMovement(ctx, scope, id)
}

func (a *SQLiteAdapter) CreateTransfer(ctx context.Context, scope core.Scope, outflow, inflow core.MovementPayload) (core.TransferReceipt, error) {
	return a.service.CreateTransfer(ctx, scope, outflow, inflow)
}

// Close closes the service, which owns the repository and the publisher.
func (a *SQLiteAdapter) Close() error {
	return a.service.Close()
}
