package books

import (
	"context"

	"registri/internal/core"
)

// Ports for the bookkeeping backend. Every operation is scoped by the
// caller's tenant and credential, which implementations forward untouched.
type (
	MovementLister interface {
		// ListMovements returns the full history of one account.
		ListMovements(ctx context.Context, scope core.Scope, accountID string) (core.AccountLedger, error)
	}

	CategoryLister interface {
		ListCategories(ctx context.Context, scope core.Scope) ([]core.Category, error)
	}

	AccountLister interface {
		ListAccounts(ctx context.Context, scope core.Scope) ([]core.Account, error)
	}

	// AccountWriter creates an account together with its locked
	// opening-balance movement dated at openedOn.
	AccountWriter interface {
		CreateAccount(ctx context.Context, scope core.Scope, a core.Account, openedOn core.Date) (string, error)
	}

	// MovementWriter mutates single movements. Update and delete of a locked
	// movement fail with *core.LockedRecordError.
	MovementWriter interface {
		CreateMovement(ctx context.Context, scope core.Scope, p core.MovementPayload) (string, error)
		UpdateMovement(ctx context.Context, scope core.Scope, id string, p core.MovementPayload) error
		DeleteMovement(ctx context.Context, scope core.Scope, id string) error
	}

	// TransferWriter creates both legs of a giroconto as one request. The
	// receipt carries the id of every leg that was accepted, even on error.
	TransferWriter interface {
		CreateTransfer(ctx context.Context, scope core.Scope, outflow, inflow core.MovementPayload) (core.TransferReceipt, error)
	}

	AttachmentStore interface {
		ListAttachments(ctx context.Context, scope core.Scope, movementID string) ([]core.Attachment, error)
		UploadAttachment(ctx context.Context, scope core.Scope, movementID string, file core.AttachmentUpload) (core.Attachment, error)
		DownloadAttachment(ctx context.Context, scope core.Scope, attachmentID string) (core.Attachment, []byte, error)
		DeleteAttachment(ctx context.Context, scope core.Scope, attachmentID string) error
	}

	// Books is everything a ledger session needs from a backend.
	Books interface {
		MovementLister
		CategoryLister
		AccountLister
		AccountWriter
		MovementWriter
		TransferWriter
		AttachmentStore
	}
)

// Transfer leg notes and the system category both legs are filed under.
const (
	TransferCategoryName = "Giroconto"
	transferOutPrefix    = "Giroconto per C/C "
	transferInPrefix     = "Giroconto da C/C "
)

// TransferNotes composes the stored note of each leg from the account names
// and the user's note.
func TransferNotes(sourceName, destinationName, note string) (outflow, inflow string) {
	outflow = transferOutPrefix + destinationName
	inflow = transferInPrefix + sourceName
	if note != "" {
		outflow += " - " + note
		inflow += " - " + note
	}
	return outflow, inflow
}
