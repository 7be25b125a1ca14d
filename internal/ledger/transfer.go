package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"registri/internal/core"
)

// TransferSubmitter is the ledger-mutation collaborator that accepts both
// legs of a transfer as one logical request.
type TransferSubmitter interface {
	CreateTransfer(ctx context.Context, scope core.Scope, outflow, inflow core.MovementPayload) (core.TransferReceipt, error)
}

// TransferIntent pairs the two movement-creation payloads of a giroconto.
type TransferIntent struct {
	LinkID  string
	Outflow core.MovementPayload
	Inflow  core.MovementPayload
}

// BuildTransfer validates a transfer and expands it into its two legs: an
// outflow on source and an inflow on destination sharing date, amount and
// note, tagged with a common link id.
func BuildTransfer(sourceID, destinationID string, date core.Date, amount core.Money, note string) (TransferIntent, error) {
	sourceID = strings.TrimSpace(sourceID)
	destinationID = strings.TrimSpace(destinationID)
	note = strings.TrimSpace(note)

	var errs core.ValidationErrors
	if sourceID == "" {
		errs = append(errs, core.ValidationError{Field: "source", Message: "select the source account"})
	}
	if destinationID == "" {
		errs = append(errs, core.ValidationError{Field: "destination", Message: "select the destination account"})
	}
	if sourceID != "" && sourceID == destinationID {
		errs = append(errs, core.ValidationError{Field: "destination", Message: "source and destination accounts must differ"})
	}
	if date.IsZero() {
		errs = append(errs, core.ValidationError{Field: "date", Message: "date is required"})
	}
	if amount.Cents <= 0 {
		errs = append(errs, core.ValidationError{Field: "amount", Message: "amount must be greater than zero"})
	}
	if len([]rune(note)) > core.MaxNoteLength {
		errs = append(errs, core.ValidationError{Field: "note", Message: "note too long (max 200 characters)"})
	}
	if err := errs.OrNil(); err != nil {
		return TransferIntent{}, err
	}

	link := uuid.NewString()
	leg := func(account string, t core.MovementType) core.MovementPayload {
		return core.MovementPayload{
			AccountID:    account,
			Date:         date,
			Type:         t,
			Amount:       amount,
			Note:         note,
			SpecialKind:  core.Transfer,
			TransferLink: link,
		}
	}
	return TransferIntent{
		LinkID:  link,
		Outflow: leg(sourceID, core.Outflow),
		Inflow:  leg(destinationID, core.Inflow),
	}, nil
}

// TransferCoordinator submits transfer intents. It never rolls back locally:
// when only one leg is accepted it reports a *core.PartialTransferFailure.
type TransferCoordinator struct {
	submitter TransferSubmitter
}

func NewTransferCoordinator(submitter TransferSubmitter) *TransferCoordinator {
	return &TransferCoordinator{submitter: submitter}
}

// Submit sends both legs as one request.
func (c *TransferCoordinator) Submit(ctx context.Context, scope core.Scope, intent TransferIntent) (core.TransferReceipt, error) {
	if c.submitter == nil {
		return core.TransferReceipt{}, errors.New("transfer submitter not configured")
	}
	receipt, err := c.submitter.CreateTransfer(ctx, scope, intent.Outflow, intent.Inflow)

	out, in := receipt.OutflowID != "", receipt.InflowID != ""
	switch {
	case out && in:
		// Both legs exist; a trailing error (e.g. linking) still leaves a
		// complete pair, so report success.
		return receipt, nil
	case out != in:
		p := &core.PartialTransferFailure{LinkID: intent.LinkID, Cause: err}
		if out {
			p.AcceptedLeg, p.AcceptedID, p.RejectedLeg = core.Outflow, receipt.OutflowID, core.Inflow
		} else {
			p.AcceptedLeg, p.AcceptedID, p.RejectedLeg = core.Inflow, receipt.InflowID, core.Outflow
		}
		return receipt, p
	case err != nil:
		return receipt, fmt.Errorf("create transfer: %w", err)
	default:
		return receipt, errors.New("create transfer: backend accepted no leg")
	}
}

// Transfer builds and submits in one step.
func (c *TransferCoordinator) Transfer(ctx context.Context, scope core.Scope, sourceID, destinationID string, date core.Date, amount core.Money, note string) (core.TransferReceipt, error) {
	intent, err := BuildTransfer(sourceID, destinationID, date, amount, note)
	if err != nil {
		return core.TransferReceipt{}, err
	}
	return c.Submit(ctx, scope, intent)
}
