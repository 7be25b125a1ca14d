package storage

import (
	"fmt"
	"time"

	"registri/internal/core"
)

func accountToCore(a Account) core.Account {
	return core.Account{
		ID:             a.ID,
		Name:           a.Name,
		Type:           core.AccountType(a.Type),
		Code:           a.Code,
		OpeningBalance: core.Cents(a.OpeningBalanceCents),
		Active:         a.Active,
	}
}

func categoryToCore(c Category) core.Category {
	return core.Category{ID: c.ID, Name: c.Name, ParentID: c.ParentID}
}

func movementToCore(m Movement) (core.Movement, error) {
	date, err := core.ParseDate(m.Date)
	if err != nil {
		return core.Movement{}, fmt.Errorf("movement %s: invalid date %q: %w", m.ID, m.Date, err)
	}
	created, _ := time.Parse(time.RFC3339Nano, m.CreatedAt)
	return core.Movement{
		ID:           m.ID,
		AccountID:    m.AccountID,
		Date:         date,
		Type:         core.MovementType(m.Type),
		Amount:       core.Cents(m.AmountCents),
		CategoryID:   m.CategoryID,
		Note:         m.Note,
		Locked:       m.Locked || m.SpecialKind == string(core.OpeningBalance),
		SpecialKind:  core.SpecialKind(m.SpecialKind),
		TransferLink: m.TransferLink,
		CreatedAt:    created,
	}, nil
}

func attachmentToCore(a Attachment) core.Attachment {
	uploaded, _ := time.Parse(time.RFC3339Nano, a.UploadedAt)
	return core.Attachment{
		ID:          a.ID,
		MovementID:  a.MovementID,
		FileName:    a.FileName,
		ContentType: a.ContentType,
		Size:        a.Size,
		UploadedAt:  uploaded,
	}
}

func payloadToRow(scope core.Scope, p core.MovementPayload, note, categoryID string) Movement {
	return Movement{
		TenantID:     scope.TenantID,
		AccountID:    p.AccountID,
		Date:         p.Date.String(),
		Type:         string(p.Type),
		AmountCents:  p.Amount.Cents,
		CategoryID:   categoryID,
		Note:         note,
		SpecialKind:  string(p.SpecialKind),
		TransferLink: p.TransferLink,
	}
}

// openingMovement is the locked record carrying an account's opening balance.
// A negative balance is stored as an outflow of the absolute amount.
func openingMovement(a core.Account, openedOn core.Date) Movement {
	m := Movement{
		AccountID:   a.ID,
		Date:        openedOn.String(),
		Type:        string(core.Inflow),
		AmountCents: a.OpeningBalance.Cents,
		Note:        "Saldo iniziale",
		Locked:      true,
		SpecialKind: string(core.OpeningBalance),
	}
	if a.OpeningBalance.Cents < 0 {
		m.Type = string(core.Outflow)
		m.AmountCents = -a.OpeningBalance.Cents
	}
	return m
}
