package remote

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"registri/internal/core"
)

// Wire shapes of the /api/contabilita backend.

type movementDTO struct {
	ID               string          `json:"id"`
	AccountID        string          `json:"registro_id,omitempty"`
	Date             string          `json:"data_movimento"`
	Type             string          `json:"tipo_movimento"`
	Amount           decimal.Decimal `json:"importo"`
	Note             *string         `json:"note"`
	Description      *string         `json:"descrizione"`
	Locked           bool            `json:"bloccato"`
	SpecialKind      *string         `json:"tipo_speciale"`
	CategoryID       *string         `json:"categoria_id"`
	CategoryLabel    string          `json:"categoria_completa"`
	RunningBalance   decimal.Decimal `json:"saldo_progressivo"`
	TransferLinkedID *string         `json:"giroconto_collegato_id"`
	CreatedAt        string          `json:"created_at"`
}

type accountLedgerDTO struct {
	AccountName string              `json:"conto_nome"`
	Balance     decimal.NullDecimal `json:"saldo_attuale"`
	Inflow      decimal.NullDecimal `json:"totale_entrate"`
	Outflow     decimal.NullDecimal `json:"totale_uscite"`
	Net         decimal.NullDecimal `json:"saldo"`
	Movements   []movementDTO       `json:"movimenti"`
}

type categoryDTO struct {
	ID       string  `json:"id"`
	Name     string  `json:"nome"`
	ParentID *string `json:"parent_id"`
}

type categoriesDTO struct {
	Categories []categoryDTO `json:"categorie"`
}

type accountDTO struct {
	ID             string              `json:"id"`
	Name           string              `json:"nome"`
	Type           string              `json:"tipo"`
	Code           *string             `json:"codice"`
	OpeningBalance decimal.NullDecimal `json:"saldo_iniziale"`
	Active         *bool               `json:"attivo"`
}

type createAccountDTO struct {
	Name           string          `json:"nome"`
	Type           string          `json:"tipo"`
	Code           string          `json:"codice,omitempty"`
	OpeningBalance decimal.Decimal `json:"saldo_iniziale"`
	OpenedOn       string          `json:"data_inizio"`
}

type movementRequestDTO struct {
	AccountID  string          `json:"registro_id"`
	CategoryID *string         `json:"categoria_id"`
	Date       string          `json:"data_movimento"`
	Type       string          `json:"tipo_movimento"`
	Amount     decimal.Decimal `json:"importo"`
	Note       string          `json:"note"`
}

type transferRequestDTO struct {
	SourceID      string          `json:"conto_origine_id"`
	DestinationID string          `json:"conto_destinazione_id"`
	Date          string          `json:"data_movimento"`
	Amount        decimal.Decimal `json:"importo"`
	Note          string          `json:"note"`
	LinkID        string          `json:"link_id,omitempty"`
}

type transferResponseDTO struct {
	OutflowID string `json:"movimento_uscita_id"`
	InflowID  string `json:"movimento_entrata_id"`
	Detail    string `json:"detail"`
}

type createdDTO struct {
	ID string `json:"id"`
}

type attachmentDTO struct {
	ID           string `json:"id"`
	FileName     string `json:"nome_file"`
	OriginalName string `json:"nome_originale"`
	ContentType  string `json:"tipo_file"`
	Size         int64  `json:"dimensione"`
	CreatedAt    string `json:"created_at"`
}

type errorDTO struct {
	Detail any `json:"detail"`
}

func (d movementDTO) toCore(accountID string) (core.Movement, error) {
	date, err := core.ParseDate(d.Date)
	if err != nil {
		return core.Movement{}, fmt.Errorf("movement %s: bad date %q: %w", d.ID, d.Date, err)
	}
	amount, err := core.MoneyFromDecimal(d.Amount)
	if err != nil {
		return core.Movement{}, fmt.Errorf("movement %s: %w", d.ID, err)
	}
	balance, err := core.MoneyFromDecimal(d.RunningBalance)
	if err != nil {
		return core.Movement{}, fmt.Errorf("movement %s: %w", d.ID, err)
	}
	m := core.Movement{
		ID:             d.ID,
		AccountID:      accountID,
		Date:           date,
		Type:           core.MovementType(d.Type),
		Amount:         amount,
		CategoryID:     deref(d.CategoryID),
		CategoryLabel:  d.CategoryLabel,
		Note:           firstNonEmpty(deref(d.Note), deref(d.Description)),
		Locked:         d.Locked,
		SpecialKind:    core.SpecialKind(deref(d.SpecialKind)),
		TransferLink:   deref(d.TransferLinkedID),
		CreatedAt:      parseTimestamp(d.CreatedAt),
		RunningBalance: balance,
	}
	if d.AccountID != "" {
		m.AccountID = d.AccountID
	}
	if !m.Type.Valid() {
		return core.Movement{}, fmt.Errorf("movement %s: unknown type %q", d.ID, d.Type)
	}
	// The opening-balance record is locked whatever the flag says.
	if m.IsOpeningBalance() {
		m.Locked = true
	}
	return m, nil
}

func (d accountLedgerDTO) toCore(accountID string) (core.AccountLedger, error) {
	l := core.AccountLedger{AccountID: accountID, AccountName: d.AccountName}
	for _, md := range d.Movements {
		m, err := md.toCore(accountID)
		if err != nil {
			return core.AccountLedger{}, err
		}
		l.Movements = append(l.Movements, m)
	}
	if d.Inflow.Valid && d.Outflow.Valid {
		in, err := core.MoneyFromDecimal(d.Inflow.Decimal)
		if err != nil {
			return core.AccountLedger{}, err
		}
		out, err := core.MoneyFromDecimal(d.Outflow.Decimal)
		if err != nil {
			return core.AccountLedger{}, err
		}
		net := in.Sub(out)
		if d.Net.Valid {
			if net, err = core.MoneyFromDecimal(d.Net.Decimal); err != nil {
				return core.AccountLedger{}, err
			}
		}
		l.Totals = &core.Totals{Inflow: in, Outflow: out, Net: net}
	}
	return l, nil
}

func (d accountDTO) toCore() (core.Account, error) {
	a := core.Account{
		ID:     d.ID,
		Name:   d.Name,
		Type:   core.AccountType(d.Type),
		Code:   deref(d.Code),
		Active: d.Active == nil || *d.Active,
	}
	if d.OpeningBalance.Valid {
		ob, err := core.MoneyFromDecimal(d.OpeningBalance.Decimal)
		if err != nil {
			return core.Account{}, fmt.Errorf("account %s: %w", d.ID, err)
		}
		a.OpeningBalance = ob
	}
	return a, nil
}

func (d attachmentDTO) toCore(movementID string) core.Attachment {
	return core.Attachment{
		ID:          d.ID,
		MovementID:  movementID,
		FileName:    firstNonEmpty(d.OriginalName, d.FileName),
		ContentType: d.ContentType,
		Size:        d.Size,
		UploadedAt:  parseTimestamp(d.CreatedAt),
	}
}

func movementRequest(p core.MovementPayload) movementRequestDTO {
	req := movementRequestDTO{
		AccountID: p.AccountID,
		Date:      p.Date.String(),
		Type:      string(p.Type),
		Amount:    p.Amount.Decimal(),
		Note:      p.Note,
	}
	if p.CategoryID != "" {
		id := p.CategoryID
		req.CategoryID = &id
	}
	return req
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	time.DateTime,
	time.DateOnly,
}

// parseTimestamp accepts the ISO forms the backend emits, with or without a
// zone. Unparseable input yields the zero time, which sorts first.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
