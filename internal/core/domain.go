package core

import (
	"strings"
	"time"
)

const (
	Inflow  MovementType = "entrata"
	Outflow MovementType = "uscita"
)

const (
	// OpeningBalance marks the synthetic record carrying the balance from
	// before the account was adopted.
	OpeningBalance SpecialKind = "saldo_iniziale"
	// Transfer marks both legs of a giroconto.
	Transfer SpecialKind = "giroconto"
)

const (
	AccountCash             AccountType = "cassa"
	AccountBank             AccountType = "banca"
	AccountPostal           AccountType = "posta"
	AccountDebitCard        AccountType = "bancomat"
	AccountCreditCard       AccountType = "carta_credito"
	AccountPrepaid          AccountType = "prepagata"
	AccountDeposit          AccountType = "deposito"
	AccountSavings          AccountType = "risparmio"
	AccountInvestmentPolicy AccountType = "polizza"
	AccountSecurities       AccountType = "titoli"
)

// MaxNoteLength is the longest free-text note accepted on a movement.
const MaxNoteLength = 200

type (
	MovementType string
	SpecialKind  string
	AccountType  string

	Date struct {
		time.Time
	}

	// Scope is the opaque call context every backend operation is scoped by.
	// The engine propagates it and never inspects it.
	Scope struct {
		TenantID string
		Token    string
	}

	Movement struct {
		ID            string
		AccountID     string
		Date          Date
		Type          MovementType
		Amount        Money
		CategoryID    string
		CategoryLabel string // fully-qualified, e.g. "Entrate: Offerte"
		Note          string
		Locked        bool
		SpecialKind   SpecialKind
		TransferLink  string
		CreatedAt     time.Time

		// RunningBalance is whatever the backend sent. It is never used by
		// the view, which recomputes balances over the filtered set.
		RunningBalance Money
	}

	Category struct {
		ID       string
		Name     string
		ParentID string // empty for root categories
	}

	Account struct {
		ID             string
		Name           string
		Type           AccountType
		Code           string
		OpeningBalance Money
		Active         bool
	}

	// Totals are account-wide aggregates, never scoped to a filtered view.
	Totals struct {
		Inflow  Money
		Outflow Money
		Net     Money
	}

	// AccountLedger is the full movement history of one account as returned
	// by the backend. Totals is nil when the backend does not compute them.
	AccountLedger struct {
		AccountID   string
		AccountName string
		Movements   []Movement
		Totals      *Totals
	}

	// MovementPayload is a movement-creation (or update) intent.
	MovementPayload struct {
		AccountID    string
		Date         Date
		Type         MovementType
		Amount       Money
		CategoryID   string
		Note         string
		SpecialKind  SpecialKind
		TransferLink string
	}

	// TransferReceipt holds the ids of the legs the backend accepted.
	// A leg that was rejected has an empty id.
	TransferReceipt struct {
		OutflowID string
		InflowID  string
	}

	Attachment struct {
		ID          string
		MovementID  string
		FileName    string
		ContentType string
		Size        int64
		UploadedAt  time.Time
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD date. Anything after the date part of an
// ISO timestamp is ignored.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		s = s[:10]
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// Compare orders dates by calendar day only.
func (d Date) Compare(o Date) int {
	a, b := d.dayKey(), o.dayKey()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (d Date) dayKey() int {
	y, m, dd := d.Date()
	return y*10000 + int(m)*100 + dd
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (t MovementType) Valid() bool {
	return t == Inflow || t == Outflow
}

// Opposite returns the other movement direction.
func (t MovementType) Opposite() MovementType {
	if t == Inflow {
		return Outflow
	}
	return Inflow
}

func (t AccountType) Valid() bool {
	switch t {
	case AccountCash, AccountBank, AccountPostal, AccountDebitCard, AccountCreditCard,
		AccountPrepaid, AccountDeposit, AccountSavings, AccountInvestmentPolicy, AccountSecurities:
		return true
	}
	return false
}

// IsOpeningBalance reports whether m is the synthetic opening-balance record.
func (m Movement) IsOpeningBalance() bool {
	return m.SpecialKind == OpeningBalance
}

// Editable reports whether the movement may be edited or deleted.
func (m Movement) Editable() bool {
	return !m.Locked && !m.IsOpeningBalance()
}

// Signed returns the amount with its direction applied.
func (m Movement) Signed() Money {
	if m.Type == Outflow {
		return m.Amount.Neg()
	}
	return m.Amount
}

// Validate checks a movement or transfer-leg payload. Every failing field is
// reported.
func (p MovementPayload) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(p.AccountID) == "" {
		errs = append(errs, ValidationError{Field: "account", Message: "select an account"})
	}
	if p.Date.IsZero() {
		errs = append(errs, ValidationError{Field: "date", Message: "date is required"})
	}
	if !p.Type.Valid() {
		errs = append(errs, ValidationError{Field: "type", Message: "type must be inflow or outflow"})
	}
	if err := p.Amount.Validate(); err != nil {
		errs = append(errs, ValidationError{Field: "amount", Message: "amount must be greater than zero"})
	}
	if p.SpecialKind != Transfer && strings.TrimSpace(p.CategoryID) == "" {
		errs = append(errs, ValidationError{Field: "category", Message: "select a category"})
	}
	if len([]rune(p.Note)) > MaxNoteLength {
		errs = append(errs, ValidationError{Field: "note", Message: "note too long (max 200 characters)"})
	}
	return errs.OrNil()
}

// Payload returns the editable part of a stored movement.
func (m Movement) Payload() MovementPayload {
	return MovementPayload{
		AccountID:    m.AccountID,
		Date:         m.Date,
		Type:         m.Type,
		Amount:       m.Amount,
		CategoryID:   m.CategoryID,
		Note:         m.Note,
		SpecialKind:  m.SpecialKind,
		TransferLink: m.TransferLink,
	}
}

// MaxAttachmentSize is the largest file accepted as a movement attachment.
const MaxAttachmentSize = 10 << 20

var attachmentTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
}

// AttachmentUpload is a file to attach to a movement.
type AttachmentUpload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Extension returns the canonical extension for the upload's content type.
func (u AttachmentUpload) Extension() string {
	return attachmentTypes[u.ContentType]
}

func (u AttachmentUpload) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(u.FileName) == "" {
		errs = append(errs, ValidationError{Field: "file", Message: "file name is required"})
	}
	if _, ok := attachmentTypes[u.ContentType]; !ok {
		errs = append(errs, ValidationError{Field: "file", Message: "unsupported file type " + u.ContentType + " (PDF, JPG, PNG, WEBP)"})
	}
	switch {
	case len(u.Data) == 0:
		errs = append(errs, ValidationError{Field: "file", Message: "file is empty"})
	case len(u.Data) > MaxAttachmentSize:
		errs = append(errs, ValidationError{Field: "file", Message: "file too large (max 10MB)"})
	}
	return errs.OrNil()
}
