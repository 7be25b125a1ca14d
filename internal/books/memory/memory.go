package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"registri/internal/books"
	"registri/internal/core"
	"registri/internal/ledger"
)

// Store is an in-process backend. It enforces the same rules as the SQLite
// repository and is used by tests and the demo backend.
type Store struct {
	mu          sync.Mutex
	now         func() time.Time
	accounts    []core.Account
	categories  []core.Category
	system      []core.Category
	movements   map[string]core.Movement
	attachments map[string]stored
	failNext    map[string]error
	rejectLeg   core.MovementType
	rejectErr   error
}

type stored struct {
	meta core.Attachment
	data []byte
}

var _ books.Books = (*Store)(nil)

// New creates a store seeded with categories. Duplicate ids are dropped.
func New(categories []core.Category) *Store {
	return &Store{
		now:         time.Now,
		categories:  dedupe(categories),
		movements:   map[string]core.Movement{},
		attachments: map[string]stored{},
		failNext:    map[string]error{},
	}
}

// NewFromFiles seeds categories from base/seed_categories.txt, one
// "id;name;parent_id" record per line. Missing files fall back to defaults.
func NewFromFiles(base string) *Store {
	cats := readCategories(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = DefaultCategories()
	}
	return New(cats)
}

// DefaultCategories is a small chart of accounts for demo use.
func DefaultCategories() []core.Category {
	return []core.Category{
		{ID: "ent", Name: "Entrate"},
		{ID: "off", Name: "Offerte", ParentID: "ent"},
		{ID: "mat", Name: "Matrimoni", ParentID: "off"},
		{ID: "bat", Name: "Battesimi", ParentID: "off"},
		{ID: "aff", Name: "Affitti attivi", ParentID: "ent"},
		{ID: "usc", Name: "Uscite"},
		{ID: "ute", Name: "Utenze", ParentID: "usc"},
		{ID: "man", Name: "Manutenzione", ParentID: "usc"},
	}
}

// SetClock replaces the time source used for creation timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailNext makes the next call of op fail with err. op is the method name,
// e.g. "ListMovements".
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[op] = err
}

// RejectTransferLeg makes subsequent transfers reject the leg of type t with
// err while accepting the other one.
func (s *Store) RejectTransferLeg(t core.MovementType, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectLeg, s.rejectErr = t, err
}

// Lock marks a movement as part of a submitted reconciliation.
func (s *Store) Lock(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.movements[id]
	if !ok {
		return fmt.Errorf("movement %s: %w", id, core.ErrNotFound)
	}
	m.Locked = true
	s.movements[id] = m
	return nil
}

func (s *Store) injected(op string) error {
	if err, ok := s.failNext[op]; ok {
		delete(s.failNext, op)
		return err
	}
	return nil
}

func (s *Store) ListAccounts(_ context.Context, _ core.Scope) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("ListAccounts"); err != nil {
		return nil, err
	}
	out := make([]core.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if a.Active {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateAccount(_ context.Context, _ core.Scope, a core.Account, openedOn core.Date) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("CreateAccount"); err != nil {
		return "", err
	}
	if err := validateAccount(a, openedOn); err != nil {
		return "", err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if s.account(a.ID) != nil {
		return "", core.NewValidationError("account", "account %s already exists", a.ID)
	}
	a.Active = true
	s.accounts = append(s.accounts, a)

	opening := OpeningMovement(a, openedOn)
	opening.ID = uuid.NewString()
	opening.CreatedAt = s.now()
	s.movements[opening.ID] = opening
	return a.ID, nil
}

func (s *Store) ListCategories(_ context.Context, _ core.Scope) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("ListCategories"); err != nil {
		return nil, err
	}
	return append([]core.Category(nil), s.categories...), nil
}

func (s *Store) ListMovements(_ context.Context, _ core.Scope, accountID string) (core.AccountLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("ListMovements"); err != nil {
		return core.AccountLedger{}, err
	}
	acc := s.account(accountID)
	if acc == nil {
		return core.AccountLedger{}, fmt.Errorf("account %s: %w", accountID, core.ErrNotFound)
	}

	tree := ledger.NewCategoryTree(append(append([]core.Category(nil), s.categories...), s.system...))
	var ms []core.Movement
	for _, m := range s.movements {
		if m.AccountID == accountID {
			m.CategoryLabel = tree.Label(m.CategoryID)
			ms = append(ms, m)
		}
	}
	sort.Slice(ms, func(i, j int) bool {
		if c := ms[i].Date.Compare(ms[j].Date); c != 0 {
			return c < 0
		}
		if !ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CreatedAt.Before(ms[j].CreatedAt)
		}
		return ms[i].ID < ms[j].ID
	})
	balances := ledger.ComputeRunningBalances(ms)
	for i := range ms {
		ms[i].RunningBalance = balances[ms[i].ID]
	}
	totals := ledger.ComputeTotals(ms)
	return core.AccountLedger{
		AccountID:   acc.ID,
		AccountName: acc.Name,
		Movements:   ms,
		Totals:      &totals,
	}, nil
}

func (s *Store) CreateMovement(_ context.Context, _ core.Scope, p core.MovementPayload) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("CreateMovement"); err != nil {
		return "", err
	}
	if err := s.checkPayload(p); err != nil {
		return "", err
	}
	return s.insert(p, p.Note, p.CategoryID), nil
}

func (s *Store) UpdateMovement(_ context.Context, _ core.Scope, id string, p core.MovementPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("UpdateMovement"); err != nil {
		return err
	}
	m, err := s.mutable(id, "update")
	if err != nil {
		return err
	}
	if err := s.checkPayload(p); err != nil {
		return err
	}
	m.AccountID = p.AccountID
	m.Date = p.Date
	m.Type = p.Type
	m.Amount = p.Amount
	m.CategoryID = p.CategoryID
	m.Note = p.Note
	s.movements[id] = m
	return nil
}

func (s *Store) DeleteMovement(_ context.Context, _ core.Scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("DeleteMovement"); err != nil {
		return err
	}
	if _, err := s.mutable(id, "delete"); err != nil {
		return err
	}
	delete(s.movements, id)
	for aid, a := range s.attachments {
		if a.meta.MovementID == id {
			delete(s.attachments, aid)
		}
	}
	return nil
}

func (s *Store) CreateTransfer(_ context.Context, _ core.Scope, outflow, inflow core.MovementPayload) (core.TransferReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("CreateTransfer"); err != nil {
		return core.TransferReceipt{}, err
	}
	src, dst := s.account(outflow.AccountID), s.account(inflow.AccountID)
	if src == nil || dst == nil {
		return core.TransferReceipt{}, fmt.Errorf("transfer accounts: %w", core.ErrNotFound)
	}
	for _, p := range []core.MovementPayload{outflow, inflow} {
		if err := s.checkPayload(p); err != nil {
			return core.TransferReceipt{}, err
		}
	}

	category := s.transferCategory()
	outNote, inNote := books.TransferNotes(src.Name, dst.Name, outflow.Note)

	var receipt core.TransferReceipt
	if s.rejectLeg != core.Outflow {
		receipt.OutflowID = s.insert(outflow, outNote, category)
	}
	if s.rejectLeg != core.Inflow {
		receipt.InflowID = s.insert(inflow, inNote, category)
	}
	if s.rejectLeg != "" {
		return receipt, fmt.Errorf("%s leg rejected: %w", s.rejectLeg, s.rejectErr)
	}
	return receipt, nil
}

func (s *Store) ListAttachments(_ context.Context, _ core.Scope, movementID string) ([]core.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("ListAttachments"); err != nil {
		return nil, err
	}
	var out []core.Attachment
	for _, a := range s.attachments {
		if a.meta.MovementID == movementID {
			out = append(out, a.meta)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UploadAttachment(_ context.Context, _ core.Scope, movementID string, file core.AttachmentUpload) (core.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("UploadAttachment"); err != nil {
		return core.Attachment{}, err
	}
	if err := file.Validate(); err != nil {
		return core.Attachment{}, err
	}
	if _, ok := s.movements[movementID]; !ok {
		return core.Attachment{}, fmt.Errorf("movement %s: %w", movementID, core.ErrNotFound)
	}
	meta := core.Attachment{
		ID:          uuid.NewString(),
		MovementID:  movementID,
		FileName:    file.FileName,
		ContentType: file.ContentType,
		Size:        int64(len(file.Data)),
		UploadedAt:  s.now(),
	}
	s.attachments[meta.ID] = stored{meta: meta, data: append([]byte(nil), file.Data...)}
	return meta, nil
}

func (s *Store) DownloadAttachment(_ context.Context, _ core.Scope, attachmentID string) (core.Attachment, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("DownloadAttachment"); err != nil {
		return core.Attachment{}, nil, err
	}
	a, ok := s.attachments[attachmentID]
	if !ok {
		return core.Attachment{}, nil, fmt.Errorf("attachment %s: %w", attachmentID, core.ErrNotFound)
	}
	return a.meta, append([]byte(nil), a.data...), nil
}

func (s *Store) DeleteAttachment(_ context.Context, _ core.Scope, attachmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("DeleteAttachment"); err != nil {
		return err
	}
	if _, ok := s.attachments[attachmentID]; !ok {
		return fmt.Errorf("attachment %s: %w", attachmentID, core.ErrNotFound)
	}
	delete(s.attachments, attachmentID)
	return nil
}

// OpeningMovement is the locked record carrying an account's opening balance.
// A negative opening balance becomes an outflow of the absolute amount.
func OpeningMovement(a core.Account, openedOn core.Date) core.Movement {
	m := core.Movement{
		AccountID:   a.ID,
		Date:        openedOn,
		Type:        core.Inflow,
		Amount:      a.OpeningBalance,
		Note:        "Saldo iniziale",
		Locked:      true,
		SpecialKind: core.OpeningBalance,
	}
	if a.OpeningBalance.Cents < 0 {
		m.Type = core.Outflow
		m.Amount = a.OpeningBalance.Neg()
	}
	return m
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

func (s *Store) account(id string) *core.Account {
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			return &s.accounts[i]
		}
	}
	return nil
}

func (s *Store) mutable(id, op string) (core.Movement, error) {
	m, ok := s.movements[id]
	if !ok {
		return core.Movement{}, fmt.Errorf("movement %s: %w", id, core.ErrNotFound)
	}
	if !m.Editable() {
		return core.Movement{}, &core.LockedRecordError{MovementID: id, Operation: op}
	}
	return m, nil
}

// checkPayload validates p and applies the opening-balance date guard.
func (s *Store) checkPayload(p core.MovementPayload) error {
	if p.SpecialKind == core.OpeningBalance {
		return core.NewValidationError("type", "opening-balance records are created with the account")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if s.account(p.AccountID) == nil {
		return fmt.Errorf("account %s: %w", p.AccountID, core.ErrNotFound)
	}
	if p.CategoryID != "" && !s.knownCategory(p.CategoryID) {
		return core.NewValidationError("category", "unknown category %s", p.CategoryID)
	}
	for _, m := range s.movements {
		if m.AccountID == p.AccountID && m.IsOpeningBalance() && p.Date.Compare(m.Date) < 0 {
			return core.NewValidationError("date",
				"movements cannot be dated before %s, when the account was opened", m.Date)
		}
	}
	return nil
}

func (s *Store) knownCategory(id string) bool {
	for _, c := range s.categories {
		if c.ID == id {
			return true
		}
	}
	for _, c := range s.system {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) transferCategory() string {
	for _, c := range s.system {
		if c.Name == books.TransferCategoryName {
			return c.ID
		}
	}
	c := core.Category{ID: uuid.NewString(), Name: books.TransferCategoryName}
	s.system = append(s.system, c)
	return c.ID
}

func (s *Store) insert(p core.MovementPayload, note, categoryID string) string {
	m := core.Movement{
		ID:           uuid.NewString(),
		AccountID:    p.AccountID,
		Date:         p.Date,
		Type:         p.Type,
		Amount:       p.Amount,
		CategoryID:   categoryID,
		Note:         note,
		SpecialKind:  p.SpecialKind,
		TransferLink: p.TransferLink,
		CreatedAt:    s.now(),
	}
	s.movements[m.ID] = m
	return m.ID
}

func readCategories(path string) []core.Category {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []core.Category
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ";")
		if len(parts) < 2 {
			continue
		}
		c := core.Category{ID: strings.TrimSpace(parts[0]), Name: strings.TrimSpace(parts[1])}
		if len(parts) > 2 {
			c.ParentID = strings.TrimSpace(parts[2])
		}
		out = append(out, c)
	}
	return dedupe(out)
}

func dedupe(in []core.Category) []core.Category {
	seen := map[string]struct{}{}
	out := make([]core.Category, 0, len(in))
	for _, c := range in {
		if c.ID == "" {
			continue
		}
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
