package services

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"registri/internal/books"
	"registri/internal/core"
	"registri/internal/ledger"
	"registri/internal/log"
)

// AccountSession holds the view state of one open account. Every mutation
// is followed by a full refetch; the in-memory set is never patched.
type AccountSession struct {
	books      books.Books
	categories books.CategoryLister
	transfers  *ledger.TransferCoordinator
	scope      core.Scope
	logger     *log.Logger

	mu         sync.Mutex
	generation uint64
	accountID  string
	book       core.AccountLedger
	tree       *ledger.CategoryTree
	criteria   ledger.Criteria
	ascending  bool
	view       ledger.View
}

type SessionOption func(*AccountSession)

// WithCategorySource reads categories from src, typically a cache in front
// of the backend.
func WithCategorySource(src books.CategoryLister) SessionOption {
	return func(s *AccountSession) { s.categories = src }
}

func WithSessionLogger(l *log.Logger) SessionOption {
	return func(s *AccountSession) { s.logger = l.WithComponent(log.ComponentSession) }
}

func NewAccountSession(b books.Books, scope core.Scope, opts ...SessionOption) *AccountSession {
	s := &AccountSession{
		books:      b,
		categories: b,
		transfers:  ledger.NewTransferCoordinator(b),
		scope:      scope,
		logger:     log.New(log.DefaultConfig()).WithComponent(log.ComponentSession),
		tree:       ledger.NewCategoryTree(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open switches the session to accountID and loads it. Any fetch still in
// flight for the previous account is discarded when it resolves.
func (s *AccountSession) Open(ctx context.Context, accountID string) (ledger.View, error) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.accountID = accountID
	s.book = core.AccountLedger{}
	s.view = ledger.View{}
	s.mu.Unlock()

	return s.load(ctx, gen, accountID)
}

// Refresh refetches the open account.
func (s *AccountSession) Refresh(ctx context.Context) (ledger.View, error) {
	s.mu.Lock()
	gen, accountID := s.generation, s.accountID
	s.mu.Unlock()
	if accountID == "" {
		return ledger.View{}, fmt.Errorf("no account open")
	}
	return s.load(ctx, gen, accountID)
}

// Close tears the session down; pending fetches are discarded.
func (s *AccountSession) Close() {
	s.mu.Lock()
	s.generation++
	s.accountID = ""
	s.mu.Unlock()
}

func (s *AccountSession) load(ctx context.Context, gen uint64, accountID string) (ledger.View, error) {
	var (
		book core.AccountLedger
		cats []core.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		book, err = s.books.ListMovements(gctx, s.scope, accountID)
		if err != nil {
			return fmt.Errorf("list movements: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		cats, err = s.categories.ListCategories(gctx, s.scope)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to load account",
			log.NewFields().WithOperation(log.OpRefresh).WithScope(s.scope).WithAccount(accountID).WithError(err).ToSlice()...)
		return ledger.View{}, err
	}

	tree := ledger.NewCategoryTree(cats)
	for i := range book.Movements {
		if book.Movements[i].CategoryLabel == "" {
			book.Movements[i].CategoryLabel = tree.Label(book.Movements[i].CategoryID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.logger.DebugContext(ctx, "Discarding stale fetch", log.FieldAccountID, accountID)
		return ledger.View{}, ledger.ErrStaleView
	}
	s.book = book
	s.tree = tree
	s.rebuildLocked()

	s.logger.DebugContext(ctx, "Account loaded",
		log.FieldAccountID, accountID, log.FieldRows, len(book.Movements))
	return s.view, nil
}

func (s *AccountSession) rebuildLocked() {
	v := ledger.BuildView(s.book.Movements, s.criteria, s.ascending)
	if s.book.Totals != nil {
		v.Totals = *s.book.Totals
	}
	s.view = v
}

// View returns the current display state without fetching.
func (s *AccountSession) View() ledger.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// AccountName is the display name the backend reported for the open account.
func (s *AccountSession) AccountName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.AccountName
}

// Categories returns the tree loaded with the last fetch.
func (s *AccountSession) Categories() *ledger.CategoryTree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree
}

// SetCriteria recomputes the view from the held set; no fetch is made.
func (s *AccountSession) SetCriteria(c ledger.Criteria) ledger.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria = c
	s.rebuildLocked()
	return s.view
}

// SetSortAscending flips the display direction; no fetch is made.
func (s *AccountSession) SetSortAscending(ascending bool) ledger.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ascending = ascending
	s.rebuildLocked()
	return s.view
}

func (s *AccountSession) Create(ctx context.Context, p core.MovementPayload) (string, error) {
	if p.AccountID == "" {
		p.AccountID = s.currentAccount()
	}
	if err := p.Validate(); err != nil {
		return "", err
	}
	id, err := s.books.CreateMovement(ctx, s.scope, p)
	s.logger.LogMutation(ctx, log.OpCreate, s.scope, id, err)
	if err != nil {
		return "", err
	}
	return id, s.refreshAfterMutation(ctx)
}

func (s *AccountSession) Update(ctx context.Context, id string, p core.MovementPayload) error {
	if err := s.checkEditable(id, log.OpUpdate); err != nil {
		return err
	}
	if p.AccountID == "" {
		p.AccountID = s.currentAccount()
	}
	if err := p.Validate(); err != nil {
		return err
	}
	err := s.books.UpdateMovement(ctx, s.scope, id, p)
	s.logger.LogMutation(ctx, log.OpUpdate, s.scope, id, err)
	if err != nil {
		return err
	}
	return s.refreshAfterMutation(ctx)
}

func (s *AccountSession) Delete(ctx context.Context, id string) error {
	if err := s.checkEditable(id, log.OpDelete); err != nil {
		return err
	}
	err := s.books.DeleteMovement(ctx, s.scope, id)
	s.logger.LogMutation(ctx, log.OpDelete, s.scope, id, err)
	if err != nil {
		return err
	}
	return s.refreshAfterMutation(ctx)
}

// Transfer moves amount from the open account to destinationID. The view is
// refetched whenever any leg may have been written, including on partial
// failure.
func (s *AccountSession) Transfer(ctx context.Context, destinationID string, date core.Date, amount core.Money, note string) (core.TransferReceipt, error) {
	receipt, err := s.transfers.Transfer(ctx, s.scope, s.currentAccount(), destinationID, date, amount, note)
	s.logger.LogMutation(ctx, log.OpTransfer, s.scope, receipt.OutflowID, err)
	if core.IsValidation(err) {
		return receipt, err
	}
	if rerr := s.refreshAfterMutation(ctx); rerr != nil && err == nil {
		return receipt, rerr
	}
	return receipt, err
}

// Attachments lists the files of one movement.
func (s *AccountSession) Attachments(ctx context.Context, movementID string) ([]core.Attachment, error) {
	return s.books.ListAttachments(ctx, s.scope, movementID)
}

func (s *AccountSession) UploadAttachment(ctx context.Context, movementID string, file core.AttachmentUpload) (core.Attachment, error) {
	if err := file.Validate(); err != nil {
		return core.Attachment{}, err
	}
	return s.books.UploadAttachment(ctx, s.scope, movementID, file)
}

func (s *AccountSession) DownloadAttachment(ctx context.Context, attachmentID string) (core.Attachment, []byte, error) {
	return s.books.DownloadAttachment(ctx, s.scope, attachmentID)
}

func (s *AccountSession) DeleteAttachment(ctx context.Context, attachmentID string) error {
	return s.books.DeleteAttachment(ctx, s.scope, attachmentID)
}

// refreshAfterMutation refetches the open account. A stale result means the
// user moved on, which is not an error for the mutation.
func (s *AccountSession) refreshAfterMutation(ctx context.Context) error {
	if s.currentAccount() == "" {
		return nil
	}
	_, err := s.Refresh(ctx)
	if err == ledger.ErrStaleView {
		return nil
	}
	return err
}

// checkEditable refuses locked rows before any network call. Unknown ids
// pass through so the backend can answer.
func (s *AccountSession) checkEditable(id, op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.book.Movements {
		if m.ID == id {
			if !m.Editable() {
				return &core.LockedRecordError{MovementID: id, Operation: op}
			}
			return nil
		}
	}
	return nil
}

func (s *AccountSession) currentAccount() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountID
}
