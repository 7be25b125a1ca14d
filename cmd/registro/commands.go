package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"registri/internal/books"
	"registri/internal/core"
	"registri/internal/ledger"
	"registri/internal/log"
	"registri/internal/services"
)

const usage = `usage: registro <command> [flags]

commands:
  accounts [add]               list or create accounts
  categories                   print the category tree
  view -account ID             print the ledger of one account
  add -account ID ...          record a movement
  edit -account ID -id ID ...  change a movement
  delete -account ID -id ID    remove a movement
  transfer -from ID -to ID ... move money between accounts
  attachments <list|upload|download|delete> ...
`

var errUsage = errors.New("invalid usage")

// app runs one command against a backend. Output goes to out; diagnostics
// go through the logger.
type app struct {
	books      books.Books
	categories books.CategoryLister
	scope      core.Scope
	openedOn   core.Date
	logger     *log.Logger
	out        io.Writer
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "accounts":
		return a.accounts(ctx, rest)
	case "categories":
		return a.printCategories(ctx)
	case "view":
		return a.view(ctx, rest)
	case "add":
		return a.add(ctx, rest)
	case "edit":
		return a.edit(ctx, rest)
	case "delete":
		return a.remove(ctx, rest)
	case "transfer":
		return a.transfer(ctx, rest)
	case "attachments":
		return a.attachments(ctx, rest)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	}
	fmt.Fprintf(a.out, "unknown command %q\n\n%s", cmd, usage)
	return errUsage
}

func (a *app) session() *services.AccountSession {
	return services.NewAccountSession(a.books, a.scope,
		services.WithCategorySource(a.categories),
		services.WithSessionLogger(a.logger.WithComponent(log.ComponentSession)))
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func (a *app) accounts(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "add" {
		fs := newFlags("accounts add")
		name := fs.String("name", "", "account name")
		typ := fs.String("type", string(core.AccountBank), "account type")
		code := fs.String("code", "", "optional account code")
		opening := fs.String("opening", "0", "opening balance in euro")
		if err := fs.Parse(args[1:]); err != nil {
			return errUsage
		}
		balance, err := parseSignedAmount(*opening)
		if err != nil {
			return core.NewValidationError("opening", "invalid opening balance %q", *opening)
		}
		id, err := a.books.CreateAccount(ctx, a.scope, core.Account{
			Name:           strings.TrimSpace(*name),
			Type:           core.AccountType(*typ),
			Code:           strings.TrimSpace(*code),
			OpeningBalance: balance,
			Active:         true,
		}, a.openedOn)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, id)
		return nil
	}

	accounts, err := a.books.ListAccounts(ctx, a.scope)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNOME\tTIPO\tCODICE\tSALDO INIZIALE")
	for _, acc := range accounts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", acc.ID, acc.Name, acc.Type, acc.Code, acc.OpeningBalance.Euros())
	}
	return w.Flush()
}

func (a *app) printCategories(ctx context.Context) error {
	cats, err := a.categories.ListCategories(ctx, a.scope)
	if err != nil {
		return err
	}
	tree := ledger.NewCategoryTree(cats)
	var walk func(parent string, depth int)
	walk = func(parent string, depth int) {
		var level []core.Category
		if depth == 0 {
			level = tree.BaseCategories()
		} else {
			level = tree.ChildrenOf(parent)
		}
		for _, c := range level {
			fmt.Fprintf(a.out, "%s%s  %s\n", strings.Repeat("  ", depth), c.ID, c.Name)
			walk(c.ID, depth+1)
		}
	}
	walk("", 0)
	return nil
}

func (a *app) view(ctx context.Context, args []string) error {
	fs := newFlags("view")
	account := fs.String("account", "", "account id")
	from := fs.String("from", "", "first date, YYYY-MM-DD")
	to := fs.String("to", "", "last date, YYYY-MM-DD")
	typ := fs.String("type", "", "entrata or uscita")
	category := fs.String("category", "", "category id")
	search := fs.String("search", "", "text to look for in notes and categories")
	hideLocked := fs.Bool("hide-locked", false, "hide locked movements")
	ascending := fs.Bool("asc", false, "oldest first")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	criteria := ledger.Criteria{
		Type:       core.MovementType(*typ),
		CategoryID: *category,
		SearchText: *search,
		HideLocked: *hideLocked,
	}
	var err error
	if criteria.DateFrom, err = optionalDate("from", *from); err != nil {
		return err
	}
	if criteria.DateTo, err = optionalDate("to", *to); err != nil {
		return err
	}

	s := a.session()
	defer s.Close()
	if _, err := s.Open(ctx, *account); err != nil {
		return err
	}
	s.SetSortAscending(*ascending)
	v := s.SetCriteria(criteria)

	fmt.Fprintf(a.out, "%s\n", s.AccountName())
	if !criteria.IsEmpty() {
		fmt.Fprintln(a.out, "filtri attivi: totali calcolati su tutti i movimenti")
	}
	fmt.Fprintln(a.out)
	return printView(a.out, v)
}

func printView(out io.Writer, v ledger.View) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATA\tCATEGORIA\tNOTE\tENTRATA\tUSCITA\tSALDO\t")
	for _, r := range v.Rows {
		in, outflow := "", ""
		if r.Type == core.Inflow {
			in = r.Amount.Euros()
		} else {
			outflow = r.Amount.Euros()
		}
		mark := ""
		switch {
		case r.IsOpeningBalance():
			mark = "saldo iniziale"
		case !r.CanEdit:
			mark = "bloccato"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Date, r.CategoryLabel, r.Note, in, outflow, r.Balance.Euros(), mark)
	}
	fmt.Fprintln(w, "\t\t\t\t\t\t\t")
	fmt.Fprintf(w, "\t\t\tTotale\t%s\t%s\t%s\t\n", v.Totals.Inflow.Euros(), v.Totals.Outflow.Euros(), v.Totals.Net.Euros())
	fmt.Fprintf(w, "\t\t\tSaldo righe sbloccate\t\t\t%s\t\n", ledger.FinalBalance(v.Movements()).Euros())
	return w.Flush()
}

// movementFlags registers the movement form fields on fs.
type movementFlags struct {
	account, date, typ, amount, category, note *string
}

func addMovementFlags(fs *flag.FlagSet) movementFlags {
	return movementFlags{
		account:  fs.String("account", "", "account id"),
		date:     fs.String("date", "", "date, YYYY-MM-DD"),
		typ:      fs.String("type", "", "entrata or uscita"),
		amount:   fs.String("amount", "", "amount in euro, e.g. 12,50"),
		category: fs.String("category", "", "leaf category id"),
		note:     fs.String("note", "", "free text note"),
	}
}

// apply overwrites the payload fields whose flags were given.
func (f movementFlags) apply(fs *flag.FlagSet, p *core.MovementPayload) error {
	var errs core.ValidationErrors
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "date":
			d, err := core.ParseDate(*f.date)
			if err != nil {
				errs = append(errs, core.ValidationError{Field: "date", Message: "date must be YYYY-MM-DD"})
				return
			}
			p.Date = d
		case "type":
			p.Type = core.MovementType(*f.typ)
		case "amount":
			m, err := core.ParseAmount(*f.amount)
			if err != nil {
				errs = append(errs, core.ValidationError{Field: "amount", Message: err.Error()})
				return
			}
			p.Amount = m
		case "category":
			p.CategoryID = *f.category
		case "note":
			p.Note = *f.note
		}
	})
	return errs.OrNil()
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := newFlags("add")
	f := addMovementFlags(fs)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	s := a.session()
	defer s.Close()
	if _, err := s.Open(ctx, *f.account); err != nil {
		return err
	}

	var p core.MovementPayload
	if err := f.apply(fs, &p); err != nil {
		return err
	}
	if p.CategoryID != "" {
		if err := checkCategory(s.Categories(), p.CategoryID); err != nil {
			return err
		}
	}
	id, err := s.Create(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, id)
	return nil
}

func (a *app) edit(ctx context.Context, args []string) error {
	fs := newFlags("edit")
	f := addMovementFlags(fs)
	id := fs.String("id", "", "movement id")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	s := a.session()
	defer s.Close()
	v, err := s.Open(ctx, *f.account)
	if err != nil {
		return err
	}
	current, ok := findMovement(v, *id)
	if !ok {
		return fmt.Errorf("movement %s: %w", *id, core.ErrNotFound)
	}

	p := current.Payload()
	if err := f.apply(fs, &p); err != nil {
		return err
	}
	if p.CategoryID != current.CategoryID {
		if err := checkCategory(s.Categories(), p.CategoryID); err != nil {
			return err
		}
	}
	return s.Update(ctx, *id, p)
}

func (a *app) remove(ctx context.Context, args []string) error {
	fs := newFlags("delete")
	account := fs.String("account", "", "account id")
	id := fs.String("id", "", "movement id")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	s := a.session()
	defer s.Close()
	if _, err := s.Open(ctx, *account); err != nil {
		return err
	}
	return s.Delete(ctx, *id)
}

func (a *app) transfer(ctx context.Context, args []string) error {
	fs := newFlags("transfer")
	from := fs.String("from", "", "source account id")
	to := fs.String("to", "", "destination account id")
	date := fs.String("date", "", "date, YYYY-MM-DD")
	amount := fs.String("amount", "", "amount in euro")
	note := fs.String("note", "", "free text note")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	d, err := optionalDate("date", *date)
	if err != nil {
		return err
	}
	var m core.Money
	if *amount != "" {
		if m, err = core.ParseAmount(*amount); err != nil {
			return core.NewValidationError("amount", "%v", err)
		}
	}

	s := a.session()
	defer s.Close()
	if _, err := s.Open(ctx, *from); err != nil {
		return err
	}
	receipt, err := s.Transfer(ctx, *to, d, m, *note)

	var partial *core.PartialTransferFailure
	if errors.As(err, &partial) {
		fmt.Fprintf(a.out, "accepted %s leg %s, %s leg rejected\n", partial.AcceptedLeg, partial.AcceptedID, partial.RejectedLeg)
		return err
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\n%s\n", receipt.OutflowID, receipt.InflowID)
	return nil
}

func (a *app) attachments(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	sub := args[0]
	fs := newFlags("attachments " + sub)
	movement := fs.String("movement", "", "movement id")
	id := fs.String("id", "", "attachment id")
	file := fs.String("file", "", "file to upload, or destination of a download")
	if err := fs.Parse(args[1:]); err != nil {
		return errUsage
	}

	s := a.session()
	defer s.Close()

	switch sub {
	case "list":
		list, err := s.Attachments(ctx, *movement)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFILE\tTIPO\tBYTE")
		for _, at := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", at.ID, at.FileName, at.ContentType, at.Size)
		}
		return w.Flush()

	case "upload":
		data, err := os.ReadFile(*file)
		if err != nil {
			return fmt.Errorf("read %s: %w", *file, err)
		}
		at, err := s.UploadAttachment(ctx, *movement, core.AttachmentUpload{
			FileName:    filepath.Base(*file),
			ContentType: contentType(data),
			Data:        data,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, at.ID)
		return nil

	case "download":
		at, data, err := s.DownloadAttachment(ctx, *id)
		if err != nil {
			return err
		}
		dest := *file
		if dest == "" {
			dest = at.FileName
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", dest, err)
		}
		fmt.Fprintln(a.out, dest)
		return nil

	case "delete":
		return s.DeleteAttachment(ctx, *id)
	}
	return errUsage
}

// checkCategory forces the selection down to a leaf of the tree.
func checkCategory(tree *ledger.CategoryTree, id string) error {
	sel, ok := tree.SelectionFor(id)
	if !ok {
		sel = ledger.Selection{Category: id}
	}
	return tree.ValidateSelection(sel)
}

func findMovement(v ledger.View, id string) (core.Movement, bool) {
	for _, r := range v.Rows {
		if r.ID == id {
			return r.Movement, true
		}
	}
	return core.Movement{}, false
}

func optionalDate(field, s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, core.NewValidationError(field, "date must be YYYY-MM-DD")
	}
	return d, nil
}

// parseSignedAmount accepts zero and negative amounts, which opening
// balances may carry.
func parseSignedAmount(s string) (core.Money, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
	if err != nil {
		return core.Money{}, core.ErrInvalidAmount
	}
	return core.MoneyFromDecimal(d)
}

func contentType(data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return ct
}
