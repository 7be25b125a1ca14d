package sheets

import (
	"context"

	"registri/internal/ledger"
)

// Export is one account view ready to be written out.
type Export struct {
	TenantID    string
	AccountID   string
	AccountName string
	View        ledger.View
}

// ViewExporter writes a built view to an outbound destination, replacing
// whatever was exported for the same account before.
type ViewExporter interface {
	ExportView(ctx context.Context, e Export) (ref string, err error)
}

// Header is the first row of every exported grid.
var Header = []string{"Data", "Tipo", "Categoria", "Note", "Entrata", "Uscita", "Saldo", "Stato"}
