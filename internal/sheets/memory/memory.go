package memory

import (
	"context"
	"fmt"
	"sync"

	"registri/internal/sheets"
)

// Exporter keeps the last grid exported per account. Used by tests and by
// the worker when no spreadsheet is configured.
type Exporter struct {
	mu      sync.Mutex
	grids   map[string][][]string
	exports int
	failErr error
}

var _ sheets.ViewExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{grids: make(map[string][][]string)}
}

// FailWith makes every export fail with err until called with nil.
func (x *Exporter) FailWith(err error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.failErr = err
}

func (x *Exporter) ExportView(_ context.Context, e sheets.Export) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.failErr != nil {
		return "", x.failErr
	}
	x.grids[key(e.TenantID, e.AccountID)] = sheets.Grid(e)
	x.exports++
	return fmt.Sprintf("mem:%s:%d", e.AccountID, x.exports), nil
}

// Grid returns the last exported grid of an account.
func (x *Exporter) Grid(tenantID, accountID string) ([][]string, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	g, ok := x.grids[key(tenantID, accountID)]
	return g, ok
}

// Exports counts successful exports.
func (x *Exporter) Exports() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.exports
}

func key(tenantID, accountID string) string {
	return tenantID + "/" + accountID
}
