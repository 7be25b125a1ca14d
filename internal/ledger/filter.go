package ledger

import (
	"strings"

	"registri/internal/core"
)

// Criteria are the user filters of the account view. Zero values impose no
// constraint; all set criteria must hold.
type Criteria struct {
	DateFrom   core.Date // inclusive
	DateTo     core.Date // inclusive
	Type       core.MovementType
	CategoryID string
	SearchText string
	// HideLocked drops locked movements except the opening-balance record.
	HideLocked bool
}

// IsEmpty reports whether no criterion is set.
func (c Criteria) IsEmpty() bool {
	return c == Criteria{}
}

// ApplyFilters returns the movements matching every criterion, preserving
// their relative order. The input slice is not modified.
func ApplyFilters(movements []core.Movement, c Criteria) []core.Movement {
	search := strings.ToLower(strings.TrimSpace(c.SearchText))

	out := make([]core.Movement, 0, len(movements))
	for _, m := range movements {
		if c.matches(m, search) {
			out = append(out, m)
		}
	}
	return out
}

func (c Criteria) matches(m core.Movement, search string) bool {
	if c.HideLocked && m.Locked && !m.IsOpeningBalance() {
		return false
	}
	if !c.DateFrom.IsZero() && m.Date.Compare(c.DateFrom) < 0 {
		return false
	}
	if !c.DateTo.IsZero() && m.Date.Compare(c.DateTo) > 0 {
		return false
	}
	if c.Type != "" && m.Type != c.Type {
		return false
	}
	if c.CategoryID != "" && m.CategoryID != c.CategoryID {
		return false
	}
	if search != "" &&
		!strings.Contains(strings.ToLower(m.Note), search) &&
		!strings.Contains(strings.ToLower(m.CategoryLabel), search) {
		return false
	}
	return true
}
