package google

import (
	"context"
	"strings"
	"testing"
)

func TestSheetTitle(t *testing.T) {
	tests := []struct {
		base, name, id string
		want           string
	}{
		{"Registro", "Cassa", "a1", "Registro - Cassa"},
		{"Registro", "", "a1", "Registro - a1"},
		{"Registro", "C/C l'Unione: [2]!", "a1", "Registro - C/C l Unione (2)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := SheetTitle(tt.base, tt.name, tt.id); got != tt.want {
				t.Errorf("SheetTitle() = %q, want %q", got, tt.want)
			}
		})
	}

	long := SheetTitle("Registro", strings.Repeat("x", 200), "")
	if len([]rune(long)) != 100 {
		t.Errorf("title should be capped at 100 runes, got %d", len([]rune(long)))
	}
}

func TestNewRequiresSpreadsheetAndCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	if _, err := New(context.Background(), Config{}); err == nil || !strings.Contains(err.Error(), "GOOGLE_SPREADSHEET_ID") {
		t.Errorf("expected missing spreadsheet error, got %v", err)
	}
	if _, err := New(context.Background(), Config{SpreadsheetID: "sheet"}); err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Errorf("expected missing credentials error, got %v", err)
	}
	if _, err := New(context.Background(), Config{SpreadsheetID: "sheet", ServiceAccountFile: "/does/not/exist.json"}); err == nil {
		t.Error("expected read error")
	}
}
