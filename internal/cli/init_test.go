package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestSetupLoggerHonoursEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "json")

	var buf bytes.Buffer
	logger := SetupLogger("worker", &buf)
	logger.Info("dropped")
	logger.Warn("kept", "account_id", "a1")

	out := strings.TrimSpace(buf.String())
	if strings.Contains(out, "dropped") {
		t.Errorf("info record logged at warn level: %s", out)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("output is not one JSON record: %v\n%s", err, out)
	}
	if rec["component"] != "worker" || rec["account_id"] != "a1" {
		t.Errorf("record = %v", rec)
	}
}
