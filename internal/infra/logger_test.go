package infra

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerProductionEmitsJSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production")

	logger.Debug().Msg("transition")
	logger.Info().Str("backend", "file").Msg("studio listening")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the info line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["app"] != "studio" || entry["backend"] != "file" || entry["level"] != "info" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestLoggerDevelopmentIsReadableAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "development")
	logger.Debug().Str("phase", "in_flight").Msg("transition")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("expected console output, got %q", out)
	}
	if !strings.Contains(out, "transition") || !strings.Contains(out, "phase=in_flight") {
		t.Fatalf("debug line missing: %q", out)
	}
}
