package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, line)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestSetup_LoanReturnedEntry(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelInfo)

	l.Info("loan returned",
		slog.String("loan_id", "3f2a9c1e-5b7d-4e8a-9c0f-1a2b3c4d5e03"),
		slog.Int64("fine_cents", 1200),
	)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry["msg"] != "loan returned" {
		t.Errorf("msg = %v, want %q", entry["msg"], "loan returned")
	}
	if entry["loan_id"] != "3f2a9c1e-5b7d-4e8a-9c0f-1a2b3c4d5e03" {
		t.Errorf("loan_id = %v", entry["loan_id"])
	}
	if entry["fine_cents"] != float64(1200) {
		t.Errorf("fine_cents = %v, want 1200", entry["fine_cents"])
	}
	if entry["app"] != AppName {
		t.Errorf("app = %v, want %q", entry["app"], AppName)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in JSON log output")
	}
}

func TestSetup_LevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelWarn)

	l.Info("book updated", slog.String("book_id", "b1"))
	l.Warn("availability update contended", slog.String("book_id", "b1"), slog.Int("delta", -1))

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1: %s", len(entries), buf.String())
	}
	if entries[0]["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", entries[0]["level"])
	}
	if entries[0]["delta"] != float64(-1) {
		t.Errorf("delta = %v, want -1", entries[0]["delta"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetupDefault(&buf, slog.LevelInfo)

	slog.Default().Info("loan created", slog.String("user_id", "u1"), slog.String("due_date", "2025-11-16"))

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0]["user_id"] != "u1" || entries[0]["due_date"] != "2025-11-16" {
		t.Errorf("entry = %v", entries[0])
	}
}
