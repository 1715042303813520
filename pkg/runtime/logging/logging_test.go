package logging

import (
	"bytes"
	"context"
	"log/slog"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "json")
	logger.Debug("hidden")
	logger.Info("session_start", "id", "abc")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if rec["msg"] != "session_start" || rec["id"] != "abc" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestNewWithWriterText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "DEBUG", "text")
	logger.Debug("command_started", "pid", 42)
	if !strings.Contains(buf.String(), "command_started") || !strings.Contains(buf.String(), "pid=42") {
		t.Fatalf("unexpected text output %q", buf.String())
	}
}

func TestDiscardDropsErrors(t *testing.T) {
	logger := Discard()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("discard logger should not be enabled for errors")
	}
	logger.Error("ignored", "k", "v")
}
