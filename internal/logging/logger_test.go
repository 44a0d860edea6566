package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConsoleHandlerFormatsComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	handler := &consoleHandler{writer: &buf, level: slog.LevelInfo}
	logger := slog.New(handler).With(slog.String(FieldComponent, "annotate"))

	logger.Info("extracted annotations", slog.Int("count", 12))

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, " INFO annotate: extracted annotations count=12") {
		t.Fatalf("unexpected line: %q", line)
	}
}

func TestConsoleHandlerQuotesAwkwardValues(t *testing.T) {
	var buf bytes.Buffer
	handler := &consoleHandler{writer: &buf, level: slog.LevelInfo}
	logger := slog.New(handler)

	logger.Warn("skipping", slog.String("reason", "no lyrics found"))

	if !strings.Contains(buf.String(), `reason="no lyrics found"`) {
		t.Fatalf("value not quoted: %q", buf.String())
	}
}

func TestConsoleHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	handler := &consoleHandler{writer: &buf, level: slog.LevelDebug}
	logger := slog.New(handler).WithGroup("align")

	logger.Debug("warped", slog.Float64("shift", 2))

	if !strings.Contains(buf.String(), "align.shift=2") {
		t.Fatalf("group prefix missing: %q", buf.String())
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := &consoleHandler{writer: &buf, level: slog.LevelWarn}
	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be disabled at warn level")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewWritesLogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "hauptstimme.log")
	logger, err := New(Options{Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("log content: %q", data)
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.log")
	newPath := filepath.Join(dir, "new.log")
	for _, p := range []string{oldPath, newPath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	stale := time.Now().AddDate(0, 0, -10)
	if err := os.Chtimes(oldPath, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	CleanupOldLogs(NewNop(), dir, "*.log", 7)

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("old log should be pruned")
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Error("recent log should survive")
	}
}
