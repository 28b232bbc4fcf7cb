package logging

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func TestConsoleHandlerFormatsRecord(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)
	logger := slog.New(newConsoleHandler(&buf, levelVar, false))

	logger.Info("file copied", String(FieldProjectID, "p-1"), Int64("bytes", 42))

	line := buf.String()
	if !strings.Contains(line, "INFO") {
		t.Fatalf("missing level label: %q", line)
	}
	if !strings.Contains(line, "file copied") {
		t.Fatalf("missing message: %q", line)
	}
	if !strings.Contains(line, "project_id=p-1") || !strings.Contains(line, "bytes=42") {
		t.Fatalf("missing attributes: %q", line)
	}
}

func TestConsoleHandlerPromotesComponent(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)
	logger := NewComponentLogger(slog.New(newConsoleHandler(&buf, levelVar, false)), "pipeline")

	logger.Info("started")

	line := buf.String()
	if !strings.Contains(line, "pipeline: started") {
		t.Fatalf("component not promoted into prefix: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should not repeat as attribute: %q", line)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, levelVar, false))

	logger.Info("filtered out")
	if buf.Len() != 0 {
		t.Fatalf("info record should be filtered: %q", buf.String())
	}

	logger.Warn("kept")
	if !strings.Contains(buf.String(), "WARN kept") {
		t.Fatalf("warn record missing: %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "loom.log")
	logger, err := New(Options{
		Level:            "debug",
		Format:           "json",
		OutputPaths:      []string{path},
		ErrorOutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Debug("probe")
}

func TestNoopHandlerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("noop logger should report disabled at every level")
	}
	logger.Error("discarded", Error(nil))
}
