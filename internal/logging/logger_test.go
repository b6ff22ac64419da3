package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nemoship/internal/logging"
	"nemoship/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if logging.ValidFormat("xml") {
		t.Fatal("xml should not be a valid format")
	}
	if !logging.ValidFormat(" JSON ") {
		t.Fatal("json should be a valid format")
	}
}

func TestJSONLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "nemoship.log")
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logging.NewComponentLogger(logger, "artifact").Info("archive ready", logging.String("archive", "model.tar.gz"))
	logger.Debug("hidden")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), data)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["level"] != "info" || entry["msg"] != "archive ready" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry[logging.FieldComponent] != "artifact" || entry["archive"] != "model.tar.gz" {
		t.Fatalf("missing attrs: %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key: %v", entry)
	}
}

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.NewFromSettings("console", "warn", path)
	if err != nil {
		t.Fatalf("NewFromSettings: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "inference")
	logger.Info("suppressed")
	logging.WarnWithContext(logger, "accept mismatch", "accept_mismatch", logging.String("accept", "text/plain"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := strings.TrimSpace(string(data))
	if strings.Contains(line, "suppressed") {
		t.Fatalf("info line should be filtered: %q", line)
	}
	for _, want := range []string{"WARN", "inference: accept mismatch", "accept=text/plain", "event_type=accept_mismatch", "error_hint=", "impact="} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestWithContextAddsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "ctx.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := services.WithRequestID(context.Background(), "req-123")
	ctx = services.WithStage(ctx, "upload")
	logging.WithContext(ctx, logger).Info("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	buf.Write(data)
	if !strings.Contains(buf.String(), `"correlation_id":"req-123"`) {
		t.Fatalf("expected correlation id in %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"stage":"upload"`) {
		t.Fatalf("expected stage in %s", buf.String())
	}
}

func TestNilLoggerHelpers(t *testing.T) {
	logging.WarnWithContext(nil, "ignored", "noop")
	logging.ErrorWithContext(nil, "ignored", "noop")
	logger := logging.NewComponentLogger(nil, "x")
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	logger.Info("discarded")
	if logging.WithContext(context.Background(), nil) == nil {
		t.Fatal("expected non-nil logger from WithContext")
	}
}
