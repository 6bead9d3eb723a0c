package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		enable slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"warn level", "warn", slog.LevelWarn},
		{"upper case", "ERROR", slog.LevelError},
		{"default info", "", slog.LevelInfo},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level)
			if !logger.Enabled(ctx, tt.enable) {
				t.Fatalf("expected level %s to be enabled", tt.enable)
			}
		})
	}
}

func TestDefaultLogger(t *testing.T) {
	logger := Default()
	logger.Info("test message", "key", "value")

	ctx := context.Background()
	if !logger.Enabled(ctx, slog.LevelInfo) {
		t.Error("Default() should enable info level")
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		t.Error("Default() should not enable debug level")
	}
	if logger.Logger == nil {
		t.Fatal("Default() returned Logger with nil slog.Logger")
	}
}

func TestFormats(t *testing.T) {
	var jsonBuf bytes.Buffer
	newLogger(&jsonBuf, "info", "json").Info("booked", "clinic_id", "c-1")

	var entry map[string]any
	if err := json.Unmarshal(jsonBuf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", jsonBuf.String(), err)
	}
	if entry["clinic_id"] != "c-1" {
		t.Fatalf("expected clinic_id attribute, got %v", entry)
	}

	var textBuf bytes.Buffer
	newLogger(&textBuf, "info", "text").Info("booked", "clinic_id", "c-1")
	if !strings.Contains(textBuf.String(), "clinic_id=c-1") {
		t.Fatalf("expected text output, got %q", textBuf.String())
	}
}

func TestWithKeepsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "json").With("component", "calendar")
	logger.Info("rendered")

	if !strings.Contains(buf.String(), `"component":"calendar"`) {
		t.Fatalf("expected component attribute, got %q", buf.String())
	}
}
