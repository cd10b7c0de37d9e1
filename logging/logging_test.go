package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestDefaultLoggerIsSilent(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("Logger() returned nil")
	}
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("default logger is enabled")
	}
}

func TestSetLogger(t *testing.T) {
	orig := Logger()
	defer SetLogger(orig)

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	Logger().Info("pipeline started", "frames", 4)
	if !strings.Contains(buf.String(), "frames=4") {
		t.Fatalf("log output = %q, want frames=4", buf.String())
	}

	SetLogger(nil)
	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Fatal("SetLogger(nil) did not restore the silent logger")
	}
}
