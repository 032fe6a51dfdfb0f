package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"WARN-2", slog.LevelWarn - 2},
		{"garbage", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestComponentTagsRecords(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil)).With("service", "api")

	Component(base, "retriever").Info("hybrid_search_done", "docs", 3)

	line := buf.String()
	if !strings.Contains(line, `"service":"api"`) {
		t.Fatalf("expected service attribute, got %s", line)
	}
	if !strings.Contains(line, `"component":"retriever"`) {
		t.Fatalf("expected component attribute, got %s", line)
	}
}

func TestComponentNilBaseDoesNotPanic(t *testing.T) {
	if got := Component(nil, "bm25"); got == nil {
		t.Fatalf("expected a usable logger")
	}
}
