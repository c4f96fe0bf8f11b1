package log

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"ERROR", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.level)
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
		if tt.wantErr && !errors.Is(err, ErrUnknownLevel) {
			t.Errorf("ParseLevel(%q) error = %v, want %v", tt.level, err, ErrUnknownLevel)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("ParseLevel(%q) error = %v, want nil", tt.level, err)
		}
	}
}

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn")

	l.Info("hidden")
	l.Warn("shown", "channel", "dma")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level:\n%s", out)
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "channel=dma") {
		t.Errorf("warn message missing or malformed:\n%s", out)
	}
}

func TestGlobalLogger(t *testing.T) {
	if L() == nil {
		t.Fatal("L() returned nil")
	}
	if With("component", "test") == nil {
		t.Error("With() returned nil")
	}
	if Component("mixer") == nil {
		t.Error("Component() returned nil")
	}
}
