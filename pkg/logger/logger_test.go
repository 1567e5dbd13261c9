package logger

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"WARN", zerolog.WarnLevel},
		{"garbage", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWithFieldsChaining(t *testing.T) {
	log := NewNop()

	derived := log.WithField("a", 1).
		WithFields(map[string]interface{}{"b": 2, "c": "x"}).
		WithError(nil)

	if derived == nil {
		t.Fatal("derived logger must not be nil")
	}

	// Must not panic on any level.
	derived.Debug("debug")
	derived.Info("info")
	derived.Warn("warn")
	derived.Error("error")
	derived.Infof("formatted %d", 1)
}

func TestNewConsoleFormat(t *testing.T) {
	log := New("debug", "console")
	if log == nil {
		t.Fatal("expected logger")
	}
	log.Debug("console output")
}
