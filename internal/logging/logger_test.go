package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"incidentkb/config"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"bogus", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		logger, err := New(config.LoggingConfig{Level: tt.level})
		if err != nil {
			t.Fatalf("New(%q): %v", tt.level, err)
		}
		if !logger.Core().Enabled(tt.want) {
			t.Errorf("level %q: expected %s enabled", tt.level, tt.want)
		}
		if tt.want > zapcore.DebugLevel && logger.Core().Enabled(tt.want-1) {
			t.Errorf("level %q: %s should be disabled", tt.level, tt.want-1)
		}
	}
}

func TestNew_Development(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "info", Development: true})
	if err != nil {
		t.Fatal(err)
	}
	if logger == nil {
		t.Fatal("expected logger")
	}
}

func TestFields(t *testing.T) {
	fields := Fields(map[string]any{"stage": "add", "expected": 4})
	if len(fields) != 2 {
		t.Errorf("expected 2 fields, got %d", len(fields))
	}
}
