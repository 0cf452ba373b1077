package logging

import (
	"errors"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"ERROR", zapcore.ErrorLevel},
		{"garbage", zapcore.InfoLevel},
	}
	for _, tc := range testCases {
		if got := parseLevel(tc.input); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestNew(t *testing.T) {
	logger, err := New(Config{Level: "debug", OutputPaths: []string{"stderr"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// smoke the interface surface
	logger.Debug("debug message", String("k", "v"))
	logger.Info("info message", Int("n", 1), Bool("b", true))
	logger.Warn("warn message", Float64("f", 0.5))
	logger.Error("error message", Err(errors.New("boom")))
	logger.With(String("component", "test")).Info("with fields")
}

func TestNew_BadOutputPath(t *testing.T) {
	if _, err := New(Config{OutputPaths: []string{"unknown-scheme://nope"}}); err == nil {
		t.Error("expected error for invalid output path")
	}
}
