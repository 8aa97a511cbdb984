package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   zerolog.Level
		wantOK bool
	}{
		{"error", zerolog.ErrorLevel, true},
		{"WARN", zerolog.WarnLevel, true},
		{"Info", zerolog.InfoLevel, true},
		{"debug", zerolog.DebugLevel, true},
		{" DEBUG ", zerolog.DebugLevel, true},
		{"trace", DefaultLevel, false},
		{"", DefaultLevel, false},
		{"verbose", DefaultLevel, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestInit_DoesNotPanic(t *testing.T) {
	Init(zerolog.InfoLevel, false)
	log := L()
	log.Info().Msg("test json info")
	log.Debug().Msg("test json debug (should not appear at info level)")
	if IsPrettyMode() {
		t.Error("pretty mode enabled for JSON output")
	}

	Init(zerolog.DebugLevel, true)
	L().Debug().Msg("test human debug")
	if !IsPrettyMode() {
		t.Error("pretty mode not enabled for console output")
	}

	Init(DefaultLevel, false)
}

func TestInit_SetsLevel(t *testing.T) {
	Init(zerolog.ErrorLevel, false)
	defer Init(DefaultLevel, false)
	if got := L().GetLevel(); got != zerolog.ErrorLevel {
		t.Errorf("level = %v, want error", got)
	}
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	customLogger := zerolog.New(&buf).With().Str("custom", "field").Logger()
	SetLogger(customLogger)
	defer Init(DefaultLevel, false)

	L().Info().Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"custom":"field"`)) {
		t.Errorf("expected custom field in output, got: %s", buf.String())
	}
}
