package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"unknown", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Service: "cashflow", Output: &buf})
	log.Info().Str("date", "2024-03-10").Msg("hello")

	var event map[string]any
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("expected json output, got %q: %v", buf.String(), err)
	}

	for field, want := range map[string]string{
		"message": "hello",
		"service": "cashflow",
		"date":    "2024-03-10",
		"level":   "info",
	} {
		if event[field] != want {
			t.Fatalf("expected %s=%q, got %v", field, want, event[field])
		}
	}
	if _, ok := event["time"]; !ok {
		t.Fatalf("expected timestamp in %v", event)
	}
	if _, ok := event["caller"]; !ok {
		t.Fatalf("expected caller in %v", event)
	}
}

func TestNewConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Format: "console", Output: &buf})
	log.Info().Msg("hello")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") || !strings.Contains(out, "hello") {
		t.Fatalf("expected console output, got %q", out)
	}
}

func TestLevelFiltersEvents(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "error", Output: &buf})
	log.Info().Msg("dropped")
	log.Warn().Msg("dropped")

	if buf.Len() != 0 {
		t.Fatalf("expected events below error to be filtered, got %q", buf.String())
	}
}
