package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":  zerolog.DebugLevel,
		"INFO":   zerolog.InfoLevel,
		" warn ": zerolog.WarnLevel,
		"Error":  zerolog.ErrorLevel,
		"trace":  zerolog.TraceLevel,
		"off":    zerolog.Disabled,
		"bogus":  zerolog.InfoLevel,
		"":       zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWritesPlainLinesAndFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Info().Msg("hidden")
	log.Warn().Str("status", "input overflow").Msg("capture status")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected info line filtered, got %q", out)
	}
	if !strings.Contains(out, "capture status") || !strings.Contains(out, "status=") {
		t.Fatalf("expected warn line with field, got %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no color codes, got %q", out)
	}
}

func TestOpenAppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "notegrid.log")

	log, closeFn, err := Open(path, "info")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	log.Info().Msg("first")
	if err := closeFn(); err != nil {
		t.Fatalf("close returned error: %v", err)
	}

	log, closeFn, err = Open(path, "info")
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	log.Info().Msg("second")
	closeFn()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), "first") || !strings.Contains(string(data), "second") {
		t.Fatalf("expected both lines, got %q", data)
	}
}

func TestOpenEmptyPathDisablesLogging(t *testing.T) {
	log, closeFn, err := Open("", "debug")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.GetLevel() != zerolog.Disabled {
		t.Fatalf("expected disabled logger, got %v", log.GetLevel())
	}
	if err := closeFn(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}
