package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"chatty":  zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestNew_JSONToWriter(t *testing.T) {
	var buf bytes.Buffer
	l, closeFn, err := New(Options{Level: "info", Out: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer closeFn()
	l.Debug().Msg("hidden")
	l.Info().Str("model", "m").Msg("shown")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines=%q", lines)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m["message"] != "shown" || m["model"] != "m" || m["level"] != "info" {
		t.Fatalf("entry=%v", m)
	}
}

func TestNew_ConsoleWriter(t *testing.T) {
	var buf bytes.Buffer
	l, _, err := New(Options{Level: "debug", Out: &buf, Console: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	l.Debug().Msg("hello console")
	if !strings.Contains(buf.String(), "hello console") || strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("output=%q", buf.String())
	}
}

func TestNew_RotatingFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "logs", "taskpilot.log")
	l, closeFn, err := New(Options{Level: "warn", File: p})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	l.Warn().Msg("to file")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), "to file") {
		t.Fatalf("file=%q", b)
	}
}
