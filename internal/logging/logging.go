// Package logging builds the zerolog logger shared by the CLI, the assistant
// session and the HTTP layer.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects level and destination.
type Options struct {
	// Level is one of debug, info, warn, error, off. Unknown values mean info.
	Level string
	// File, when set, sends output to a rotating log file instead of Out.
	File string
	// Out defaults to os.Stderr.
	Out io.Writer
	// Console forces the human-readable writer. When false it is used only if
	// Out is a terminal.
	Console bool
}

// New returns a logger and a close function for any file it opened.
func New(opts Options) (zerolog.Logger, func() error, error) {
	closer := func() error { return nil }

	var w io.Writer
	if opts.File != "" {
		if dir := filepath.Dir(opts.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return zerolog.Nop(), closer, fmt.Errorf("logging: create log directory: %w", err)
			}
		}
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		w = lj
		closer = lj.Close
	} else {
		out := opts.Out
		if out == nil {
			out = os.Stderr
		}
		if opts.Console || isTerminal(out) {
			out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
		}
		w = out
	}

	l := zerolog.New(w).Level(ParseLevel(opts.Level)).With().Timestamp().Logger()
	return l, closer, nil
}

// ParseLevel maps a config string to a zerolog level.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error", "err":
		return zerolog.ErrorLevel
	case "off", "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
