package httpapi

import (
	"bytes"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, falls back to log.Printf.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

// loggingLineWriter logs complete NDJSON lines as they are streamed.
type loggingLineWriter struct {
	prefix string
	buf    []byte
}

func (lw *loggingLineWriter) Write(p []byte) (int, error) {
	lw.buf = append(lw.buf, p...)
	for {
		idx := bytes.IndexByte(lw.buf, '\n')
		if idx < 0 {
			break
		}
		if line := string(lw.buf[:idx]); len(line) > 0 {
			if zlog != nil {
				zlog.Debug().Str("stream", lw.prefix).RawJSON("event", []byte(line)).Msg("event")
			} else {
				log.Printf("%s> %s", lw.prefix, line)
			}
		}
		lw.buf = lw.buf[idx+1:]
	}
	return len(p), nil
}

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// global default, read once
var defaultLogLevel = parseLevel(os.Getenv("TASKPILOT_HTTP_LOG_LEVEL"))

// SetDefaultLogLevel overrides the per-request default (off, error, info, debug).
func SetDefaultLogLevel(s string) { defaultLogLevel = parseLevel(s) }

func requestLogLevel(r *http.Request) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// logf logs msg when the request's level is at least min.
func logf(r *http.Request, min LogLevel, msg string, err error) {
	if requestLogLevel(r) < min {
		return
	}
	rid := middleware.GetReqID(r.Context())
	if zlog == nil {
		log.Printf("%s path=%s request_id=%s err=%v", msg, r.URL.Path, rid, err)
		return
	}
	z := zlog.Info()
	if min == LevelError {
		z = zlog.Error()
	}
	z = z.Str("path", r.URL.Path)
	if rid != "" {
		z = z.Str("request_id", rid)
	}
	if err != nil {
		z = z.Err(err)
	}
	z.Msg(msg)
}

func logEnd(r *http.Request, msg string, events int, dur time.Duration) {
	rid := middleware.GetReqID(r.Context())
	if zlog == nil {
		log.Printf("%s path=%s events=%d dur=%s", msg, r.URL.Path, events, dur)
		return
	}
	z := zlog.Info().Str("path", r.URL.Path).Int("events", events).Dur("dur", dur)
	if rid != "" {
		z = z.Str("request_id", rid)
	}
	z.Msg(msg)
}
