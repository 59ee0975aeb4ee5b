package httpapi

import (
	"context"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taskpilot/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels(ctx context.Context) ([]types.Model, error)
	Verify(ctx context.Context, model string) (types.VerifyResponse, error)
	Suggestions(ctx context.Context, topic string) iter.Seq[types.Event]
	Analysis(ctx context.Context, tasks []types.Task) iter.Seq[types.Event]
	// Refresh re-runs the readiness checks, with model when it is not empty.
	Refresh(ctx context.Context, model string) error
	Status() types.StatusResponse
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints; NDJSON streams are left alone so flushes reach the client.
	r.Use(middleware.Compress(5, "application/json"))
	if corsEnabled {
		r.Use(cors.Handler(corsOptions()))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	// One AI request at a time: the daemon serves a single local model.
	slot := make(chan struct{}, 1)

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		models, err := svc.ListModels(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if models == nil {
			models = []types.Model{}
		}
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: models})
	})

	r.Post("/verify", func(w http.ResponseWriter, r *http.Request) {
		var req types.VerifyRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		out, err := svc.Verify(r.Context(), strings.TrimSpace(req.Model))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Post("/suggestions", func(w http.ResponseWriter, r *http.Request) {
		var req types.SuggestionsRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Context) == "" {
			writeJSONError(w, http.StatusBadRequest, "context is required")
			return
		}
		serveStream(w, r, svc, slot, "suggestions", func(ctx context.Context) iter.Seq[types.Event] {
			return svc.Suggestions(ctx, req.Context)
		})
	})

	r.Post("/analysis", func(w http.ResponseWriter, r *http.Request) {
		var req types.AnalysisRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if len(req.Tasks) == 0 {
			writeJSONError(w, http.StatusBadRequest, "tasks are required")
			return
		}
		serveStream(w, r, svc, slot, "analysis", func(ctx context.Context) iter.Seq[types.Event] {
			return svc.Analysis(ctx, req.Tasks)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		st := svc.Status()
		code := http.StatusOK
		if !st.Ready {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, st)
	})

	r.Post("/ready", func(w http.ResponseWriter, r *http.Request) {
		var req types.ReadyRequest
		if r.ContentLength != 0 && !decodeJSONBody(w, r, &req) {
			return
		}
		// verification talks to the daemon too, so it waits for no stream
		if !acquire(w, slot) {
			return
		}
		defer func() { <-slot }()
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		err := svc.Refresh(ctx, strings.TrimSpace(req.Model))
		st := svc.Status()
		if err != nil {
			logf(r, LevelError, "readiness refresh failed", err)
			writeJSON(w, statusFor(err), st)
			return
		}
		writeJSON(w, http.StatusOK, st)
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// decodeJSONBody enforces the content type and body limit and decodes into v.
// It writes the error response itself and reports whether decoding succeeded.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	// Limit body size (configurable, default 1MiB)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// acquire takes the single daemon slot or answers 429.
func acquire(w http.ResponseWriter, slot chan struct{}) bool {
	select {
	case slot <- struct{}{}:
		return true
	default:
		IncrementBackpressure("stream_busy")
		writeJSONError(w, http.StatusTooManyRequests, "another AI request is in progress")
		return false
	}
}

// serveStream writes events as NDJSON, one line per event, flushing after each.
func serveStream(w http.ResponseWriter, r *http.Request, svc Service, slot chan struct{}, kind string, open func(context.Context) iter.Seq[types.Event]) {
	if !svc.Ready() {
		writeJSONError(w, http.StatusServiceUnavailable, "assistant is not ready")
		return
	}
	if !acquire(w, slot) {
		return
	}
	defer func() { <-slot }()

	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if streamTimeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, time.Duration(streamTimeout)*time.Second)
		defer tcancel()
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	// Optional logging of NDJSON events
	writer := io.Writer(w)
	lvl := requestLogLevel(r)
	if lvl >= LevelDebug {
		writer = io.MultiWriter(w, &loggingLineWriter{prefix: kind})
	}
	logf(r, LevelInfo, kind+" start", nil)

	start := time.Now()
	enc := json.NewEncoder(writer)
	events := 0
	for ev := range open(ctx) {
		if err := enc.Encode(ev); err != nil {
			logf(r, LevelError, kind+" write failed", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		events++
	}
	streamEventsTotal.WithLabelValues(kind).Add(float64(events))
	if lvl >= LevelInfo {
		logEnd(r, kind+" end", events, time.Since(start))
	}
}
