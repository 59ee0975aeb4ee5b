package httpapi

import (
	"context"
	"iter"
	"time"

	"taskpilot/internal/assistant"
	"taskpilot/pkg/types"
)

// SessionService exposes an assistant session over HTTP.
type SessionService struct {
	s       *assistant.Session
	started time.Time
}

func NewSessionService(s *assistant.Session) *SessionService {
	return &SessionService{s: s, started: time.Now()}
}

func (ss *SessionService) ListModels(ctx context.Context) ([]types.Model, error) {
	models, err := ss.s.Client().ListModels(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.Model, 0, len(models))
	for _, m := range models {
		out = append(out, types.Model{Name: m.Name, Size: m.Size, Modified: m.Modified})
	}
	return out, nil
}

// Verify checks model, or the session's selected model when empty. It does
// not change the session's selection.
func (ss *SessionService) Verify(ctx context.Context, model string) (types.VerifyResponse, error) {
	if model == "" {
		model = ss.s.Model()
	}
	if model == "" {
		return types.VerifyResponse{}, requestError{msg: "model is required: no model has been selected yet"}
	}
	out := ss.s.Verify(ctx, model)
	return types.VerifyResponse{Model: out.ModelName, Verified: out.Verified, Method: out.Method.String()}, nil
}

func (ss *SessionService) Suggestions(ctx context.Context, topic string) iter.Seq[types.Event] {
	return ss.s.StreamSuggestions(ctx, topic)
}

func (ss *SessionService) Analysis(ctx context.Context, tasks []types.Task) iter.Seq[types.Event] {
	return ss.s.StreamAnalysis(ctx, tasks)
}

// Refresh re-runs readiness. A non-empty model replaces the usual selection.
func (ss *SessionService) Refresh(ctx context.Context, model string) error {
	if model != "" {
		return ss.s.UseModel(ctx, model)
	}
	return ss.s.EnsureReady(ctx)
}

func (ss *SessionService) Ready() bool { return ss.s.IsReady() }

func (ss *SessionService) Status() types.StatusResponse {
	st := types.StatusResponse{
		Ready:         ss.s.IsReady(),
		BaseURL:       ss.s.Client().BaseURL(),
		Connection:    ss.s.Client().State().String(),
		Model:         ss.s.Model(),
		UptimeSeconds: int64(time.Since(ss.started).Seconds()),
	}
	if err := ss.s.LastError(); err != nil {
		st.LastError = err.Error()
	}
	return st
}
