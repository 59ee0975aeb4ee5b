// Package assistant wires the daemon client into the task manager: it makes
// the model ready for use and turns streamed replies into suggestion and
// analysis events.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"taskpilot/internal/cascade"
	"taskpilot/internal/daemon"
)

// ModelStore remembers the selected model between runs.
type ModelStore interface {
	SavedModelName() (string, bool)
	SetSavedModelName(name string) error
}

// Prompter asks the user a question and returns the raw answer.
type Prompter interface {
	Prompt(ctx context.Context, question string) (string, error)
}

// Options tunes readiness checks. Zero values select defaults.
type Options struct {
	ProbeAttempts int
	ProbeDelay    time.Duration
	VerifyTimeout time.Duration
}

// Session owns the daemon client for one host run and tracks whether AI
// features are usable.
type Session struct {
	client *daemon.Client
	store  ModelStore
	prompt Prompter
	log    zerolog.Logger
	opts   Options

	mu      sync.RWMutex
	ready   bool
	model   string
	lastErr error
}

// NewSession builds a session. store and prompter may be nil.
func NewSession(client *daemon.Client, store ModelStore, prompter Prompter, logger zerolog.Logger, opts Options) *Session {
	if opts.ProbeAttempts <= 0 {
		opts.ProbeAttempts = 3
	}
	if opts.ProbeDelay <= 0 {
		opts.ProbeDelay = 2 * time.Second
	}
	if opts.VerifyTimeout <= 0 {
		opts.VerifyTimeout = daemon.DefaultVerifyTimeout
	}
	return &Session{
		client: client,
		store:  store,
		prompt: prompter,
		log:    logger.With().Str("component", "assistant").Logger(),
		opts:   opts,
	}
}

// Client returns the daemon client the session owns.
func (s *Session) Client() *daemon.Client { return s.client }

// IsReady reports whether the last readiness attempt succeeded.
func (s *Session) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Model returns the selected model name, if any.
func (s *Session) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// LastError returns why the session is not ready, if it was ever checked.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// EnsureReady probes the daemon, discovers installed models, selects one and
// verifies it. On failure the session is marked not ready and the error is
// returned; the host keeps running without AI features. The selection is only
// saved once it verifies.
func (s *Session) EnsureReady(ctx context.Context) error {
	models, err := s.discover(ctx)
	if err != nil {
		return err
	}
	return s.commit(ctx, s.selectModel(ctx, models))
}

// UseModel runs the readiness checks for name instead of selecting a model.
// name may omit the ":latest" tag. It is saved as the selection when it passes.
func (s *Session) UseModel(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("model name is required")
	}
	models, err := s.discover(ctx)
	if err != nil {
		return err
	}
	i := daemon.FindModel(models, name)
	if i < 0 {
		return s.fail(fmt.Errorf("%w: %q", ErrModelNotInstalled, name), "requested model is not installed", "")
	}
	return s.commit(ctx, models[i].Name)
}

func (s *Session) discover(ctx context.Context) ([]daemon.ModelDescriptor, error) {
	if !s.client.Probe(ctx, s.opts.ProbeAttempts, s.opts.ProbeDelay) {
		return nil, s.fail(ErrUnreachable, "daemon unreachable", s.client.BaseURL())
	}
	models, err := s.client.ListModels(ctx)
	if err != nil {
		return nil, s.fail(err, "model discovery failed", "")
	}
	if len(models) == 0 {
		return nil, s.fail(ErrNoModels, "no models installed", "")
	}
	return models, nil
}

// commit verifies name and saves it as the selection.
func (s *Session) commit(ctx context.Context, name string) error {
	if err := s.verify(ctx, name); err != nil {
		return err
	}
	if s.store != nil {
		if err := s.store.SetSavedModelName(name); err != nil {
			s.log.Warn().Err(err).Str("model", name).Msg("could not save selected model")
		}
	}
	return nil
}

// Verify runs the verification cascade for name without changing the session.
func (s *Session) Verify(ctx context.Context, name string) daemon.VerificationOutcome {
	return s.client.Verify(ctx, name, s.opts.VerifyTimeout)
}

func (s *Session) verify(ctx context.Context, name string) error {
	out := s.Verify(ctx, name)
	if !out.Verified {
		s.mu.Lock()
		s.model = name
		s.mu.Unlock()
		return s.fail(&VerificationError{Model: name}, "model verification failed", "")
	}
	s.mu.Lock()
	s.ready = true
	s.model = name
	s.lastErr = nil
	s.mu.Unlock()
	s.log.Info().Str("model", name).Stringer("method", out.Method).Msg("assistant ready")
	return nil
}

func (s *Session) fail(err error, msg, baseURL string) error {
	s.mu.Lock()
	s.ready = false
	s.lastErr = err
	model := s.model
	s.mu.Unlock()
	ev := s.log.Error().Err(err)
	if baseURL != "" {
		ev = ev.Str("base_url", baseURL)
	}
	if model != "" {
		ev = ev.Str("model", model)
	}
	ev.Msg(msg)
	return err
}

// selectModel picks the saved model when it is still installed, else asks the
// user, else falls back to the first installed model.
func (s *Session) selectModel(ctx context.Context, models []daemon.ModelDescriptor) string {
	chain := []cascade.Strategy[[]daemon.ModelDescriptor, string]{
		cascade.Func[[]daemon.ModelDescriptor, string]{Label: "saved", Fn: s.savedChoice},
		cascade.Func[[]daemon.ModelDescriptor, string]{Label: "prompt", Fn: s.promptChoice},
		cascade.Func[[]daemon.ModelDescriptor, string]{Label: "first", Fn: firstChoice},
	}
	res := cascade.First(ctx, models, func(name string, err error) {
		if err != nil {
			s.log.Debug().Str("strategy", name).Err(err).Msg("model selection skipped")
		}
	}, chain...)
	if !res.OK() {
		// only reachable when ctx ended mid-selection
		return models[0].Name
	}
	s.log.Info().Str("model", res.Value).Str("via", res.Strategy).Msg("model selected")
	return res.Value
}

func (s *Session) savedChoice(_ context.Context, models []daemon.ModelDescriptor) (string, error) {
	if s.store == nil {
		return "", errors.New("no session store")
	}
	name, ok := s.store.SavedModelName()
	if !ok {
		return "", errors.New("no saved model")
	}
	i := daemon.FindModel(models, name)
	if i < 0 {
		return "", fmt.Errorf("saved model %q is no longer installed", name)
	}
	return models[i].Name, nil
}

func (s *Session) promptChoice(ctx context.Context, models []daemon.ModelDescriptor) (string, error) {
	if s.prompt == nil {
		return "", errors.New("no prompter")
	}
	var q strings.Builder
	q.WriteString("Available models:\n")
	for i, m := range models {
		fmt.Fprintf(&q, "  %d. %s (%s, modified %s)\n", i+1, m.Name, m.Size, m.Modified)
	}
	fmt.Fprintf(&q, "Enter a number (1-%d): ", len(models))
	answer, err := s.prompt.Prompt(ctx, q.String())
	if err != nil {
		return "", err
	}
	n, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil {
		return "", fmt.Errorf("invalid choice %q", answer)
	}
	if n < 1 || n > len(models) {
		return "", fmt.Errorf("choice %d out of range 1-%d", n, len(models))
	}
	return models[n-1].Name, nil
}

func firstChoice(_ context.Context, models []daemon.ModelDescriptor) (string, error) {
	if len(models) == 0 {
		return "", ErrNoModels
	}
	return models[0].Name, nil
}

func (s *Session) readyModel() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model, s.ready
}

// Chat starts a streamed reply to history with the selected model.
func (s *Session) Chat(ctx context.Context, history []daemon.Message) (*daemon.Stream, error) {
	model, ok := s.readyModel()
	if !ok {
		return nil, ErrNotReady
	}
	return s.client.StreamChat(ctx, model, history), nil
}
