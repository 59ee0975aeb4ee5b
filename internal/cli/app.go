// Package cli implements the taskpilot command tree.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"taskpilot/internal/assistant"
	"taskpilot/internal/config"
	"taskpilot/internal/daemon"
	"taskpilot/internal/logging"
)

// App carries the process streams and the state built once flags are parsed.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
	// Now stamps output file names.
	Now func() time.Time

	cfgPath  string
	logLevel string
	envFile  string
	// model bypasses model selection when set by --model.
	model string

	cfg      config.Config
	log      zerolog.Logger
	closeLog func() error
	reader   *bufio.Reader
	session  *assistant.Session
}

// NewApp returns an App bound to the process's standard streams.
func NewApp() *App {
	return &App{In: os.Stdin, Out: os.Stdout, Err: os.Stderr, Now: time.Now}
}

// setup resolves configuration and logging. It runs before every command.
func (a *App) setup() error {
	if a.envFile != "" {
		if err := config.LoadDotEnv(a.envFile); err != nil {
			return err
		}
	} else if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Resolve(a.cfgPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg

	l, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Out: a.Err})
	if err != nil {
		return err
	}
	a.log = l
	a.closeLog = closer
	return nil
}

func (a *App) teardown() error {
	if a.closeLog == nil {
		return nil
	}
	closer := a.closeLog
	a.closeLog = nil
	return closer()
}

func (a *App) client() *daemon.Client {
	if a.session != nil {
		return a.session.Client()
	}
	return daemon.New(daemon.Options{
		BaseURL:       a.cfg.BaseURL,
		CLIPath:       a.cfg.CLIPath,
		ProbeTimeout:  a.cfg.ProbeTimeout(),
		StreamTimeout: a.cfg.StreamTimeout(),
		Progress:      func(s string) { fmt.Fprintln(a.Err, mutedStyle.Render(s)) },
		Logger:        &a.log,
	})
}

// Session returns the assistant session, building it on first use. Model
// selection may ask on In.
func (a *App) Session() *assistant.Session {
	if a.session == nil {
		a.session = a.newSession(&linePrompter{app: a})
	}
	return a.session
}

// headlessSession is Session without the question: selection goes from the
// saved model straight to the first installed one.
func (a *App) headlessSession() *assistant.Session {
	if a.session == nil {
		a.session = a.newSession(nil)
	}
	return a.session
}

func (a *App) newSession(p assistant.Prompter) *assistant.Session {
	return assistant.NewSession(
		a.client(),
		config.NewSessionStore(a.cfg.SessionFile),
		p,
		a.log,
		assistant.Options{
			ProbeAttempts: a.cfg.ProbeAttempts,
			ProbeDelay:    a.cfg.ProbeDelay(),
			VerifyTimeout: a.cfg.VerifyTimeout(),
		},
	)
}

// ready makes the session ready or returns why it could not.
func (a *App) ready(ctx context.Context) (*assistant.Session, error) {
	s := a.Session()
	if err := readyWith(ctx, s, a.model); err != nil {
		return nil, fmt.Errorf("assistant unavailable: %w", err)
	}
	return s, nil
}

func readyWith(ctx context.Context, s *assistant.Session, model string) error {
	if model != "" {
		return s.UseModel(ctx, model)
	}
	return s.EnsureReady(ctx)
}

// addModelFlag registers --model on a command that needs a ready assistant.
func addModelFlag(cmd *cobra.Command, a *App) {
	cmd.Flags().StringVarP(&a.model, "model", "m", "", "Use this installed model instead of the saved or prompted choice")
}

func (a *App) lines() *bufio.Reader {
	if a.reader == nil {
		a.reader = bufio.NewReader(a.In)
	}
	return a.reader
}

// interactive reports whether In can answer questions. Non-file readers count
// as interactive so callers can script answers.
func (a *App) interactive() bool {
	f, ok := a.In.(*os.File)
	if !ok {
		return a.In != nil
	}
	return isTerminal(f)
}
