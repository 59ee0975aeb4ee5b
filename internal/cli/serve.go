package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskpilot/internal/httpapi"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve models, suggestions and analysis over a local HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = app.cfg.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			httpapi.SetLogger(app.log.With().Str("component", "httpapi").Logger())
			httpapi.SetBaseContext(ctx)
			httpapi.SetStreamTimeoutSeconds(int64(app.cfg.StreamTimeoutSeconds))
			if len(app.cfg.CORSOrigins) > 0 {
				httpapi.SetCORSOptions(true, app.cfg.CORSOrigins, nil, nil)
			}

			// handlers must never wait on stdin
			s := app.headlessSession()
			if err := readyWith(ctx, s, app.model); err != nil {
				// serve anyway; POST /ready retries once the daemon is up
				app.log.Warn().Err(err).Msg("starting without AI features")
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			srv := &http.Server{
				Handler:           httpapi.NewMux(httpapi.NewSessionService(s)),
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext:       func(net.Listener) context.Context { return ctx },
			}
			errc := make(chan error, 1)
			go func() {
				app.log.Info().Str("addr", ln.Addr().String()).Str("daemon", s.Client().BaseURL()).Msg("taskpilot listening")
				errc <- srv.Serve(ln)
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				app.log.Error().Err(err).Msg("graceful shutdown error")
			}
			return nil
		},
	}
	addModelFlag(cmd, app)
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (defaults addr from config, 127.0.0.1:8088)")
	return cmd
}
