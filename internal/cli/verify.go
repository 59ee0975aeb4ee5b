package cli

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newVerifyCmd(app *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "verify <model>",
		Short:   "Check that a model answers requests",
		Example: "  taskpilot verify llama3.2",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := app.client()
			if !c.Probe(cmd.Context(), app.cfg.ProbeAttempts, app.cfg.ProbeDelay()) {
				return fmt.Errorf("daemon at %s is not reachable", c.BaseURL())
			}
			out := c.Verify(cmd.Context(), args[0], app.cfg.VerifyTimeout())
			if asJSON {
				b, err := json.Marshal(out)
				if err != nil {
					return err
				}
				fmt.Fprintln(app.Out, string(b))
			} else if out.Verified {
				fmt.Fprintf(app.Out, "%s %s verified via %s\n", successStyle.Render("ok"), out.ModelName, out.Method)
			}
			if !out.Verified {
				return fmt.Errorf("model %q failed every verification check", out.ModelName)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the outcome as JSON")
	return cmd
}

func newReadyCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ready",
		Short: "Probe the daemon, select a model and verify it",
		Long: `Runs the same readiness sequence the assistant uses on startup: connectivity probe,
model discovery, model selection (saved choice, then a prompt, then the first model)
and verification. The model is saved to the session file once it verifies. Use
--model to skip selection, for example after the saved model stopped working.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.ready(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s assistant ready with %s\n", successStyle.Render("ok"), s.Model())
			return nil
		},
	}
	addModelFlag(cmd, app)
	return cmd
}
