package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// Execute runs the command tree with args and returns the process exit code.
func Execute(ctx context.Context, app *App, args []string) int {
	root := buildRootCmd(app)
	root.SetArgs(args)
	root.SetIn(app.In)
	root.SetOut(app.Out)
	root.SetErr(app.Err)
	err := root.ExecuteContext(ctx)
	if cerr := app.teardown(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(app.Err, errorStyle.Render("error: "+err.Error()))
		return 1
	}
	return 0
}

// buildRootCmd constructs the command tree bound to app.
func buildRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "taskpilot",
		Short:         "Task assistant backed by a local Ollama daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup()
		},
	}

	root.PersistentFlags().StringVar(&app.cfgPath, "config", "", "Config file (.yaml, .json or .toml)")
	root.PersistentFlags().StringVar(&app.logLevel, "log-level", "", "Log level: debug|info|warn|error|off (defaults TASKPILOT_LOG_LEVEL or info)")
	root.PersistentFlags().StringVar(&app.envFile, "env-file", "", "Dotenv file to load (defaults .env when present)")

	root.AddCommand(
		newModelsCmd(app),
		newVerifyCmd(app),
		newReadyCmd(app),
		newChatCmd(app),
		newSuggestCmd(app),
		newAnalyzeCmd(app),
		newServeCmd(app),
	)
	return root
}
