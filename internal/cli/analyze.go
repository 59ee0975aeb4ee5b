package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"taskpilot/internal/assistant"
	"taskpilot/internal/common/fsutil"
	"taskpilot/internal/tasks"
)

func newAnalyzeCmd(app *App) *cobra.Command {
	var outputDir string
	cmd := &cobra.Command{
		Use:   "analyze [tasks.json]",
		Short: "Analyze patterns across every task in a task file",
		Long: `Sends the whole task list to the model and writes the analysis to
<output-dir>/analysis-<file>-<timestamp>.json. The task file defaults to tasks_file
from the config and may hold a bare array or {"tasks": [...]}.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.cfg.TasksFile
			if len(args) == 1 {
				path = args[0]
			}
			path, err := fsutil.ExpandHome(path)
			if err != nil {
				return err
			}
			if err := fsutil.CheckReadable(path); err != nil {
				return fmt.Errorf("tasks file: %w", err)
			}
			ts, err := tasks.LoadFile(path)
			if err != nil {
				return err
			}

			s, err := app.ready(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Err, "Analyzing %s tasks with %s...\n", humanize.Comma(int64(len(ts))), s.Model())
			ev, err := consumeEvents(app, s.StreamAnalysis(cmd.Context(), ts))
			if err != nil {
				return err
			}

			out, err := writeAnalysis(outputDir, path, app.Now().Format("2006-01-02_15-04-05"), ev.Result)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s analysis saved to %s (%s words)\n",
				successStyle.Render("ok"), out, humanize.Comma(int64(assistant.WordCount(ev.Result))))
			return nil
		},
	}
	cmd.Flags().StringVar(&outputDir, "output-dir", "output", "Directory for analysis files")
	addModelFlag(cmd, app)
	return cmd
}

// writeAnalysis stores result as indented JSON named after the task file.
func writeAnalysis(dir, tasksPath, stamp string, result any) (string, error) {
	dir, err := fsutil.ExpandHome(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(tasksPath), filepath.Ext(tasksPath))
	out := filepath.Join(dir, fmt.Sprintf("analysis-%s-%s.json", base, stamp))
	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(out, append(b, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write analysis: %w", err)
	}
	return out, nil
}
