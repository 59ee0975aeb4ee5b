package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"taskpilot/internal/daemon"
)

func newModelsCmd(app *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "models",
		Short:   "List installed models",
		Example: "  taskpilot models\n  taskpilot models --json",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := app.client().ListModels(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				if models == nil {
					models = []daemon.ModelDescriptor{}
				}
				b, err := json.MarshalIndent(models, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(app.Out, string(b))
				return nil
			}
			if len(models) == 0 {
				fmt.Fprintln(app.Out, "No models installed. Pull one with `ollama pull <model>`.")
				return nil
			}
			fmt.Fprintln(app.Out, titleStyle.Render("Installed models"))
			fmt.Fprintln(app.Out, modelTable(models))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the catalog as JSON")
	return cmd
}

func modelTable(models []daemon.ModelDescriptor) string {
	rows := make([][]string, 0, len(models))
	for i, m := range models {
		rows = append(rows, []string{strconv.Itoa(i + 1), m.Name, m.Size, m.Modified})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("#", "Name", "Size", "Modified").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}
