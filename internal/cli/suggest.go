package cli

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"taskpilot/pkg/types"
)

var errStreamIncomplete = errors.New("stream ended without a result")

func newSuggestCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "suggest <context...>",
		Short:   "Suggest tasks for a short description of what you are working on",
		Example: "  taskpilot suggest planning a product launch next month",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := strings.TrimSpace(strings.Join(args, " "))
			if topic == "" {
				return errors.New("context is required")
			}
			s, err := app.ready(cmd.Context())
			if err != nil {
				return err
			}
			ev, err := consumeEvents(app, s.StreamSuggestions(cmd.Context(), topic))
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(ev.Result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(app.Out, string(b))
			return nil
		},
	}
	addModelFlag(cmd, app)
	return cmd
}

// consumeEvents shows streaming progress on Err and returns the complete event.
func consumeEvents(app *App, events iter.Seq[types.Event]) (types.Event, error) {
	var (
		final    types.Event
		complete bool
		chunks   int
	)
	for ev := range events {
		switch ev.Status {
		case types.EventStreaming:
			chunks++
			fmt.Fprint(app.Err, ev.Chunk)
		case types.EventError:
			fmt.Fprintln(app.Err, errorStyle.Render("\nstream error: "+ev.Message))
		case types.EventComplete:
			final, complete = ev, true
		}
	}
	if chunks > 0 {
		fmt.Fprintln(app.Err)
	}
	if !complete {
		return final, errStreamIncomplete
	}
	if final.Degraded {
		fmt.Fprintln(app.Err, warnStyle.Render("warning: reply could not be parsed ("+final.Reason+")"))
	}
	return final, nil
}
