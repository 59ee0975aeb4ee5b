package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"taskpilot/internal/daemon"
)

func newChatCmd(app *App) *cobra.Command {
	var system string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the selected model (type quit or exit to leave)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := app.ready(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s (model %s, type quit or exit to leave)\n", titleStyle.Render("Chat"), s.Model())

			var history []daemon.Message
			if system != "" {
				history = append(history, daemon.Message{Role: "system", Content: system})
			}
			for {
				fmt.Fprint(app.Out, "\nYou: ")
				line, err := readLine(ctx, app)
				if errors.Is(err, io.EOF) {
					fmt.Fprintln(app.Out)
					return nil
				}
				if err != nil {
					return err
				}
				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				if q := strings.ToLower(line); q == "quit" || q == "exit" {
					return nil
				}

				history = append(history, daemon.Message{Role: "user", Content: line})
				stream, err := s.Chat(ctx, history)
				if err != nil {
					return err
				}
				fmt.Fprint(app.Out, "AI: ")
				var reply strings.Builder
				for frag := range stream.Fragments() {
					fmt.Fprint(app.Out, frag)
					if stream.Err() == nil {
						reply.WriteString(frag)
					}
				}
				fmt.Fprintln(app.Out)
				if err := stream.Err(); err != nil {
					// drop the unanswered turn so the next one starts clean
					history = history[:len(history)-1]
					app.log.Warn().Err(err).Msg("chat reply failed")
					continue
				}
				history = append(history, daemon.Message{Role: "assistant", Content: reply.String()})
			}
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "Optional system prompt")
	addModelFlag(cmd, app)
	return cmd
}
