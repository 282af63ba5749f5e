package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rendis/echo/internal/editor"
	"github.com/rendis/echo/internal/route"
	"github.com/rendis/echo/internal/tui"
)

func editCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "edit WORKFLOW",
		Short: "Open the full-screen step editor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.client(cmd.Context())
			if err != nil {
				return err
			}
			logger, closeLog := o.fileLogger()
			defer closeLog()

			ctx := cmd.Context()
			var nav route.Recorder
			ed := editor.New(editor.Config{
				WorkflowID: args[0],
				Session:    a.session,
				Remote:     a.client,
				Feed:       a.feed,
				Navigator:  &nav,
				Validator:  a.validator,
				Debounce:   o.cfg.DebounceWindow(),
				Logger:     logger,
			})
			if err := ed.Open(ctx); err != nil {
				return err
			}
			defer ed.Close()

			final, err := tea.NewProgram(tui.NewEditorModel(ctx, ed), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			if err != nil {
				return err
			}
			v := ed.View()
			switch {
			case v.Denied:
				return fmt.Errorf("workflow %s belongs to another user", args[0])
			case v.NotFound:
				return fmt.Errorf("workflow %s not found", args[0])
			}
			if m, ok := final.(tui.EditorModel); ok && m.Saved() {
				fmt.Fprintln(cmd.OutOrStdout(), "Saved and activated.")
			}
			if last, ok := nav.Last(); ok {
				fmt.Fprintln(cmd.ErrOrStderr(), last.To)
			}
			return nil
		},
	}
}
