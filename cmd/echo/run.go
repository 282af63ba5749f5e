package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rendis/echo/internal/route"
	"github.com/rendis/echo/internal/runs"
	"github.com/rendis/echo/internal/tui"
	"github.com/rendis/echo/pkg/schema"
)

// drainGrace is how long a plain watch keeps reading logs after the run
// reaches a terminal status; the transcript and the run document arrive on
// separate topics.
const drainGrace = 500 * time.Millisecond

// watchFlags configure how a run is followed.
type watchFlags struct {
	filter string
	plain  bool
	exit   bool
}

func (f *watchFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.filter, "filter", "", `Only show log lines matching an expression, e.g. level == "error"`)
	cmd.Flags().BoolVar(&f.plain, "plain", false, "Print log lines instead of opening the full-screen viewer")
	cmd.Flags().BoolVar(&f.exit, "exit", false, "Close the full-screen viewer when the run finishes")
}

func runCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start, follow and cancel workflow runs",
	}
	cmd.AddCommand(runStartCmd(o))
	cmd.AddCommand(runCancelCmd(o))
	cmd.AddCommand(runWatchCmd(o))
	cmd.AddCommand(runListCmd(o))
	cmd.AddCommand(runShowCmd(o))
	return cmd
}

func runStartCmd(o *options) *cobra.Command {
	var (
		watch bool
		wf    watchFlags
	)
	cmd := &cobra.Command{
		Use:   "start WORKFLOW",
		Short: "Start a run of a ready or active workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := runs.NewLogFilter(wf.filter)
			if err != nil {
				return err
			}
			ctx, cancel := timeout(cmd)
			defer cancel()
			a, err := o.client(cmd.Context())
			if err != nil {
				return err
			}
			workflow, err := ownedWorkflow(ctx, a, args[0])
			if err != nil {
				return err
			}
			if !runs.CanStart(workflow) {
				return schema.NewErrorf(schema.ErrCodeConflict, "workflow %s is %s; only ready or active workflows can run", workflow.ID, workflow.Status)
			}

			var nav route.Recorder
			runID, err := runs.NewController(a.client, &nav, o.logger).Start(ctx, workflow)
			if err != nil {
				return err
			}
			if !watch {
				fmt.Fprintln(cmd.OutOrStdout(), runID)
				if last, ok := nav.Last(); ok {
					fmt.Fprintln(cmd.ErrOrStderr(), last.To)
				}
				return nil
			}
			return watchRun(cmd, o, a, workflow.ID, runID, filter, wf)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Follow the run once started")
	wf.bind(cmd)
	return cmd
}

func runCancelCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel WORKFLOW RUN",
		Short: "Cancel a pending or running run",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeout(cmd)
			defer cancel()
			a, err := o.client(cmd.Context())
			if err != nil {
				return err
			}
			r, err := ownedRun(ctx, a, args[0], args[1])
			if err != nil {
				return err
			}
			if !r.Status.Cancellable() {
				fmt.Fprintf(cmd.OutOrStdout(), "Run already %s.\n", r.Status)
				return nil
			}
			if err := a.client.CancelRun(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cancellation requested.")
			return nil
		},
	}
}

func runWatchCmd(o *options) *cobra.Command {
	var wf watchFlags
	cmd := &cobra.Command{
		Use:   "watch WORKFLOW RUN",
		Short: "Follow a run's status, frames and logs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := runs.NewLogFilter(wf.filter)
			if err != nil {
				return err
			}
			a, err := o.client(cmd.Context())
			if err != nil {
				return err
			}
			return watchRun(cmd, o, a, args[0], args[1], filter, wf)
		},
	}
	wf.bind(cmd)
	return cmd
}

func runListCmd(o *options) *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "list WORKFLOW",
		Short: "List a workflow's runs, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeout(cmd)
			defer cancel()
			a, err := o.client(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := ownedWorkflow(ctx, a, args[0]); err != nil {
				return err
			}
			list, err := a.feed.Runs(ctx, args[0])
			if err != nil {
				return err
			}
			history := runs.History(list)
			if history == nil {
				history = []schema.Run{}
			}

			w := cmd.OutOrStdout()
			if out.structured() {
				return out.print(ctx, w, history)
			}
			if len(history) == 0 {
				fmt.Fprintln(w, "No runs yet.")
				return nil
			}
			fmt.Fprintln(w, runsTable(history, time.Now()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&out.json, "json", false, "Print runs as JSON")
	cmd.Flags().StringVar(&out.jq, "jq", "", "Project the run list through a jq expression")
	return cmd
}

func runShowCmd(o *options) *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "show WORKFLOW RUN",
		Short: "Show one run's status, timing and latest frame",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeout(cmd)
			defer cancel()
			a, err := o.client(cmd.Context())
			if err != nil {
				return err
			}
			r, err := ownedRun(ctx, a, args[0], args[1])
			if err != nil {
				return err
			}
			if out.structured() {
				return out.print(ctx, cmd.OutOrStdout(), r)
			}
			fmt.Fprint(cmd.OutOrStdout(), runDetails(r))
			return nil
		},
	}
	cmd.Flags().BoolVar(&out.json, "json", false, "Print the run as JSON")
	cmd.Flags().StringVar(&out.jq, "jq", "", "Project the run through a jq expression")
	return cmd
}

func runDetails(r *schema.Run) string {
	stamp := func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.Local().Format(time.DateTime)
	}
	frame := "-"
	if r.LastScreenshotURL != nil {
		frame = *r.LastScreenshotURL
	}
	pairs := [][2]string{
		{"Run", r.ID},
		{"Status", tui.StatusBadge(r.Status)},
		{"Created", stamp(&r.CreatedAt)},
		{"Started", stamp(r.StartedAt)},
		{"Completed", stamp(r.CompletedAt)},
		{"Frame", frame},
	}
	if r.Error != "" {
		pairs = append(pairs, [2]string{"Error", r.Error})
	}
	return tui.KeyValues(pairs...)
}

func runsTable(history []schema.Run, now time.Time) string {
	rows := make([][]string, len(history))
	for i, r := range history {
		rows[i] = []string{strconv.Itoa(i + 1), runs.Label(r, i, now), r.ID, string(r.Status), r.Error}
	}
	return tui.Table([]string{"#", "RUN", "ID", "STATUS", "ERROR"}, rows)
}

// watchRun follows one run until the user quits or, in plain mode, until
// the run finishes.
func watchRun(cmd *cobra.Command, o *options, a *app, workflowID, runID string, filter *runs.LogFilter, f watchFlags) error {
	logger, closeLog := o.logger, func() {}
	if !f.plain {
		logger, closeLog = o.fileLogger()
	}
	defer closeLog()

	ctx := cmd.Context()
	v := runs.NewViewer(runs.ViewerConfig{
		WorkflowID: workflowID,
		RunID:      runID,
		Session:    a.session,
		Remote:     a.client,
		Feed:       a.feed,
		Logger:     logger,
	})
	if err := v.Open(ctx); err != nil {
		return err
	}
	defer v.Close()

	if f.plain {
		return followPlain(ctx, cmd.OutOrStdout(), v, filter)
	}

	m := tui.NewRunModel(ctx, v, filter)
	m.ExitOnFinish = f.exit
	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	if rm, ok := final.(tui.RunModel); ok && rm.Status() != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Run %s %s.\n", runID, rm.Status())
	}
	return nil
}

// followPlain prints status changes and new log lines as they arrive. It
// returns once the run is terminal, and an error when the run failed.
func followPlain(ctx context.Context, w io.Writer, v *runs.Viewer, filter *runs.LogFilter) error {
	styles := tui.DefaultStyles()
	var (
		printed    int
		lastStatus schema.RunStatus
		lastFrame  string
		settle     <-chan time.Time
	)
	for {
		s := v.State()
		if s.NotFound {
			return schema.NewError(schema.ErrCodeNotFound, "run not found")
		}
		for _, e := range s.Logs[printed:] {
			if filter.Match(e) {
				fmt.Fprintln(w, tui.FormatLogLine(e, styles))
			}
		}
		printed = len(s.Logs)

		if s.Run != nil {
			if s.Run.Status != lastStatus {
				lastStatus = s.Run.Status
				fmt.Fprintln(w, "status: "+tui.StatusBadge(lastStatus))
			}
			if s.Frame != "" && s.Frame != lastFrame {
				lastFrame = s.Frame
				fmt.Fprintln(w, "frame: "+s.Frame)
			}
			if s.Run.Status.Terminal() && settle == nil {
				settle = time.After(drainGrace)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-v.Changes():
			if !ok {
				return nil
			}
		case <-settle:
			if lastStatus == schema.RunStatusFailed {
				msg := s.Run.Error
				if msg == "" {
					msg = "no error reported"
				}
				return fmt.Errorf("run failed: %s", msg)
			}
			return nil
		}
	}
}
