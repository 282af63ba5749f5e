package main

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rendis/echo/internal/editor"
	"github.com/rendis/echo/internal/tui"
	"github.com/rendis/echo/pkg/schema"
)

func stepsCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steps",
		Short: "List and edit a workflow's steps",
	}
	cmd.AddCommand(stepsListCmd(o))
	cmd.AddCommand(stepsAddCmd(o))
	cmd.AddCommand(stepsSetCmd(o))
	cmd.AddCommand(stepsRmCmd(o))
	cmd.AddCommand(stepsMoveCmd(o))
	return cmd
}

func stepsListCmd(o *options) *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "list WORKFLOW",
		Short: "List steps in execution order",
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
			steps, err := a.feed.Steps(ctx, args[0])
			if err != nil {
				return err
			}
			schema.SortSteps(steps)
			if steps == nil {
				steps = []schema.Step{}
			}

			w := cmd.OutOrStdout()
			if out.structured() {
				return out.print(ctx, w, steps)
			}
			if len(steps) == 0 {
				fmt.Fprintln(w, "No steps.")
				return nil
			}
			fmt.Fprintln(w, stepsTable(steps))
			return nil
		},
	}
	cmd.Flags().BoolVar(&out.json, "json", false, "Print steps as JSON")
	cmd.Flags().StringVar(&out.jq, "jq", "", "Project the step list through a jq expression")
	return cmd
}

func stepsTable(steps []schema.Step) string {
	rows := make([][]string, len(steps))
	for i, s := range steps {
		rows[i] = []string{strconv.Itoa(i + 1), s.ID, string(s.Action), string(s.Risk), s.Context, tui.FormatParams(s)}
	}
	return tui.Table([]string{"#", "ID", "ACTION", "RISK", "CONTEXT", "PARAMS"}, rows)
}

// stepFlags are the editable fields shared by add and set.
type stepFlags struct {
	action  string
	risk    string
	context string
	params  []string
	unset   []string
}

func (f *stepFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.action, "action", "", "Browser action")
	cmd.Flags().StringVar(&f.risk, "risk", "", "Risk level: low, medium or high")
	cmd.Flags().StringVar(&f.context, "context", "", "Free-form description of the step")
	cmd.Flags().StringArrayVar(&f.params, "param", nil, "Action parameter as key=value (repeatable)")
}

// patch builds the patch for the flags the user actually set. current is
// the step being edited; its params are the base the changes apply to.
func (f *stepFlags) patch(cmd *cobra.Command, current schema.Step) (schema.StepPatch, error) {
	var p schema.StepPatch
	if cmd.Flags().Changed("action") {
		p.Action = schema.Ptr(schema.Action(f.action))
	}
	if cmd.Flags().Changed("risk") {
		p.Risk = schema.Ptr(schema.Risk(f.risk))
	}
	if cmd.Flags().Changed("context") {
		p.Context = schema.Ptr(f.context)
	}
	set, err := parseParams(f.params)
	if err != nil {
		return p, schema.NewError(schema.ErrCodeValidation, err.Error())
	}
	if len(set) > 0 || len(f.unset) > 0 {
		params := maps.Clone(current.Params)
		if params == nil {
			params = map[string]any{}
		}
		maps.Copy(params, set)
		for _, k := range f.unset {
			delete(params, k)
		}
		p.Params = params
	}
	return p, nil
}

func stepsAddCmd(o *options) *cobra.Command {
	var f stepFlags
	cmd := &cobra.Command{
		Use:   "add WORKFLOW",
		Short: "Append a step to a workflow",
		Long:  "Append a step. Unset fields take the defaults of a new step (wait, low risk).",
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

			base := schema.NewStep()
			p, err := f.patch(cmd, base)
			if err != nil {
				return err
			}
			step := p.Apply(base)
			if err := a.validator.ValidateStep(step); err != nil {
				return err
			}
			created, err := a.client.CreateStep(ctx, args[0], step)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), created.ID)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func stepsSetCmd(o *options) *cobra.Command {
	var f stepFlags
	cmd := &cobra.Command{
		Use:   "set WORKFLOW STEP",
		Short: "Change fields of a step",
		Args:  cobra.ExactArgs(2),
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
			current, err := findStep(ctx, a, args[0], args[1])
			if err != nil {
				return err
			}
			p, err := f.patch(cmd, current)
			if err != nil {
				return err
			}
			if p.Empty() {
				return schema.NewError(schema.ErrCodeValidation, "nothing to change: pass --action, --risk, --context, --param or --unset")
			}
			if err := a.validator.ValidatePatch(current.Action, p); err != nil {
				return err
			}
			return a.client.UpdateStep(ctx, args[0], args[1], p)
		},
	}
	f.bind(cmd)
	cmd.Flags().StringArrayVar(&f.unset, "unset", nil, "Remove an action parameter (repeatable)")
	return cmd
}

func stepsRmCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rm WORKFLOW STEP",
		Short: "Delete a step",
		Args:  cobra.ExactArgs(2),
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
			return a.client.DeleteStep(ctx, args[0], args[1])
		},
	}
}

func stepsMoveCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "move WORKFLOW STEP POSITION",
		Short: "Move a step to a one-based position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.Atoi(args[2])
			if err != nil {
				return schema.NewErrorf(schema.ErrCodeValidation, "position %q is not a number", args[2])
			}
			ctx, cancel := timeout(cmd)
			defer cancel()
			a, err := o.client(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := ownedWorkflow(ctx, a, args[0]); err != nil {
				return err
			}
			steps, err := a.feed.Steps(ctx, args[0])
			if err != nil {
				return err
			}
			schema.SortSteps(steps)
			ids := schema.StepIDs(steps)

			from := slices.Index(ids, args[1])
			if from < 0 {
				return schema.NewErrorf(schema.ErrCodeNotFound, "step %s not found", args[1])
			}
			if pos < 1 || pos > len(ids) {
				return schema.NewErrorf(schema.ErrCodeValidation, "position %d out of range 1..%d", pos, len(ids))
			}
			moved, ok := editor.Move(ids, from, pos-1)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Order unchanged.")
				return nil
			}
			return a.client.ReorderSteps(ctx, args[0], moved)
		},
	}
}
