package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/echo/internal/route"
	"github.com/rendis/echo/pkg/schema"
)

func createCmd(o *options) *cobra.Command {
	var (
		status    string
		stepsFile string
	)
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a workflow, optionally seeded with steps from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := schema.WorkflowStatus(status)
			if !st.Valid() {
				return schema.NewErrorf(schema.ErrCodeValidation, "invalid status %q", status)
			}
			ctx, cancel := timeout(cmd)
			defer cancel()
			a, err := o.client(cmd.Context())
			if err != nil {
				return err
			}

			var steps []schema.Step
			if stepsFile != "" {
				data, err := os.ReadFile(stepsFile)
				if err != nil {
					return fmt.Errorf("read steps: %w", err)
				}
				if err := json.Unmarshal(data, &steps); err != nil {
					return schema.NewErrorf(schema.ErrCodeValidation, "steps file %s is not a JSON step list", stepsFile).WithCause(err)
				}
				for _, s := range steps {
					if err := a.validator.ValidateStep(s); err != nil {
						return err
					}
				}
			}

			wf, err := a.client.CreateWorkflow(ctx, args[0], st, steps)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), wf.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", string(schema.WorkflowStatusReady), "Initial status: processing, ready, active or failed")
	cmd.Flags().StringVar(&stepsFile, "steps", "", "JSON file holding the initial step list")
	return cmd
}

func activateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "activate WORKFLOW",
		Short: "Save and activate a workflow",
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
			err = a.client.UpdateWorkflow(ctx, args[0],
				schema.WorkflowUpdate{Status: schema.Ptr(schema.WorkflowStatusActive)})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), route.Workflow(args[0]))
			return nil
		},
	}
}

func deleteCmd(o *options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete WORKFLOW",
		Short: "Delete a workflow with its steps, runs and logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return schema.NewError(schema.ErrCodeValidation, "deleting a workflow cannot be undone; pass --yes to confirm")
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
			if err := a.client.DeleteWorkflow(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), route.Workflows)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")
	return cmd
}
