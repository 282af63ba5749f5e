package main

import (
	"context"

	"github.com/rendis/echo/pkg/schema"
)

// ownedWorkflow reads a workflow and refuses it when the session's user does
// not own it. The remote enforces the same rule; checking here gives a clear
// message before anything is sent.
func ownedWorkflow(ctx context.Context, a *app, workflowID string) (*schema.Workflow, error) {
	wf, err := a.feed.Workflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if !a.session.Owns(wf.OwnerUID) {
		return nil, schema.NewErrorf(schema.ErrCodeForbidden, "workflow %s belongs to another user", workflowID)
	}
	return wf, nil
}

func ownedRun(ctx context.Context, a *app, workflowID, runID string) (*schema.Run, error) {
	r, err := a.feed.Run(ctx, workflowID, runID)
	if err != nil {
		return nil, err
	}
	if !a.session.Owns(r.OwnerUID) {
		return nil, schema.NewErrorf(schema.ErrCodeForbidden, "run %s belongs to another user", runID)
	}
	return r, nil
}

func findStep(ctx context.Context, a *app, workflowID, stepID string) (schema.Step, error) {
	steps, err := a.feed.Steps(ctx, workflowID)
	if err != nil {
		return schema.Step{}, err
	}
	for _, s := range steps {
		if s.ID == stepID {
			return s, nil
		}
	}
	return schema.Step{}, schema.NewErrorf(schema.ErrCodeNotFound, "step %s not found", stepID).WithStep(stepID)
}
