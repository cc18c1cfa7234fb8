package gitsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/flowsync/pkg/domain/history"
	"github.com/dshills/flowsync/pkg/domain/types"
	flowerrors "github.com/dshills/flowsync/pkg/errors"
	"github.com/dshills/flowsync/pkg/langflow"
	"github.com/dshills/flowsync/pkg/repopath"
)

// PushOptions configures a single-flow push.
type PushOptions struct {
	Target
	// Message overrides the synthesized commit message.
	Message string
}

// PushProjectOptions configures a project push.
type PushProjectOptions struct {
	Target
	Message string
	// ProjectOnly writes the metadata file and no flows.
	ProjectOnly bool
	// Filter is an expression selecting which flows are sent. Flows it
	// rejects are reported as skipped.
	Filter string
}

// PushFlow writes one flow to the selected remote and branch. The report
// holds exactly one result; a failure is also returned as the error.
func (o *Orchestrator) PushFlow(ctx context.Context, id types.FlowID, opts PushOptions) (*Report, error) {
	const op = "push flow"
	r := o.newReport(history.VerbPushFlow, string(id))

	s, err := o.open(ctx, op, opts.Target)
	if err != nil {
		return o.finish(r, err)
	}
	r.bind(s)

	f, err := o.service.GetFlow(ctx, id)
	if errors.Is(err, langflow.ErrNotFound) {
		return o.finish(r, flowerrors.New(flowerrors.KindFlowNotFound, op, string(id)))
	}
	if err != nil {
		return o.finish(r, flowerrors.Collaborator(op, string(id), err))
	}

	res, err := o.pushFlow(ctx, s, op, f, nil, opts.Message)
	r.add(res, err)
	return o.finish(r, err)
}

// pushFlow writes f. project is looked up when nil and the flow has one.
func (o *Orchestrator) pushFlow(ctx context.Context, s *session, op string, f *types.Flow, project *types.Project, message string) (types.SyncResult, error) {
	res := types.SyncResult{Kind: types.EntityFlow, EntityID: string(f.ID), Name: f.Name}

	var warning string
	if project == nil && f.HasProject() {
		p, err := o.service.GetProject(ctx, f.ProjectID)
		switch {
		case err == nil:
			project = p
		case errors.Is(err, langflow.ErrNotFound):
			warning = fmt.Sprintf("project %s no longer exists; stored under %s", f.ProjectID, repopath.NoProjectFolder)
			o.logger.Warn("flow references a missing project", "flow", f.ID, "project", f.ProjectID)
		default:
			return failed(res, flowerrors.Collaborator(op, string(f.ID), err))
		}
	}

	path, err := repopath.EncodeFlow(f, project)
	if err != nil {
		return failed(res, err)
	}

	content, err := langflow.EncodeFlow(f)
	if err != nil {
		res.Path = path.String()
		return failed(res, flowerrors.Wrap(flowerrors.KindMalformedFlowData, op, string(f.ID), err))
	}

	res, err = o.putFile(ctx, s, op, types.EntityFlow, string(f.ID), f.Name, path, content, message)
	res.Warning = warning
	return res, err
}

// PushProject writes a project's metadata file and, unless ProjectOnly is
// set, every flow of the project in service order. A flow that fails is
// recorded in the report and the remaining flows are still pushed; the
// returned error is reserved for failures that stop the whole operation.
// Use Report.Err to collect per-flow failures.
func (o *Orchestrator) PushProject(ctx context.Context, sel ProjectSelector, opts PushProjectOptions) (*Report, error) {
	const op = "push project"
	r := o.newReport(history.VerbPushProject, sel.String())

	filter, err := CompileFlowFilter(opts.Filter)
	if err != nil {
		return o.finish(r, err)
	}

	s, err := o.open(ctx, op, opts.Target)
	if err != nil {
		return o.finish(r, err)
	}
	r.bind(s)

	project, err := o.findProject(ctx, op, sel)
	if err != nil {
		return o.finish(r, err)
	}
	r.Target = string(project.ID)

	metaPath, err := repopath.EncodeProject(project)
	if err != nil {
		return o.finish(r, err)
	}
	meta, err := langflow.EncodeProject(project)
	if err != nil {
		return o.finish(r, flowerrors.Collaborator(op, string(project.ID), err))
	}
	res, err := o.putFile(ctx, s, op, types.EntityProject, string(project.ID), project.Name, metaPath, meta, opts.Message)
	r.add(res, err)
	if err != nil {
		return o.finish(r, err)
	}

	if opts.ProjectOnly {
		return o.finish(r, nil)
	}

	flows, err := o.service.ListFlows(ctx, project.ID)
	if err != nil {
		return o.finish(r, flowerrors.Collaborator(op, string(project.ID), fmt.Errorf("list flows: %w", err)))
	}

	for _, f := range flows {
		if err := ctx.Err(); err != nil {
			return o.finish(r, err)
		}

		ok, err := filter.Match(f)
		if err != nil {
			res := types.SyncResult{Kind: types.EntityFlow, EntityID: string(f.ID), Name: f.Name}
			r.add(failed(res, err))
			continue
		}
		if !ok {
			r.add(types.SyncResult{
				Kind:     types.EntityFlow,
				EntityID: string(f.ID),
				Name:     f.Name,
				Status:   types.StatusSkipped,
				Reason:   "excluded by filter",
			}, nil)
			continue
		}

		res, err := o.pushFlow(ctx, s, op, f, project, opts.Message)
		if err != nil {
			o.logger.Warn("flow push failed", "flow", f.ID, "path", res.Path, "error", err)
		}
		r.add(res, err)
	}

	return o.finish(r, nil)
}
