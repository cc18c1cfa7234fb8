package gitsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/flowsync/pkg/domain/history"
	"github.com/dshills/flowsync/pkg/domain/types"
	flowerrors "github.com/dshills/flowsync/pkg/errors"
	"github.com/dshills/flowsync/pkg/hosting"
	"github.com/dshills/flowsync/pkg/langflow"
	"github.com/dshills/flowsync/pkg/repopath"
	"github.com/dshills/flowsync/pkg/versiongate"
)

// PullOptions configures a pull.
type PullOptions struct {
	Target
	// ProjectID and ProjectName override the project a pulled flow is
	// attached to. They are ignored by PullProject.
	ProjectID   types.ProjectID
	ProjectName string
	// IgnoreVersion proceeds past a version mismatch with a warning.
	IgnoreVersion bool
	// Confirm is asked about version mismatches when IgnoreVersion is
	// unset. Nil means nobody can be asked and mismatches block.
	Confirm versiongate.Confirmer
}

// environment memoizes the service version for one operation.
type environment struct {
	version string
	fetched bool
}

func (o *Orchestrator) environmentVersion(ctx context.Context, env *environment) (string, error) {
	if env.fetched {
		return env.version, nil
	}
	v, err := o.service.Version(ctx)
	if err != nil {
		return "", err
	}
	env.version, env.fetched = v, true
	return v, nil
}

// PullFlow reads the flow document at rawPath and upserts it into the
// workflow service. Nothing is written when the version gate blocks.
func (o *Orchestrator) PullFlow(ctx context.Context, rawPath string, opts PullOptions) (*Report, error) {
	const op = "pull flow"
	r := o.newReport(history.VerbPullFlow, rawPath)

	path, err := repopath.Decode(rawPath)
	if err != nil {
		return o.finish(r, err)
	}

	s, err := o.open(ctx, op, opts.Target)
	if err != nil {
		return o.finish(r, err)
	}
	r.bind(s)

	res, err := o.pullFlow(ctx, s, op, path, nil, opts, &environment{})
	r.add(res, err)
	return o.finish(r, err)
}

// pullFlow pulls the flow stored at path. When project is nil the target
// project is resolved from opts and the path.
func (o *Orchestrator) pullFlow(ctx context.Context, s *session, op string, path repopath.Path, project *types.Project, opts PullOptions, env *environment) (types.SyncResult, error) {
	raw := path.String()
	res := types.SyncResult{Kind: types.EntityFlow, EntityID: path.ID, Name: path.Name, Path: raw}

	file, err := s.client.GetFile(ctx, raw, s.branch)
	if errors.Is(err, hosting.ErrNotFound) {
		return failed(res, flowerrors.Wrap(flowerrors.KindRemotePathNotFound, op, raw,
			fmt.Errorf("not found on %s@%s", s.remote.Name, s.branch)))
	}
	if err != nil {
		return failed(res, flowerrors.Collaborator(op, raw, err))
	}
	res.CommitRef = file.SHA

	if err := langflow.ValidateFlowDocument(file.Content); err != nil {
		return failed(res, flowerrors.Wrap(flowerrors.KindMalformedFlowData, op, raw, err))
	}
	f, err := langflow.DecodeFlow(file.Content)
	if err != nil {
		return failed(res, flowerrors.Wrap(flowerrors.KindMalformedFlowData, op, raw, err))
	}
	f.ID = types.FlowID(path.ID)
	if strings.TrimSpace(f.Name) == "" {
		f.Name = path.Name
	}
	res.Name = f.Name

	if f.LastTestedVersion != "" {
		version, err := o.environmentVersion(ctx, env)
		if err != nil {
			return failed(res, flowerrors.Collaborator(op, raw, fmt.Errorf("environment version: %w", err)))
		}
		decision, err := versiongate.Check(f.Name, f.LastTestedVersion, version, opts.IgnoreVersion, opts.Confirm)
		if decision == versiongate.Block {
			return failed(res, err)
		}
		if decision == versiongate.ProceedWithWarning {
			res.Warning = fmt.Sprintf("flow %s was last tested with %s, environment runs %s", f.Name, f.LastTestedVersion, version)
			o.logger.Warn("version mismatch accepted", "flow", f.ID, "last_tested", f.LastTestedVersion, "environment", version)
		}
	}

	if project == nil {
		var warning string
		project, warning, err = o.pullTargetProject(ctx, op, path, opts)
		if err != nil {
			return failed(res, err)
		}
		if warning != "" {
			res.Warning = joinWarnings(res.Warning, warning)
		}
	}
	f.ProjectID = ""
	if project != nil {
		f.ProjectID = project.ID
	}

	_, err = o.service.GetFlow(ctx, f.ID)
	switch {
	case err == nil:
		o.logger.Debug("updating flow", "flow", f.ID, "path", raw, "project", f.ProjectID)
		if _, err := o.service.UpdateFlow(ctx, f); err != nil {
			return failed(res, flowerrors.Collaborator(op, string(f.ID), err))
		}
		res.Status = types.StatusUpdated
	case errors.Is(err, langflow.ErrNotFound):
		o.logger.Debug("creating flow", "flow", f.ID, "path", raw, "project", f.ProjectID)
		if _, err := o.service.CreateFlow(ctx, f); err != nil {
			return failed(res, flowerrors.Collaborator(op, string(f.ID), err))
		}
		res.Status = types.StatusCreated
	default:
		return failed(res, flowerrors.Collaborator(op, string(f.ID), err))
	}

	return res, nil
}

// pullTargetProject picks the project a pulled flow is attached to:
// an explicit id, then an explicit name, then the project id encoded in
// the path, then a unique project whose name matches the path. When none
// applies the flow is left unassigned and a warning is returned if the
// path named a project.
func (o *Orchestrator) pullTargetProject(ctx context.Context, op string, path repopath.Path, opts PullOptions) (*types.Project, string, error) {
	if opts.ProjectID != "" || opts.ProjectName != "" {
		p, err := o.findProject(ctx, op, ProjectSelector{ID: opts.ProjectID, Name: opts.ProjectName})
		return p, "", err
	}
	if !path.HasProject() {
		return nil, "", nil
	}

	p, err := o.service.GetProject(ctx, path.ProjectID)
	if err == nil {
		return p, "", nil
	}
	if !errors.Is(err, langflow.ErrNotFound) {
		return nil, "", flowerrors.Collaborator(op, string(path.ProjectID), err)
	}

	all, err := o.service.ListProjects(ctx)
	if err != nil {
		return nil, "", flowerrors.Collaborator(op, path.ProjectName, err)
	}
	var matches []*types.Project
	for _, candidate := range all {
		if repopath.Sanitize(candidate.Name) == path.ProjectName {
			matches = append(matches, candidate)
		}
	}
	if len(matches) == 1 {
		return matches[0], "", nil
	}

	return nil, fmt.Sprintf("project %s not found; flow left unassigned", path.Folder()), nil
}

// PullProject locates a project folder on the remote, upserts its metadata
// and then pulls every flow in the folder, attaching each to the project.
// Per-flow failures are recorded in the report; flows blocked by the
// version gate are recorded as skipped.
func (o *Orchestrator) PullProject(ctx context.Context, sel ProjectSelector, opts PullOptions) (*Report, error) {
	const op = "pull project"
	r := o.newReport(history.VerbPullProject, sel.String())

	s, err := o.open(ctx, op, opts.Target)
	if err != nil {
		return o.finish(r, err)
	}
	r.bind(s)

	folder, err := o.findFolder(ctx, s, op, sel)
	if err != nil {
		return o.finish(r, err)
	}
	r.Target = string(folder.ProjectID)

	project, res, err := o.pullProjectMetadata(ctx, s, op, folder)
	r.add(res, err)
	if err != nil {
		return o.finish(r, err)
	}

	entries, err := s.client.ListDir(ctx, folder.Folder(), s.branch)
	if err != nil {
		return o.finish(r, flowerrors.Collaborator(op, folder.Folder(), fmt.Errorf("list folder: %w", err)))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	env := &environment{}
	for _, entry := range entries {
		if entry.Type != hosting.EntryFile || !strings.HasSuffix(entry.Name, repopath.Extension) || entry.Name == folder.Leaf() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return o.finish(r, err)
		}

		path, err := repopath.Decode(folder.Folder() + repopath.Separator + entry.Name)
		if err != nil {
			r.add(failed(types.SyncResult{Kind: types.EntityFlow, Name: entry.Name, Path: entry.Path}, err))
			continue
		}

		res, err := o.pullFlow(ctx, s, op, path, project, opts, env)
		if errors.Is(err, flowerrors.ErrVersionMismatch) {
			res.Status = types.StatusSkipped
			r.add(res, nil)
			continue
		}
		if err != nil {
			o.logger.Warn("flow pull failed", "path", res.Path, "error", err)
		}
		r.add(res, err)
	}

	return o.finish(r, nil)
}

// findFolder returns the metadata path of the project folder matching sel.
func (o *Orchestrator) findFolder(ctx context.Context, s *session, op string, sel ProjectSelector) (repopath.Path, error) {
	entries, err := s.client.ListDir(ctx, "", s.branch)
	if err != nil {
		return repopath.Path{}, flowerrors.Collaborator(op, s.remote.Name, fmt.Errorf("list repository root: %w", err))
	}

	var matches []repopath.Path
	for _, entry := range entries {
		if entry.Type != hosting.EntryDir || entry.Name == repopath.NoProjectFolder {
			continue
		}
		name, id, err := repopath.ParseSegment(entry.Name)
		if err != nil {
			continue
		}
		if sel.ID != "" && types.ProjectID(id) != sel.ID {
			continue
		}
		if sel.ID == "" && name != repopath.Sanitize(sel.Name) {
			continue
		}
		matches = append(matches, repopath.Path{ProjectName: name, ProjectID: types.ProjectID(id), Name: name, ID: id})
	}

	switch len(matches) {
	case 0:
		return repopath.Path{}, flowerrors.Wrap(flowerrors.KindProjectNotFound, op, sel.String(),
			fmt.Errorf("no project folder on %s@%s", s.remote.Name, s.branch))
	case 1:
		return matches[0], nil
	}
	folders := make([]string, len(matches))
	for i, m := range matches {
		folders[i] = m.Folder()
	}
	return repopath.Path{}, flowerrors.Wrap(flowerrors.KindAmbiguousProject, op, sel.String(),
		fmt.Errorf("%d project folders match: %v", len(matches), folders))
}

func (o *Orchestrator) pullProjectMetadata(ctx context.Context, s *session, op string, meta repopath.Path) (*types.Project, types.SyncResult, error) {
	raw := meta.String()
	res := types.SyncResult{Kind: types.EntityProject, EntityID: string(meta.ProjectID), Name: meta.ProjectName, Path: raw}

	file, err := s.client.GetFile(ctx, raw, s.branch)
	if errors.Is(err, hosting.ErrNotFound) {
		res, err = failed(res, flowerrors.New(flowerrors.KindRemotePathNotFound, op, raw))
		return nil, res, err
	}
	if err != nil {
		res, err = failed(res, flowerrors.Collaborator(op, raw, err))
		return nil, res, err
	}
	res.CommitRef = file.SHA

	p, err := langflow.DecodeProject(file.Content)
	if err != nil {
		res, err = failed(res, flowerrors.Wrap(flowerrors.KindMalformedFlowData, op, raw, err))
		return nil, res, err
	}
	p.ID = meta.ProjectID
	if strings.TrimSpace(p.Name) == "" {
		p.Name = meta.ProjectName
	}
	res.Name = p.Name

	var saved *types.Project
	_, err = o.service.GetProject(ctx, p.ID)
	switch {
	case err == nil:
		saved, err = o.service.UpdateProject(ctx, p)
		res.Status = types.StatusUpdated
	case errors.Is(err, langflow.ErrNotFound):
		saved, err = o.service.CreateProject(ctx, p)
		res.Status = types.StatusCreated
	}
	if err != nil {
		res, err = failed(res, flowerrors.Collaborator(op, string(p.ID), err))
		return nil, res, err
	}
	return saved, res, nil
}

func joinWarnings(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}
