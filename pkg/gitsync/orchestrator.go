// Package gitsync mirrors flows and projects between the workflow service
// and a hosting repository.
//
// Every operation is independent: it resolves its remote and branch, makes
// a strictly sequential series of collaborator calls and reports one
// SyncResult per file touched. Nothing is retried; a collaborator failure
// is terminal for the unit of work it occurred in.
package gitsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dshills/flowsync/pkg/domain/history"
	"github.com/dshills/flowsync/pkg/domain/types"
	flowerrors "github.com/dshills/flowsync/pkg/errors"
	"github.com/dshills/flowsync/pkg/hosting"
	"github.com/dshills/flowsync/pkg/langflow"
	flowlog "github.com/dshills/flowsync/pkg/log"
	"github.com/dshills/flowsync/pkg/remote"
	"github.com/dshills/flowsync/pkg/repopath"
)

// Registry is the remote store the orchestrator resolves targets from.
type Registry interface {
	Resolve(profile, overrideRemote, overrideBranch string) (*remote.Descriptor, string, error)
	SelectRemote(profile, name, branch string) error
	SelectBranch(profile, branch string) error
}

// Config wires an Orchestrator.
type Config struct {
	// Profile is the active profile whose remote selection is used.
	Profile  string
	Registry Registry
	Service  langflow.Service
	Dialer   hosting.Dialer
	// History records every push and pull when set.
	History history.Repository
	Logger  *slog.Logger
}

// Orchestrator runs sync operations for one profile.
type Orchestrator struct {
	profile  string
	registry Registry
	service  langflow.Service
	dialer   hosting.Dialer
	history  history.Repository
	logger   *slog.Logger
	now      func() time.Time
}

// New validates cfg and returns an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Service == nil {
		return nil, fmt.Errorf("workflow service is required")
	}
	if cfg.Dialer == nil {
		return nil, fmt.Errorf("hosting dialer is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = flowlog.WithModule("gitsync")
	}
	return &Orchestrator{
		profile:  cfg.Profile,
		registry: cfg.Registry,
		service:  cfg.Service,
		dialer:   cfg.Dialer,
		history:  cfg.History,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Target overrides the profile's selected remote and branch for one
// operation. Empty fields fall back to the stored selection.
type Target struct {
	Remote string
	Branch string
}

// ProjectSelector identifies a project by id, or by exact name when ID is
// empty.
type ProjectSelector struct {
	ID   types.ProjectID
	Name string
}

func (s ProjectSelector) String() string {
	if s.ID != "" {
		return string(s.ID)
	}
	return s.Name
}

// session is a resolved remote, branch and open hosting client.
type session struct {
	remote *remote.Descriptor
	branch string
	client hosting.Client
}

func (o *Orchestrator) open(ctx context.Context, op string, t Target) (*session, error) {
	d, branch, err := o.registry.Resolve(o.profile, t.Remote, t.Branch)
	if err != nil {
		return nil, err
	}
	client, err := o.dialer.Dial(ctx, d)
	if err != nil {
		return nil, flowerrors.Collaborator(op, d.Name, fmt.Errorf("connect: %w", err))
	}
	return &session{remote: d, branch: branch, client: client}, nil
}

// findProject resolves sel against the service. A name lookup must match
// exactly one project.
func (o *Orchestrator) findProject(ctx context.Context, op string, sel ProjectSelector) (*types.Project, error) {
	if sel.ID != "" {
		p, err := o.service.GetProject(ctx, sel.ID)
		if errors.Is(err, langflow.ErrNotFound) {
			return nil, flowerrors.New(flowerrors.KindProjectNotFound, op, string(sel.ID))
		}
		if err != nil {
			return nil, flowerrors.Collaborator(op, string(sel.ID), err)
		}
		return p, nil
	}

	if sel.Name == "" {
		return nil, fmt.Errorf("%s: a project id or name is required", op)
	}

	matches, err := o.projectsNamed(ctx, sel.Name)
	if err != nil {
		return nil, flowerrors.Collaborator(op, sel.Name, err)
	}
	switch len(matches) {
	case 0:
		return nil, flowerrors.New(flowerrors.KindProjectNotFound, op, sel.Name)
	case 1:
		return matches[0], nil
	}
	ids := make([]string, len(matches))
	for i, p := range matches {
		ids[i] = string(p.ID)
	}
	return nil, flowerrors.Wrap(flowerrors.KindAmbiguousProject, op, sel.Name,
		fmt.Errorf("%d projects share this name: %v", len(matches), ids))
}

func (o *Orchestrator) projectsNamed(ctx context.Context, name string) ([]*types.Project, error) {
	all, err := o.service.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	var matches []*types.Project
	for _, p := range all {
		if p.Name == name {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

// putFile writes content at path, updating when the file exists and
// creating it otherwise.
func (o *Orchestrator) putFile(ctx context.Context, s *session, op string, kind types.EntityKind, entityID, name string, path repopath.Path, content []byte, message string) (types.SyncResult, error) {
	res := types.SyncResult{Kind: kind, EntityID: entityID, Name: name, Path: path.String()}

	var sha string
	existing, err := s.client.GetFile(ctx, path.String(), s.branch)
	switch {
	case err == nil:
		sha = existing.SHA
		res.Status = types.StatusUpdated
	case errors.Is(err, hosting.ErrNotFound):
		res.Status = types.StatusCreated
	default:
		return failed(res, flowerrors.Collaborator(op, path.String(), err))
	}

	if message == "" {
		message = defaultMessage(kind, name, res.Status)
	}

	o.logger.Debug("writing file", "path", res.Path, "remote", s.remote.Name, "branch", s.branch, "status", res.Status)

	commit, err := s.client.PutFile(ctx, hosting.FileChange{
		Path:    path.String(),
		Content: content,
		Message: message,
		Branch:  s.branch,
		SHA:     sha,
	})
	if err != nil {
		return failed(res, flowerrors.Collaborator(op, path.String(), err))
	}

	res.CommitRef = commit
	return res, nil
}

func failed(res types.SyncResult, err error) (types.SyncResult, error) {
	res.Status = types.StatusFailed
	res.Reason = err.Error()
	return res, err
}

func defaultMessage(kind types.EntityKind, name string, status types.SyncStatus) string {
	verb := "Add"
	if status == types.StatusUpdated {
		verb = "Update"
	}
	return fmt.Sprintf("%s %s: %s", verb, kind, name)
}
