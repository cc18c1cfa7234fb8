package gitsync

import (
	"context"
	"errors"
	"fmt"
	"slices"

	flowerrors "github.com/dshills/flowsync/pkg/errors"
	"github.com/dshills/flowsync/pkg/hosting"
)

// BranchList is the branch listing of one remote.
type BranchList struct {
	Remote string
	// Current is the branch operations on Remote currently target.
	Current  string
	Branches []string
}

// SwitchOptions configures Switch.
type SwitchOptions struct {
	// Create makes the branch on the hosting service first.
	Create bool
	// From is the source branch for Create; the repository default
	// branch when empty.
	From   string
	Remote string
}

// ListBranches lists the branches of remoteName, or of the selected
// remote when remoteName is empty.
func (o *Orchestrator) ListBranches(ctx context.Context, remoteName string) (*BranchList, error) {
	const op = "list branches"

	s, err := o.open(ctx, op, Target{Remote: remoteName})
	if err != nil {
		return nil, err
	}
	branches, err := s.client.ListBranches(ctx)
	if err != nil {
		return nil, flowerrors.Collaborator(op, s.remote.Name, err)
	}
	return &BranchList{Remote: s.remote.Name, Current: s.branch, Branches: branches}, nil
}

// Checkout selects branch for the active profile after checking that it
// exists on the remote. A non-empty remoteName also selects that remote.
func (o *Orchestrator) Checkout(ctx context.Context, branch, remoteName string) error {
	const op = "checkout"
	if branch == "" {
		return fmt.Errorf("%s: branch cannot be empty", op)
	}

	s, err := o.open(ctx, op, Target{Remote: remoteName, Branch: branch})
	if err != nil {
		return err
	}
	if err := o.requireBranch(ctx, s, op, branch); err != nil {
		return err
	}
	return o.selectTarget(s.remote.Name, branch, remoteName != "")
}

// SelectRemote points the active profile at a remote. When branch is
// given it must exist on that remote; otherwise the stored branch is kept.
func (o *Orchestrator) SelectRemote(ctx context.Context, name, branch string) error {
	const op = "select remote"

	if branch != "" {
		s, err := o.open(ctx, op, Target{Remote: name, Branch: branch})
		if err != nil {
			return err
		}
		if err := o.requireBranch(ctx, s, op, branch); err != nil {
			return err
		}
	}
	return o.registry.SelectRemote(o.profile, name, branch)
}

// CreateBranch creates name on the remote from the branch from, or from
// the repository default branch when from is empty. It returns the source
// branch used.
func (o *Orchestrator) CreateBranch(ctx context.Context, name, from, remoteName string) (string, error) {
	const op = "create branch"
	if name == "" {
		return "", fmt.Errorf("%s: branch name cannot be empty", op)
	}

	s, err := o.open(ctx, op, Target{Remote: remoteName})
	if err != nil {
		return "", err
	}
	return o.createBranch(ctx, s, op, name, from)
}

func (o *Orchestrator) createBranch(ctx context.Context, s *session, op, name, from string) (string, error) {
	if from == "" {
		def, err := s.client.DefaultBranch(ctx)
		if err != nil {
			return "", flowerrors.Collaborator(op, s.remote.Name, fmt.Errorf("default branch: %w", err))
		}
		from = def
	}

	o.logger.Debug("creating branch", "remote", s.remote.Name, "branch", name, "from", from)

	err := s.client.CreateBranch(ctx, name, from)
	switch {
	case err == nil:
		return from, nil
	case errors.Is(err, hosting.ErrAlreadyExists):
		return "", flowerrors.Wrap(flowerrors.KindBranchExists, op, name, fmt.Errorf("already exists on %s", s.remote.Name))
	case errors.Is(err, hosting.ErrNotFound):
		return "", flowerrors.Wrap(flowerrors.KindBranchNotFound, op, from, fmt.Errorf("source branch missing on %s", s.remote.Name))
	}
	return "", flowerrors.Collaborator(op, name, err)
}

// Switch selects branch, creating it first when opts.Create is set.
// Without Create a missing branch fails with BranchNotFound.
func (o *Orchestrator) Switch(ctx context.Context, branch string, opts SwitchOptions) error {
	const op = "switch"
	if branch == "" {
		return fmt.Errorf("%s: branch cannot be empty", op)
	}

	s, err := o.open(ctx, op, Target{Remote: opts.Remote, Branch: branch})
	if err != nil {
		return err
	}

	if opts.Create {
		if _, err := o.createBranch(ctx, s, op, branch, opts.From); err != nil {
			return err
		}
	} else if err := o.requireBranch(ctx, s, op, branch); err != nil {
		return err
	}

	return o.selectTarget(s.remote.Name, branch, opts.Remote != "")
}

func (o *Orchestrator) requireBranch(ctx context.Context, s *session, op, branch string) error {
	branches, err := s.client.ListBranches(ctx)
	if err != nil {
		return flowerrors.Collaborator(op, s.remote.Name, err)
	}
	if !slices.Contains(branches, branch) {
		return flowerrors.Wrap(flowerrors.KindBranchNotFound, op, branch, fmt.Errorf("no such branch on %s", s.remote.Name))
	}
	return nil
}

func (o *Orchestrator) selectTarget(remoteName, branch string, withRemote bool) error {
	if withRemote {
		return o.registry.SelectRemote(o.profile, remoteName, branch)
	}
	return o.registry.SelectBranch(o.profile, branch)
}
