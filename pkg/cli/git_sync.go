package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/flowsync/pkg/domain/types"
	"github.com/dshills/flowsync/pkg/gitsync"
)

// GitPushFlags holds the flags for the git push command
type GitPushFlags struct {
	FlowID      string
	ProjectID   string
	ProjectName string
	ProjectOnly bool
	Remote      string
	Branch      string
	Message     string
	Filter      string
}

func newGitPushCommand() *cobra.Command {
	flags := &GitPushFlags{}

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push a flow or a project to the remote",
		Long: `Push a single flow, or a project's metadata and all of its flows.

When pushing a project, a flow that fails is reported and the remaining flows
are still pushed. The command exits non-zero if anything failed.

Examples:
  flowsync git push --flow-id 3fa85f64-5717-4562-b3fc-2c963f66afa6
  flowsync git push --project-name Demo -m "Nightly snapshot"
  flowsync git push --project-id p1 --filter 'name startsWith "prod-"'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGitPush(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.FlowID, "flow-id", "", "Flow ID to push")
	cmd.Flags().StringVar(&flags.ProjectID, "project-id", "", "Project ID to push")
	cmd.Flags().StringVar(&flags.ProjectName, "project-name", "", "Project name to push (must be unique)")
	cmd.Flags().BoolVar(&flags.ProjectOnly, "project-only", false, "Push only the project metadata file")
	cmd.Flags().StringVar(&flags.Remote, "remote", "", "Remote name (overrides the current selection)")
	cmd.Flags().StringVar(&flags.Branch, "branch", "", "Branch name (overrides the current selection)")
	cmd.Flags().StringVarP(&flags.Message, "message", "m", "", "Commit message")
	cmd.Flags().StringVar(&flags.Filter, "filter", "", "Expression selecting which project flows to push (id, name, project_id, last_tested_version)")
	cmd.MarkFlagsOneRequired("flow-id", "project-id", "project-name")
	cmd.MarkFlagsMutuallyExclusive("flow-id", "project-id", "project-name")

	return cmd
}

func runGitPush(cmd *cobra.Command, flags *GitPushFlags) error {
	if flags.FlowID != "" && (flags.ProjectOnly || flags.Filter != "") {
		return fmt.Errorf("--project-only and --filter apply to project pushes only")
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := commandContext(cmd)
	target := gitsync.Target{Remote: flags.Remote, Branch: flags.Branch}

	var report *gitsync.Report
	if flags.FlowID != "" {
		report, err = s.orch.PushFlow(ctx, types.FlowID(flags.FlowID), gitsync.PushOptions{
			Target:  target,
			Message: flags.Message,
		})
	} else {
		report, err = s.orch.PushProject(ctx, gitsync.ProjectSelector{ID: types.ProjectID(flags.ProjectID), Name: flags.ProjectName},
			gitsync.PushProjectOptions{
				Target:      target,
				Message:     flags.Message,
				ProjectOnly: flags.ProjectOnly,
				Filter:      flags.Filter,
			})
	}
	return reportOutcome(cmd, report, err)
}

// GitPullFlags holds the flags for the git pull command
type GitPullFlags struct {
	ProjectID     string
	ProjectName   string
	Remote        string
	Branch        string
	IgnoreVersion bool
}

func newGitPullCommand() *cobra.Command {
	flags := &GitPullFlags{}

	cmd := &cobra.Command{
		Use:   "pull [path]",
		Short: "Pull a flow or a project from the remote",
		Long: `Pull a flow by its repository path, or a whole project folder.

With a path, the flow is created or updated in the active environment. The
flow is attached to the project given by --project-id / --project-name, or
else to the project its path names if that project exists.

Without a path, --project-id or --project-name selects a project folder on
the remote; its metadata and every flow in it are pulled.

A flow whose last tested Langflow version differs from the environment's is
only applied after confirmation, or with --ignore-version-check.

Examples:
  flowsync git pull 'Demo[p1]/Greeter[f1].json'
  flowsync git pull '_no_project/Greeter[f1].json' --project-name Demo
  flowsync git pull --project-id p1 --branch staging`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return runGitPull(cmd, path, flags)
		},
	}

	cmd.Flags().StringVar(&flags.ProjectID, "project-id", "", "Project ID to attach the flow to, or to pull without a path")
	cmd.Flags().StringVar(&flags.ProjectName, "project-name", "", "Project name to attach the flow to, or to pull without a path")
	cmd.Flags().StringVar(&flags.Remote, "remote", "", "Remote name (overrides the current selection)")
	cmd.Flags().StringVar(&flags.Branch, "branch", "", "Branch name (overrides the current selection)")
	cmd.Flags().BoolVar(&flags.IgnoreVersion, "ignore-version-check", false, "Apply flows tested against a different Langflow version without asking")
	cmd.MarkFlagsMutuallyExclusive("project-id", "project-name")

	return cmd
}

func runGitPull(cmd *cobra.Command, path string, flags *GitPullFlags) error {
	if path == "" && flags.ProjectID == "" && flags.ProjectName == "" {
		return fmt.Errorf("a path, --project-id or --project-name is required")
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	opts := gitsync.PullOptions{
		Target:        gitsync.Target{Remote: flags.Remote, Branch: flags.Branch},
		ProjectID:     types.ProjectID(flags.ProjectID),
		ProjectName:   flags.ProjectName,
		IgnoreVersion: flags.IgnoreVersion,
		Confirm:       confirmerFor(cmd),
	}

	ctx := commandContext(cmd)
	var report *gitsync.Report
	if path != "" {
		report, err = s.orch.PullFlow(ctx, path, opts)
	} else {
		report, err = s.orch.PullProject(ctx, gitsync.ProjectSelector{ID: opts.ProjectID, Name: opts.ProjectName}, opts)
	}
	return reportOutcome(cmd, report, err)
}

// reportOutcome prints a report and turns captured failures into an error.
func reportOutcome(cmd *cobra.Command, report *gitsync.Report, err error) error {
	if report != nil && len(report.Results) > 0 {
		printReport(cmd.OutOrStdout(), report)
	}
	if err != nil {
		return err
	}
	if !report.Succeeded() {
		return fmt.Errorf("%d of %d files failed: %w", report.Count(types.StatusFailed), len(report.Results), report.Err())
	}
	return nil
}
