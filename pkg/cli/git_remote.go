package cli

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dshills/flowsync/pkg/remote"
)

// NewGitCommand creates the git command group
func NewGitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "git",
		Short: "Synchronize flows and projects with a Git hosting repository",
		Long: `Push flows and projects from the active Langflow environment to a GitHub
repository and pull them back.

Repository layout:
  <project>[<project-id>]/<project>[<project-id>].json   project metadata
  <project>[<project-id>]/<flow>[<flow-id>].json         flow in a project
  _no_project/<flow>[<flow-id>].json                     flow without a project`,
	}

	cmd.AddCommand(newGitRemoteCommand())
	cmd.AddCommand(newGitBranchCommand())
	cmd.AddCommand(newGitCheckoutCommand())
	cmd.AddCommand(newGitSwitchCommand())
	cmd.AddCommand(newGitPushCommand())
	cmd.AddCommand(newGitPullCommand())

	return cmd
}

func newGitRemoteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Manage Git remotes",
	}

	cmd.AddCommand(newRemoteAddCommand())
	cmd.AddCommand(newRemoteListCommand())
	cmd.AddCommand(newRemoteRemoveCommand())
	cmd.AddCommand(newRemoteSelectCommand())
	cmd.AddCommand(newRemoteSetTokenCommand())

	return cmd
}

func newRemoteAddCommand() *cobra.Command {
	var (
		token    string
		useStdin bool
	)

	cmd := &cobra.Command{
		Use:   "add <name> <url>",
		Short: "Register a remote repository",
		Long: `Register a GitHub or GitHub Enterprise repository under a name.

Both HTTPS and SSH URLs are accepted:
  https://github.com/acme/flows
  git@github.com:acme/flows.git
  https://ghe.example.com/team/flows.git

The access token is stored in the system keyring.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := secretInput{label: "token", flag: "token", value: token, useStdin: useStdin}.read(cmd)
			if err != nil {
				return err
			}

			d, err := remote.NewDescriptor(args[0], args[1], secret)
			if err != nil {
				return err
			}
			if err := openStores().registry.AddRemote(d); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Remote '%s' added (%s/%s on %s)\n", d.Name, d.Owner, d.Repo, d.Host)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Access token (prompted when omitted)")
	cmd.Flags().BoolVar(&useStdin, "stdin", false, "Read the token from stdin")
	cmd.MarkFlagsMutuallyExclusive("stdin", "token")

	return cmd
}

func newRemoteListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List remotes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			remotes, err := openStores().registry.ListRemotes()
			if err != nil {
				return err
			}
			if len(remotes) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No remotes configured.")
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "\nAdd one with: flowsync git remote add <name> <url>")
				return nil
			}

			t := newTable(cmd.OutOrStdout(), table.Row{"NAME", "URL", "HOST", "REPOSITORY", "TOKEN"})
			for _, d := range remotes {
				t.AppendRow(table.Row{d.Name, d.URL, fmt.Sprintf("%s (%s)", d.Host, d.HostKind), d.Owner + "/" + d.Repo, d.Token})
			}
			t.Render()
			return nil
		},
	}
}

func newRemoteRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a remote and clear every selection that uses it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openStores().registry.RemoveRemote(args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Remote '%s' removed\n", args[0])
			return nil
		},
	}
}

func newRemoteSelectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "select <name> [branch]",
		Short: "Select the remote (and optionally the branch) for the active profile",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var branch string
			if len(args) == 2 {
				branch = args[1]
			}

			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.orch.SelectRemote(commandContext(cmd), args[0], branch); err != nil {
				return err
			}
			sel, err := s.registry.Selection(s.profile.Name)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Profile '%s' now uses %s@%s\n", s.profile.Name, sel.Remote, sel.Branch)
			return nil
		},
	}
}

func newRemoteSetTokenCommand() *cobra.Command {
	var (
		token    string
		useStdin bool
	)

	cmd := &cobra.Command{
		Use:   "set-token <name>",
		Short: "Replace the access token of a remote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := secretInput{label: "token", flag: "token", value: token, useStdin: useStdin}.read(cmd)
			if err != nil {
				return err
			}
			if err := openStores().registry.SetToken(args[0], secret); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Token updated for remote '%s'\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Access token (prompted when omitted)")
	cmd.Flags().BoolVar(&useStdin, "stdin", false, "Read the token from stdin")
	cmd.MarkFlagsMutuallyExclusive("stdin", "token")

	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
