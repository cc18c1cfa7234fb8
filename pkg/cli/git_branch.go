package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dshills/flowsync/pkg/gitsync"
)

func newGitBranchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch",
		Short: "List and create branches on the remote",
	}

	cmd.AddCommand(newBranchListCommand())
	cmd.AddCommand(newBranchCreateCommand())

	return cmd
}

func newBranchListCommand() *cobra.Command {
	var remoteName string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List branches of the selected remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			list, err := s.orch.ListBranches(commandContext(cmd), remoteName)
			if err != nil {
				return err
			}

			t := newTable(cmd.OutOrStdout(), table.Row{"", "BRANCH"})
			for _, b := range list.Branches {
				marker := ""
				if b == list.Current {
					marker = "*"
				}
				t.AppendRow(table.Row{marker, b})
			}
			t.Render()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d branches on %s\n", len(list.Branches), list.Remote)
			return nil
		},
	}

	cmd.Flags().StringVar(&remoteName, "remote", "", "Remote name (overrides the current selection)")
	return cmd
}

func newBranchCreateCommand() *cobra.Command {
	var from, remoteName string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a branch on the remote",
		Long: `Create a branch on the remote from another branch, by default the
repository's default branch. The new branch is not selected; use
'flowsync git checkout <name>' or 'flowsync git switch -c <name>'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			source, err := s.orch.CreateBranch(commandContext(cmd), args[0], from, remoteName)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Branch '%s' created from '%s'\n", args[0], source)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Source branch (default: the repository default branch)")
	cmd.Flags().StringVar(&remoteName, "remote", "", "Remote name (overrides the current selection)")
	return cmd
}

func newGitCheckoutCommand() *cobra.Command {
	var remoteName string

	cmd := &cobra.Command{
		Use:   "checkout <branch>",
		Short: "Select an existing branch for the active profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.orch.Checkout(commandContext(cmd), args[0], remoteName); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Switched to branch '%s'\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&remoteName, "remote", "", "Remote name (also selects that remote)")
	return cmd
}

func newGitSwitchCommand() *cobra.Command {
	var opts gitsync.SwitchOptions

	cmd := &cobra.Command{
		Use:   "switch <branch>",
		Short: "Select a branch, optionally creating it first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.orch.Switch(commandContext(cmd), args[0], opts); err != nil {
				return err
			}
			if opts.Create {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Switched to a new branch '%s'\n", args[0])
			} else {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Switched to branch '%s'\n", args[0])
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&opts.Create, "create", "c", false, "Create the branch before switching")
	cmd.Flags().StringVar(&opts.From, "from", "", "Source branch for --create (default: the repository default branch)")
	cmd.Flags().StringVar(&opts.Remote, "remote", "", "Remote name (also selects that remote)")
	return cmd
}
