package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dshills/flowsync/pkg/profile"
)

// NewEnvCommand creates the environment profile command
func NewEnvCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage Langflow environment profiles",
		Long: `Manage the Langflow environments flowsync talks to.

A profile pairs a Langflow URL with an API key. The API key is stored in the
system keyring, never in the profile file. Every profile keeps its own Git
remote and branch selection.`,
	}

	cmd.AddCommand(newEnvRegisterCommand())
	cmd.AddCommand(newEnvListCommand())
	cmd.AddCommand(newEnvSelectCommand())
	cmd.AddCommand(newEnvCurrentCommand())
	cmd.AddCommand(newEnvDeleteCommand())

	return cmd
}

func newEnvRegisterCommand() *cobra.Command {
	var (
		url      string
		apiKey   string
		useStdin bool
	)

	cmd := &cobra.Command{
		Use:   "register <name>",
		Short: "Register or replace an environment profile",
		Long: `Register an environment profile. The first profile registered becomes the
default.

Examples:
  # Prompt for the API key
  flowsync env register dev --url http://localhost:7860

  # Read the API key from stdin
  printf '%s' "$LANGFLOW_API_KEY" | flowsync env register prod --url https://langflow.example.com --stdin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secretInput{label: "API key", flag: "api-key", value: apiKey, useStdin: useStdin}.read(cmd)
			if err != nil {
				return err
			}

			st := openStores()
			madeDefault, err := st.profiles.Register(&profile.Profile{Name: args[0], URL: url, APIKey: key})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Profile '%s' registered\n", args[0])
			if madeDefault {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  '%s' is now the default profile\n", args[0])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Langflow base URL (required)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Langflow API key (prompted when omitted)")
	cmd.Flags().BoolVar(&useStdin, "stdin", false, "Read the API key from stdin")
	_ = cmd.MarkFlagRequired("url")
	cmd.MarkFlagsMutuallyExclusive("stdin", "api-key")

	return cmd
}

func newEnvListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List environment profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := openStores().profiles.List()
			if err != nil {
				return err
			}
			if len(profiles) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No profiles registered.")
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "\nRegister one with: flowsync env register <name> --url <url>")
				return nil
			}

			t := newTable(cmd.OutOrStdout(), table.Row{"", "NAME", "URL"})
			for _, p := range profiles {
				marker := ""
				if p.Default {
					marker = "*"
				}
				t.AppendRow(table.Row{marker, p.Name, p.URL})
			}
			t.Render()
			return nil
		},
	}
}

func newEnvSelectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "select <name>",
		Short: "Make a profile the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openStores().profiles.SetDefault(args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Default profile set to '%s'\n", args[0])
			return nil
		},
	}
}

func newEnvCurrentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the active profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := openStores()
			name, err := st.profileName()
			if err != nil {
				return err
			}
			p, err := st.profiles.Resolve(name)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", p.Name, p.URL)
			return nil
		},
	}
}

func newEnvDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a profile, its API key and its Git selection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := openStores()
			if err := st.profiles.Delete(args[0]); err != nil {
				return err
			}
			if err := st.registry.ClearProfile(args[0]); err != nil {
				return fmt.Errorf("profile deleted but its Git selection could not be cleared: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Profile '%s' deleted\n", args[0])
			return nil
		},
	}
}
