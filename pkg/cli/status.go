package cli

import (
	"errors"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	flowerrors "github.com/dshills/flowsync/pkg/errors"
	"github.com/dshills/flowsync/pkg/storage"
)

const notSet = "N/A"

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active environment and Git selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := openStores()

			env, url, apiKey := notSet, notSet, ""
			name, err := st.profileName()
			switch {
			case err == nil:
				env = name
				if p, err := st.profiles.Resolve(name); err == nil {
					url, apiKey = p.URL, p.APIKey
				} else if !errors.Is(err, flowerrors.ErrProfileNotFound) {
					return err
				}
			case !errors.Is(err, flowerrors.ErrProfileNotFound):
				return err
			}

			remoteName, remoteURL, branch := notSet, "", notSet
			if env != notSet {
				sel, err := st.registry.Selection(env)
				if err != nil {
					return err
				}
				if sel.Remote != "" {
					remoteName, branch = sel.Remote, sel.Branch
					if d, err := st.registry.GetRemote(sel.Remote); err == nil {
						remoteURL = d.URL
					}
				}
			}

			t := newTable(cmd.OutOrStdout(), table.Row{"CATEGORY", "VALUE"})
			t.AppendRow(table.Row{"Environment", env})
			t.AppendRow(table.Row{"URL", url})
			if apiKey != "" {
				t.AppendRow(table.Row{"API Key", storage.MaskSecret(apiKey)})
			}
			t.AppendSeparator()
			t.AppendRow(table.Row{"Git Remote", remoteName})
			if remoteURL != "" {
				t.AppendRow(table.Row{"Git Remote URL", remoteURL})
			}
			t.AppendRow(table.Row{"Git Branch", branch})
			t.Render()
			return nil
		},
	}
}
