package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/flowsync/pkg/domain/types"
	"github.com/dshills/flowsync/pkg/export"
	"github.com/dshills/flowsync/pkg/repopath"
)

// NewExportCommand creates the export command
func NewExportCommand() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export <project-id>",
		Short: "Export a project and all of its flows as a zip archive",
		Long: `Export a project from the active environment as a zip archive.

The archive holds the project metadata and one JSON document per flow, named
<name>[<id>].json. The export is all or nothing: if any flow cannot be read,
no archive is written.

Examples:
  # Write Demo[p1].zip in the current directory
  flowsync export p1

  # Write to a specific file
  flowsync export p1 --output backups/demo.zip`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			archive, err := export.NewPackager(s.service).Export(commandContext(cmd), types.ProjectID(args[0]))
			if err != nil {
				return err
			}

			path := outputPath
			if path == "" {
				path = repopath.Sanitize(archive.ProjectName) + "[" + string(archive.ProjectID) + "].zip"
			}
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
			}
			if err := os.WriteFile(path, archive.Data, 0644); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Project '%s' exported to: %s\n", archive.ProjectName, path)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %d entries (%d flows)\n", len(archive.Entries), len(archive.Entries)-1)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: <name>[<id>].zip)")

	return cmd
}
