package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	flowlog "github.com/dshills/flowsync/pkg/log"
)

const (
	// Version is the current version of flowsync
	Version = "1.0.0"

	// ConfigDirEnv overrides the default configuration directory.
	ConfigDirEnv = "FLOWSYNC_CONFIG_DIR"
)

// Config holds the global configuration for the flowsync CLI
type Config struct {
	ConfigDir string
	Debug     bool
	Profile   string
}

// GlobalConfig is the shared configuration instance
var GlobalConfig = &Config{}

// NewRootCommand creates the root cobra command for flowsync
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flowsync",
		Short: "flowsync - keep Langflow flows and projects in a Git repository",
		Long: `flowsync mirrors flows and projects between a Langflow environment and a
GitHub (or GitHub Enterprise) repository.

Flows are stored as JSON documents under <project>[<id>]/<flow>[<id>].json so
that every file can be traced back to the entity it came from, even after a
rename. Each environment profile keeps its own remote and branch selection.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			level := "warn"
			if GlobalConfig.Debug {
				level = "debug"
			}
			flowlog.Setup(level, cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&GlobalConfig.Debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&GlobalConfig.ConfigDir, "config-dir", "", "Configuration directory (default: ~/.flowsync)")
	cmd.PersistentFlags().StringVar(&GlobalConfig.Profile, "profile", "", "Environment profile to use (default: the selected profile)")

	cmd.AddCommand(NewEnvCommand())
	cmd.AddCommand(NewStatusCommand())
	cmd.AddCommand(NewGitCommand())
	cmd.AddCommand(NewExportCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}

// initConfig resolves and creates the configuration directory
func initConfig() error {
	dir, err := resolveConfigDir()
	if err != nil {
		return err
	}
	GlobalConfig.ConfigDir = dir

	if err := os.MkdirAll(GlobalConfig.ConfigDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// resolveConfigDir applies the precedence --config-dir, FLOWSYNC_CONFIG_DIR,
// ~/.flowsync.
func resolveConfigDir() (string, error) {
	if GlobalConfig.ConfigDir != "" {
		return GlobalConfig.ConfigDir, nil
	}
	if envDir := os.Getenv(ConfigDirEnv); envDir != "" {
		return envDir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".flowsync"), nil
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() string {
	dir, err := resolveConfigDir()
	if err != nil {
		return ".flowsync"
	}
	return dir
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}
