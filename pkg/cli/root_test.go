package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfigDir(t *testing.T) {
	orig := *GlobalConfig
	t.Cleanup(func() { *GlobalConfig = orig })

	envDir := filepath.Join(t.TempDir(), "env")
	t.Setenv(ConfigDirEnv, envDir)

	GlobalConfig.ConfigDir = "/from/flag"
	dir, err := resolveConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", dir)

	GlobalConfig.ConfigDir = ""
	dir, err = resolveConfigDir()
	require.NoError(t, err)
	assert.Equal(t, envDir, dir)

	t.Setenv(ConfigDirEnv, "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir, err = resolveConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".flowsync"), dir)
}

func TestRootCommandWiring(t *testing.T) {
	cmd := NewRootCommand()

	want := []string{"env", "export", "git", "history", "status"}
	var got []string
	for _, c := range cmd.Commands() {
		if c.Name() == "help" || c.Name() == "completion" {
			continue
		}
		got = append(got, c.Name())
	}
	assert.ElementsMatch(t, want, got)

	git, _, err := cmd.Find([]string{"git"})
	require.NoError(t, err)
	var sub []string
	for _, c := range git.Commands() {
		sub = append(sub, c.Name())
	}
	assert.ElementsMatch(t, []string{"remote", "branch", "checkout", "switch", "push", "pull"}, sub)
}
