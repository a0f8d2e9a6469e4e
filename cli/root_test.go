package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/minutemate/minutemate/pkg/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRootForTest(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	root := RootCmd()
	require.NoError(t, root.ParseFlags(append([]string{"--env-file", ""}, args...)))
	root.SetContext(t.Context())
	return root
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "minutemate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestSetupCommandContext(t *testing.T) {
	t.Run("Should load the config file into the command context", func(t *testing.T) {
		path := writeConfigFile(t, "server:\n  port: 7001\n")
		root := newRootForTest(t, "--config", path)

		require.NoError(t, setupCommandContext(root))

		cfg := config.FromContext(root.Context())
		require.NotNil(t, cfg)
		assert.Equal(t, 7001, cfg.Server.Port)
	})

	t.Run("Should let the log-level flag override the config file", func(t *testing.T) {
		path := writeConfigFile(t, "runtime:\n  log_level: warn\n")
		root := newRootForTest(t, "--config", path, "--log-level", "debug")

		require.NoError(t, setupCommandContext(root))

		cfg := config.FromContext(root.Context())
		require.NotNil(t, cfg)
		assert.Equal(t, "debug", cfg.Runtime.LogLevel)
	})

	t.Run("Should use defaults when the config file is missing", func(t *testing.T) {
		root := newRootForTest(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"))

		require.NoError(t, setupCommandContext(root))

		cfg := config.FromContext(root.Context())
		require.NotNil(t, cfg)
		assert.Equal(t, config.Default().Server.Port, cfg.Server.Port)
	})

	t.Run("Should reject an env file outside the working directory", func(t *testing.T) {
		outside := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(outside, []byte("SERVER_PORT=7002\n"), 0o600))
		root := RootCmd()
		require.NoError(t, root.ParseFlags([]string{"--env-file", outside}))
		root.SetContext(t.Context())

		err := setupCommandContext(root)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "outside the working directory")
	})
}

func TestExtractCLIFlags(t *testing.T) {
	t.Run("Should map only changed flags to config paths", func(t *testing.T) {
		c := &cobra.Command{Use: "test"}
		c.Flags().String("log-level", "", "")
		c.Flags().Bool("log-json", false, "")
		c.Flags().String("host", "0.0.0.0", "")
		c.Flags().Int("port", 5001, "")
		require.NoError(t, c.ParseFlags([]string{"--port", "8080", "--log-json"}))

		flags := make(map[string]any)
		extractCLIFlags(c.Flags(), flags)

		assert.Equal(t, map[string]any{"server.port": 8080, "runtime.log_json": true}, flags)
	})

	t.Run("Should skip flags the command does not define", func(t *testing.T) {
		c := &cobra.Command{Use: "test"}
		flags := make(map[string]any)

		extractCLIFlags(c.Flags(), flags)

		assert.Empty(t, flags)
	})
}

func TestIsPathWithinDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Run("Should accept nested paths", func(t *testing.T) {
		assert.True(t, isPathWithinDirectory(filepath.Join(dir, "a", ".env"), dir))
	})
	t.Run("Should reject sibling prefixes", func(t *testing.T) {
		assert.False(t, isPathWithinDirectory(dir+"-other/.env", dir))
	})
}
