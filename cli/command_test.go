package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grovetools/extcore/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	t.Run("explicit file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "extcore.yml")
		require.NoError(t, os.WriteFile(path, []byte(`version: "1"
modules:
  workers: 4
logging:
  format:
    structured_to_stderr: never
`), 0644))

		cmd := NewStandardCommand("test", "test")
		require.NoError(t, cmd.ParseFlags([]string{"--config", path}))

		cfg, err := LoadConfig(cmd)
		require.NoError(t, err)
		assert.Equal(t, 4, cfg.Modules.Workers)
		assert.Equal(t, "or", cfg.Modules.Match)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		cmd := NewStandardCommand("test", "test")
		require.NoError(t, cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "nope.yml")}))

		_, err := LoadConfig(cmd)
		assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
	})

	t.Run("defaults without any file", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cmd := NewStandardCommand("test", "test")

		cfg, err := LoadConfig(cmd)
		require.NoError(t, err)
		assert.Equal(t, "directory", cfg.Modules.Host)
		assert.Equal(t, 1, cfg.Modules.Workers)
	})
}

func TestGetOptions(t *testing.T) {
	cmd := NewStandardCommand("test", "test")
	require.NoError(t, cmd.ParseFlags([]string{"-v", "--json", "-c", "x.yml"}))

	assert.Equal(t, CommandOptions{ConfigFile: "x.yml", Verbose: true, JSONOutput: true}, GetOptions(cmd))
}
