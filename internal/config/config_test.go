package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "./music", cfg.Library.Directory)
	assert.Equal(t, 16, cfg.Import.QueueSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, DefaultFreshFields, cfg.Import.FreshFields)
	assert.Equal(t, ModeCopy, cfg.Import.Mode(), "copy is the default transfer mode")
	assert.Empty(t, cfg.Validate())
}

func TestLoadFull(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[library]
directory = "/srv/music"
database = "/srv/crate.db"
state_file = "/srv/state.json"

[import]
move = true
resume = true
threaded = true
queue_size = 4
ignore = ["*.part"]
ignore_hidden = true
fresh_fields = ["media"]

[log]
level = "debug"
`))
	require.NoError(t, err)

	assert.Equal(t, "/srv/music", cfg.Library.Directory)
	assert.Equal(t, ModeMove, cfg.Import.Mode())
	assert.True(t, cfg.Import.Resume)
	assert.Equal(t, []string{"media"}, cfg.Import.FreshFields)
	assert.Empty(t, cfg.Validate())
}

func TestEnvSubstitution(t *testing.T) {
	t.Setenv("CRATE_TEST_DIR", "/from/env")
	cfg, err := Load(writeConfig(t, `
[library]
directory = "${CRATE_TEST_DIR}"
`))
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Library.Directory)
}

func TestValidateMutuallyExclusiveModes(t *testing.T) {
	cfg := Default()
	cfg.Import.Move = true
	cfg.Import.Copy = true

	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "mutually exclusive")
}

func TestValidateResumeIncrementalConflict(t *testing.T) {
	cfg := Default()
	cfg.Import.Resume = true
	cfg.Import.Incremental = true

	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "resume and incremental")
}

func TestValidateQueueSize(t *testing.T) {
	cfg := Default()
	cfg.Import.QueueSize = 0
	assert.NotEmpty(t, cfg.Validate())
}

func TestConfigError(t *testing.T) {
	e := &ConfigError{Errors: []string{"a", "b"}}
	assert.True(t, e.HasErrors())
	assert.Contains(t, e.Error(), "a")
	assert.False(t, (&ConfigError{}).HasErrors())
}
