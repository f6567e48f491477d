package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)
	t.Setenv("HOME", tmp)
	t.Chdir(tmp)
	return tmp
}

func TestLoadConfigDefaults(t *testing.T) {
	tmp := isolate(t)

	c, err := LoadConfig[Config](&cobra.Command{}, Defaults(), "")
	require.NoError(t, err)
	assert.Equal(t, BackendBolt, c.Store.Backend)
	assert.Equal(t, filepath.Join(tmp, "bimil", "store.db"), c.Store.Path)
	assert.Equal(t, "default", c.Store.Namespace)
	assert.Equal(t, "moderate", c.KDF.Profile)
	assert.True(t, c.Document.TrackModify)
	assert.NoError(t, c.Validate())
}

func TestLoadConfigPrecedence(t *testing.T) {
	tmp := isolate(t)
	file := filepath.Join(tmp, "cfg.yaml")
	yaml := "store:\n  backend: postgres\n  dsn: postgres://file\nlog:\n  level: info\nkdf:\n  profile: sensitive\n"
	require.NoError(t, os.WriteFile(file, []byte(yaml), 0o600))

	t.Setenv("BIMIL_LOG_LEVEL", "debug")

	cmd := &cobra.Command{}
	cmd.Flags().String("kdf-profile", "", "")
	require.NoError(t, cmd.Flags().Set("kdf-profile", "interactive"))

	c, err := LoadConfig[Config](cmd, Defaults(), file)
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, c.Store.Backend)
	assert.Equal(t, "postgres://file", c.Store.DSN)
	assert.Equal(t, "debug", c.Log.Level, "environment overrides file")
	assert.Equal(t, "interactive", c.KDF.Profile, "flag overrides file")
	assert.Equal(t, "default", c.Store.Namespace, "default fills the gaps")
}

func TestLoadConfigSearchPath(t *testing.T) {
	tmp := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "bimil.yaml"), []byte("store:\n  namespace: work\n"), 0o600))

	c, err := LoadConfig[Config](nil, Defaults(), "")
	require.NoError(t, err)
	assert.Equal(t, "work", c.Store.Namespace)
}

func TestLoadConfigMalformed(t *testing.T) {
	tmp := isolate(t)
	file := filepath.Join(tmp, "bad.yaml")
	require.NoError(t, os.WriteFile(file, []byte("store: [unterminated\n"), 0o600))

	_, err := LoadConfig[Config](nil, Defaults(), file)
	assert.Error(t, err)
}

func TestWriteConfigFile(t *testing.T) {
	tmp := isolate(t)
	path, err := GetConfigPath(false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmp, "bimil", "bimil.yaml"), path)

	c := Config{}
	c.Store.Backend = BackendMemory
	c.Log.Level = "error"
	require.NoError(t, WriteConfigFile(&c, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := LoadConfig[Config](nil, Defaults(), "")
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, got.Store.Backend)
	assert.Equal(t, "error", got.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		store   StoreConfig
		wantErr bool
	}{
		{"Memory", StoreConfig{Backend: BackendMemory}, false},
		{"Bolt", StoreConfig{Backend: BackendBolt, Path: "x.db"}, false},
		{"BoltWithoutPath", StoreConfig{Backend: BackendBolt}, true},
		{"Postgres", StoreConfig{Backend: BackendPostgres, DSN: "postgres://"}, false},
		{"PostgresWithoutDSN", StoreConfig{Backend: BackendPostgres}, true},
		{"Unknown", StoreConfig{Backend: "redis"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Config{Store: tt.store}
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
