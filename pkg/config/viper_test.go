package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitConfigReadsFileAndEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "wxmaps.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  dir: /srv/maps\nbulletins:\n  afd_office: LIX\n"), 0o600))
	t.Setenv("WXMAPS_STORAGE_PROVIDER", "memory")

	InitConfig(path, zap.NewNop())

	assert.Equal(t, path, viper.ConfigFileUsed())
	assert.Equal(t, "/srv/maps", viper.GetString("output.dir"))
	assert.Equal(t, "LIX", viper.GetString("bulletins.afd_office"))
	assert.Equal(t, "memory", viper.GetString("storage.provider"))
	assert.Equal(t, 30, viper.GetInt("crawler.timeout_seconds"))
}

func TestInitConfigMissingFileKeepsDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	InitConfig("", nil)

	assert.Empty(t, viper.ConfigFileUsed())
	assert.Equal(t, "output", viper.GetString("output.dir"))
	assert.Equal(t, "local", viper.GetString("storage.provider"))
}
