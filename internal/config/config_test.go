package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "output", cfg.Output.Dir)
	assert.Equal(t, "local", cfg.Storage.Provider)
	assert.True(t, cfg.Crawler.RespectRobots)
	assert.Equal(t, 11, cfg.Blend.Days)
	assert.Equal(t, 264, cfg.Blend.MaxHour)
	assert.Equal(t, "12", cfg.Blend.Cycle)
	assert.Len(t, cfg.Bulletins.Zones, 7)
	assert.Equal(t, "MSZ075", cfg.Bulletins.Zones[0])
	assert.Equal(t, []string{"HFOTWOCP", "MIATWOAT", "MIATWDAT", "MIATWDEP", "MIATWOEP"}, cfg.Bulletins.NHCProducts)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 10*time.Minute, cfg.CatalogTTL())
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
logging:
  development: false
output:
  dir: /tmp/maps
crawler:
  user_agent: test-agent
  respect_robots: false
  timeout_seconds: 45
blend:
  days: 5
bulletins:
  zones: [MSZ075]
  afd_office: LIX
schedule:
  addr: ":9100"
  jobs:
    - name: morning
      cron: "0 13 * * *"
      pipelines: ["download:spc", "maps:spc:regional"]
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Logging.Development)
	assert.Equal(t, "/tmp/maps", cfg.Output.Dir)
	assert.Equal(t, "test-agent", cfg.Crawler.UserAgent)
	assert.False(t, cfg.Crawler.RespectRobots)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 5, cfg.Blend.Days)
	assert.Equal(t, []string{"MSZ075"}, cfg.Bulletins.Zones)
	assert.Equal(t, "LIX", cfg.Bulletins.AFDOffice)
	require.Len(t, cfg.Schedule.Jobs, 1)
	assert.Equal(t, "morning", cfg.Schedule.Jobs[0].Name)
	assert.Equal(t, []string{"download:spc", "maps:spc:regional"}, cfg.Schedule.Jobs[0].Pipelines)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("WXMAPS_OUTPUT_DIR", "env-out")
	t.Setenv("WXMAPS_CRAWLER_TIMEOUT_SECONDS", "12")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-out", cfg.Output.Dir)
	assert.Equal(t, 12*time.Second, cfg.RequestTimeout())
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() Config {
		v := viper.New()
		SetDefaults(v)
		cfg, err := FromViper(v)
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Storage.Provider = "s3" }},
		{"gcs without bucket", func(c *Config) { c.Storage.Provider = "gcs" }},
		{"empty output dir", func(c *Config) { c.Output.Dir = " " }},
		{"zero timeout", func(c *Config) { c.Crawler.TimeoutSeconds = 0 }},
		{"negative retries", func(c *Config) { c.Crawler.MaxRetries = -1 }},
		{"zero breaker", func(c *Config) { c.Breaker.MaxFailures = 0 }},
		{"too many days", func(c *Config) { c.Blend.Days = 12 }},
		{"job without cron", func(c *Config) {
			c.Schedule.Jobs = []ScheduleJob{{Name: "x", Pipelines: []string{"bulletins:all"}}}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("gcs with bucket", func(t *testing.T) {
		cfg := base()
		cfg.Storage.Provider = "gcs"
		cfg.Storage.GCSBucket = "maps"
		assert.NoError(t, cfg.Validate())
	})
}

func TestDownloadTimeoutFallback(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 15*time.Minute, Config{}.DownloadTimeout())
	assert.Equal(t, 2*time.Minute, Config{Breaker: BreakerConfig{OpenSeconds: 120}}.BreakerOpen())
}
