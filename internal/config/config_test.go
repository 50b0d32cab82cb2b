package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/vitalsd/internal/config"
	"codeberg.org/mutker/vitalsd/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "config_test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	configPath := filepath.Join(tempDir, "vitalsd.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	return configPath
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
listen = ":9090"
interval = "500ms"
channels = ["bpm", "oximetry"]
log_level = "debug"
chart_width = 800
archive = true
archive_db = "/path/to/archive.db"
archive_batch_size = 10
auth_secret = "s3cret"
`)

	// Point the loader at the test config file
	t.Setenv("VITALSD_CONFIG", configPath)

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen, "Expected Listen :9090")
	assert.Equal(t, 500*time.Millisecond, cfg.Interval, "Expected Interval 500ms")
	assert.Equal(t, []string{"bpm", "oximetry"}, cfg.Channels)
	assert.Equal(t, config.LogLevelDebug, cfg.LogLevel)
	assert.Equal(t, 800, cfg.ChartWidth)
	assert.Equal(t, config.DefaultChartHeight, cfg.ChartHeight)
	assert.True(t, cfg.Archive, "Expected Archive true")
	assert.Equal(t, "/path/to/archive.db", cfg.ArchiveDB)
	assert.Equal(t, 10, cfg.ArchiveBatchSize)
	assert.Equal(t, "s3cret", cfg.AuthSecret)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VITALSD_CONFIG", "")

	cfg, err := config.Load(nil, config.WithConfigFile(""))
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, config.DefaultListen, cfg.Listen)
	assert.Equal(t, 2*time.Second, cfg.Interval, "Expected default Interval 2s")
	assert.Equal(t, []string{"bpm", "temperature", "oximetry"}, cfg.Channels)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel, "Expected default LogLevel info")
	assert.False(t, cfg.Archive, "Expected archive disabled by default")
	assert.Empty(t, cfg.AuthSecret)
	assert.Equal(t, float64(config.DefaultChartXMax), cfg.ChartXMax)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	configPath := writeConfig(t, `
This is not a valid TOML file
`)
	t.Setenv("VITALSD_CONFIG", configPath)

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := config.Load([]string{"--config", filepath.Join(t.TempDir(), "missing.toml")})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestInvalidLogLevel(t *testing.T) {
	configPath := writeConfig(t, `
log_level = "invalid"
`)
	t.Setenv("VITALSD_CONFIG", configPath)

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestInvalidInterval(t *testing.T) {
	t.Setenv("VITALSD_CONFIG", "")

	_, err := config.Load([]string{"--interval", "0s"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidInterval))
}

func TestDuplicateChannels(t *testing.T) {
	t.Setenv("VITALSD_CONFIG", "")

	_, err := config.Load([]string{"--channels", "bpm,bpm"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidChannels))
}

func TestFlagsOverrideFileAndEnv(t *testing.T) {
	configPath := writeConfig(t, `
listen = ":9090"
log_level = "error"
`)
	t.Setenv("VITALSD_CONFIG", configPath)
	t.Setenv("VITALSD_LISTEN", ":9191")

	cfg, err := config.Load([]string{"--log-level", "warning", "--interval", "3s"})
	require.NoError(t, err)

	assert.Equal(t, ":9191", cfg.Listen, "Expected env to override file")
	assert.Equal(t, config.LogLevelWarning, cfg.LogLevel, "Expected flag to override file")
	assert.Equal(t, 3*time.Second, cfg.Interval)
}

func TestDebugFlag(t *testing.T) {
	t.Setenv("VITALSD_CONFIG", "")

	cfg, err := config.Load([]string{"--debug"})
	require.NoError(t, err)
	assert.Equal(t, config.LogLevelDebug, cfg.LogLevel, "Expected LogLevel to be set by flag")
}

func TestArchiveRequiresPositiveBatch(t *testing.T) {
	configPath := writeConfig(t, `
archive = true
archive_batch_size = 0
`)
	t.Setenv("VITALSD_CONFIG", configPath)

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
}
