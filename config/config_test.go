package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagevision/vantage/pkg/api/v1/routes"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, routes.DefaultBaseURL, cfg.ServerAddress)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.SessionDir)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.NoError(t, err)
	assert.Equal(t, routes.DefaultBaseURL, cfg.ServerAddress)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_address: http://api.example.com
auth_token: file-token
poll_interval: 5s
log_level: debug
`), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "http://api.example.com", cfg.ServerAddress)
	assert.Equal(t, "file-token", cfg.AuthToken)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_address: http://from-file\n"), 0o600))

	t.Setenv(EnvServerAddress, "http://from-env")
	t.Setenv(EnvPollInterval, "750ms")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "http://from-env", cfg.ServerAddress)
	assert.Equal(t, 750*time.Millisecond, cfg.PollInterval)
}

func TestInvalidPollIntervalRejected(t *testing.T) {
	t.Setenv(EnvPollInterval, "soon")

	_, err := Load("")

	assert.Error(t, err)
}

func TestNonPositivePollIntervalFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poll_interval: 0s\n"), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
}

func TestGetEnv(t *testing.T) {
	t.Setenv("VANTAGE_TEST_KEY", "set")

	assert.Equal(t, "set", GetEnv("VANTAGE_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnv("VANTAGE_TEST_MISSING", "fallback"))
}
