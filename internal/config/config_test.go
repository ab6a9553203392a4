package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HACKWAVE_CONFIG_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout())
	assert.Equal(t, time.Second, cfg.Stream.InitialDelay())
	assert.Equal(t, 30*time.Second, cfg.Stream.MaxDelay())
}

func TestLoad_ConfigFileWithComments(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HACKWAVE_CONFIG_DIR", dir)

	content := `{
		// local override for development
		"baseUrl": "http://localhost:8080",
		"logLevel": "debug",
		"stream": { "reconnectInitialMs": 100, "reconnectMaxMs": 3000 },
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.jsonc"), []byte(content), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 100*time.Millisecond, cfg.Stream.InitialDelay())
	assert.Equal(t, 3*time.Second, cfg.Stream.MaxDelay())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HACKWAVE_CONFIG_DIR", dir)

	content := `{"baseUrl": "http://from-file"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.jsonc"), []byte(content), 0o644))

	t.Setenv("HACKWAVE_BASE_URL", "http://from-env")
	t.Setenv("HACKWAVE_REQUEST_TIMEOUT_SECONDS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://from-env", cfg.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout())
}

func TestLoad_InvalidBackoffFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HACKWAVE_CONFIG_DIR", dir)

	content := `{"stream": {"reconnectInitialMs": -5, "reconnectMaxMs": 0}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.jsonc"), []byte(content), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultReconnectInitialMS, cfg.Stream.ReconnectInitialMS)
	assert.Equal(t, DefaultReconnectMaxMS, cfg.Stream.ReconnectMaxMS)
}

func TestLoad_MalformedFileErrors(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HACKWAVE_CONFIG_DIR", dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.jsonc"), []byte(`{"baseUrl": [}`), 0o644))

	_, err := Load()
	assert.Error(t, err)
}
