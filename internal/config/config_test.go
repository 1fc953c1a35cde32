package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envKeys are all variables the tests touch; cleared before each case.
var envKeys = []string{
	"PRICEPIPE_CONFIG",
	"PRICEPIPE_SERVER_PORT",
	"PRICEPIPE_PIPELINE_TARGET",
	"PRICEPIPE_PIPELINE_TEST_RATIO",
	"PRICEPIPE_PIPELINE_RIDGE",
	"PRICEPIPE_LOGGING_LEVEL",
	"PRICEPIPE_LOGGING_OUTPUT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	inTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "SalePrice", cfg.Pipeline.Target)
	assert.Equal(t, 0.2, cfg.Pipeline.TestRatio)
	assert.Equal(t, int64(42), cfg.Pipeline.Seed)
	assert.Equal(t, "median", cfg.Pipeline.Impute)
	assert.True(t, cfg.Pipeline.LogTarget)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Security.RateLimit.Enabled)
}

func TestLoadCreatesDirectories(t *testing.T) {
	clearEnv(t)
	dir := inTempDir(t)

	_, err := Load()
	require.NoError(t, err)

	for _, sub := range []string{"data", "models", "reports", "logs"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err, sub)
		assert.True(t, info.IsDir())
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	dir := inTempDir(t)

	yaml := `
server:
  port: 9090
pipeline:
  target: price
  test_ratio: 0.3
logging:
  level: debug
`
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "price", cfg.Pipeline.Target)
	assert.Equal(t, 0.3, cfg.Pipeline.TestRatio)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// untouched fields keep their defaults
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "median", cfg.Pipeline.Impute)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := inTempDir(t)

	yaml := "server:\n  port: 9090\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PRICEPIPE_SERVER_PORT", "7070")
	t.Setenv("PRICEPIPE_PIPELINE_TARGET", "list_price")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "list_price", cfg.Pipeline.Target)
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"bad port", "PRICEPIPE_SERVER_PORT", "99999", "invalid server port"},
		{"bad ratio", "PRICEPIPE_PIPELINE_TEST_RATIO", "1.5", "test ratio"},
		{"negative ridge", "PRICEPIPE_PIPELINE_RIDGE", "-0.1", "ridge penalty"},
		{"bad level", "PRICEPIPE_LOGGING_LEVEL", "verbose", "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			inTempDir(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateWebSocketKeepalive(t *testing.T) {
	cfg := Default()
	cfg.WebSocket.PingPeriod = cfg.WebSocket.PongWait
	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping period")

	cfg = Default()
	cfg.WebSocket.PongWait = 0
	assert.Error(t, cfg.validate())
}

func TestLoadNormalizesLogging(t *testing.T) {
	clearEnv(t)
	inTempDir(t)
	t.Setenv("PRICEPIPE_LOGGING_OUTPUT", "syslog")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "both", cfg.Logging.Output)
}
