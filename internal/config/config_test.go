package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  host: "127.0.0.1"
  port: 9090

automation:
  tick_interval_seconds: 30
  max_attempts: 3
  sequence_path: "./config/sequence.yaml"

transport:
  provider: "sparkpost"
  from_email: "sam@mail.example.com"
  from_name: "Sam"
  sparkpost:
    api_key: "file-key"

redis:
  addr: "localhost:6379"
  subscribe_limit: 5
  subscribe_window_seconds: 60

environment: "staging"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
	assert.Equal(t, 30*time.Second, cfg.Automation.TickInterval())
	assert.Equal(t, 3, cfg.Automation.MaxAttempts)
	assert.Equal(t, "./config/sequence.yaml", cfg.Automation.SequencePath)
	assert.Equal(t, "sparkpost", cfg.Transport.Provider)
	assert.Equal(t, "file-key", cfg.Transport.SparkPost.APIKey)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 5, cfg.Redis.SubscribeLimit)
	assert.Equal(t, time.Minute, cfg.Redis.SubscribeWindow())
	assert.Equal(t, "staging", cfg.Environment)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Automation.TickInterval())
	assert.Equal(t, 5, cfg.Automation.MaxAttempts)
	assert.Equal(t, "log", cfg.Transport.Provider)
	assert.Equal(t, "us-east-1", cfg.Transport.SES.Region)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.Database.URL)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("TRANSPORT_PROVIDER", "ses")
	t.Setenv("AWS_SES_ACCESS_KEY", "env-access")
	t.Setenv("AWS_SES_SECRET_KEY", "env-secret")
	t.Setenv("PORT", "9999")
	t.Setenv("DATABASE_URL", "postgres://localhost/leadflow")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := LoadFromEnv("")
	require.NoError(t, err)

	assert.Equal(t, "ses", cfg.Transport.Provider)
	assert.Equal(t, "env-access", cfg.Transport.SES.AccessKey)
	assert.Equal(t, "env-secret", cfg.Transport.SES.SecretKey)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/leadflow", cfg.Database.URL)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestLoadFromEnvIgnoresBadPort(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	cfg, err := LoadFromEnv("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}
