package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
auth:
  url: http://auth.example.com
  request_timeout: 5s
  max_retries: 2
storage:
  type: mysql
  host: db.example.com
  port: 3306
  user: sync
  password: secret
  database: users
sync:
  auto_connect: true
  heartbeat_interval: 15s
scheduler:
  enabled: true
  interval: "@every 1m"
server:
  port: 9090
logging:
  level: debug
  format: json
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://auth.example.com", cfg.Auth.URL)
	assert.Equal(t, 5*time.Second, cfg.Auth.GetRequestTimeout())
	assert.Equal(t, uint64(2), cfg.Auth.MaxRetries)
	assert.Equal(t, "mysql", cfg.Storage.Type)
	assert.Equal(t, "db.example.com", cfg.Storage.Host)
	assert.True(t, cfg.Sync.AutoConnect)
	assert.Equal(t, 15*time.Second, cfg.Sync.GetHeartbeatInterval())
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "@every 1m", cfg.Scheduler.Interval)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  url: http://auth.example.com
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Auth.GetRequestTimeout())
	assert.Equal(t, uint64(3), cfg.Auth.MaxRetries)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, 30*time.Second, cfg.Sync.GetHeartbeatInterval())
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "@every 5m", cfg.Scheduler.Interval)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadConfigRequiresAuthURL(t *testing.T) {
	path := writeConfig(t, `
storage:
  type: memory
`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDurationFallbacks(t *testing.T) {
	a := AuthConfig{RequestTimeout: "garbage"}
	assert.Equal(t, 10*time.Second, a.GetRequestTimeout())

	s := SyncConfig{HeartbeatInterval: "-5s"}
	assert.Equal(t, 30*time.Second, s.GetHeartbeatInterval())
}
