package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Auth      AuthConfig      `mapstructure:"auth"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AuthConfig points at the authentication server used for login and token
// refresh.
type AuthConfig struct {
	URL            string `mapstructure:"url"`
	RequestTimeout string `mapstructure:"request_timeout"`
	MaxRetries     uint64 `mapstructure:"max_retries"`
}

func (a AuthConfig) GetRequestTimeout() time.Duration {
	d, err := time.ParseDuration(a.RequestTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// StorageConfig configures the persisted user store.
type StorageConfig struct {
	Type     string `mapstructure:"type"` // "mysql" or "memory"
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// SyncConfig carries process-wide session defaults.
type SyncConfig struct {
	AutoConnect       bool   `mapstructure:"auto_connect"`
	HeartbeatInterval string `mapstructure:"heartbeat_interval"`
}

func (s SyncConfig) GetHeartbeatInterval() time.Duration {
	d, err := time.ParseDuration(s.HeartbeatInterval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// SchedulerConfig controls the proactive token refresh sweep.
type SchedulerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Interval string `mapstructure:"interval"`
}

type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	AuthToken    string   `mapstructure:"auth_token"`
	ReadTimeout  string   `mapstructure:"read_timeout"`
	WriteTimeout string   `mapstructure:"write_timeout"`
	CorsOrigins  []string `mapstructure:"cors_origins"`
}

func (s ServerConfig) GetReadTimeout() time.Duration {
	d, _ := time.ParseDuration(s.ReadTimeout)
	return d
}

func (s ServerConfig) GetWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(s.WriteTimeout)
	return d
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("auth.request_timeout", "10s")
	v.SetDefault("auth.max_retries", 3)
	v.SetDefault("storage.type", "memory")
	v.SetDefault("sync.heartbeat_interval", "30s")
	v.SetDefault("scheduler.interval", "@every 5m")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Auth.URL == "" {
		return nil, fmt.Errorf("auth.url is required")
	}

	return &cfg, nil
}
