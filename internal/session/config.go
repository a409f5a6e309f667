package session

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"object-sync-service/internal/auth"
	"object-sync-service/internal/user"
)

// Policy governs how a session reacts after a recoverable error pause.
type Policy int

const (
	// PolicyAutomatic resumes binding as soon as fresh credentials are
	// supplied to a recoverably paused session.
	PolicyAutomatic Policy = iota
	// PolicyManual never resumes on its own; the application must call Start.
	PolicyManual
)

// Config describes one local-store-to-remote binding. It is immutable once
// built; incompatible options fail at Build time, not at use time.
type Config struct {
	localPath string
	serverURL *url.URL
	creds     []auth.Credentials
	usr       *user.User
	handler   ErrorHandler
	auto      bool
	policy    Policy
	heartbeat time.Duration
}

func (c *Config) LocalPath() string        { return c.localPath }
func (c *Config) ServerURL() *url.URL      { return c.serverURL }
func (c *Config) User() *user.User         { return c.usr }
func (c *Config) AutoConnect() bool        { return c.auto }
func (c *Config) Policy() Policy           { return c.policy }
func (c *Config) Heartbeat() time.Duration { return c.heartbeat }

func (c *Config) Credentials() []auth.Credentials {
	out := make([]auth.Credentials, len(c.creds))
	copy(out, c.creds)
	return out
}

// Builder accumulates session options. Obtain one with NewConfig and finish
// with Build.
type Builder struct {
	cfg Config
}

func NewConfig(localPath, serverURL string) *Builder {
	b := &Builder{}
	b.cfg.localPath = localPath
	if u, err := url.Parse(serverURL); err == nil {
		b.cfg.serverURL = u
	}
	b.cfg.heartbeat = 30 * time.Second
	return b
}

// Credentials appends login credentials, tried in order until one
// authenticates.
func (b *Builder) Credentials(creds ...auth.Credentials) *Builder {
	b.cfg.creds = append(b.cfg.creds, creds...)
	return b
}

// User supplies an already authenticated identity, skipping the credentials
// exchange while its tokens remain valid.
func (b *Builder) User(u *user.User) *Builder {
	b.cfg.usr = u
	return b
}

func (b *Builder) ErrorHandler(h ErrorHandler) *Builder {
	b.cfg.handler = h
	return b
}

func (b *Builder) AutoConnect(auto bool) *Builder {
	b.cfg.auto = auto
	return b
}

func (b *Builder) Policy(p Policy) *Builder {
	b.cfg.policy = p
	return b
}

func (b *Builder) Heartbeat(d time.Duration) *Builder {
	b.cfg.heartbeat = d
	return b
}

// Build validates the options and freezes the configuration. The local path
// is canonicalized here so the registry's one-session-per-path invariant
// cannot be defeated by spelling the same file two ways.
func (b *Builder) Build() (*Config, error) {
	cfg := b.cfg

	if cfg.localPath == "" {
		return nil, fmt.Errorf("a local store path is required")
	}
	abs, err := filepath.Abs(filepath.Clean(cfg.localPath))
	if err != nil {
		return nil, fmt.Errorf("cannot canonicalize local path %q: %w", cfg.localPath, err)
	}
	cfg.localPath = abs

	if cfg.serverURL == nil || cfg.serverURL.Host == "" {
		return nil, fmt.Errorf("a server URL is required")
	}
	if s := cfg.serverURL.Scheme; s != "realm" && s != "realms" {
		return nil, fmt.Errorf("unsupported server URL scheme %q (want realm or realms)", s)
	}
	if len(cfg.creds) == 0 && cfg.usr == nil {
		return nil, fmt.Errorf("either credentials or an authenticated user is required")
	}
	if cfg.heartbeat <= 0 {
		return nil, fmt.Errorf("heartbeat interval must be positive, got %s", cfg.heartbeat)
	}

	cfg.creds = append([]auth.Credentials(nil), cfg.creds...)
	return &cfg, nil
}
